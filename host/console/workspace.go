package console

import (
	"sync"

	"github.com/wetware/wasmterm/event"
	"github.com/wetware/wasmterm/host"
)

// Workspace is a list of local folders.
type Workspace struct {
	mu      sync.RWMutex
	folders []host.Folder
	changed event.Emitter[host.WorkspaceFoldersChangeEvent]
}

var _ host.Workspace = (*Workspace)(nil)

func (ws *Workspace) FS() host.FileSystem {
	return FileSystem{}
}

// Folders returns a copy of the folder list.
func (ws *Workspace) Folders() []host.Folder {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	folders := make([]host.Folder, len(ws.folders))
	copy(folders, ws.folders)
	return folders
}

func (ws *Workspace) OnDidChangeWorkspaceFolders(fn func(host.WorkspaceFoldersChangeEvent)) host.Disposable {
	return ws.changed.Event(fn)
}

// AddFolder appends the directory at path to the workspace.  The name
// may be empty.
func (ws *Workspace) AddFolder(path, name string) (host.Folder, error) {
	uri, err := URI(path)
	if err != nil {
		return host.Folder{}, err
	}

	ws.mu.Lock()
	f := host.Folder{URI: uri, Name: name, Index: len(ws.folders)}
	ws.folders = append(ws.folders, f)
	ws.mu.Unlock()

	ws.changed.Fire(host.WorkspaceFoldersChangeEvent{Added: []host.Folder{f}})
	return f, nil
}

// RemoveFolder removes the folder with the given URI.  The indices of
// later folders shift down.  It reports whether a folder was removed.
func (ws *Workspace) RemoveFolder(uri string) bool {
	ws.mu.Lock()

	var (
		removed host.Folder
		found   bool
	)
	for i, f := range ws.folders {
		if f.URI == uri {
			removed, found = f, true
			ws.folders = append(ws.folders[:i:i], ws.folders[i+1:]...)
			break
		}
	}

	for i := range ws.folders {
		ws.folders[i].Index = i
	}
	ws.mu.Unlock()

	if found {
		ws.changed.Fire(host.WorkspaceFoldersChangeEvent{Removed: []host.Folder{removed}})
	}

	return found
}
