package extension

import (
	"context"
	"path"
	"strconv"
	"sync"

	"github.com/lthibault/log"
	"github.com/thejerf/suture/v4"

	"github.com/wetware/wasmterm/host"
	"github.com/wetware/wasmterm/vfs"
)

var _ suture.Service = (*FolderSync)(nil)

// FolderSync mirrors the workspace folders into a mount table.  Each
// folder is mounted at /<name>, or at /<index> if it has no name.
type FolderSync struct {
	Log       log.Logger
	Mounter   vfs.Mounter
	Workspace host.Workspace

	init  sync.Once
	ready chan struct{}
}

func (fs *FolderSync) String() string { return "folder-sync" }

// Ready is closed once the initial folders have been mounted.
func (fs *FolderSync) Ready() <-chan struct{} {
	fs.init.Do(func() {
		fs.ready = make(chan struct{})
	})

	return fs.ready
}

// Serve mounts the current folders and tracks changes until ctx
// expires.  Mounts are left in place when Serve returns.
func (fs *FolderSync) Serve(ctx context.Context) error {
	sub := fs.Bind()
	defer sub.Dispose()

	fs.Ready()
	select {
	case <-fs.ready:
	default:
		close(fs.ready)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Bind mounts the current folders and subscribes to changes.  The
// caller must dispose of the subscription.
func (fs *FolderSync) Bind() host.Disposable {
	for _, f := range fs.Workspace.Folders() {
		fs.mount(f)
	}

	return fs.Workspace.OnDidChangeWorkspaceFolders(fs.update)
}

func (fs *FolderSync) update(ev host.WorkspaceFoldersChangeEvent) {
	for _, f := range ev.Added {
		fs.mount(f)
	}

	for _, f := range ev.Removed {
		fs.unmount(f)
	}
}

func (fs *FolderSync) mount(f host.Folder) {
	p := MountPath(f)
	if err := fs.Mounter.Mount(f.URI, p); err != nil {
		fs.log().WithError(err).
			WithField("mount", p).
			Warn("failed to mount folder")
		return
	}

	fs.log().WithField("mount", p).
		WithField("uri", f.URI).
		Info("mounted workspace folder")
}

func (fs *FolderSync) unmount(f host.Folder) {
	p := MountPath(f)
	if err := fs.Mounter.Unmount(p); err != nil {
		fs.log().WithError(err).
			WithField("mount", p).
			Warn("failed to unmount folder")
		return
	}

	fs.log().WithField("mount", p).Info("unmounted workspace folder")
}

func (fs *FolderSync) log() log.Logger {
	if fs.Log == nil {
		return log.New(log.WithLevel(log.ErrorLevel))
	}

	return fs.Log
}

// MountPath returns the sub-path at which a folder is mounted.
func MountPath(f host.Folder) string {
	if f.Name != "" {
		return path.Join("/", f.Name)
	}

	return "/" + strconv.Itoa(f.Index)
}
