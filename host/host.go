// Package host declares the editor-host API consumed by wasmterm.
//
// The host editor owns terminals, windows and the workspace.  wasmterm
// only sees it through the interfaces in this package, and acquires the
// Module lazily through a Loader.
package host

import (
	"context"
	"time"
)

// Module is the root of the host editor's API.
type Module interface {
	Workspace() Workspace
	Window() Window
	Commands() Commands

	// FileSystemError returns the host's constructor for filesystem
	// errors.
	FileSystemError() ErrorFunc
}

// Disposable releases a subscription or registration.
type Disposable interface {
	Dispose()
}

// Dimensions of a terminal, in character cells.
type Dimensions struct {
	Rows    int
	Columns int
}

// Folder is a root folder opened in the host workspace.
type Folder struct {
	URI   string
	Name  string // may be empty
	Index int    // position in the workspace folder list
}

// WorkspaceFoldersChangeEvent reports folders added to and removed from
// the workspace.
type WorkspaceFoldersChangeEvent struct {
	Added   []Folder
	Removed []Folder
}

// Workspace is the host's view of the opened project.
type Workspace interface {
	FS() FileSystem
	Folders() []Folder
	OnDidChangeWorkspaceFolders(func(WorkspaceFoldersChangeEvent)) Disposable
}

// FileType bits, as reported by FileSystem.Stat.
type FileType uint8

const (
	FileTypeUnknown   FileType = 0
	FileTypeFile      FileType = 1
	FileTypeDirectory FileType = 2
	FileTypeSymlink   FileType = 64
)

// FileStat describes a file in the host filesystem.
type FileStat struct {
	Type  FileType
	Ctime time.Time
	Mtime time.Time
	Size  int64
}

// DirEntry is a single entry returned by FileSystem.ReadDirectory.
type DirEntry struct {
	Name string
	Type FileType
}

// FileSystem is the host's URI-addressed filesystem.  Errors should be
// values built with the Module's FileSystemError constructor.
type FileSystem interface {
	Stat(ctx context.Context, uri string) (FileStat, error)
	ReadDirectory(ctx context.Context, uri string) ([]DirEntry, error)
	CreateDirectory(ctx context.Context, uri string) error
	ReadFile(ctx context.Context, uri string) ([]byte, error)
	WriteFile(ctx context.Context, uri string, data []byte) error
	Delete(ctx context.Context, uri string) error
	Rename(ctx context.Context, oldURI, newURI string) error
}

// Pseudoterminal is the terminal-provider contract.  The host drives
// it; the implementation produces text and exit codes through the
// OnDidWrite and OnDidClose events.
type Pseudoterminal interface {
	OnDidWrite(func(string)) Disposable
	OnDidClose(func(int)) Disposable

	Open(initial *Dimensions)
	Close()
	HandleInput(data string)
	SetDimensions(Dimensions)
}

// TerminalOptions for Window.CreateTerminal.
type TerminalOptions struct {
	Name string
	Pty  Pseudoterminal
}

// Terminal is a host terminal widget bound to a Pseudoterminal.
type Terminal interface {
	Name() string
	Show()

	// Wait blocks until the pseudoterminal reports an exit code, or the
	// context expires.
	Wait(ctx context.Context) (int, error)

	Dispose()
}

// Window exposes the host's window-level API.
type Window interface {
	CreateTerminal(TerminalOptions) (Terminal, error)
}

// CommandFunc is the body of a registered command.
type CommandFunc func(ctx context.Context) error

// Commands is the host command registry.
type Commands interface {
	RegisterCommand(id string, fn CommandFunc) Disposable
	ExecuteCommand(ctx context.Context, id string) error
}
