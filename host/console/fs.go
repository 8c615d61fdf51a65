package console

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/wetware/wasmterm/host"
)

// URI returns the file:// URI of a host path.  Relative paths are made
// absolute.
func URI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// FileSystem implements host.FileSystem on the local filesystem.  It
// only accepts file:// URIs.
type FileSystem struct{}

var _ host.FileSystem = FileSystem{}

func (FileSystem) Stat(_ context.Context, uri string) (host.FileStat, error) {
	name, err := localPath(uri)
	if err != nil {
		return host.FileStat{}, err
	}

	info, err := os.Lstat(name)
	if err != nil {
		return host.FileStat{}, fsError(err, uri)
	}

	return host.FileStat{
		Type:  fileType(info.Mode()),
		Ctime: info.ModTime(),
		Mtime: info.ModTime(),
		Size:  info.Size(),
	}, nil
}

func (FileSystem) ReadDirectory(_ context.Context, uri string) ([]host.DirEntry, error) {
	name, err := localPath(uri)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(name)
	if err != nil {
		return nil, fsError(err, uri)
	}

	des := make([]host.DirEntry, len(entries))
	for i, e := range entries {
		des[i] = host.DirEntry{Name: e.Name(), Type: fileType(e.Type())}
	}

	return des, nil
}

func (FileSystem) CreateDirectory(_ context.Context, uri string) error {
	name, err := localPath(uri)
	if err != nil {
		return err
	}

	return fsError(os.Mkdir(name, 0o755), uri)
}

func (FileSystem) ReadFile(_ context.Context, uri string) ([]byte, error) {
	name, err := localPath(uri)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(name); err == nil && info.IsDir() {
		return nil, host.NewFileSystemError(host.FileIsADirectory, uri)
	}

	data, err := os.ReadFile(name)
	return data, fsError(err, uri)
}

func (FileSystem) WriteFile(_ context.Context, uri string, data []byte) error {
	name, err := localPath(uri)
	if err != nil {
		return err
	}

	return fsError(os.WriteFile(name, data, 0o644), uri)
}

func (FileSystem) Delete(_ context.Context, uri string) error {
	name, err := localPath(uri)
	if err != nil {
		return err
	}

	return fsError(os.Remove(name), uri)
}

func (FileSystem) Rename(_ context.Context, oldURI, newURI string) error {
	oldName, err := localPath(oldURI)
	if err != nil {
		return err
	}

	newName, err := localPath(newURI)
	if err != nil {
		return err
	}

	return fsError(os.Rename(oldName, newName), oldURI)
}

func localPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", host.NewFileSystemError(host.Unavailable, uri)
	}

	return filepath.FromSlash(u.Path), nil
}

func fileType(mode fs.FileMode) host.FileType {
	switch {
	case mode&fs.ModeSymlink != 0:
		return host.FileTypeSymlink
	case mode.IsDir():
		return host.FileTypeDirectory
	case mode.IsRegular():
		return host.FileTypeFile
	}

	return host.FileTypeUnknown
}

// fsError translates an os error into a host.FileSystemError.  Errors
// without a matching code are returned unchanged.
func fsError(err error, uri string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return host.NewFileSystemError(host.FileNotFound, uri)
	case errors.Is(err, fs.ErrExist):
		return host.NewFileSystemError(host.FileExists, uri)
	case errors.Is(err, fs.ErrPermission):
		return host.NewFileSystemError(host.NoPermissions, uri)
	}

	return err
}
