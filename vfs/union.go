package vfs

import (
	"io/fs"
	"path"
	"strings"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
)

// unionFS overlays the mounts of a Directory onto its scratch root.
type unionFS struct {
	experimentalsys.UnimplementedFS

	d    *Directory
	root experimentalsys.FS
}

// target is a path resolved to the filesystem that serves it.
type target struct {
	fs    experimentalsys.FS
	mount string // "" for the scratch root
	rel   string // relative to fs
}

// lookup finds the deepest mount that contains p.
func (u *unionFS) lookup(p string) (target, experimentalsys.Errno) {
	rel := relPath(p)
	if !fs.ValidPath(rel) {
		return target{}, experimentalsys.EINVAL
	}

	var best *Mount
	ms := u.d.Mounts()
	for i := range ms {
		mp := strings.TrimPrefix(ms[i].Path, "/")
		if rel == mp || strings.HasPrefix(rel, mp+"/") {
			if best == nil || len(ms[i].Path) > len(best.Path) {
				best = &ms[i]
			}
		}
	}

	if best == nil {
		return target{fs: u.root, rel: rel}, 0
	}

	src, err := u.d.source(*best)
	if err != nil {
		u.d.log.WithError(err).
			WithField("mount", best.Path).
			Debug("unresolvable mount")
		return target{fs: u.root, rel: rel}, 0
	}

	sub := strings.TrimPrefix(rel, strings.TrimPrefix(best.Path, "/"))
	if sub = strings.TrimPrefix(sub, "/"); sub == "" {
		sub = "."
	}

	return target{fs: src, mount: best.Path, rel: sub}, 0
}

// mutable resolves p for an operation that must not remove or replace
// a mount point.
func (u *unionFS) mutable(p string) (target, experimentalsys.Errno) {
	t, errno := u.lookup(p)
	if errno == 0 && t.mount != "" && t.rel == "." {
		return target{}, experimentalsys.EPERM
	}

	return t, errno
}

func (u *unionFS) OpenFile(p string, flag experimentalsys.Oflag, perm fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	t, errno := u.lookup(p)
	if errno != 0 {
		return nil, errno
	}

	return t.fs.OpenFile(t.rel, flag, perm)
}

func (u *unionFS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	t, errno := u.lookup(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}

	return t.fs.Lstat(t.rel)
}

func (u *unionFS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	t, errno := u.lookup(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}

	return t.fs.Stat(t.rel)
}

func (u *unionFS) Mkdir(p string, perm fs.FileMode) experimentalsys.Errno {
	t, errno := u.lookup(p)
	if errno != 0 {
		return errno
	}

	return t.fs.Mkdir(t.rel, perm)
}

func (u *unionFS) Chmod(p string, perm fs.FileMode) experimentalsys.Errno {
	t, errno := u.lookup(p)
	if errno != 0 {
		return errno
	}

	return t.fs.Chmod(t.rel, perm)
}

func (u *unionFS) Rename(from, to string) experimentalsys.Errno {
	src, errno := u.mutable(from)
	if errno != 0 {
		return errno
	}

	dst, errno := u.mutable(to)
	if errno != 0 {
		return errno
	}

	// No EXDEV in the WASI errno set.
	if src.mount != dst.mount {
		return experimentalsys.ENOTSUP
	}

	return src.fs.Rename(src.rel, dst.rel)
}

func (u *unionFS) Rmdir(p string) experimentalsys.Errno {
	t, errno := u.mutable(p)
	if errno != 0 {
		return errno
	}

	return t.fs.Rmdir(t.rel)
}

func (u *unionFS) Unlink(p string) experimentalsys.Errno {
	t, errno := u.mutable(p)
	if errno != 0 {
		return errno
	}

	return t.fs.Unlink(t.rel)
}

func (u *unionFS) Link(oldPath, newPath string) experimentalsys.Errno {
	src, errno := u.lookup(oldPath)
	if errno != 0 {
		return errno
	}

	dst, errno := u.mutable(newPath)
	if errno != 0 {
		return errno
	}

	if src.mount != dst.mount {
		return experimentalsys.ENOTSUP
	}

	return src.fs.Link(src.rel, dst.rel)
}

func (u *unionFS) Symlink(oldPath, linkName string) experimentalsys.Errno {
	t, errno := u.mutable(linkName)
	if errno != 0 {
		return errno
	}

	return t.fs.Symlink(oldPath, t.rel)
}

func (u *unionFS) Readlink(p string) (string, experimentalsys.Errno) {
	t, errno := u.lookup(p)
	if errno != 0 {
		return "", errno
	}

	return t.fs.Readlink(t.rel)
}

func (u *unionFS) Utimens(p string, atim, mtim int64) experimentalsys.Errno {
	t, errno := u.lookup(p)
	if errno != 0 {
		return errno
	}

	return t.fs.Utimens(t.rel, atim, mtim)
}

// relPath converts a guest path to an io/fs style relative path.  The
// result is not valid if p escapes the root.
func relPath(p string) string {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "."
	}

	return path.Clean(p)
}
