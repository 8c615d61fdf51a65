package vfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"sort"
	"time"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wetware/wasmterm/host"
)

// HostResolver resolves URIs against the host workspace filesystem
// acquired by l.  Resolution fails with host.ErrNotAcquired until the
// host module has been acquired.
func HostResolver(ctx context.Context, l *host.Loader) Resolver {
	return func(u *url.URL) (experimentalsys.FS, error) {
		fsys := l.WorkspaceFS()
		if fsys == nil {
			return nil, host.ErrNotAcquired
		}

		return &HostFS{
			Ctx:  ctx,
			FS:   fsys,
			Base: u,
		}, nil
	}
}

// HostFS exposes the host filesystem rooted at Base to guests.  Files
// are read in full when opened, and written back to the host when they
// are synced or closed.
type HostFS struct {
	experimentalsys.UnimplementedFS

	Ctx  context.Context
	FS   host.FileSystem
	Base *url.URL
}

func (h *HostFS) uri(p string) (string, experimentalsys.Errno) {
	rel := relPath(p)
	if !fs.ValidPath(rel) {
		return "", experimentalsys.EINVAL
	}

	if rel == "." {
		return h.Base.String(), 0
	}

	return h.Base.JoinPath(rel).String(), 0
}

func (h *HostFS) stat(p string) (string, host.FileStat, experimentalsys.Errno) {
	uri, errno := h.uri(p)
	if errno != 0 {
		return "", host.FileStat{}, errno
	}

	st, err := h.FS.Stat(h.Ctx, uri)
	return uri, st, toErrno(err)
}

func (h *HostFS) OpenFile(p string, flag experimentalsys.Oflag, _ fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	uri, st, errno := h.stat(p)
	switch {
	case errno == 0 && flag&experimentalsys.O_CREAT != 0 && flag&experimentalsys.O_EXCL != 0:
		return nil, experimentalsys.EEXIST

	case errno == experimentalsys.ENOENT && flag&experimentalsys.O_CREAT != 0:
		if err := h.FS.WriteFile(h.Ctx, uri, nil); err != nil {
			return nil, toErrno(err)
		}
		st = host.FileStat{Type: host.FileTypeFile, Mtime: time.Now()}

	case errno != 0:
		return nil, errno
	}

	access := flag & (experimentalsys.O_RDWR | experimentalsys.O_WRONLY)
	if st.Type&host.FileTypeDirectory != 0 {
		if access != experimentalsys.O_RDONLY {
			return nil, experimentalsys.EISDIR
		}

		return &hostDir{fsys: h, uri: uri, stat: st}, 0
	}

	if flag&experimentalsys.O_DIRECTORY != 0 {
		return nil, experimentalsys.ENOTDIR
	}

	f := &hostFile{
		fsys:     h,
		uri:      uri,
		mtime:    st.Mtime,
		readable: access != experimentalsys.O_WRONLY,
		writable: access != experimentalsys.O_RDONLY,
		append:   flag&experimentalsys.O_APPEND != 0,
	}

	if f.writable && flag&experimentalsys.O_TRUNC != 0 {
		f.dirty = true
		return f, 0
	}

	data, err := h.FS.ReadFile(h.Ctx, uri)
	if err != nil {
		return nil, toErrno(err)
	}
	f.data = data

	return f, 0
}

func (h *HostFS) Lstat(p string) (sys.Stat_t, experimentalsys.Errno) {
	return h.Stat(p)
}

func (h *HostFS) Stat(p string) (sys.Stat_t, experimentalsys.Errno) {
	_, st, errno := h.stat(p)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}

	return statT(st), 0
}

func (h *HostFS) Mkdir(p string, _ fs.FileMode) experimentalsys.Errno {
	uri, _, errno := h.stat(p)
	switch errno {
	case 0:
		return experimentalsys.EEXIST
	case experimentalsys.ENOENT:
		return toErrno(h.FS.CreateDirectory(h.Ctx, uri))
	default:
		return errno
	}
}

func (h *HostFS) Rename(from, to string) experimentalsys.Errno {
	src, errno := h.uri(from)
	if errno != 0 {
		return errno
	}

	dst, errno := h.uri(to)
	if errno != 0 {
		return errno
	}

	return toErrno(h.FS.Rename(h.Ctx, src, dst))
}

func (h *HostFS) Rmdir(p string) experimentalsys.Errno {
	uri, st, errno := h.stat(p)
	if errno != 0 {
		return errno
	}

	if st.Type&host.FileTypeDirectory == 0 {
		return experimentalsys.ENOTDIR
	}

	entries, err := h.FS.ReadDirectory(h.Ctx, uri)
	if err != nil {
		return toErrno(err)
	} else if len(entries) != 0 {
		return experimentalsys.ENOTEMPTY
	}

	return toErrno(h.FS.Delete(h.Ctx, uri))
}

func (h *HostFS) Unlink(p string) experimentalsys.Errno {
	uri, st, errno := h.stat(p)
	if errno != 0 {
		return errno
	}

	if st.Type&host.FileTypeDirectory != 0 {
		return experimentalsys.EISDIR
	}

	return toErrno(h.FS.Delete(h.Ctx, uri))
}

// toErrno maps host filesystem errors onto WASI error numbers.
func toErrno(err error) experimentalsys.Errno {
	if err == nil {
		return 0
	}

	switch host.CodeOf(err) {
	case host.FileNotFound:
		return experimentalsys.ENOENT
	case host.FileExists:
		return experimentalsys.EEXIST
	case host.FileNotADirectory:
		return experimentalsys.ENOTDIR
	case host.FileIsADirectory:
		return experimentalsys.EISDIR
	case host.NoPermissions:
		return experimentalsys.EPERM
	case host.Unavailable:
		return experimentalsys.EIO
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return experimentalsys.ENOENT
	case errors.Is(err, fs.ErrExist):
		return experimentalsys.EEXIST
	case errors.Is(err, fs.ErrPermission):
		return experimentalsys.EPERM
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return experimentalsys.EINTR
	}

	return experimentalsys.EIO
}

func statT(st host.FileStat) sys.Stat_t {
	ctime := st.Ctime
	if ctime.IsZero() {
		ctime = st.Mtime
	}

	return sys.Stat_t{
		Mode:  fileMode(st.Type),
		Nlink: 1,
		Size:  st.Size,
		Atim:  st.Mtime.UnixNano(),
		Mtim:  st.Mtime.UnixNano(),
		Ctim:  ctime.UnixNano(),
	}
}

func fileMode(t host.FileType) fs.FileMode {
	switch {
	case t&host.FileTypeDirectory != 0:
		return fs.ModeDir | 0o755
	case t&host.FileTypeSymlink != 0:
		return fs.ModeSymlink | 0o777
	default:
		return 0o644
	}
}

// hostFile buffers a regular file in memory.
type hostFile struct {
	experimentalsys.UnimplementedFile

	fsys  *HostFS
	uri   string
	mtime time.Time

	data   []byte
	offset int64

	readable, writable, append bool
	dirty, closed              bool
}

func (f *hostFile) IsAppend() bool { return f.append }

func (f *hostFile) SetAppend(enable bool) experimentalsys.Errno {
	f.append = enable
	return 0
}

func (f *hostFile) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if f.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}

	return statT(host.FileStat{
		Type:  host.FileTypeFile,
		Mtime: f.mtime,
		Size:  int64(len(f.data)),
	}), 0
}

func (f *hostFile) Read(buf []byte) (int, experimentalsys.Errno) {
	n, errno := f.Pread(buf, f.offset)
	f.offset += int64(n)
	return n, errno
}

func (f *hostFile) Pread(buf []byte, off int64) (int, experimentalsys.Errno) {
	if f.closed || !f.readable {
		return 0, experimentalsys.EBADF
	} else if off < 0 {
		return 0, experimentalsys.EINVAL
	} else if off >= int64(len(f.data)) {
		return 0, 0
	}

	return copy(buf, f.data[off:]), 0
}

func (f *hostFile) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if f.closed {
		return 0, experimentalsys.EBADF
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += int64(len(f.data))
	default:
		return 0, experimentalsys.EINVAL
	}

	if offset < 0 {
		return 0, experimentalsys.EINVAL
	}

	f.offset = offset
	return offset, 0
}

func (f *hostFile) Readdir(int) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	return nil, experimentalsys.EBADF
}

func (f *hostFile) Write(buf []byte) (int, experimentalsys.Errno) {
	if f.append {
		f.offset = int64(len(f.data))
	}

	n, errno := f.Pwrite(buf, f.offset)
	f.offset += int64(n)
	return n, errno
}

func (f *hostFile) Pwrite(buf []byte, off int64) (int, experimentalsys.Errno) {
	if f.closed || !f.writable {
		return 0, experimentalsys.EBADF
	} else if off < 0 {
		return 0, experimentalsys.EINVAL
	}

	if end := off + int64(len(buf)); end > int64(len(f.data)) {
		f.resize(end)
	}

	f.dirty = true
	return copy(f.data[off:], buf), 0
}

func (f *hostFile) Truncate(size int64) experimentalsys.Errno {
	if f.closed || !f.writable {
		return experimentalsys.EBADF
	} else if size < 0 {
		return experimentalsys.EINVAL
	}

	f.resize(size)
	f.dirty = true
	return 0
}

func (f *hostFile) resize(size int64) {
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
		return
	}

	data := make([]byte, size)
	copy(data, f.data)
	f.data = data
}

func (f *hostFile) Sync() experimentalsys.Errno {
	if f.closed {
		return experimentalsys.EBADF
	}

	return f.flush()
}

func (f *hostFile) Datasync() experimentalsys.Errno {
	return f.Sync()
}

// flush writes the buffer back to the host if it was modified.
func (f *hostFile) flush() experimentalsys.Errno {
	if !f.dirty {
		return 0
	}

	if err := f.fsys.FS.WriteFile(f.fsys.Ctx, f.uri, f.data); err != nil {
		return toErrno(err)
	}

	f.dirty, f.mtime = false, time.Now()
	return 0
}

func (f *hostFile) Close() experimentalsys.Errno {
	if f.closed {
		return 0
	}

	errno := f.flush()
	f.closed = true
	return errno
}

// hostDir lists a host directory, sorted by name.
type hostDir struct {
	experimentalsys.DirFile

	fsys *HostFS
	uri  string
	stat host.FileStat

	entries []experimentalsys.Dirent
	offset  int
	closed  bool
}

func (d *hostDir) Dev() (uint64, experimentalsys.Errno) { return 0, 0 }

func (d *hostDir) Ino() (sys.Inode, experimentalsys.Errno) { return 0, 0 }

func (d *hostDir) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if d.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}

	return statT(d.stat), 0
}

// Seek only supports rewinding to the first entry.
func (d *hostDir) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if d.closed {
		return 0, experimentalsys.EBADF
	} else if offset != 0 || whence != io.SeekStart {
		return 0, experimentalsys.EINVAL
	}

	d.entries, d.offset = nil, 0
	return 0, 0
}

func (d *hostDir) Readdir(n int) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	if d.closed {
		return nil, experimentalsys.EBADF
	}

	if d.entries == nil {
		entries, err := d.fsys.FS.ReadDirectory(d.fsys.Ctx, d.uri)
		if err != nil {
			return nil, toErrno(err)
		}

		d.entries = make([]experimentalsys.Dirent, len(entries))
		for i, e := range entries {
			d.entries[i] = experimentalsys.Dirent{
				Name: e.Name,
				Type: fileMode(e.Type).Type(),
			}
		}
		sort.Slice(d.entries, func(i, j int) bool {
			return d.entries[i].Name < d.entries[j].Name
		})
	}

	rest := d.entries[d.offset:]
	if n > 0 && n < len(rest) {
		rest = rest[:n]
	}
	d.offset += len(rest)

	return rest, 0
}

func (d *hostDir) Sync() experimentalsys.Errno { return 0 }

func (d *hostDir) Datasync() experimentalsys.Errno { return 0 }

func (d *hostDir) Utimens(int64, int64) experimentalsys.Errno {
	return experimentalsys.ENOSYS
}

func (d *hostDir) Close() experimentalsys.Errno {
	d.closed = true
	return 0
}
