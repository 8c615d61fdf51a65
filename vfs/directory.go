// Package vfs implements the mounted filesystem that is bound into
// terminal processes.
//
// A Directory is a mount table layered over a private scratch root.
// Host folders are mounted at sub-paths of the Directory, and the whole
// Directory is bound at a single guest path (typically /workspace) when
// a process boots.  Guest lookups consult the mount table on every call,
// so mounts and unmounts are visible to processes that are already
// running.  Directories can be shared between terminals with Clone.
package vfs

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	"github.com/lthibault/log"
	"github.com/tetratelabs/wazero"
	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/experimental/sysfs"
)

//go:generate mockgen -source=directory.go -destination=test/directory.go -package=test_vfs

// Mounter binds and unbinds sources in a filesystem namespace.
type Mounter interface {
	Mount(uri, path string) error
	Unmount(path string) error
}

// Resolver maps a non-file URI onto a filesystem.
type Resolver func(uri *url.URL) (experimentalsys.FS, error)

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(d *Directory) {
		d.log = l
	}
}

// WithResolver sets the resolver for URIs whose scheme is not "file".
// By default such URIs cannot be mounted.
func WithResolver(r Resolver) Option {
	return func(d *Directory) {
		d.resolve = r
	}
}

// Directory is a mount table over a scratch root.  It is safe for
// concurrent use.
type Directory struct {
	log     log.Logger
	resolve Resolver
	shared  *shared
}

type shared struct {
	db   *memdb.MemDB
	root string
	refs atomic.Int32
}

// New creates an empty directory with a fresh scratch root.
func New(opt ...Option) (*Directory, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp("", "wasmterm-")
	if err != nil {
		return nil, fmt.Errorf("scratch root: %w", err)
	}

	d := &Directory{
		shared: &shared{db: db, root: root},
	}
	d.shared.refs.Store(1)

	for _, option := range withDefaults(opt) {
		option(d)
	}

	return d, nil
}

func withDefaults(opt []Option) []Option {
	return append([]Option{
		WithLogger(log.New(log.WithLevel(log.ErrorLevel))),
		WithResolver(func(u *url.URL) (experimentalsys.FS, error) {
			return nil, fmt.Errorf("%w: unsupported scheme %q", fs.ErrInvalid, u.Scheme)
		}),
	}, opt...)
}

// Clone returns a Directory that shares the receiver's mount table and
// scratch root.  Each clone must be closed.
func (d *Directory) Clone() *Directory {
	d.shared.refs.Add(1)

	return &Directory{
		log:     d.log,
		resolve: d.resolve,
		shared:  d.shared,
	}
}

// Close releases the receiver's reference.  The scratch root is removed
// when the last reference is closed.
func (d *Directory) Close() error {
	if d.shared.refs.Add(-1) != 0 {
		return nil
	}

	return os.RemoveAll(d.shared.root)
}

// Root returns the host path of the scratch root.
func (d *Directory) Root() string {
	return d.shared.root
}

// Mount binds the source identified by uri at path, which is
// interpreted relative to the directory root.  Mounting over an
// existing mount fails with fs.ErrExist.
func (d *Directory) Mount(uri, p string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return &fs.PathError{Op: "mount", Path: uri, Err: err}
	}

	m := Mount{Path: clean(p), URI: u.String()}
	if m.Path == "/" {
		return &fs.PathError{Op: "mount", Path: p, Err: fs.ErrInvalid}
	}

	txn := d.shared.db.Txn(true)
	defer txn.Abort()

	if existing, err := txn.First(table, "id", m.Path); err != nil {
		return err
	} else if existing != nil {
		return &fs.PathError{Op: "mount", Path: m.Path, Err: fs.ErrExist}
	}

	if err = txn.Insert(table, m); err != nil {
		return err
	}

	// Create the mount point in the scratch root, so that the guest
	// sees it when listing the parent directory.
	if err = os.MkdirAll(d.hostPath(m.Path), 0o755); err != nil {
		return fmt.Errorf("mount point: %w", err)
	}

	txn.Commit()

	d.log.WithField("mount", m.Path).
		WithField("uri", m.URI).
		Debug("mounted")

	return nil
}

// Unmount removes the mount at path.  It fails with fs.ErrNotExist if
// nothing is mounted there.
func (d *Directory) Unmount(p string) error {
	p = clean(p)

	txn := d.shared.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(table, "id", p)
	if err != nil {
		return err
	} else if existing == nil {
		return &fs.PathError{Op: "unmount", Path: p, Err: fs.ErrNotExist}
	}

	if err = txn.Delete(table, existing); err != nil {
		return err
	}
	txn.Commit()

	// Best effort; the stub is only removed if it is still empty.
	if err = os.Remove(d.hostPath(p)); err != nil {
		d.log.WithError(err).
			WithField("mount", p).
			Debug("mount point not removed")
	}

	d.log.WithField("mount", p).Debug("unmounted")
	return nil
}

// Mounts returns the current mounts, sorted by path.
func (d *Directory) Mounts() []Mount {
	txn := d.shared.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(table, "id_prefix", "")
	if err != nil {
		panic(err) // unreachable; "id" is a prefix index
	}

	var ms []Mount
	for obj := it.Next(); obj != nil; obj = it.Next() {
		ms = append(ms, obj.(Mount))
	}

	return ms
}

// FS returns a view of the directory for use by guests.  Paths are
// routed through the mount table on every call.  Mounts that cannot be
// resolved show up as their empty mount point.
func (d *Directory) FS() experimentalsys.FS {
	return &unionFS{
		d:    d,
		root: sysfs.DirFS(d.shared.root),
	}
}

// FSConfig binds the directory at guestPath.
func (d *Directory) FSConfig(cfg wazero.FSConfig, guestPath string) wazero.FSConfig {
	return cfg.(sysfs.FSConfig).WithSysFSMount(d.FS(), guestPath)
}

func (d *Directory) source(m Mount) (experimentalsys.FS, error) {
	u, err := url.Parse(m.URI)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "file" || u.Scheme == "" {
		return sysfs.DirFS(filepath.FromSlash(u.Path)), nil
	}

	return d.resolve(u)
}

func (d *Directory) hostPath(p string) string {
	return filepath.Join(d.shared.root, filepath.FromSlash(p))
}

func clean(p string) string {
	return path.Clean("/" + p)
}
