package host

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Importer locates the host module.  It may block.
type Importer func(context.Context) (Module, error)

// Loader defers acquisition of the host Module until first use, then
// caches it for the lifetime of the Loader.  The zero value is not
// usable; construct with NewLoader.
type Loader struct {
	importer Importer

	group  singleflight.Group
	cached atomic.Pointer[moduleRef]
}

type moduleRef struct{ Module }

// NewLoader returns a loader that acquires the host module with f.
func NewLoader(f Importer) *Loader {
	return &Loader{importer: f}
}

// Acquire returns the host module, importing it on first use.
// Concurrent callers share a single in-flight import, which is not
// cancelled when one of them gives up.  Failures are not cached, so a
// later call will import again.
func (l *Loader) Acquire(ctx context.Context) (Module, error) {
	if ref := l.cached.Load(); ref != nil {
		return ref.Module, nil
	}

	ch := l.group.DoChan("acquire", func() (any, error) {
		if ref := l.cached.Load(); ref != nil {
			return ref.Module, nil
		}

		mod, err := l.importer(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		} else if mod == nil {
			return nil, fmt.Errorf("%w: importer returned nil module", ErrNotAcquired)
		}

		l.cached.Store(&moduleRef{Module: mod})
		return mod, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(Module), nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Acquired reports whether Acquire has succeeded.
func (l *Loader) Acquired() bool {
	return l.cached.Load() != nil
}

// WorkspaceFS returns the host workspace filesystem, or nil if the
// module has not been acquired.
func (l *Loader) WorkspaceFS() FileSystem {
	if ref := l.cached.Load(); ref != nil {
		return ref.Workspace().FS()
	}

	return nil
}

// ErrorConstructor returns the host's filesystem error constructor, or
// nil if the module has not been acquired.
func (l *Loader) ErrorConstructor() ErrorFunc {
	if ref := l.cached.Load(); ref != nil {
		return ref.FileSystemError()
	}

	return nil
}
