// Package extension wires a WASI package into the host editor.
//
// Activation acquires the host module, compiles the package, and builds
// the workspace filesystem that every terminal shares.  Each terminal
// runs a fresh process of the same compiled package.
package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lthibault/log"
	"go.uber.org/multierr"

	"github.com/wetware/wasmterm"
	"github.com/wetware/wasmterm/host"
	"github.com/wetware/wasmterm/proc"
	"github.com/wetware/wasmterm/pty"
	"github.com/wetware/wasmterm/vfs"
)

// ErrInactive is returned by OpenTerminal before Activate.
var ErrInactive = errors.New("extension not activated")

// Extension is the activated state of a package.
type Extension struct {
	Log     log.Logger
	Loader  *host.Loader
	Runtime *proc.Runtime
	Metrics wasmterm.Metrics
	Config  Config

	mu        sync.Mutex
	mod       host.Module
	cmd       *proc.Command
	dir       *vfs.Directory
	folders   *FolderSync
	subs      []host.Disposable
	terminals []*session
}

type session struct {
	pty *pty.Terminal
	dir *vfs.Directory
}

// Activate prepares the extension.  The returned FolderSync must be
// served for workspace folders to appear in terminals.
func (x *Extension) Activate(ctx context.Context) (*FolderSync, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.mod != nil {
		return x.folders, nil
	}

	mod, err := x.Loader.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire host: %w", err)
	}

	bytecode, err := os.ReadFile(x.Config.Package)
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}

	cmd, err := x.Runtime.Load(ctx, bytecode)
	if err != nil {
		return nil, fmt.Errorf("compile package: %w", err)
	}

	dir, err := vfs.New(
		vfs.WithLogger(x.log()),
		vfs.WithResolver(vfs.HostResolver(context.Background(), x.Loader)))
	if err != nil {
		return nil, fmt.Errorf("workspace filesystem: %w", err)
	}

	x.mod, x.cmd, x.dir = mod, cmd, dir
	x.folders = &FolderSync{
		Log:       x.log(),
		Mounter:   dir,
		Workspace: mod.Workspace(),
	}

	x.subs = append(x.subs, mod.Commands().RegisterCommand(
		x.Config.CommandID(),
		func(ctx context.Context) error {
			_, err := x.OpenTerminal(ctx)
			return err
		}))

	x.log().WithField("package", cmd.Name()).
		WithField("command", x.Config.CommandID()).
		Info("extension activated")

	return x.folders, nil
}

// OpenTerminal boots a process and shows it in a new host terminal.
func (x *Extension) OpenTerminal(ctx context.Context) (host.Terminal, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.mod == nil {
		return nil, ErrInactive
	}

	dir := x.dir.Clone()
	opt := append(x.Config.terminalOptions(), pty.WithLogger(x.log()))

	p, err := pty.New(ctx, x.cmd, dir, opt...)
	if err != nil {
		dir.Close()
		return nil, err
	}

	term, err := x.mod.Window().CreateTerminal(host.TerminalOptions{
		Name: x.Config.TerminalName(),
		Pty:  p,
	})
	if err != nil {
		p.Close()
		dir.Close()
		return nil, fmt.Errorf("create terminal: %w", err)
	}

	s := &session{pty: p, dir: dir}
	metrics, started := x.metrics(), time.Now()
	metrics.Incr("terminal.opened")
	p.OnDidClose(func(code int) {
		metrics.Duration("terminal.uptime", time.Since(started))
		if code != 0 {
			metrics.Incr("terminal.failed")
		}

		if x.release(s) {
			if err := dir.Close(); err != nil {
				x.log().WithError(err).Debug("failed to release directory")
			}
		}
	})

	x.terminals = append(x.terminals, s)
	term.Show()

	return term, nil
}

// Deactivate closes every terminal and releases the workspace
// filesystem.  It is safe to call more than once.
func (x *Extension) Deactivate() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, sub := range x.subs {
		sub.Dispose()
	}
	x.subs = nil

	var err error
	for _, s := range x.terminals {
		s.pty.Close()
		err = multierr.Append(err, s.dir.Close())
	}
	x.terminals = nil

	if x.dir != nil {
		err = multierr.Append(err, x.dir.Close())
		x.dir = nil
	}

	x.mod = nil
	return err
}

// release drops s from the open terminals.  It reports false if s was
// already released, e.g. by Deactivate.
func (x *Extension) release(s *session) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i, t := range x.terminals {
		if t == s {
			x.terminals = append(x.terminals[:i], x.terminals[i+1:]...)
			return true
		}
	}

	return false
}

// Terminals returns the number of open terminals.
func (x *Extension) Terminals() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	return len(x.terminals)
}

func (x *Extension) log() log.Logger {
	if x.Log == nil {
		x.Log = log.New(log.WithLevel(log.ErrorLevel))
	}

	return x.Log
}

func (x *Extension) metrics() wasmterm.Metrics {
	if x.Metrics == nil {
		x.Metrics = wasmterm.NopMetrics{}
	}

	return x.Metrics
}
