// Package console implements the host API on top of the local operating
// system.  Terminals attach to the process' standard streams, and the
// workspace is a list of local directories.
package console

import (
	"context"
	"io"
	"os"

	"github.com/lthibault/log"

	"github.com/wetware/wasmterm/host"
)

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	if l == nil {
		l = log.New(log.WithLevel(log.ErrorLevel))
	}

	return func(m *Module) {
		m.win.log = l
	}
}

// WithIO sets the streams that terminals attach to.  Defaults to the
// process' standard input and output.
func WithIO(in io.Reader, out io.Writer) Option {
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	return func(m *Module) {
		m.win.in, m.win.out = in, out
	}
}

// Module is a host.Module backed by the local system.
type Module struct {
	ws   *Workspace
	win  *Window
	cmds *Commands
}

var _ host.Module = (*Module)(nil)

// New console module with an empty workspace.
func New(opt ...Option) *Module {
	m := &Module{
		ws:   new(Workspace),
		win:  new(Window),
		cmds: new(Commands),
	}

	for _, option := range withDefaults(opt) {
		option(m)
	}

	return m
}

func withDefaults(opt []Option) []Option {
	return append([]Option{
		WithLogger(nil),
		WithIO(nil, nil),
	}, opt...)
}

// Import returns an importer that yields m.
func Import(m *Module) host.Importer {
	return func(context.Context) (host.Module, error) {
		return m, nil
	}
}

func (m *Module) Workspace() host.Workspace { return m.ws }

func (m *Module) Window() host.Window { return m.win }

func (m *Module) Commands() host.Commands { return m.cmds }

func (m *Module) FileSystemError() host.ErrorFunc {
	return host.NewFileSystemError
}

// LocalWorkspace returns the workspace, whose folders can be edited.
func (m *Module) LocalWorkspace() *Workspace { return m.ws }
