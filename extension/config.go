package extension

import (
	"path/filepath"
	"strings"

	"github.com/wetware/wasmterm"
	"github.com/wetware/wasmterm/pty"
)

// Config for an Extension.
type Config struct {
	// Package is the path to the WASI program run in each terminal.
	Package string

	// Name of the terminal, also used as the command namespace.
	// Defaults to the package file name without its extension.
	Name string

	// MountPoint is the guest path of the workspace filesystem.
	// Defaults to wasmterm.DefaultMountPoint.
	MountPoint string

	Args    []string
	Env     map[string]string
	NoStdin bool
}

// TerminalName returns the configured name, or one derived from the
// package path.
func (c Config) TerminalName() string {
	if c.Name != "" {
		return c.Name
	}

	return strings.TrimSuffix(filepath.Base(c.Package), filepath.Ext(c.Package))
}

// CommandID returns the identifier of the open-terminal command.
func (c Config) CommandID() string {
	return c.TerminalName() + ".openTerminal"
}

func (c Config) mountPoint() string {
	if c.MountPoint == "" {
		return wasmterm.DefaultMountPoint
	}

	return c.MountPoint
}

func (c Config) terminalOptions() []pty.Option {
	opt := []pty.Option{
		pty.WithMountPoint(c.mountPoint()),
		pty.WithEnv(c.Env),
	}

	if len(c.Args) > 0 {
		opt = append(opt, pty.WithArgs(append([]string{c.TerminalName()}, c.Args...)...))
	}

	if c.NoStdin {
		opt = append(opt, pty.WithoutStdin())
	}

	return opt
}
