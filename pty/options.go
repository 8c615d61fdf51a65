package pty

import (
	"time"

	"github.com/lthibault/log"

	"github.com/wetware/wasmterm"
)

// Option configures a Terminal.
type Option func(*Terminal)

// WithLogger sets the logger.  The terminal adds its own "terminal"
// field.
func WithLogger(l log.Logger) Option {
	if l == nil {
		l = log.New(log.WithLevel(log.ErrorLevel))
	}

	return func(t *Terminal) {
		t.log = l
	}
}

// WithMountPoint sets the guest path at which the terminal's filesystem
// is bound.  Defaults to wasmterm.DefaultMountPoint.
func WithMountPoint(path string) Option {
	if path == "" {
		path = wasmterm.DefaultMountPoint
	}

	return func(t *Terminal) {
		t.mountPoint = path
	}
}

// WithArgs sets the guest's argument vector, including the program name.
func WithArgs(args ...string) Option {
	return func(t *Terminal) {
		t.args = args
	}
}

// WithEnv sets the guest's environment.
func WithEnv(env map[string]string) Option {
	return func(t *Terminal) {
		t.env = env
	}
}

// WithoutStdin boots the process without a standard input stream.
// HandleInput becomes a no-op.
func WithoutStdin() Option {
	return func(t *Terminal) {
		t.noStdin = true
	}
}

// WithCloseTimeout bounds the time Close waits for the process to exit.
func WithCloseTimeout(d time.Duration) Option {
	if d <= 0 {
		d = defaultCloseTimeout
	}

	return func(t *Terminal) {
		t.closeTimeout = d
	}
}

func withDefaults(opt []Option) []Option {
	return append([]Option{
		WithLogger(nil),
		WithMountPoint(""),
		WithCloseTimeout(0),
	}, opt...)
}
