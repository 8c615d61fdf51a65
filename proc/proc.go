// Package proc runs WASI programs as processes with stream-based stdio.
package proc

import (
	"context"
	"errors"
	"io"

	"github.com/tetratelabs/wazero"
)

// ErrNoEntrypoint is returned by Command.Run when the module does not
// export a _start function.
var ErrNoEntrypoint = errors.New("missing export: _start")

// Error annotates a failure with the module that caused it.
type Error struct {
	Module string
	Cause  error
}

func (err Error) Error() string {
	return err.Module + ": " + err.Cause.Error()
}

func (err Error) Unwrap() error {
	return err.Cause
}

// Instance is a running WASM process.  Each Instance is owned by exactly
// one consumer, which must call Free when done.
type Instance interface {
	// Stdin returns the writable end of the process' standard input, or
	// nil if the process was started without one.
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader

	// Done is closed when the process has exited and its output streams
	// have been closed.
	Done() <-chan struct{}

	// ExitCode is valid after Done is closed.
	ExitCode() uint32

	// Err returns the execution error, if the process failed for a
	// reason other than a call to proc_exit.  It is valid after Done is
	// closed.
	Err() error

	// Free terminates the process and releases its resources.  It is
	// safe to call more than once.
	Free(ctx context.Context) error
}

// Mountable can bind itself into a guest filesystem namespace.
type Mountable interface {
	FSConfig(cfg wazero.FSConfig, guestPath string) wazero.FSConfig
}
