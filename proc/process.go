package proc

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/lthibault/log"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
)

// process is the wazero-backed Instance.
type process struct {
	log log.Logger

	stdinR           *io.PipeReader
	stdinW           *io.PipeWriter
	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	cancel context.CancelFunc
	done   chan struct{}
	code   uint32
	err    error

	free    sync.Once
	freeErr error
}

func newProcess(log log.Logger, stdin bool) *process {
	p := &process{
		log:  log,
		done: make(chan struct{}),
	}

	if stdin {
		p.stdinR, p.stdinW = io.Pipe()
	}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()

	return p
}

func (p *process) Stdin() io.WriteCloser {
	if p.stdinW == nil {
		return nil
	}

	return p.stdinW
}

func (p *process) Stdout() io.Reader { return p.stdoutR }

func (p *process) Stderr() io.Reader { return p.stderrR }

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) ExitCode() uint32 { return p.code }

func (p *process) Err() error { return p.err }

// run the entrypoint in the background.
//
// NOTE:  we use context.Background instead of the caller's context.  The
// process outlives the call that spawned it, and is terminated only by
// Free.
func (p *process) run(mod api.Module, entrypoint api.Function) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.log.Debug("process started")

	go func() {
		defer close(p.done)
		defer cancel()

		_, err := entrypoint.Call(ctx)
		p.code, p.err = exitStatus(err)

		p.closeStreams()
		if err := mod.Close(context.Background()); err != nil {
			p.log.WithError(err).Debug("error closing module")
		}

		p.log.WithField("code", p.code).
			WithError(p.err).
			Debug("process exited")
	}()
}

// abort releases the stdio pipes of a process that never started.
func (p *process) abort() {
	p.cancel = func() {}
	p.closeStreams()
	close(p.done)
}

func (p *process) closeStreams() {
	p.stdoutW.Close()
	p.stderrW.Close()
	if p.stdinR != nil {
		p.stdinR.Close()
	}
}

func (p *process) Free(ctx context.Context) error {
	p.free.Do(func() {
		p.cancel()

		// Unblock a guest waiting on stdin, or writing to an output
		// stream that nobody is draining.
		if p.stdinW != nil {
			p.stdinW.Close()
		}
		p.stdoutR.Close()
		p.stderrR.Close()

		select {
		case <-p.done:
		case <-ctx.Done():
			p.freeErr = ctx.Err()
		}
	})

	return p.freeErr
}

func exitStatus(err error) (uint32, error) {
	if err == nil {
		return 0, nil
	}

	var exit *sys.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode(), nil
	}

	return 1, err
}
