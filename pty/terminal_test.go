package pty_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetware/wasmterm/host"
	"github.com/wetware/wasmterm/internal/test/wasmtest"
	"github.com/wetware/wasmterm/proc"
	"github.com/wetware/wasmterm/pty"
	"github.com/wetware/wasmterm/vfs"
)

type fakeProc struct {
	stdinR           *io.PipeReader
	stdinW           *io.PipeWriter
	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	exitOnce sync.Once
	done     chan struct{}
	code     uint32
	frees    atomic.Int32
}

func newFakeProc(stdin bool) *fakeProc {
	p := &fakeProc{done: make(chan struct{})}
	if stdin {
		p.stdinR, p.stdinW = io.Pipe()
	}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProc) Stdin() io.WriteCloser {
	if p.stdinW == nil {
		return nil
	}
	return p.stdinW
}

func (p *fakeProc) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProc) Stderr() io.Reader     { return p.stderrR }
func (p *fakeProc) Done() <-chan struct{} { return p.done }
func (p *fakeProc) ExitCode() uint32      { return p.code }
func (p *fakeProc) Err() error            { return nil }

func (p *fakeProc) Free(context.Context) error {
	p.frees.Add(1)
	p.stdoutR.Close()
	p.stderrR.Close()
	if p.stdinW != nil {
		p.stdinW.Close()
	}
	p.exit(1)
	return nil
}

func (p *fakeProc) exit(code uint32) {
	p.exitOnce.Do(func() {
		p.code = code
		p.stdoutW.Close()
		p.stderrW.Close()
		close(p.done)
	})
}

type fakeEntrypoint struct {
	proc *fakeProc
	err  error
	opts proc.RunOptions
}

func (ep *fakeEntrypoint) Run(_ context.Context, opts proc.RunOptions) (proc.Instance, error) {
	ep.opts = opts
	if ep.err != nil {
		return nil, ep.err
	}
	return ep.proc, nil
}

func newTerminal(t *testing.T, p *fakeProc, opt ...pty.Option) *pty.Terminal {
	t.Helper()

	term, err := pty.New(context.Background(), &fakeEntrypoint{proc: p}, nil, opt...)
	require.NoError(t, err, "should boot terminal")
	t.Cleanup(term.Close)

	return term
}

func TestNew(t *testing.T) {
	t.Parallel()
	t.Helper()

	t.Run("BootFailure", func(t *testing.T) {
		t.Parallel()

		errBoot := errors.New("boot failed")
		term, err := pty.New(context.Background(), &fakeEntrypoint{err: errBoot}, nil)
		require.ErrorIs(t, err, errBoot, "should report boot failure")
		require.Nil(t, term, "should not construct terminal")
	})

	t.Run("MountPoint", func(t *testing.T) {
		t.Parallel()

		d, err := vfs.New()
		require.NoError(t, err)
		defer d.Close()

		ep := &fakeEntrypoint{proc: newFakeProc(true)}
		term, err := pty.New(context.Background(), ep, d)
		require.NoError(t, err)
		defer term.Close()

		assert.Equal(t, pty.Open, term.State())
		assert.Contains(t, ep.opts.Mount, "/workspace", "should mount at default path")

		ep = &fakeEntrypoint{proc: newFakeProc(true)}
		term, err = pty.New(context.Background(), ep, d,
			pty.WithMountPoint("/mnt"),
			pty.WithArgs("sh", "-l"),
			pty.WithoutStdin())
		require.NoError(t, err)
		defer term.Close()

		assert.Contains(t, ep.opts.Mount, "/mnt", "should mount at configured path")
		assert.Equal(t, []string{"sh", "-l"}, ep.opts.Args)
		assert.True(t, ep.opts.NoStdin)
	})
}

func TestGeometry(t *testing.T) {
	t.Parallel()
	t.Helper()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()

		term := newTerminal(t, newFakeProc(true))
		term.Open(nil)

		assert.Equal(t, 30, term.Rows())
		assert.Equal(t, 12, term.Cols())
	})

	t.Run("Initial", func(t *testing.T) {
		t.Parallel()

		term := newTerminal(t, newFakeProc(true))
		term.Open(&host.Dimensions{Rows: 24, Columns: 80})

		assert.Equal(t, 24, term.Rows())
		assert.Equal(t, 80, term.Cols())

		// Idempotent; only applies the new dimensions.
		term.Open(&host.Dimensions{Rows: 25, Columns: 81})
		assert.Equal(t, 25, term.Rows())
		assert.Equal(t, pty.Open, term.State())
	})

	t.Run("SetDimensions", func(t *testing.T) {
		t.Parallel()

		term := newTerminal(t, newFakeProc(true))
		term.Open(nil)

		var calls []host.Dimensions
		term.OnDimensionChanged(func(host.Dimensions) {
			t.Error("replaced callback should not be called")
		})
		term.OnDimensionChanged(func(d host.Dimensions) {
			calls = append(calls, d)
		})

		term.SetDimensions(host.Dimensions{Rows: 40, Columns: 100})
		assert.Equal(t, 40, term.Rows())
		assert.Equal(t, 100, term.Cols())
		require.Len(t, calls, 1, "should invoke callback exactly once")
		assert.Equal(t, host.Dimensions{Rows: 40, Columns: 100}, calls[0])
	})

	t.Run("Negative", func(t *testing.T) {
		t.Parallel()

		term := newTerminal(t, newFakeProc(true))
		term.SetDimensions(host.Dimensions{Rows: -1, Columns: -5})
		assert.Zero(t, term.Rows(), "should clamp rows")
		assert.Zero(t, term.Cols(), "should clamp columns")
	})
}

func TestWrite(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name   string
		chunks []string
		want   []string
	}{
		{"LF", []string{"a\nb"}, []string{"a\r\nb"}},
		{"CRLF", []string{"a\r\nb\n"}, []string{"a\r\nb\r\n"}},
		{"SplitCRLF", []string{"a\r", "\nb"}, []string{"a\r", "\nb"}},
		{"SplitLF", []string{"a", "\nb"}, []string{"a", "\r\nb"}},
		{"UTF8", []string{"héllo, 世界\n"}, []string{"héllo, 世界\r\n"}},
		{"Invalid", []string{"a\xffb"}, []string{"a�b"}},
		{"Empty", []string{""}, nil},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			term := newTerminal(t, newFakeProc(true))

			var got []string
			term.OnDidWrite(func(s string) { got = append(got, s) })

			for _, chunk := range tt.chunks {
				term.Write([]byte(chunk))
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClose(t *testing.T) {
	t.Parallel()
	t.Helper()

	t.Run("Twice", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term, err := pty.New(context.Background(), &fakeEntrypoint{proc: p}, nil)
		require.NoError(t, err)

		var closes int
		term.OnDidClose(func(int) { closes++ })

		term.Close()
		term.Close()

		assert.Equal(t, pty.Closed, term.State())
		assert.Equal(t, int32(1), p.frees.Load(), "should release process once")
		assert.Zero(t, closes, "should not emit close after Close")
	})

	t.Run("WriteAfterClose", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term, err := pty.New(context.Background(), &fakeEntrypoint{proc: p}, nil)
		require.NoError(t, err)

		var writes int
		term.OnDidWrite(func(string) { writes++ })

		term.Close()
		term.Write([]byte("dropped\n"))
		term.OnClose(0)
		assert.Zero(t, writes, "should drop writes after close")
	})

	t.Run("ProcessExit", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term := newTerminal(t, p)

		codes := make(chan int, 2)
		term.OnDidClose(func(code int) { codes <- code })
		term.Open(nil)

		p.exit(7)

		select {
		case code := <-codes:
			assert.Equal(t, 7, code)
		case <-time.After(5 * time.Second):
			t.Fatal("close event not emitted")
		}

		term.OnClose(7)
		assert.Len(t, codes, 0, "should emit close once per termination")
		assert.Eventually(t, func() bool {
			return term.State() == pty.Closed
		}, 5*time.Second, 10*time.Millisecond, "exit should close terminal")
	})
}

func TestHandleInput(t *testing.T) {
	t.Parallel()
	t.Helper()

	t.Run("NoStdin", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(false)
		term := newTerminal(t, p, pty.WithoutStdin())

		assert.NotPanics(t, func() { term.HandleInput("ls\r") },
			"should be a no-op without stdin")
	})

	t.Run("Forward", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term := newTerminal(t, p)

		term.HandleInput("ls\r")

		buf := make([]byte, 16)
		n, err := p.stdinR.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "ls\r", string(buf[:n]))
	})

	t.Run("Order", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term := newTerminal(t, p)

		for _, s := range []string{"a", "b", "c"} {
			term.HandleInput(s)
		}

		buf := make([]byte, 3)
		_, err := io.ReadFull(p.stdinR, buf)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(buf), "should preserve keystroke order")
	})

	t.Run("UnreadStdin", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true) // nobody reads p.stdinR
		term := newTerminal(t, p)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 100; i++ {
				term.HandleInput("x")
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("should not block when the process does not read stdin")
		}

		term.Close()
		assert.Equal(t, int32(1), p.frees.Load(), "close should release a blocked pump")
	})

	t.Run("AfterClose", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term, err := pty.New(context.Background(), &fakeEntrypoint{proc: p}, nil)
		require.NoError(t, err)

		term.Close()
		assert.NotPanics(t, func() { term.HandleInput("x") })
	})
}

func TestOutput(t *testing.T) {
	t.Parallel()
	t.Helper()

	t.Run("HeldUntilOpen", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term := newTerminal(t, p)

		out := make(chan string, 4)
		term.OnDidWrite(func(s string) { out <- s })

		written := make(chan struct{})
		go func() {
			defer close(written)
			io.WriteString(p.stdoutW, "x\n")
		}()

		select {
		case <-out:
			t.Fatal("should not deliver output before open")
		case <-time.After(50 * time.Millisecond):
		}

		term.Open(nil)

		select {
		case s := <-out:
			assert.Equal(t, "x\r\n", s)
		case <-time.After(5 * time.Second):
			t.Fatal("output not delivered")
		}
		<-written
	})

	t.Run("Stderr", func(t *testing.T) {
		t.Parallel()

		p := newFakeProc(true)
		term := newTerminal(t, p)

		out := make(chan string, 4)
		term.OnDidWrite(func(s string) { out <- s })
		term.Open(nil)

		go io.WriteString(p.stderrW, "oops\n")

		select {
		case s := <-out:
			assert.Equal(t, "oops\r\n", s, "stderr should share the write event")
		case <-time.After(5 * time.Second):
			t.Fatal("output not delivered")
		}
	})
}

// Boot a real WASI guest that prints "a\nb" and exits with status 0.
func TestScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	rt, err := proc.New(ctx, proc.Config{Engine: proc.EngineInterpreter})
	require.NoError(t, err)
	defer rt.Close(ctx)

	cmd, err := rt.Load(ctx, wasmtest.Hello)
	require.NoError(t, err)

	d, err := vfs.New()
	require.NoError(t, err)
	defer d.Close()

	term, err := pty.New(ctx, cmd, d)
	require.NoError(t, err)
	defer term.Close()

	out := make(chan string, 4)
	codes := make(chan int, 4)
	term.OnDidWrite(func(s string) { out <- s })
	term.OnDidClose(func(code int) { codes <- code })

	term.Open(&host.Dimensions{Rows: 24, Columns: 80})

	select {
	case code := <-codes:
		assert.Zero(t, code, "should exit cleanly")
	case <-time.After(5 * time.Second):
		t.Fatal("close event not emitted")
	}

	require.Len(t, out, 1, "should emit output once")
	assert.Equal(t, "a\r\nb", <-out)

	term.OnClose(0)
	assert.Len(t, codes, 0, "should not emit close twice")
}
