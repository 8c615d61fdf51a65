package console

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/lthibault/log"
	"golang.org/x/term"

	"github.com/wetware/wasmterm/host"
)

// Window creates terminals attached to a pair of streams.  Only one
// terminal should be shown at a time.
type Window struct {
	log log.Logger
	in  io.Reader
	out io.Writer
}

var _ host.Window = (*Window)(nil)

func (w *Window) CreateTerminal(opts host.TerminalOptions) (host.Terminal, error) {
	if opts.Pty == nil {
		return nil, errors.New("missing pseudoterminal")
	}

	return &Terminal{
		win:  w,
		name: opts.Name,
		pty:  opts.Pty,
		log:  w.log.WithField("name", opts.Name),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Terminal attaches a Pseudoterminal to the window's streams.  If the
// input stream is a terminal device, it is put in raw mode while the
// terminal is shown, and size changes are forwarded.
type Terminal struct {
	win  *Window
	name string
	pty  host.Pseudoterminal
	log  log.Logger

	show, dispose sync.Once
	subs          []host.Disposable
	restore       func()
	stop          chan struct{}

	exit sync.Once
	done chan struct{}
	code int
}

func (t *Terminal) Name() string { return t.name }

// Show opens the pseudoterminal and starts forwarding input and output.
func (t *Terminal) Show() {
	t.show.Do(func() {
		t.subs = append(t.subs,
			t.pty.OnDidWrite(func(s string) {
				if _, err := io.WriteString(t.win.out, s); err != nil {
					t.log.WithError(err).Debug("write failed")
				}
			}),
			t.pty.OnDidClose(func(code int) {
				t.exit.Do(func() {
					t.code = code
					close(t.done)
				})
			}))

		var dims *host.Dimensions
		if fd, ok := t.fd(); ok {
			if d, ok := size(fd); ok {
				dims = &d
			}

			if state, err := term.MakeRaw(fd); err != nil {
				t.log.WithError(err).Warn("failed to enter raw mode")
			} else {
				t.restore = func() { term.Restore(fd, state) }
			}

			go watchResize(t.stop, fd, t.pty.SetDimensions)
		}

		t.pty.Open(dims)
		go t.forward()
	})
}

func (t *Terminal) forward() {
	buf := make([]byte, 1024)
	for {
		n, err := t.win.in.Read(buf)
		if n > 0 {
			select {
			case <-t.stop:
				return
			default:
				t.pty.HandleInput(string(buf[:n]))
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.WithError(err).Debug("input closed")
			}
			return
		}
	}
}

// Wait for the pseudoterminal to report an exit code.
func (t *Terminal) Wait(ctx context.Context) (int, error) {
	select {
	case <-t.done:
		return t.code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Dispose closes the pseudoterminal and restores the input stream.
func (t *Terminal) Dispose() {
	t.dispose.Do(func() {
		close(t.stop)

		if t.restore != nil {
			t.restore()
		}

		for _, sub := range t.subs {
			sub.Dispose()
		}

		t.pty.Close()
	})
}

func (t *Terminal) fd() (int, bool) {
	f, ok := t.win.in.(interface{ Fd() uintptr })
	if !ok {
		return 0, false
	}

	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func size(fd int) (host.Dimensions, bool) {
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return host.Dimensions{}, false
	}

	return host.Dimensions{Rows: rows, Columns: cols}, true
}
