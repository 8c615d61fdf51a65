// Package pty adapts a running WASM process to the host's pseudoterminal
// contract.
//
// A Terminal owns exactly one process.  The process' standard output and
// standard error are drained into a single write event, with line feeds
// translated to CRLF, and host keystrokes are forwarded to its standard
// input.  Output is held until the host opens the terminal.
package pty

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/log"
	"golang.org/x/text/encoding/unicode"

	"github.com/wetware/wasmterm/event"
	"github.com/wetware/wasmterm/host"
	"github.com/wetware/wasmterm/proc"
)

const (
	DefaultRows = 30
	DefaultCols = 12

	defaultCloseTimeout = 5 * time.Second
)

// Entrypoint starts processes.  It is satisfied by *proc.Command.
type Entrypoint interface {
	Run(context.Context, proc.RunOptions) (proc.Instance, error)
}

var _ host.Pseudoterminal = (*Terminal)(nil)

// Terminal is a pseudoterminal backed by a WASM process.
type Terminal struct {
	id  uuid.UUID
	log log.Logger

	mountPoint   string
	args         []string
	env          map[string]string
	noStdin      bool
	closeTimeout time.Duration

	inst  proc.Instance
	state atomic.Int32

	attach sync.Once
	ready  chan struct{} // closed by Open
	quit   chan struct{} // closed by Close

	inputMu sync.Mutex
	pending []string      // keystrokes not yet written to stdin
	broken  bool          // stdin failed; drop further input
	wake    chan struct{} // signals pump; capacity 1

	geom   sync.Mutex
	rows   int
	cols   int
	resize func(host.Dimensions)

	emit    sync.Mutex // serializes fires on onWrite
	pendCR  bool       // last emitted byte was '\r'
	onWrite event.Emitter[string]

	exited  sync.Once
	onClose event.Emitter[int]
}

// New boots a process from entrypoint with fsys bound at the mount point,
// and returns a Terminal that owns it.  If the process cannot be started,
// New returns an error and no Terminal.  A nil fsys boots the process
// without a filesystem.
func New(ctx context.Context, entrypoint Entrypoint, fsys proc.Mountable, opt ...Option) (*Terminal, error) {
	t := &Terminal{
		id:    uuid.New(),
		rows:  DefaultRows,
		cols:  DefaultCols,
		ready: make(chan struct{}),
		quit:  make(chan struct{}),
		wake:  make(chan struct{}, 1),
	}
	t.state.Store(int32(Booting))

	for _, option := range withDefaults(opt) {
		option(t)
	}
	t.log = t.log.WithField("terminal", t.id)

	mounts := make(map[string]proc.Mountable, 1)
	if fsys != nil {
		mounts[t.mountPoint] = fsys
	}

	inst, err := entrypoint.Run(ctx, proc.RunOptions{
		Args:    t.args,
		Env:     t.env,
		Mount:   mounts,
		NoStdin: t.noStdin,
	})
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}

	t.inst = inst
	t.state.Store(int32(Open))

	if stdin := inst.Stdin(); stdin != nil {
		go t.pump(stdin)
	}
	go t.watch()

	t.log.WithField("mount", t.mountPoint).Debug("terminal booted")
	return t, nil
}

// ID uniquely identifies the terminal.
func (t *Terminal) ID() uuid.UUID { return t.id }

// State returns the current state.
func (t *Terminal) State() State {
	return State(t.state.Load())
}

// OnDidWrite subscribes to terminal output.
func (t *Terminal) OnDidWrite(fn func(string)) host.Disposable {
	return t.onWrite.Event(fn)
}

// OnDidClose subscribes to process termination.  The listener receives
// the exit code.
func (t *Terminal) OnDidClose(fn func(int)) host.Disposable {
	return t.onClose.Event(fn)
}

// Open attaches the terminal to the host.  If initial is non-nil, it
// replaces the current geometry.  Output produced by the process before
// the first call to Open is delivered after it.  Later calls only apply
// the dimensions.
func (t *Terminal) Open(initial *host.Dimensions) {
	if initial != nil {
		t.setDimensions(*initial)
	}

	first := false
	t.attach.Do(func() {
		first = true
		close(t.ready)
	})

	if !first {
		t.log.Debug("terminal already open")
		return
	}

	rows, cols := t.Rows(), t.Cols()
	t.log.WithField("rows", rows).
		WithField("cols", cols).
		Debug("terminal opened")
}

// Close releases the process.  It is safe to call more than once, and
// concurrently with output delivery.  No events are emitted after Close
// returns, except for a delivery that was already in flight.
func (t *Terminal) Close() {
	t.shutdown()
}

func (t *Terminal) shutdown() {
	if State(t.state.Swap(int32(Closed))) == Closed {
		return
	}

	close(t.quit)
	t.onWrite.Dispose()
	t.onClose.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), t.closeTimeout)
	defer cancel()

	if err := t.inst.Free(ctx); err != nil {
		t.log.WithError(err).Warn("failed to release process")
		return
	}

	t.log.Debug("terminal closed")
}

// Write decodes data as UTF-8 and emits it on the write event.  Invalid
// sequences are replaced with U+FFFD.  Data written after Close is
// dropped.
func (t *Terminal) Write(data []byte) {
	s, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		t.log.WithError(err).Debug("dropped undecodable output")
		return
	}

	t.write(string(s))
}

func (t *Terminal) write(s string) {
	t.emit.Lock()
	defer t.emit.Unlock()

	if t.State() == Closed {
		return
	}

	if s, t.pendCR = crlf(s, t.pendCR); s != "" {
		t.onWrite.Fire(s)
	}
}

// HandleInput queues keystrokes for the process' standard input, and
// returns without waiting for the process to read them.  It is a no-op
// if the process has no standard input, or if the terminal is closed.
func (t *Terminal) HandleInput(data string) {
	if t.inst == nil || t.inst.Stdin() == nil || t.State() == Closed {
		return
	}

	s, err := unicode.UTF8.NewEncoder().String(data)
	if err != nil {
		t.log.WithError(err).Debug("dropped unencodable input")
		return
	}

	t.inputMu.Lock()
	if t.broken {
		t.inputMu.Unlock()
		return
	}
	t.pending = append(t.pending, s)
	t.inputMu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// OnClose reports that the process exited with the given code.  The
// close event fires at most once, and never after Close.  The terminal
// is closed afterwards.
func (t *Terminal) OnClose(code int) {
	t.exited.Do(func() {
		if t.State() == Closed {
			return
		}

		t.log.WithField("code", code).Debug("process exited")
		t.onClose.Fire(code)
		t.shutdown()
	})
}

// SetDimensions updates the geometry and synchronously invokes the
// resize callback, if any.  Negative values are clamped to zero.
func (t *Terminal) SetDimensions(d host.Dimensions) {
	d = t.setDimensions(d)

	t.geom.Lock()
	cb := t.resize
	t.geom.Unlock()

	if cb != nil {
		cb(d)
	}
}

func (t *Terminal) setDimensions(d host.Dimensions) host.Dimensions {
	d.Rows, d.Columns = max(d.Rows, 0), max(d.Columns, 0)

	t.geom.Lock()
	defer t.geom.Unlock()

	t.rows, t.cols = d.Rows, d.Columns
	return d
}

// OnDimensionChanged registers the resize callback, replacing any
// previous one.  Passing nil removes it.
func (t *Terminal) OnDimensionChanged(cb func(host.Dimensions)) {
	t.geom.Lock()
	defer t.geom.Unlock()

	t.resize = cb
}

func (t *Terminal) Rows() int {
	t.geom.Lock()
	defer t.geom.Unlock()

	return t.rows
}

func (t *Terminal) Cols() int {
	t.geom.Lock()
	defer t.geom.Unlock()

	return t.cols
}
