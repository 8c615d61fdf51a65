package pty

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const chunkSize = 4096

// watch drains the process' output streams until both are closed, then
// reports the exit code.
func (t *Terminal) watch() {
	var g errgroup.Group
	g.Go(func() error { return t.drain(t.inst.Stdout()) })
	g.Go(func() error { return t.drain(t.inst.Stderr()) })

	if err := g.Wait(); err != nil {
		t.log.WithError(err).Warn("output stream failed")
	}

	select {
	case <-t.inst.Done():
	case <-t.quit:
		return
	}

	if err := t.inst.Err(); err != nil {
		t.log.WithError(err).Warn("process failed")
	}

	t.OnClose(int(t.inst.ExitCode()))
}

// drain r into the write event.  The decoder keeps multi-byte
// sequences that straddle reads intact.
func (t *Terminal) drain(r io.Reader) error {
	select {
	case <-t.ready:
	case <-t.quit:
		return nil
	}

	r = transform.NewReader(r, unicode.UTF8.NewDecoder())
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			t.write(string(buf[:n]))
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}

			return err
		}
	}
}

// pump writes queued input to the process until the terminal is
// closed or stdin fails.
func (t *Terminal) pump(stdin io.Writer) {
	for {
		select {
		case <-t.wake:
		case <-t.quit:
			return
		}

		t.inputMu.Lock()
		batch := t.pending
		t.pending = nil
		t.inputMu.Unlock()

		for _, s := range batch {
			if _, err := io.WriteString(stdin, s); err != nil {
				t.log.WithError(err).Debug("stdin closed")

				t.inputMu.Lock()
				t.broken, t.pending = true, nil
				t.inputMu.Unlock()
				return
			}
		}
	}
}

// crlf replaces each line feed that is not preceded by a carriage return
// with CRLF.  cr reports whether the previous chunk ended in '\r'; the
// second return value reports the same for s.
func crlf(s string, cr bool) (string, bool) {
	if s == "" {
		return s, cr
	}

	if !strings.Contains(s, "\n") {
		return s, s[len(s)-1] == '\r'
	}

	var b strings.Builder
	b.Grow(len(s) + strings.Count(s, "\n"))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' && !cr {
			b.WriteByte('\r')
		}
		b.WriteByte(c)
		cr = c == '\r'
	}

	return b.String(), cr
}
