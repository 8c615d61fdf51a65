//go:build windows

package console

import (
	"time"

	"github.com/wetware/wasmterm/host"
)

// watchResize polls the size of fd, since there is no SIGWINCH.
func watchResize(stop <-chan struct{}, fd int, fn func(host.Dimensions)) {
	last, _ := size(fd)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if d, ok := size(fd); ok && d != last {
				last = d
				fn(d)
			}

		case <-stop:
			return
		}
	}
}
