//go:build !windows

package console

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wetware/wasmterm/host"
)

// watchResize calls fn with the new size of fd on every SIGWINCH.
func watchResize(stop <-chan struct{}, fd int, fn func(host.Dimensions)) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	for {
		select {
		case <-winch:
			if d, ok := size(fd); ok {
				fn(d)
			}

		case <-stop:
			return
		}
	}
}
