package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/wetware/wasmterm/event"
	"github.com/wetware/wasmterm/host"
)

// Commands is an in-memory command registry.
type Commands struct {
	mu   sync.RWMutex
	gen  uint64
	cmds map[string]binding
}

type binding struct {
	gen uint64
	fn  host.CommandFunc
}

var _ host.Commands = (*Commands)(nil)

// RegisterCommand binds fn to id, replacing any previous binding.  The
// returned Disposable removes the binding if it is still current.
func (cs *Commands) RegisterCommand(id string, fn host.CommandFunc) host.Disposable {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.cmds == nil {
		cs.cmds = make(map[string]binding)
	}
	cs.gen++
	b := binding{gen: cs.gen, fn: fn}
	cs.cmds[id] = b

	var once sync.Once
	return event.DisposeFunc(func() {
		once.Do(func() { cs.unregister(id, b.gen) })
	})
}

func (cs *Commands) unregister(id string, gen uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cur, ok := cs.cmds[id]; ok && cur.gen == gen {
		delete(cs.cmds, id)
	}
}

func (cs *Commands) ExecuteCommand(ctx context.Context, id string) error {
	cs.mu.RLock()
	b, ok := cs.cmds[id]
	cs.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", host.ErrUnknownCommand, id)
	}

	return b.fn(ctx)
}
