package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetware/wasmterm/event"
)

func TestEmitter(t *testing.T) {
	t.Parallel()
	t.Helper()

	t.Run("Order", func(t *testing.T) {
		t.Parallel()

		var (
			e   event.Emitter[int]
			got []string
		)

		e.Event(func(v int) { got = append(got, "a") })
		e.Event(func(v int) { got = append(got, "b") })

		e.Fire(1)
		require.Equal(t, []string{"a", "b"}, got,
			"listeners should be called in subscription order")
	})

	t.Run("Dispose", func(t *testing.T) {
		t.Parallel()

		var (
			e     event.Emitter[string]
			calls int
		)

		sub := e.Event(func(string) { calls++ })
		e.Fire("x")
		sub.Dispose()
		sub.Dispose() // idempotent
		e.Fire("y")

		assert.Equal(t, 1, calls, "disposed listener should not be called")
		assert.Zero(t, e.Len())
	})

	t.Run("DisposeDuringFire", func(t *testing.T) {
		t.Parallel()

		var (
			e   event.Emitter[int]
			sub event.DisposeFunc
			got []int
		)

		sub = e.Event(func(v int) {
			got = append(got, v)
			sub.Dispose()
		})
		e.Event(func(v int) { got = append(got, -v) })

		e.Fire(1)
		e.Fire(2)

		assert.Equal(t, []int{1, -1, -2}, got)
	})

	t.Run("DisposeEmitter", func(t *testing.T) {
		t.Parallel()

		var (
			e     event.Emitter[int]
			calls int
		)

		e.Event(func(int) { calls++ })
		e.Dispose()
		e.Event(func(int) { calls++ })
		e.Fire(0)

		assert.Zero(t, calls, "disposed emitter should not fire")
	})
}
