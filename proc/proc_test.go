package proc_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetware/wasmterm/internal/test/wasmtest"
	"github.com/wetware/wasmterm/proc"
)

func newRuntime(t *testing.T) *proc.Runtime {
	t.Helper()

	ctx := context.Background()
	rt, err := proc.New(ctx, proc.Config{Engine: proc.EngineInterpreter})
	require.NoError(t, err, "should create runtime")
	t.Cleanup(func() { rt.Close(ctx) })

	return rt
}

func wait(t *testing.T, inst proc.Instance) {
	t.Helper()

	select {
	case <-inst.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestByteCode(t *testing.T) {
	t.Parallel()

	b := proc.ByteCode(wasmtest.Nop)
	assert.Len(t, b.String(), 64, "should be hex-encoded 256-bit digest")
	assert.Equal(t, b.String(), proc.ByteCode(wasmtest.Nop).String(),
		"digest should be deterministic")
	assert.NotEqual(t, b.String(), proc.ByteCode(wasmtest.Hello).String())
}

func TestConfig(t *testing.T) {
	t.Parallel()

	_, err := proc.New(context.Background(), proc.Config{Engine: "jit"})
	require.Error(t, err, "should reject unknown engine")
}

func TestRun(t *testing.T) {
	t.Parallel()
	t.Helper()

	rt := newRuntime(t)

	t.Run("MissingEntrypoint", func(t *testing.T) {
		t.Parallel()

		cmd, err := rt.Load(context.Background(), wasmtest.Empty)
		require.NoError(t, err, "should compile empty module")

		inst, err := cmd.Run(context.Background(), proc.RunOptions{})
		require.ErrorIs(t, err, proc.ErrNoEntrypoint, "should fail to boot")
		require.Nil(t, inst, "should not return an instance")
	})

	t.Run("InvalidModule", func(t *testing.T) {
		t.Parallel()

		_, err := rt.Load(context.Background(), []byte("not wasm"))
		require.Error(t, err, "should fail to compile")
	})

	t.Run("Nop", func(t *testing.T) {
		t.Parallel()

		cmd, err := rt.Load(context.Background(), wasmtest.Nop)
		require.NoError(t, err)

		inst, err := cmd.Run(context.Background(), proc.RunOptions{})
		require.NoError(t, err, "should boot")
		defer inst.Free(context.Background())

		out, err := io.ReadAll(inst.Stdout())
		require.NoError(t, err, "stdout should close on exit")
		assert.Empty(t, out)

		wait(t, inst)
		assert.Zero(t, inst.ExitCode())
		assert.NoError(t, inst.Err())
	})

	t.Run("ExitCode", func(t *testing.T) {
		t.Parallel()

		cmd, err := rt.Load(context.Background(), wasmtest.Exit3)
		require.NoError(t, err)

		inst, err := cmd.Run(context.Background(), proc.RunOptions{})
		require.NoError(t, err)
		defer inst.Free(context.Background())

		go io.Copy(io.Discard, inst.Stdout())
		go io.Copy(io.Discard, inst.Stderr())

		wait(t, inst)
		assert.Equal(t, uint32(3), inst.ExitCode(), "should report proc_exit status")
		assert.NoError(t, inst.Err(), "proc_exit is not an execution error")
	})

	t.Run("Stdout", func(t *testing.T) {
		t.Parallel()

		cmd, err := rt.Load(context.Background(), wasmtest.Hello)
		require.NoError(t, err)

		// The same command can be run repeatedly.
		for i := 0; i < 2; i++ {
			inst, err := cmd.Run(context.Background(), proc.RunOptions{
				Args: []string{"hello"},
				Env:  map[string]string{"TERM": "xterm"},
			})
			require.NoError(t, err)

			var buf bytes.Buffer
			_, err = io.Copy(&buf, inst.Stdout())
			require.NoError(t, err)
			assert.Equal(t, wasmtest.HelloOutput, buf.String())

			wait(t, inst)
			require.NoError(t, inst.Free(context.Background()))
		}
	})

	t.Run("Stdin", func(t *testing.T) {
		t.Parallel()

		cmd, err := rt.Load(context.Background(), wasmtest.Nop)
		require.NoError(t, err)

		inst, err := cmd.Run(context.Background(), proc.RunOptions{NoStdin: true})
		require.NoError(t, err)
		defer inst.Free(context.Background())
		assert.Nil(t, inst.Stdin(), "should not expose stdin")

		inst, err = cmd.Run(context.Background(), proc.RunOptions{})
		require.NoError(t, err)
		defer inst.Free(context.Background())
		assert.NotNil(t, inst.Stdin(), "should expose stdin")
	})

	t.Run("FreeIsIdempotent", func(t *testing.T) {
		t.Parallel()

		cmd, err := rt.Load(context.Background(), wasmtest.Nop)
		require.NoError(t, err)

		inst, err := cmd.Run(context.Background(), proc.RunOptions{})
		require.NoError(t, err)

		go io.Copy(io.Discard, inst.Stdout())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		require.NoError(t, inst.Free(ctx), "first free should succeed")
		require.NoError(t, inst.Free(ctx), "second free should be a no-op")

		select {
		case <-inst.Done():
		default:
			t.Fatal("process should have exited")
		}
	})
}
