package proc

import (
	"context"
	"fmt"
	"sync"

	"github.com/lthibault/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
)

// Engine selects the wazero execution engine.
type Engine string

const (
	EngineAuto        Engine = ""
	EngineInterpreter Engine = "interpreter"
	EngineCompiler    Engine = "compiler"
)

// Config for a Runtime.
type Config struct {
	Logger log.Logger

	Engine Engine

	// CacheDir, if non-empty, persists compiled modules across runs.
	CacheDir string
}

func (c Config) runtimeConfig() (wazero.RuntimeConfig, error) {
	var rc wazero.RuntimeConfig
	switch c.Engine {
	case EngineAuto:
		rc = wazero.NewRuntimeConfig()
	case EngineInterpreter:
		rc = wazero.NewRuntimeConfigInterpreter()
	case EngineCompiler:
		rc = wazero.NewRuntimeConfigCompiler()
	default:
		return nil, fmt.Errorf("invalid engine %q", c.Engine)
	}

	if c.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(c.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("compilation cache: %w", err)
		}
		rc = rc.WithCompilationCache(cache)
	}

	// Closing a module interrupts its _start function; Instance.Free
	// relies on this.
	return rc.WithCloseOnContextDone(true), nil
}

// Runtime compiles and runs WASI programs.  A single Runtime is shared
// by all processes of the application.
type Runtime struct {
	log  log.Logger
	r    wazero.Runtime
	wasi api.Closer

	once sync.Once
	err  error
}

// New wazero runtime with WASI preview 1 host functions.
func New(ctx context.Context, c Config) (*Runtime, error) {
	if c.Logger == nil {
		c.Logger = log.New(log.WithLevel(log.ErrorLevel))
	}

	rc, err := c.runtimeConfig()
	if err != nil {
		return nil, err
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)
	wasi, err := wasi_snapshot_preview1.Instantiate(ctx, r)
	if err != nil {
		return nil, multierr.Append(Error{Module: "wasi", Cause: err}, r.Close(ctx))
	}

	c.Logger.WithField("engine", c.Engine).
		WithField("cache", c.CacheDir).
		Debug("runtime initialized")

	return &Runtime{
		log:  c.Logger,
		r:    r,
		wasi: wasi,
	}, nil
}

// Load compiles b.  The resulting Command can be run any number of
// times.
func (rt *Runtime) Load(ctx context.Context, b ByteCode) (*Command, error) {
	name := b.String()

	compiled, err := rt.r.CompileModule(ctx, b)
	if err != nil {
		return nil, Error{Module: name, Cause: err}
	}

	rt.log.WithField("module", name[:8]).
		WithField("size", len(b)).
		Debug("module compiled")

	return &Command{
		rt:       rt,
		name:     name,
		compiled: compiled,
	}, nil
}

// Close the runtime, terminating all processes.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.once.Do(func() {
		rt.err = multierr.Combine(
			rt.wasi.Close(ctx),
			rt.r.Close(ctx))
	})

	return rt.err
}
