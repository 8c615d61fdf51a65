package proc

import (
	"context"
	"crypto/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"
)

// RunOptions for Command.Run.
type RunOptions struct {
	// Args is the full argument vector, including the program name.
	// Defaults to the command's name.
	Args []string
	Env  map[string]string

	// Mount binds filesystems into the guest namespace, keyed by guest
	// path.
	Mount map[string]Mountable

	// NoStdin starts the process without a writable standard input.
	NoStdin bool
}

// Command is a compiled WASI program.
type Command struct {
	rt       *Runtime
	name     string
	compiled wazero.CompiledModule
}

// Name returns a short identifier derived from the module's hash.
func (c *Command) Name() string {
	return c.name[:8]
}

// Run instantiates the command as a new process.  The returned error
// is non-nil if the module could not be instantiated or does not
// export a _start function; in that case no process is started.
func (c *Command) Run(ctx context.Context, opt RunOptions) (Instance, error) {
	name := c.Name() + "-" + uuid.NewString()[:8]
	p := newProcess(c.rt.log.WithField("module", name), !opt.NoStdin)

	mod, err := c.rt.r.InstantiateModule(ctx, c.compiled, c.config(name, p, opt))
	if err != nil {
		p.abort()
		return nil, Error{Module: name, Cause: err}
	}

	entrypoint := mod.ExportedFunction("_start")
	if entrypoint == nil {
		p.abort()
		return nil, Error{
			Module: name,
			Cause:  multierr.Append(ErrNoEntrypoint, mod.Close(ctx)),
		}
	}

	p.run(mod, entrypoint)
	return p, nil
}

func (c *Command) config(name string, p *process, opt RunOptions) wazero.ModuleConfig {
	args := opt.Args
	if len(args) == 0 {
		args = []string{c.Name()}
	}

	config := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions(). // don't call _start until later
		WithSysNanosleep().
		WithSysNanotime().
		WithSysWalltime().
		WithRandSource(rand.Reader).
		WithArgs(args...).
		WithStdout(p.stdoutW).
		WithStderr(p.stderrW).
		WithFSConfig(fsConfig(opt.Mount))

	if p.stdinR != nil {
		config = config.WithStdin(p.stdinR)
	}

	keys := make([]string, 0, len(opt.Env))
	for k := range opt.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		config = config.WithEnv(k, opt.Env[k])
	}

	return config
}

// fsConfig mounts parents before children.
func fsConfig(mounts map[string]Mountable) wazero.FSConfig {
	paths := make([]string, 0, len(mounts))
	for guestPath := range mounts {
		paths = append(paths, guestPath)
	}
	sort.Strings(paths)

	cfg := wazero.NewFSConfig()
	for _, guestPath := range paths {
		cfg = mounts[guestPath].FSConfig(cfg, guestPath)
	}

	return cfg
}
