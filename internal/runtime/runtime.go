package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/lthibault/log"
	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/wetware/wasmterm"
	"github.com/wetware/wasmterm/extension"
	"github.com/wetware/wasmterm/host"
	logutil "github.com/wetware/wasmterm/internal/util/log"
	serviceutil "github.com/wetware/wasmterm/internal/util/service"
	statsdutil "github.com/wetware/wasmterm/internal/util/statsd"
	"github.com/wetware/wasmterm/proc"
)

/****************************************************************************
 *                                                                          *
 *  runtime.go is responsible for managing the lifetimes of services.       *
 *                                                                          *
 ****************************************************************************/

var services = fx.Provide(
	logger,
	metrics,
	supervisor,
	engine,
	activation)

// Run the package in a terminal, and return the guest's exit code.
func Run(c *cli.Context) (int, error) {
	var x *extension.Extension
	var app = fx.New(fx.NopLogger,
		fx.Supply(c),
		system,
		services,
		fx.Invoke(bind),
		fx.Populate(&x))

	if err := start(c, app); err != nil {
		return 0, err
	}
	defer shutdown(app)

	term, err := x.OpenTerminal(c.Context)
	if err != nil {
		return 0, fmt.Errorf("open terminal: %w", err)
	}
	defer term.Dispose()

	return term.Wait(c.Context)
}

func start(c *cli.Context, app *fx.App) error {
	ctx, cancel := context.WithTimeout(c.Context, time.Second*15)
	defer cancel()

	return app.Start(ctx)
}

func shutdown(app *fx.App) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	if err = app.Stop(ctx); err == context.Canceled {
		err = nil
	}

	return
}

// Config declares dependencies that are dynamically resolved at
// runtime.
type Config struct {
	fx.In

	Lifecycle fx.Lifecycle

	Logger     log.Logger
	Supervisor *suture.Supervisor
	Extension  *extension.Extension
}

func bind(c *cli.Context, config Config) {
	ctx, cancel := context.WithCancel(c.Context) // cancelled by stop hook

	var cherr <-chan error

	config.Lifecycle.Append(fx.Hook{
		// Activate the extension, and wait for the workspace folders
		// to be mounted before handing over to the terminal.
		OnStart: func(start context.Context) error {
			folders, err := config.Extension.Activate(start)
			if err != nil {
				return err
			}

			config.Supervisor.Add(folders)
			cherr = config.Supervisor.ServeBackground(ctx) // NOTE: application context

			select {
			case <-folders.Ready():
			case <-start.Done():
				return start.Err()
			}

			config.Logger.Debug("wasmterm loaded")
			return nil
		},
		OnStop: func(stop context.Context) error {
			err := config.Extension.Deactivate()
			cancel()

			// Wait for the supervisor to shut down gracefully.
			select {
			case <-cherr:
				return err

			case <-stop.Done():
				return fmt.Errorf("shutdown: %w", stop.Err())
			}
		},
	})
}

//
// Dependency declarations
//

func logger(c *cli.Context) log.Logger {
	return logutil.New(c)
}

func metrics(c *cli.Context, log log.Logger, lx fx.Lifecycle) wasmterm.Metrics {
	m := statsdutil.New(c, log)
	if s, ok := m.(statsdutil.Metrics); ok {
		lx.Append(fx.Hook{
			OnStop: func(context.Context) error {
				s.Close()
				return nil
			},
		})
	}

	return m
}

func supervisor(c *cli.Context, log log.Logger, m wasmterm.Metrics) *suture.Supervisor {
	return serviceutil.New(c, log, m)
}

func engine(c *cli.Context, log log.Logger, lx fx.Lifecycle) (*proc.Runtime, error) {
	r, err := proc.New(c.Context, proc.Config{
		Logger:   log,
		Engine:   proc.Engine(c.String("engine")),
		CacheDir: c.Path("cache-dir"),
	})
	if err == nil {
		lx.Append(fx.Hook{OnStop: r.Close})
	}

	return r, err
}

type activationConfig struct {
	fx.In

	Log     log.Logger
	Metrics wasmterm.Metrics
	Loader  *host.Loader
	Runtime *proc.Runtime
}

func activation(c *cli.Context, config activationConfig) (*extension.Extension, error) {
	env, err := environ(c.StringSlice("env"))
	if err != nil {
		return nil, err
	}

	return &extension.Extension{
		Log:     config.Log,
		Loader:  config.Loader,
		Runtime: config.Runtime,
		Metrics: config.Metrics.WithPrefix("extension"),
		Config: extension.Config{
			Package:    c.Args().First(),
			Name:       c.String("name"),
			MountPoint: c.String("mount-point"),
			Args:       c.Args().Tail(),
			Env:        env,
			NoStdin:    c.Bool("no-stdin"),
		},
	}, nil
}
