package run

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/wetware/wasmterm"
	"github.com/wetware/wasmterm/internal/runtime"
)

var flags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "folder",
		Aliases: []string{"w"},
		Usage:   "add a workspace folder at `PATH`",
		EnvVars: []string{"WASMTERM_FOLDER"},
	},
	&cli.StringFlag{
		Name:    "mount-point",
		Usage:   "guest `PATH` of the workspace",
		Value:   wasmterm.DefaultMountPoint,
		EnvVars: []string{"WASMTERM_MOUNT_POINT"},
	},
	&cli.StringFlag{
		Name:    "name",
		Usage:   "terminal `NAME` (default: package file name)",
		EnvVars: []string{"WASMTERM_NAME"},
	},
	&cli.StringSliceFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "set guest environment variable `KEY=VALUE`",
	},
	&cli.BoolFlag{
		Name:  "no-stdin",
		Usage: "run the guest without standard input",
	},
	&cli.StringFlag{
		Name:    "engine",
		Usage:   "wazero `ENGINE`: interpreter or compiler (default: auto)",
		EnvVars: []string{"WASMTERM_ENGINE"},
	},
	&cli.PathFlag{
		Name:        "cache-dir",
		Usage:       "persist compiled modules to `PATH`",
		DefaultText: "disabled",
		EnvVars:     []string{"WASMTERM_CACHE_DIR"},
	},
}

func Command() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a wasi package in a terminal",
		ArgsUsage: "<package.wasm> [args...]",
		Flags:     flags,
		Before:    setup(),
		Action:    run(),
	}
}

func setup() cli.BeforeFunc {
	return func(c *cli.Context) error {
		if c.Args().Len() == 0 {
			return errors.New("missing package")
		}

		return nil
	}
}

func run() cli.ActionFunc {
	return func(c *cli.Context) error {
		code, err := runtime.Run(c)
		if err != nil {
			return err
		}

		if code != 0 {
			return cli.Exit("", code)
		}

		return nil
	}
}
