package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lthibault/log"
	"github.com/urfave/cli/v2"

	"github.com/wetware/wasmterm"
	"github.com/wetware/wasmterm/internal/cmd/run"
)

var flags = []cli.Flag{
	// Logging
	&cli.StringFlag{
		Name:    "logfmt",
		Aliases: []string{"f"},
		Usage:   "`format` logs as text, json or none",
		Value:   "text",
		EnvVars: []string{"WASMTERM_LOGFMT"},
	},
	&cli.StringFlag{
		Name:    "loglvl",
		Usage:   "set logging `level` to trace, debug, info, warn, error or fatal",
		Value:   "warn",
		EnvVars: []string{"WASMTERM_LOGLVL"},
	},
	// Statsd
	&cli.StringFlag{
		Name:        "metrics",
		Aliases:     []string{"statsd"},
		Usage:       "send metrics to udp `host:port`",
		EnvVars:     []string{"WASMTERM_METRICS", "WASMTERM_STATSD"},
		DefaultText: "disabled",
	},
	// Misc.
	&cli.BoolFlag{
		Name:    "prettyprint",
		Aliases: []string{"pp"},
		Usage:   "pretty-print JSON output",
		Hidden:  true,
	},
}

var commands = []*cli.Command{
	run.Command(),
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM)
	defer cancel()

	start(ctx, &cli.App{
		Name:                 "wasmterm",
		HelpName:             "wasmterm",
		Usage:                "run webassembly programs in a terminal",
		UsageText:            "wasmterm [global options] command [command options] [arguments...]",
		Version:              wasmterm.Version,
		EnableBashCompletion: true,
		Flags:                flags,
		Commands:             commands,
		Metadata: map[string]interface{}{
			"version": wasmterm.Version,
		},
	})
}

func start(ctx context.Context, app *cli.App) {
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
