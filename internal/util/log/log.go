// Package logutil builds the process logger from command-line flags.
package logutil

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/lthibault/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/wetware/wasmterm"
)

// Env supplies flag values.  *cli.Context satisfies it.
type Env interface {
	String(name string) string
	Bool(name string) bool
}

// key with random component to avoid collision
const key = "wasmterm.util.log:q3#VQ}e@8|Nz<o!D"

// New returns the logger bound to the application, building it on first
// use.  Entries carry the wasmterm version and the package being run.
func New(c *cli.Context) log.Logger {
	if logger, ok := c.App.Metadata[key].(log.Logger); ok {
		return logger
	}

	logger := Build(c, c.App.ErrWriter)
	if pkg := c.Args().First(); pkg != "" {
		logger = logger.WithField("package", strings.TrimSuffix(filepath.Base(pkg), ".wasm"))
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]interface{})
	}
	c.App.Metadata[key] = logger

	return logger
}

// Build a logger that writes to w.  With --logfmt=none all entries are
// discarded.
func Build(env Env, w io.Writer) log.Logger {
	opt := []log.Option{
		log.WithLevel(Level(env.String("loglvl"))),
		log.WithWriter(w),
	}

	switch env.String("logfmt") {
	case "none":
		opt = append(opt, log.WithWriter(io.Discard))
	case "json":
		opt = append(opt, log.WithFormatter(&logrus.JSONFormatter{
			PrettyPrint: env.Bool("prettyprint"),
		}))
	default:
		opt = append(opt, log.WithFormatter(new(logrus.TextFormatter)))
	}

	return log.New(opt...).WithField("version", wasmterm.Version)
}

// Level parses a --loglvl value.  Unknown levels select WarnLevel.
func Level(s string) log.Level {
	switch strings.ToLower(s) {
	case "trace", "t":
		return log.TraceLevel
	case "debug", "d":
		return log.DebugLevel
	case "info", "i":
		return log.InfoLevel
	case "error", "err", "e":
		return log.ErrorLevel
	case "fatal", "f":
		return log.FatalLevel
	default:
		return log.WarnLevel
	}
}
