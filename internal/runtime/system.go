package runtime

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lthibault/log"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/wetware/wasmterm/host"
	"github.com/wetware/wasmterm/host/console"
)

/*************************************************************************
 *                                                                       *
 *  system.go is responsible for interacting with the operating system.  *
 *                                                                       *
 *************************************************************************/

var system = fx.Module("system", fx.Provide(
	workspace,
	loader))

// workspace populates the console host with the folders named on the
// command line.  Each folder is named after its base directory.
func workspace(c *cli.Context, log log.Logger) (*console.Module, error) {
	m := console.New(
		console.WithLogger(log),
		console.WithIO(c.App.Reader, c.App.Writer))

	for _, dir := range c.StringSlice("folder") {
		f, err := m.LocalWorkspace().AddFolder(dir, filepath.Base(dir))
		if err != nil {
			return nil, fmt.Errorf("folder %s: %w", dir, err)
		}

		log.WithField("uri", f.URI).Debug("added workspace folder")
	}

	return m, nil
}

func loader(m *console.Module) *host.Loader {
	return host.NewLoader(console.Import(m))
}

// environ parses KEY=VALUE pairs.
func environ(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid environment variable %q", pair)
		}

		env[kv[0]] = kv[1]
	}

	return env, nil
}
