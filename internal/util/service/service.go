// Package serviceutil supervises background services, such as the
// workspace folder sync.
package serviceutil

import (
	"fmt"
	"io"

	"github.com/lthibault/log"
	"github.com/thejerf/suture/v4"
	"github.com/urfave/cli/v2"

	"github.com/wetware/wasmterm"
)

// New supervisor named after the application.  Service failures are
// logged and counted under the "service" prefix of m.
func New(c *cli.Context, log log.Logger, m wasmterm.Metrics) *suture.Supervisor {
	return suture.New(c.App.Name, suture.Spec{
		EventHook: NewEventHook(log, m.WithPrefix("service"), c.App.ErrWriter),
	})
}

// NewEventHook reports supervisor events.  Panic stack traces are
// written to stderr.
func NewEventHook(logger log.Logger, m wasmterm.Metrics, stderr io.Writer) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventBackoff:
			m.Incr("backoff")
			logger.WithFields(ev.Map()).
				Debug("supervisor suspended")

		case suture.EventResume:
			logger.WithField("supervisor", ev.SupervisorName).
				Info("supervisor resumed")

		case suture.EventServiceTerminate:
			m.Incr("failed")
			logger.With(failure{
				service:      ev.ServiceName,
				supervisor:   ev.SupervisorName,
				value:        ev.Err,
				restart:      ev.Restarting,
				backpressure: ev.CurrentFailures / ev.FailureThreshold,
			}).Warn("service failed")

		case suture.EventServicePanic:
			m.Incr("panic")
			logger.With(failure{
				service:      ev.ServiceName,
				supervisor:   ev.SupervisorName,
				value:        ev.PanicMsg,
				restart:      ev.Restarting,
				backpressure: ev.CurrentFailures / ev.FailureThreshold,
			}).Error("service panicked")

			fmt.Fprintf(stderr, "%s\n%s\n", ev.PanicMsg, ev.Stacktrace)

		case suture.EventStopTimeout:
			logger.WithField("service", ev.ServiceName).
				WithField("supervisor", ev.SupervisorName).
				Error("service failed to stop in time")
		}
	}
}

// failure is a service that terminated or panicked.
type failure struct {
	service, supervisor string
	value               any
	restart             bool
	backpressure        float64
}

func (f failure) Loggable() map[string]any {
	return map[string]any{
		"service":      f.service,
		"supervisor":   f.supervisor,
		"error":        f.value,
		"restart":      f.restart,
		"backpressure": f.backpressure,
	}
}
