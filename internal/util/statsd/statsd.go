package statsdutil

import (
	"time"

	"github.com/lthibault/log"
	"gopkg.in/alexcesaro/statsd.v2"

	"github.com/wetware/wasmterm"
)

type Env interface {
	IsSet(string) bool
	String(string) string
}

// Metrics wraps a statsd client and satisfies the wasmterm.Metrics
// interface.
type Metrics struct{ *statsd.Client }

// New statsd client.  Metrics are muted unless the "metrics" flag is
// set.
func New(env Env, log log.Logger) wasmterm.Metrics {
	m, err := statsd.New(
		addr(env),
		muted(env),
		logger(env, log),
		statsd.Prefix("wasmterm"),
		statsd.FlushPeriod(time.Millisecond*250))
	if err != nil {
		log.WithError(err).
			Warn("setup failed for statsd metrics")
		return wasmterm.NopMetrics{}
	}

	return Metrics{m}
}

func (m Metrics) Incr(bucket string) {
	m.Client.Count(bucket, 1)
}

func (m Metrics) Decr(bucket string) {
	m.Client.Count(bucket, -1)
}

func (m Metrics) Duration(bucket string, d time.Duration) {
	m.Client.Timing(bucket, d.Milliseconds())
}

func (m Metrics) WithPrefix(prefix string) wasmterm.Metrics {
	return Metrics{
		Client: m.Client.Clone(statsd.Prefix(prefix)),
	}
}

func addr(env Env) statsd.Option {
	if env.IsSet("metrics") {
		return statsd.Address(env.String("metrics"))
	}

	return statsd.Address(":8125")
}

func logger(env Env, log log.Logger) statsd.Option {
	return statsd.ErrorHandler(func(err error) {
		log.WithError(err).
			WithField("metrics", env.String("metrics")).
			Warn("failed to send metrics")
	})
}

func muted(env Env) statsd.Option {
	return statsd.Mute(!env.IsSet("metrics"))
}
