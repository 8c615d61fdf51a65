// Package wasmterm exposes a pseudo-terminal backed by a WebAssembly
// process to an editor host.
package wasmterm

import "time"

const Version = "0.1.0"

// DefaultMountPoint is the guest path at which the shared workspace
// filesystem is bound when a terminal boots.
const DefaultMountPoint = "/workspace"

// Metrics records counters and timings.
type Metrics interface {
	Incr(bucket string)
	Decr(bucket string)
	Duration(bucket string, d time.Duration)
	WithPrefix(prefix string) Metrics
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) Incr(string)                    {}
func (NopMetrics) Decr(string)                    {}
func (NopMetrics) Duration(string, time.Duration) {}
func (NopMetrics) WithPrefix(string) Metrics      { return NopMetrics{} }
