// Package prometheus provides the Prometheus implementation of the actor
// runtime metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// Registry bundles a Prometheus registry with the runtime metrics registered
// on it. The Go and process collectors are registered as well, so the
// registry can back a /metrics endpoint on its own.
type Registry struct {
	*prometheus.Registry
	Actor *actorMetrics
}

// NewRegistry creates a fresh registry with actor, Go runtime and process
// collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{Registry: reg, Actor: newActorMetrics(reg)}
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
