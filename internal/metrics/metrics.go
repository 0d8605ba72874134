// Package metrics registers the scoreboard's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe result labels.
const (
	ResultUp      = "up"
	ResultDown    = "down"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

var (
	// ProbesTotal counts probe outcomes across all teams and services.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rangeboard",
		Name:      "probes_total",
		Help:      "Probe outcomes by result.",
	}, []string{"result"})

	// ScoreTickDuration observes how long a full score tick takes,
	// including the probe fan-out.
	ScoreTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rangeboard",
		Name:      "score_tick_duration_seconds",
		Help:      "Duration of score ticks.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// AutosavesTotal counts autosave attempts by outcome.
	AutosavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rangeboard",
		Name:      "autosaves_total",
		Help:      "Autosave attempts by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the default registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
