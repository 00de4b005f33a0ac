// Package metrics holds the process-wide Prometheus collectors the
// dashboard's /metrics endpoint exposes: a package-level registry plus
// Inc()/Set() call sites at the producers, rather than a collector threaded
// through every constructor.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DecodeErrors counts frames dropped by the Event Decoder.
	DecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pumpsentinel_decode_errors_total",
		Help: "Program-log frames dropped by the Event Decoder.",
	})

	// SwapsApplied counts Swap records successfully applied to the Market
	// Engine's in-memory state.
	SwapsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pumpsentinel_swaps_applied_total",
		Help: "Swap events applied to live mint state.",
	})

	// ActiveSessions is the current count of running Session Controllers.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pumpsentinel_active_sessions",
		Help: "Number of Session Controllers currently trading.",
	})

	// LeaderboardSize is the creator count in the most recently published
	// Leaderboard.
	LeaderboardSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pumpsentinel_leaderboard_creators",
		Help: "Number of creators present in the current Leaderboard.",
	})
)

// Registry is the collector set the dashboard's /metrics endpoint serves.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(DecodeErrors, SwapsApplied, ActiveSessions, LeaderboardSize)
}
