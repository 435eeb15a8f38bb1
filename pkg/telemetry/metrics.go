// Package telemetry exposes engine counters on the default prometheus
// registry; the app serves them on /metrics.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	// OutboundOps counts operations emitted over the channel, by kind
	// (send, edit, delete, react, typing).
	OutboundOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_outbound_ops_total",
		Help: "Operations emitted over the channel adapter.",
	}, []string{"op"})

	// InboundEvents counts channel events consumed, by event kind.
	InboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_inbound_events_total",
		Help: "Channel events consumed by the engine.",
	}, []string{"event"})

	// DuplicatesSuppressed counts inbound records ignored because the
	// identity was already present.
	DuplicatesSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_duplicates_suppressed_total",
		Help: "Inbound message events dropped as duplicates.",
	})

	// EchoAbsorbed counts self-echoes matched heuristically rather than
	// by local id.
	EchoAbsorbed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_echo_heuristic_matches_total",
		Help: "Self-echoes absorbed by the content heuristic.",
	})

	// Rollbacks counts ledger snapshot restorations after a failure.
	Rollbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_rollbacks_total",
		Help: "Optimistic mutations rolled back from ledger snapshots.",
	}, []string{"op"})

	// Refused counts operations rejected before any emission.
	Refused = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_ops_refused_total",
		Help: "Operations refused by local validation.",
	}, []string{"op"})

	// TombstonesCompacted counts journal records removed by retention.
	TombstonesCompacted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_tombstones_compacted_total",
		Help: "Tombstoned journal records removed by retention runs.",
	})
)

func init() {
	prometheus.MustRegister(
		OutboundOps,
		InboundEvents,
		DuplicatesSuppressed,
		EchoAbsorbed,
		Rollbacks,
		Refused,
		TombstonesCompacted,
	)
}
