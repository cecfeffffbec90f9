// Package metricspkg provides Prometheus collectors for the transfer engine.
package metricspkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts ledger transfer outcomes by status
	// (completed, replayed, rejected, failed).
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_transfers_total",
		Help: "Total ledger transfers by outcome",
	}, []string{"status"})

	// SnapshotsTotal counts rate snapshot ingestions by status.
	SnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_rate_snapshots_total",
		Help: "Total ingested rate snapshots by status",
	}, []string{"status"})

	// QuotesTotal counts quote lifecycle events.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_quotes_total",
		Help: "Total quote lifecycle events",
	}, []string{"status"})
)
