// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the recommendation engine:
// - Request counts and latency per entry point
// - Training pipeline durations per stage
// - Similarity cache efficiency
// - Snapshot freshness and corpus size

var (
	// Request Metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgrec_requests_total",
			Help: "Total number of engine requests",
		},
		[]string{"operation", "status"}, // operation: recommend, complete, evaluate
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtgrec_request_duration_seconds",
			Help:    "Engine request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// Training Pipeline Metrics
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtgrec_training_duration_seconds",
			Help:    "Duration of training pipeline stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"}, // "dataset", "matrix", "similarity", "total"
	)

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgrec_training_runs_total",
			Help: "Total number of training pipeline runs",
		},
		[]string{"status"}, // "success", "failure"
	)

	SkippedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtgrec_skipped_records_total",
			Help: "Total number of malformed records skipped during dataset builds",
		},
	)

	// Similarity Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtgrec_similarity_cache_hits_total",
			Help: "Total number of similarity cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtgrec_similarity_cache_misses_total",
			Help: "Total number of similarity cache misses (fingerprint mismatch or absent)",
		},
	)

	// Snapshot Metrics
	SnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgrec_snapshot_version",
			Help: "Monotonic version of the currently served model snapshot",
		},
	)

	SnapshotBuiltAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgrec_snapshot_built_timestamp_seconds",
			Help: "Unix timestamp of the currently served snapshot build",
		},
	)

	SnapshotDecks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgrec_snapshot_decks",
			Help: "Number of decks in the currently served snapshot",
		},
	)

	SnapshotCards = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgrec_snapshot_cards",
			Help: "Number of distinct cards in the currently served snapshot",
		},
	)
)

// ObserveRequest records a completed request with its outcome and latency.
func ObserveRequest(operation, status string, start time.Time) {
	RequestsTotal.WithLabelValues(operation, status).Inc()
	RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveTrainingStage records the duration of one training pipeline stage.
func ObserveTrainingStage(stage string, start time.Time) {
	TrainingDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
