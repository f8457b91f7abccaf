package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vaxmart_build_info",
			Help: "Build information of the vaxmart pipeline",
		},
		[]string{"version", "commit", "date"},
	)

	RecordsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaxmart_records_processed_total",
			Help: "Total number of records processed by normalization",
		},
		[]string{"category", "status"},
	)

	RecordsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaxmart_records_rejected_total",
			Help: "Total number of records rejected by normalization",
		},
		[]string{"category", "reason"},
	)

	GrainConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaxmart_grain_conflicts_total",
			Help: "Total number of fact grain conflicts detected during load",
		},
		[]string{"table"},
	)

	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaxmart_rebuilds_total",
			Help: "Total number of warehouse rebuilds",
		},
		[]string{"status"},
	)

	RebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vaxmart_rebuild_duration_seconds",
			Help:    "Duration of warehouse rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
	)

	ExportBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaxmart_export_batches_total",
			Help: "Total number of batches written to ClickHouse during export",
		},
		[]string{"table", "status"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vaxmart_export_duration_seconds",
			Help:    "Duration of table exports",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
		[]string{"table"},
	)
)
