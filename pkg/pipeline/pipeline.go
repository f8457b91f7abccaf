// Package pipeline orchestrates one batch run: normalize every extract
// category concurrently, rebuild the warehouse snapshot, and surface the
// combined quality report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/openvaxlabs/vaxmart/pkg/extract"
	"github.com/openvaxlabs/vaxmart/pkg/metrics"
	"github.com/openvaxlabs/vaxmart/pkg/normalize"
	"github.com/openvaxlabs/vaxmart/pkg/views"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// Config configures a pipeline.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Store  *warehouse.Store

	Thresholds views.Thresholds
	Policy     warehouse.Policy

	// Normalization bounds; zero values take the normalizer defaults.
	MaxCoverage float64
	MinYear     int
	MaxYear     int

	// MaxConcurrency bounds view computations. Zero means sequential.
	MaxConcurrency int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Policy == "" {
		cfg.Policy = warehouse.PolicyReject
	}
	if !cfg.Policy.Valid() {
		return fmt.Errorf("invalid policy %q", cfg.Policy)
	}
	if len(cfg.Thresholds.CoverageTiers) == 0 {
		cfg.Thresholds = views.DefaultThresholds()
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

// Result is the outcome of one pipeline run.
type Result struct {
	Snapshot *warehouse.Snapshot
	Report   *normalize.Report
	Stats    *warehouse.RebuildStats
}

// Pipeline runs extract snapshots through normalization into the store.
type Pipeline struct {
	log    *slog.Logger
	cfg    Config
	norm   *normalize.Normalizer
	engine *views.Engine
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	norm, err := normalize.New(normalize.Config{
		Logger:      cfg.Logger,
		MaxCoverage: cfg.MaxCoverage,
		MinYear:     cfg.MinYear,
		MaxYear:     cfg.MaxYear,
		Policy:      cfg.Policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}

	engine, err := views.New(views.Config{
		Logger:         cfg.Logger,
		Thresholds:     cfg.Thresholds,
		MaxConcurrency: cfg.MaxConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create view engine: %w", err)
	}

	return &Pipeline{log: cfg.Logger, cfg: cfg, norm: norm, engine: engine}, nil
}

// Engine returns the view engine configured with the pipeline's thresholds.
func (p *Pipeline) Engine() *views.Engine {
	return p.engine
}

// Run normalizes the extract snapshot and rebuilds the warehouse. The
// store's prior snapshot stays visible until the new one is complete; a
// failed run leaves it untouched.
func (p *Pipeline) Run(ctx context.Context, snap *extract.Snapshot) (*Result, error) {
	start := p.cfg.Clock.Now()
	report := normalize.NewReport()
	report.StartedAt = start

	batch := &warehouse.Batch{}

	// Categories are independent; duplicate detection is scoped within
	// each one, so they normalize in parallel. Each goroutine writes only
	// its own variables; the shared report map is filled after Wait.
	var (
		coverageReport, incidenceReport, casesReport *normalize.CategoryReport
		introReport, scheduleReport                  *normalize.CategoryReport
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		batch.Coverage, coverageReport = p.norm.Coverage(snap.Coverage)
		return nil
	})
	g.Go(func() error {
		batch.Incidence, incidenceReport = p.norm.Incidence(snap.Incidence)
		return nil
	})
	g.Go(func() error {
		batch.ReportedCases, casesReport = p.norm.ReportedCases(snap.ReportedCases)
		return nil
	})
	g.Go(func() error {
		batch.Introductions, introReport = p.norm.Introductions(snap.Introductions)
		return nil
	})
	g.Go(func() error {
		batch.Schedules, scheduleReport = p.norm.Schedules(snap.Schedules)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.Categories[extract.KindCoverage] = coverageReport
	report.Categories[extract.KindIncidence] = incidenceReport
	report.Categories[extract.KindReportedCases] = casesReport
	report.Categories[extract.KindIntroduction] = introReport
	report.Categories[extract.KindSchedule] = scheduleReport

	for kind, category := range report.Categories {
		metrics.RecordsProcessedTotal.WithLabelValues(string(kind), "accepted").Add(float64(category.Accepted))
		for reason, n := range category.Rejected {
			metrics.RecordsProcessedTotal.WithLabelValues(string(kind), "rejected").Add(float64(n))
			metrics.RecordsRejectedTotal.WithLabelValues(string(kind), string(reason)).Add(float64(n))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	warehouseSnap, stats, err := p.cfg.Store.Rebuild(batch, p.cfg.Policy)
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to rebuild warehouse: %w", err)
	}
	for _, conflict := range stats.Conflicts {
		metrics.GrainConflictsTotal.WithLabelValues(conflict.Table).Inc()
	}
	metrics.RebuildsTotal.WithLabelValues("success").Inc()

	report.Duration = p.cfg.Clock.Since(start)
	metrics.RebuildDuration.Observe(report.Duration.Seconds())

	p.log.Info("pipeline: run complete",
		"version", warehouseSnap.Version,
		"accepted", report.Accepted(),
		"rejected", report.Rejected(),
		"conflicts", len(stats.Conflicts),
		"overwrites", stats.Overwrites,
		"duration", report.Duration,
	)

	return &Result{Snapshot: warehouseSnap, Report: report, Stats: stats}, nil
}
