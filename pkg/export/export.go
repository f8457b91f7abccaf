// Package export persists a warehouse snapshot and its derived views to
// ClickHouse. Each table is loaded into a staging copy and swapped in with
// EXCHANGE TABLES, so readers never observe a partially loaded table.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openvaxlabs/vaxmart/pkg/clickhouse"
	"github.com/openvaxlabs/vaxmart/pkg/metrics"
	"github.com/openvaxlabs/vaxmart/pkg/views"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// Config configures an exporter.
type Config struct {
	Logger *slog.Logger
	Client clickhouse.Client
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("clickhouse client is required")
	}
	return nil
}

// Exporter writes snapshots to ClickHouse.
type Exporter struct {
	log    *slog.Logger
	client clickhouse.Client
}

func New(cfg Config) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Exporter{log: cfg.Logger, client: cfg.Client}, nil
}

// Export writes the snapshot's dimensions, facts and analytical views. Each
// table swaps atomically; the export as a whole is not transactional across
// tables, so version columns let readers pin a consistent snapshot.
func (e *Exporter) Export(ctx context.Context, snap *warehouse.Snapshot, engine *views.Engine) error {
	conn, err := e.client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get ClickHouse connection: %w", err)
	}
	defer conn.Close()

	ctx = clickhouse.ContextWithSyncInsert(ctx)
	version := snap.Version

	e.log.Info("exporting snapshot", "version", version)

	if err := e.exportDimensions(ctx, conn, snap); err != nil {
		return err
	}
	if err := e.exportFacts(ctx, conn, snap, version); err != nil {
		return err
	}
	if err := e.exportViews(ctx, conn, snap, engine, version); err != nil {
		return err
	}

	e.log.Info("export complete", "version", version)
	return nil
}

func (e *Exporter) exportDimensions(ctx context.Context, conn clickhouse.Connection, snap *warehouse.Snapshot) error {
	countries := snap.Dims.CountryCodes()
	if err := e.writeTable(ctx, conn, "dim_country", len(countries), func(i int) []any {
		c := snap.Dims.Countries[countries[i]]
		return []any{c.Code, c.Name, c.WHORegion}
	}); err != nil {
		return err
	}

	antigens := snap.Dims.AntigenCodes()
	if err := e.writeTable(ctx, conn, "dim_antigen", len(antigens), func(i int) []any {
		a := snap.Dims.Antigens[antigens[i]]
		return []any{a.Code, a.Description, a.Family, uint8(a.DoseOrdinal)}
	}); err != nil {
		return err
	}

	diseases := snap.Dims.DiseaseCodes()
	if err := e.writeTable(ctx, conn, "dim_disease", len(diseases), func(i int) []any {
		d := snap.Dims.Diseases[diseases[i]]
		return []any{d.Code, d.Description}
	}); err != nil {
		return err
	}

	years := snap.Dims.YearValues()
	return e.writeTable(ctx, conn, "dim_year", len(years), func(i int) []any {
		y := snap.Dims.Years[years[i]]
		return []any{uint16(y.Value), uint16(y.Decade), y.Period}
	})
}

func (e *Exporter) exportFacts(ctx context.Context, conn clickhouse.Connection, snap *warehouse.Snapshot, version uint64) error {
	var all warehouse.Filter

	coverage := snap.CoverageFacts(all)
	if err := e.writeTable(ctx, conn, "fact_coverage", len(coverage), func(i int) []any {
		f := coverage[i]
		return []any{f.CountryCode, uint16(f.Year), f.AntigenCode, f.Coverage, f.TargetNumber, f.Doses, version}
	}); err != nil {
		return err
	}

	incidence := snap.IncidenceFacts(all)
	if err := e.writeTable(ctx, conn, "fact_incidence", len(incidence), func(i int) []any {
		f := incidence[i]
		return []any{f.CountryCode, uint16(f.Year), f.DiseaseCode, f.Denominator, f.IncidenceRate, version}
	}); err != nil {
		return err
	}

	cases := snap.ReportedCasesFacts(all)
	if err := e.writeTable(ctx, conn, "fact_reported_cases", len(cases), func(i int) []any {
		f := cases[i]
		return []any{f.CountryCode, uint16(f.Year), f.DiseaseCode, f.Cases, version}
	}); err != nil {
		return err
	}

	intros := snap.IntroductionFacts(all)
	if err := e.writeTable(ctx, conn, "fact_vaccine_introduction", len(intros), func(i int) []any {
		f := intros[i]
		return []any{f.CountryCode, uint16(f.Year), f.VaccineDescription, string(f.Status), version}
	}); err != nil {
		return err
	}

	schedules := snap.ScheduleFacts(all)
	return e.writeTable(ctx, conn, "fact_vaccine_schedule", len(schedules), func(i int) []any {
		f := schedules[i]
		return []any{f.CountryCode, uint16(f.Year), f.VaccineCode, f.VaccineDescription,
			f.ScheduleRounds, f.TargetPop, f.TargetPopDescription, f.GeoArea, f.AgeAdministered, version}
	})
}

func (e *Exporter) exportViews(ctx context.Context, conn clickhouse.Connection, snap *warehouse.Snapshot, engine *views.Engine, version uint64) error {
	var all warehouse.Filter

	coverage := engine.CoverageAnalysis(snap, all)
	if err := e.writeTable(ctx, conn, "view_coverage_analysis", len(coverage), func(i int) []any {
		r := coverage[i]
		return []any{r.CountryCode, r.CountryName, r.WHORegion, uint16(r.Year), uint16(r.Decade), r.Period,
			r.AntigenCode, r.AntigenDescription, r.Family, uint8(r.DoseOrdinal),
			r.Coverage, r.TargetNumber, r.Doses, r.Tier, r.Dropout, version}
	}); err != nil {
		return err
	}

	burden := engine.DiseaseBurden(snap, all)
	if err := e.writeTable(ctx, conn, "view_disease_burden", len(burden), func(i int) []any {
		r := burden[i]
		return []any{r.CountryCode, r.CountryName, r.WHORegion, uint16(r.Year), uint16(r.Decade),
			r.DiseaseCode, r.DiseaseDescription, r.IncidenceRate, r.Cases, r.Severity, version}
	}); err != nil {
		return err
	}

	priority := engine.PriorityScoring(snap, all)
	return e.writeTable(ctx, conn, "view_priority_scoring", len(priority), func(i int) []any {
		r := priority[i]
		return []any{r.CountryCode, r.CountryName, r.WHORegion, r.AvgCoverage, r.AvgIncidence, r.Priority, version}
	})
}

// writeTable loads rows into a staging copy of the table and swaps it in.
func (e *Exporter) writeTable(ctx context.Context, conn clickhouse.Connection, table string, count int, rowFn func(int) []any) error {
	start := time.Now()
	staging := table + "_staging"

	e.log.Debug("export: writing table", "table", table, "count", count)

	if err := conn.Exec(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS %s", staging, table)); err != nil {
		metrics.ExportBatchesTotal.WithLabelValues(table, "error").Inc()
		return fmt.Errorf("failed to create staging table %s: %w", staging, err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", staging)); err != nil {
		metrics.ExportBatchesTotal.WithLabelValues(table, "error").Inc()
		return fmt.Errorf("failed to truncate staging table %s: %w", staging, err)
	}

	if count > 0 {
		batch, err := conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", staging))
		if err != nil {
			metrics.ExportBatchesTotal.WithLabelValues(table, "error").Inc()
			return fmt.Errorf("failed to prepare batch for %s: %w", staging, err)
		}
		defer batch.Close() // Always release the connection back to the pool

		for i := range count {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during batch insert: %w", ctx.Err())
			default:
			}
			if err := batch.Append(rowFn(i)...); err != nil {
				metrics.ExportBatchesTotal.WithLabelValues(table, "error").Inc()
				return fmt.Errorf("failed to append row %d to %s: %w", i, staging, err)
			}
		}
		if err := batch.Send(); err != nil {
			metrics.ExportBatchesTotal.WithLabelValues(table, "error").Inc()
			return fmt.Errorf("failed to send batch for %s: %w", staging, err)
		}
	}

	if err := conn.Exec(ctx, fmt.Sprintf("EXCHANGE TABLES %s AND %s", staging, table)); err != nil {
		metrics.ExportBatchesTotal.WithLabelValues(table, "error").Inc()
		return fmt.Errorf("failed to swap staging table %s: %w", staging, err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", staging)); err != nil {
		return fmt.Errorf("failed to drop staging table %s: %w", staging, err)
	}

	metrics.ExportBatchesTotal.WithLabelValues(table, "success").Inc()
	metrics.ExportDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	e.log.Debug("export: wrote table", "table", table, "count", count)
	return nil
}
