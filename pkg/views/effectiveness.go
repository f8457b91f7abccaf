package views

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// EffectivenessRow joins a coverage fact to the incidence of the disease its
// antigen targets, on the same country and year. Rows only exist where both
// observations are present.
type EffectivenessRow struct {
	CountryCode   string
	CountryName   string
	WHORegion     string
	Year          int
	AntigenCode   string
	DiseaseCode   string
	Coverage      float64
	IncidenceRate float64
}

// VaccinationEffectiveness pairs coverage with incidence for every
// configured antigen/disease pair, ordered by (antigen, country, year).
func (e *Engine) VaccinationEffectiveness(snap *warehouse.Snapshot, f warehouse.Filter) []EffectivenessRow {
	var rows []EffectivenessRow
	for _, fact := range snap.CoverageFacts(f) {
		disease, ok := e.diseaseFor(fact.AntigenCode)
		if !ok {
			continue
		}
		if f.DiseaseCode != "" && disease != f.DiseaseCode {
			continue
		}
		incidence, ok := snap.IncidenceFact(warehouse.DiseaseKey{
			CountryCode: fact.CountryCode,
			Year:        fact.Year,
			DiseaseCode: disease,
		})
		if !ok {
			continue
		}
		country, _ := snap.Country(fact.CountryCode)
		rows = append(rows, EffectivenessRow{
			CountryCode:   fact.CountryCode,
			CountryName:   country.Name,
			WHORegion:     country.WHORegion,
			Year:          fact.Year,
			AntigenCode:   fact.AntigenCode,
			DiseaseCode:   disease,
			Coverage:      fact.Coverage,
			IncidenceRate: incidence.IncidenceRate,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.AntigenCode != b.AntigenCode {
			return a.AntigenCode < b.AntigenCode
		}
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		return a.Year < b.Year
	})
	return rows
}

// diseaseFor maps an antigen code to its target disease by substring match
// against the configured pairs. First match wins.
func (e *Engine) diseaseFor(antigenCode string) (string, bool) {
	for _, pair := range e.cfg.Thresholds.EffectivenessPairs {
		if strings.Contains(antigenCode, pair.AntigenPattern) {
			return pair.DiseaseCode, true
		}
	}
	return "", false
}

// CorrelationResult holds the Pearson coefficient between coverage and
// incidence for one antigen/disease pairing. Coefficient is nil when either
// series has zero variance.
type CorrelationResult struct {
	AntigenCode string
	DiseaseCode string
	Coefficient *float64
	Samples     int
}

// CoverageIncidenceCorrelation computes, for each antigen code with a
// configured disease pairing, the Pearson correlation between coverage and
// same-country-year incidence. Pairings with fewer matched observations than
// the configured minimum are excluded. Results are ordered by antigen code.
func (e *Engine) CoverageIncidenceCorrelation(ctx context.Context, snap *warehouse.Snapshot, f warehouse.Filter) ([]CorrelationResult, error) {
	byAntigen := make(map[string][]EffectivenessRow)
	for _, row := range e.VaccinationEffectiveness(snap, f) {
		byAntigen[row.AntigenCode] = append(byAntigen[row.AntigenCode], row)
	}

	codes := make([]string, 0, len(byAntigen))
	for code := range byAntigen {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	results := make([]CorrelationResult, len(codes))
	g, ctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrency > 0 {
		g.SetLimit(e.cfg.MaxConcurrency)
	}
	for i, code := range codes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows := byAntigen[code]
			if len(rows) < e.cfg.Thresholds.MinCorrelationSamples {
				e.log.Debug(fmt.Sprintf("views: skipping correlation for %s: %v (%d of %d)",
					code, ErrInsufficientSample, len(rows), e.cfg.Thresholds.MinCorrelationSamples))
				return nil
			}
			result := CorrelationResult{
				AntigenCode: code,
				DiseaseCode: rows[0].DiseaseCode,
				Samples:     len(rows),
			}
			xs := make([]float64, len(rows))
			ys := make([]float64, len(rows))
			for j, row := range rows {
				xs[j] = row.Coverage
				ys[j] = row.IncidenceRate
			}
			coeff, err := pearson(xs, ys)
			if err != nil {
				e.log.Debug(fmt.Sprintf("views: correlation undefined for %s: %v", code, err))
			} else {
				result.Coefficient = &coeff
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute correlations: %w", err)
	}

	out := make([]CorrelationResult, 0, len(results))
	for _, result := range results {
		if result.AntigenCode == "" {
			continue
		}
		out = append(out, result)
	}
	return out, nil
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. Returns ErrZeroVariance when either series is constant.
func pearson(xs, ys []float64) (float64, error) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var covXY, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, ErrZeroVariance
	}
	return covXY / math.Sqrt(varX*varY), nil
}
