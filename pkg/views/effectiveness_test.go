package views

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	vaxtesting "github.com/openvaxlabs/vaxmart/pkg/testing"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// correlationBatch builds per-country coverage/incidence pairs for one
// antigen family with a known relationship.
func correlationBatch(t *testing.T, antigen, disease string, pairs [][2]float64) *warehouse.Batch {
	t.Helper()
	batch := &warehouse.Batch{}
	for i, pair := range pairs {
		country := "C" + strconv.Itoa(i)
		batch.Coverage = append(batch.Coverage, warehouse.CoverageRecord{
			CountryCode: country, CountryName: country, Year: 2021, AntigenCode: antigen, Coverage: pair[0],
		})
		batch.Incidence = append(batch.Incidence, warehouse.IncidenceRecord{
			CountryCode: country, CountryName: country, Year: 2021, DiseaseCode: disease, IncidenceRate: pair[1],
		})
	}
	return batch
}

func correlationEngine(t *testing.T, minSamples int) *Engine {
	t.Helper()
	thresholds := DefaultThresholds()
	thresholds.MinCorrelationSamples = minSamples
	engine, err := New(Config{Logger: vaxtesting.NewLogger(), Thresholds: thresholds, MaxConcurrency: 4})
	require.NoError(t, err)
	return engine
}

func TestVaxmart_Views_VaccinationEffectiveness(t *testing.T) {
	t.Parallel()

	engine := testEngine(t)

	batch := &warehouse.Batch{
		Coverage: []warehouse.CoverageRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2021, AntigenCode: "MCV1", Coverage: 91},
			{CountryCode: "USA", CountryName: "United States", Year: 2021, AntigenCode: "DTPCV3", Coverage: 82},
			// No incidence for 2020, so this coverage fact pairs with nothing.
			{CountryCode: "USA", CountryName: "United States", Year: 2020, AntigenCode: "MCV1", Coverage: 89},
			// ROTAC has no configured disease pairing.
			{CountryCode: "USA", CountryName: "United States", Year: 2021, AntigenCode: "ROTAC", Coverage: 75},
		},
		Incidence: []warehouse.IncidenceRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2021, DiseaseCode: "MEASLES", IncidenceRate: 0.4},
			{CountryCode: "USA", CountryName: "United States", Year: 2021, DiseaseCode: "DIPHTHERIA", IncidenceRate: 0.01},
		},
	}
	snap := buildSnapshot(t, batch)

	t.Run("pairs antigens with their target disease on country and year", func(t *testing.T) {
		t.Parallel()

		rows := engine.VaccinationEffectiveness(snap, warehouse.Filter{})
		require.Len(t, rows, 2)

		require.Equal(t, "DTPCV3", rows[0].AntigenCode)
		require.Equal(t, "DIPHTHERIA", rows[0].DiseaseCode)
		require.InDelta(t, 82, rows[0].Coverage, 1e-9)
		require.InDelta(t, 0.01, rows[0].IncidenceRate, 1e-9)

		require.Equal(t, "MCV1", rows[1].AntigenCode)
		require.Equal(t, "MEASLES", rows[1].DiseaseCode)
	})

	t.Run("disease filter narrows the pairings", func(t *testing.T) {
		t.Parallel()

		rows := engine.VaccinationEffectiveness(snap, warehouse.Filter{DiseaseCode: "MEASLES"})
		require.Len(t, rows, 1)
		require.Equal(t, "MCV1", rows[0].AntigenCode)
	})
}

func TestVaxmart_Views_CoverageIncidenceCorrelation(t *testing.T) {
	t.Parallel()

	t.Run("detects a perfect negative correlation", func(t *testing.T) {
		t.Parallel()

		engine := correlationEngine(t, 3)
		batch := correlationBatch(t, "MCV1", "MEASLES", [][2]float64{
			{50, 100}, {60, 80}, {70, 60}, {80, 40}, {90, 20},
		})
		snap := buildSnapshot(t, batch)

		results, err := engine.CoverageIncidenceCorrelation(t.Context(), snap, warehouse.Filter{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "MCV1", results[0].AntigenCode)
		require.Equal(t, "MEASLES", results[0].DiseaseCode)
		require.Equal(t, 5, results[0].Samples)
		require.NotNil(t, results[0].Coefficient)
		require.InDelta(t, -1, *results[0].Coefficient, 1e-9)
	})

	t.Run("computes a known coefficient", func(t *testing.T) {
		t.Parallel()

		engine := correlationEngine(t, 3)
		batch := correlationBatch(t, "HEPB3", "HEPATITISB", [][2]float64{
			{1, 2}, {2, 1}, {3, 4}, {4, 3},
		})
		snap := buildSnapshot(t, batch)

		results, err := engine.CoverageIncidenceCorrelation(t.Context(), snap, warehouse.Filter{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.NotNil(t, results[0].Coefficient)
		require.InDelta(t, 0.6, *results[0].Coefficient, 1e-9)
	})

	t.Run("excludes pairings below the sample floor", func(t *testing.T) {
		t.Parallel()

		engine := correlationEngine(t, 10)
		batch := correlationBatch(t, "MCV1", "MEASLES", [][2]float64{
			{50, 100}, {60, 80}, {70, 60},
		})
		snap := buildSnapshot(t, batch)

		results, err := engine.CoverageIncidenceCorrelation(t.Context(), snap, warehouse.Filter{})
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("zero variance yields a nil coefficient with samples reported", func(t *testing.T) {
		t.Parallel()

		engine := correlationEngine(t, 3)
		batch := correlationBatch(t, "POL3", "POLIOMYELITIS", [][2]float64{
			{80, 5}, {80, 10}, {80, 15}, {80, 20},
		})
		snap := buildSnapshot(t, batch)

		results, err := engine.CoverageIncidenceCorrelation(t.Context(), snap, warehouse.Filter{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Nil(t, results[0].Coefficient)
		require.Equal(t, 4, results[0].Samples)
	})

	t.Run("results are ordered by antigen code", func(t *testing.T) {
		t.Parallel()

		engine := correlationEngine(t, 2)
		batch := correlationBatch(t, "MCV1", "MEASLES", [][2]float64{
			{50, 100}, {60, 80}, {70, 60},
		})
		more := correlationBatch(t, "BCG1", "TUBERCULOSIS", [][2]float64{
			{40, 90}, {50, 70}, {60, 50},
		})
		batch.Coverage = append(batch.Coverage, more.Coverage...)
		batch.Incidence = append(batch.Incidence, more.Incidence...)
		snap := buildSnapshot(t, batch)

		results, err := engine.CoverageIncidenceCorrelation(t.Context(), snap, warehouse.Filter{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "BCG1", results[0].AntigenCode)
		require.Equal(t, "MCV1", results[1].AntigenCode)
	})
}

func TestVaxmart_Views_Pearson(t *testing.T) {
	t.Parallel()

	t.Run("perfect positive", func(t *testing.T) {
		t.Parallel()

		r, err := pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
		require.NoError(t, err)
		require.InDelta(t, 1, r, 1e-9)
	})

	t.Run("zero variance", func(t *testing.T) {
		t.Parallel()

		_, err := pearson([]float64{1, 1, 1}, []float64{2, 4, 6})
		require.ErrorIs(t, err, ErrZeroVariance)

		_, err = pearson([]float64{1, 2, 3}, []float64{5, 5, 5})
		require.ErrorIs(t, err, ErrZeroVariance)
	})
}
