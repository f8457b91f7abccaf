package views

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

func burdenBatch() *warehouse.Batch {
	return &warehouse.Batch{
		Incidence: []warehouse.IncidenceRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2021, DiseaseCode: "MEASLES", DiseaseDescription: "Measles", IncidenceRate: 0.4},
			{CountryCode: "NGA", CountryName: "Nigeria", Year: 2021, DiseaseCode: "MEASLES", DiseaseDescription: "Measles", IncidenceRate: 131.5},
			{CountryCode: "NGA", CountryName: "Nigeria", Year: 2021, DiseaseCode: "PERTUSSIS", DiseaseDescription: "Pertussis", IncidenceRate: 12},
		},
		ReportedCases: []warehouse.ReportedCasesRecord{
			{CountryCode: "NGA", CountryName: "Nigeria", Year: 2021, DiseaseCode: "MEASLES", DiseaseDescription: "Measles", Cases: 28714},
			// Cases with no incidence observation for the same key.
			{CountryCode: "USA", CountryName: "United States", Year: 2021, DiseaseCode: "PERTUSSIS", DiseaseDescription: "Pertussis", Cases: 6100},
		},
		Introductions: []warehouse.IntroductionRecord{
			{CountryCode: "USA", CountryName: "United States", WHORegion: "AMR", Year: 2021, VaccineDescription: "Rotavirus vaccine", Status: warehouse.IntroYes},
			{CountryCode: "NGA", CountryName: "Nigeria", WHORegion: "AFR", Year: 2021, VaccineDescription: "Rotavirus vaccine", Status: warehouse.IntroNo},
		},
	}
}

func burdenRow(t *testing.T, rows []BurdenRow, country, disease string) BurdenRow {
	t.Helper()
	for _, row := range rows {
		if row.CountryCode == country && row.DiseaseCode == disease {
			return row
		}
	}
	t.Fatalf("no row for %s/%s", country, disease)
	return BurdenRow{}
}

func TestVaxmart_Views_DiseaseBurden(t *testing.T) {
	t.Parallel()

	engine := testEngine(t)
	snap := buildSnapshot(t, burdenBatch())

	t.Run("joins incidence with reported cases", func(t *testing.T) {
		t.Parallel()

		rows := engine.DiseaseBurden(snap, warehouse.Filter{})
		require.Len(t, rows, 4)

		row := burdenRow(t, rows, "NGA", "MEASLES")
		require.Equal(t, "Nigeria", row.CountryName)
		require.Equal(t, "AFR", row.WHORegion)
		require.NotNil(t, row.IncidenceRate)
		require.InDelta(t, 131.5, *row.IncidenceRate, 1e-9)
		require.NotNil(t, row.Cases)
		require.Equal(t, int64(28714), *row.Cases)
		require.Equal(t, "high", row.Severity)
	})

	t.Run("labels severity from the configured bands", func(t *testing.T) {
		t.Parallel()

		rows := engine.DiseaseBurden(snap, warehouse.Filter{})
		require.Equal(t, "low", burdenRow(t, rows, "USA", "MEASLES").Severity)
		require.Equal(t, "medium", burdenRow(t, rows, "NGA", "PERTUSSIS").Severity)
	})

	t.Run("missing incidence keeps the row without a severity label", func(t *testing.T) {
		t.Parallel()

		rows := engine.DiseaseBurden(snap, warehouse.Filter{})
		row := burdenRow(t, rows, "USA", "PERTUSSIS")
		require.Nil(t, row.IncidenceRate)
		require.NotNil(t, row.Cases)
		require.Equal(t, "", row.Severity)
	})

	t.Run("zero incidence is a real observation", func(t *testing.T) {
		t.Parallel()

		batch := burdenBatch()
		batch.Incidence = append(batch.Incidence, warehouse.IncidenceRecord{
			CountryCode: "USA", CountryName: "United States", Year: 2021, DiseaseCode: "POLIOMYELITIS", DiseaseDescription: "Poliomyelitis", IncidenceRate: 0,
		})
		rows := engine.DiseaseBurden(buildSnapshot(t, batch), warehouse.Filter{})
		row := burdenRow(t, rows, "USA", "POLIOMYELITIS")
		require.NotNil(t, row.IncidenceRate)
		require.Equal(t, "low", row.Severity)
	})

	t.Run("ordered by country year disease", func(t *testing.T) {
		t.Parallel()

		rows := engine.DiseaseBurden(snap, warehouse.Filter{})
		require.Equal(t, "NGA", rows[0].CountryCode)
		require.Equal(t, "MEASLES", rows[0].DiseaseCode)
		require.Equal(t, "PERTUSSIS", rows[1].DiseaseCode)
		require.Equal(t, "USA", rows[2].CountryCode)
	})
}

func TestVaxmart_Views_RegionalBurden(t *testing.T) {
	t.Parallel()

	engine := testEngine(t)
	snap := buildSnapshot(t, burdenBatch())

	rows := engine.RegionalBurden(snap, warehouse.Filter{})
	require.Len(t, rows, 4)

	// Highest average incidence first.
	require.Equal(t, "AFR", rows[0].WHORegion)
	require.Equal(t, "MEASLES", rows[0].DiseaseCode)
	require.InDelta(t, 131.5, rows[0].AvgIncidenceRate, 1e-9)
	require.Equal(t, int64(28714), rows[0].TotalCases)

	// Rows without incidence contribute cases but not to the average.
	for _, row := range rows {
		if row.WHORegion == "AMR" && row.DiseaseCode == "PERTUSSIS" {
			require.Equal(t, 0.0, row.AvgIncidenceRate)
			require.Equal(t, int64(6100), row.TotalCases)
		}
	}
}
