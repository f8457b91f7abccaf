package pipeline

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/openvaxlabs/vaxmart/pkg/extract"
	"github.com/openvaxlabs/vaxmart/pkg/normalize"
	vaxtesting "github.com/openvaxlabs/vaxmart/pkg/testing"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

func testPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = vaxtesting.NewLogger()
	}
	if cfg.Store == nil {
		store, err := warehouse.NewStore(cfg.Logger)
		require.NoError(t, err)
		cfg.Store = store
	}
	if cfg.MaxYear == 0 {
		cfg.MaxYear = 2023
	}
	pipe, err := New(cfg)
	require.NoError(t, err)
	return pipe
}

func testSnapshot() *extract.Snapshot {
	return &extract.Snapshot{
		Coverage: []extract.CoverageRecord{
			{CountryCode: "USA", CountryName: "United States of America", Year: "2021", AntigenCode: "DTPCV1", AntigenDescription: "DTP 1st dose", Coverage: "90"},
			{CountryCode: "USA", CountryName: "United States of America", Year: "2021", AntigenCode: "DTPCV2", AntigenDescription: "DTP 2nd dose", Coverage: "82"},
			{CountryCode: "USA", CountryName: "United States of America", Year: "2021", AntigenCode: "DTPCV3", AntigenDescription: "DTP 3rd dose", Coverage: "70"},
		},
		Incidence: []extract.IncidenceRecord{
			{CountryCode: "USA", CountryName: "United States of America", Year: "2021", DiseaseCode: "DIPHTHERIA", DiseaseDescription: "Diphtheria", IncidenceRate: "0.01"},
		},
		ReportedCases: []extract.ReportedCasesRecord{
			{CountryCode: "USA", CountryName: "United States of America", Year: "2021", DiseaseCode: "DIPHTHERIA", DiseaseDescription: "Diphtheria", Cases: "3"},
		},
		Introductions: []extract.IntroductionRecord{
			{CountryCode: "USA", CountryName: "United States of America", WHORegion: "AMR", Year: "2021", VaccineDescription: "Rotavirus vaccine", Intro: "yes"},
		},
		Schedules: []extract.ScheduleRecord{
			{CountryCode: "USA", CountryName: "United States of America", WHORegion: "AMR", Year: "2021", VaccineCode: "DTPCV1", AgeAdministered: "W6"},
		},
	}
}

func TestVaxmart_Pipeline_New(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()

		pipe, err := New(Config{})
		require.Error(t, err)
		require.Nil(t, pipe)
		require.Contains(t, err.Error(), "logger is required")
	})

	t.Run("missing store", func(t *testing.T) {
		t.Parallel()

		pipe, err := New(Config{Logger: vaxtesting.NewLogger()})
		require.Error(t, err)
		require.Nil(t, pipe)
		require.Contains(t, err.Error(), "store is required")
	})

	t.Run("invalid policy", func(t *testing.T) {
		t.Parallel()

		store, err := warehouse.NewStore(vaxtesting.NewLogger())
		require.NoError(t, err)
		_, err = New(Config{Logger: vaxtesting.NewLogger(), Store: store, Policy: "merge"})
		require.Error(t, err)
	})
}

func TestVaxmart_Pipeline_Run(t *testing.T) {
	t.Parallel()

	t.Run("end to end run builds the full snapshot", func(t *testing.T) {
		t.Parallel()

		store, err := warehouse.NewStore(vaxtesting.NewLogger())
		require.NoError(t, err)
		pipe := testPipeline(t, Config{Store: store})

		result, err := pipe.Run(t.Context(), testSnapshot())
		require.NoError(t, err)
		require.Equal(t, 7, result.Report.Accepted())
		require.Equal(t, 0, result.Report.Rejected())
		require.Same(t, result.Snapshot, store.Current())

		// Dimensions resolved from all categories.
		country, ok := result.Snapshot.Country("USA")
		require.True(t, ok)
		require.Equal(t, "AMR", country.WHORegion)

		// Derived views over the fresh snapshot.
		rows := pipe.Engine().CoverageAnalysis(result.Snapshot, warehouse.Filter{})
		require.Len(t, rows, 3)
		require.Equal(t, "adequate", rows[0].Tier) // DTPCV1 at 90
		require.Nil(t, rows[0].Dropout)
		require.InDelta(t, 8, *rows[1].Dropout, 1e-9)
		require.InDelta(t, 12, *rows[2].Dropout, 1e-9)
	})

	t.Run("invalid records are reported and the batch continues", func(t *testing.T) {
		t.Parallel()

		snap := testSnapshot()
		snap.Coverage = append(snap.Coverage, extract.CoverageRecord{
			CountryCode: "USA", Year: "2021", AntigenCode: "MCV1", Coverage: "250",
		})

		pipe := testPipeline(t, Config{})
		result, err := pipe.Run(t.Context(), snap)
		require.NoError(t, err)
		require.Equal(t, 7, result.Report.Accepted())
		require.Equal(t, 1, result.Report.Rejected())

		coverage := result.Report.Categories[extract.KindCoverage]
		require.Equal(t, 1, coverage.Rejected[normalize.ReasonOutOfDomain])

		_, ok := result.Snapshot.Antigen("MCV1")
		require.False(t, ok)
	})

	t.Run("duplicate records follow the configured policy", func(t *testing.T) {
		t.Parallel()

		snap := testSnapshot()
		snap.Coverage = append(snap.Coverage, extract.CoverageRecord{
			CountryCode: "USA", CountryName: "United States of America", Year: "2021", AntigenCode: "DTPCV1", Coverage: "95",
		})

		pipe := testPipeline(t, Config{Policy: warehouse.PolicyOverwrite})
		result, err := pipe.Run(t.Context(), snap)
		require.NoError(t, err)
		require.Equal(t, 1, result.Report.Categories[extract.KindCoverage].Overwrites)

		fact, ok := result.Snapshot.CoverageFact(warehouse.CoverageKey{CountryCode: "USA", Year: 2021, AntigenCode: "DTPCV1"})
		require.True(t, ok)
		require.Equal(t, 95.0, fact.Coverage)
	})

	t.Run("reruns produce identical snapshots with new versions", func(t *testing.T) {
		t.Parallel()

		store, err := warehouse.NewStore(vaxtesting.NewLogger())
		require.NoError(t, err)
		pipe := testPipeline(t, Config{Store: store})

		first, err := pipe.Run(t.Context(), testSnapshot())
		require.NoError(t, err)
		second, err := pipe.Run(t.Context(), testSnapshot())
		require.NoError(t, err)

		require.Equal(t, first.Snapshot.Dims, second.Snapshot.Dims)
		require.Equal(t, first.Snapshot.Facts, second.Snapshot.Facts)
		require.Greater(t, second.Snapshot.Version, first.Snapshot.Version)
	})

	t.Run("report carries the clock's start and duration", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		pipe := testPipeline(t, Config{Clock: clock})

		result, err := pipe.Run(t.Context(), testSnapshot())
		require.NoError(t, err)
		require.Equal(t, clock.Now(), result.Report.StartedAt)
	})
}
