package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvaxlabs/vaxmart/pkg/extract"
	vaxtesting "github.com/openvaxlabs/vaxmart/pkg/testing"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

func testNormalizer(t *testing.T, cfg Config) *Normalizer {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = vaxtesting.NewLogger()
	}
	n, err := New(cfg)
	require.NoError(t, err)
	return n
}

func TestVaxmart_Normalize_New(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()

		n, err := New(Config{})
		require.Error(t, err)
		require.Nil(t, n)
		require.Contains(t, err.Error(), "logger is required")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{})
		require.Equal(t, 200.0, n.cfg.MaxCoverage)
		require.Equal(t, MinYear, n.cfg.MinYear)
		require.Equal(t, warehouse.PolicyReject, n.cfg.Policy)
	})

	t.Run("rejects inverted year bounds", func(t *testing.T) {
		t.Parallel()

		_, err := New(Config{Logger: vaxtesting.NewLogger(), MinYear: 2020, MaxYear: 2010})
		require.Error(t, err)
	})

	t.Run("rejects unknown policy", func(t *testing.T) {
		t.Parallel()

		_, err := New(Config{Logger: vaxtesting.NewLogger(), Policy: "merge"})
		require.Error(t, err)
	})
}

func TestVaxmart_Normalize_Coverage(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid records", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", CountryName: " United States ", Year: "2021", AntigenCode: "DTPCV1", Coverage: "90.5", TargetNumber: "3700000", Doses: "3349000"},
		})
		require.Len(t, out, 1)
		require.Equal(t, 1, report.Accepted)
		require.Equal(t, "United States", out[0].CountryName)
		require.Equal(t, 2021, out[0].Year)
		require.Equal(t, 90.5, out[0].Coverage)
		require.Equal(t, int64(3700000), out[0].TargetNumber)
	})

	t.Run("accepts float formatted years", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "2021.0", AntigenCode: "DTPCV1", Coverage: "90"},
		})
		require.Len(t, out, 1)
		require.Equal(t, 0, report.RejectedTotal())
		require.Equal(t, 2021, out[0].Year)
	})

	t.Run("rejects missing country code", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "  ", Year: "2021", AntigenCode: "DTPCV1", Coverage: "90"},
		})
		require.Empty(t, out)
		require.Equal(t, 1, report.Rejected[ReasonMissingField])
	})

	t.Run("rejects years outside bounds", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "1979", AntigenCode: "DTPCV1", Coverage: "90"},
			{CountryCode: "USA", Year: "2024", AntigenCode: "DTPCV1", Coverage: "90"},
			{CountryCode: "USA", Year: "twenty21", AntigenCode: "DTPCV1", Coverage: "90"},
		})
		require.Empty(t, out)
		require.Equal(t, 2, report.Rejected[ReasonYearOutOfRange])
		require.Equal(t, 1, report.Rejected[ReasonBadYear])
	})

	t.Run("rejects coverage above the ceiling and continues the batch", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV1", Coverage: "250"},
			{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV3", Coverage: "82"},
		})
		require.Len(t, out, 1)
		require.Equal(t, "DTPCV3", out[0].AntigenCode)
		require.Equal(t, 1, report.Rejected[ReasonOutOfDomain])
		require.Equal(t, 1, report.Accepted)
	})

	t.Run("coverage up to 200 is legitimate", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "2021", AntigenCode: "BCG", Coverage: "180"},
		})
		require.Len(t, out, 1)
		require.Equal(t, 0, report.RejectedTotal())
	})

	t.Run("empty measures mean zero", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, _ := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "2021", AntigenCode: "BCG", Coverage: ""},
		})
		require.Len(t, out, 1)
		require.Equal(t, 0.0, out[0].Coverage)
	})

	t.Run("duplicate grain is rejected under reject policy", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023, Policy: warehouse.PolicyReject})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV1", Coverage: "90"},
			{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV1", Coverage: "10"},
		})
		require.Len(t, out, 1)
		require.Equal(t, 90.0, out[0].Coverage)
		require.Equal(t, 1, report.Rejected[ReasonDuplicate])
		require.NotEmpty(t, report.Samples)
	})

	t.Run("duplicate grain replaces under overwrite policy", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023, Policy: warehouse.PolicyOverwrite})
		out, report := n.Coverage([]extract.CoverageRecord{
			{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV1", Coverage: "90"},
			{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV1", Coverage: "93"},
		})
		require.Len(t, out, 1)
		require.Equal(t, 93.0, out[0].Coverage)
		require.Equal(t, 1, report.Overwrites)
		require.Equal(t, 1, report.Accepted)
	})
}

func TestVaxmart_Normalize_Incidence(t *testing.T) {
	t.Parallel()

	t.Run("accepts and types rates", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Incidence([]extract.IncidenceRecord{
			{CountryCode: "NGA", CountryName: "Nigeria", Year: "2019", DiseaseCode: "MEASLES", IncidenceRate: "131.5"},
		})
		require.Len(t, out, 1)
		require.Equal(t, 1, report.Accepted)
		require.Equal(t, 131.5, out[0].IncidenceRate)
	})

	t.Run("rejects negative rates", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Incidence([]extract.IncidenceRecord{
			{CountryCode: "NGA", Year: "2019", DiseaseCode: "MEASLES", IncidenceRate: "-4"},
		})
		require.Empty(t, out)
		require.Equal(t, 1, report.Rejected[ReasonOutOfDomain])
	})

	t.Run("rejects non numeric rates", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Incidence([]extract.IncidenceRecord{
			{CountryCode: "NGA", Year: "2019", DiseaseCode: "MEASLES", IncidenceRate: "n/a"},
		})
		require.Empty(t, out)
		require.Equal(t, 1, report.Rejected[ReasonBadNumber])
	})
}

func TestVaxmart_Normalize_Introductions(t *testing.T) {
	t.Parallel()

	t.Run("coerces intro status case insensitively", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Introductions([]extract.IntroductionRecord{
			{CountryCode: "USA", Year: "2021", VaccineDescription: "Rotavirus vaccine", Intro: "yes"},
			{CountryCode: "USA", Year: "2021", VaccineDescription: "HepB vaccine", Intro: "NO"},
			{CountryCode: "USA", Year: "2021", VaccineDescription: "IPV vaccine", Intro: ""},
		})
		require.Len(t, out, 3)
		require.Equal(t, 0, report.RejectedTotal())
		require.Equal(t, warehouse.IntroYes, out[0].Status)
		require.Equal(t, warehouse.IntroNo, out[1].Status)
		require.Equal(t, warehouse.IntroUnknown, out[2].Status)
	})

	t.Run("rejects out of domain status", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Introductions([]extract.IntroductionRecord{
			{CountryCode: "USA", Year: "2021", VaccineDescription: "Rotavirus vaccine", Intro: "maybe"},
		})
		require.Empty(t, out)
		require.Equal(t, 1, report.Rejected[ReasonOutOfDomain])
	})

	t.Run("same country year with different vaccines is not a duplicate", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		out, report := n.Introductions([]extract.IntroductionRecord{
			{CountryCode: "USA", Year: "2021", VaccineDescription: "Rotavirus vaccine", Intro: "yes"},
			{CountryCode: "USA", Year: "2021", VaccineDescription: "HepB vaccine", Intro: "yes"},
		})
		require.Len(t, out, 2)
		require.Equal(t, 0, report.Rejected[ReasonDuplicate])
	})
}

func TestVaxmart_Normalize_Snapshot(t *testing.T) {
	t.Parallel()

	t.Run("assembles all categories into one batch and report", func(t *testing.T) {
		t.Parallel()

		n := testNormalizer(t, Config{MaxYear: 2023})
		batch, report := n.Snapshot(&extract.Snapshot{
			Coverage: []extract.CoverageRecord{
				{CountryCode: "USA", Year: "2021", AntigenCode: "DTPCV1", Coverage: "90"},
			},
			Incidence: []extract.IncidenceRecord{
				{CountryCode: "USA", Year: "2021", DiseaseCode: "MEASLES", IncidenceRate: "0.4"},
			},
			ReportedCases: []extract.ReportedCasesRecord{
				{CountryCode: "USA", Year: "2021", DiseaseCode: "MEASLES", Cases: "49"},
			},
			Introductions: []extract.IntroductionRecord{
				{CountryCode: "USA", Year: "2021", VaccineDescription: "Rotavirus vaccine", Intro: "yes"},
			},
			Schedules: []extract.ScheduleRecord{
				{CountryCode: "USA", Year: "2021", VaccineCode: "DTPCV1"},
			},
		})

		require.Len(t, batch.Coverage, 1)
		require.Len(t, batch.Incidence, 1)
		require.Len(t, batch.ReportedCases, 1)
		require.Len(t, batch.Introductions, 1)
		require.Len(t, batch.Schedules, 1)
		require.Equal(t, 5, report.Accepted())
		require.Equal(t, 0, report.Rejected())
		require.Len(t, report.Categories, 5)
	})
}
