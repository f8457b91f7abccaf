// Package views computes the derived analytical views over a star-schema
// snapshot: coverage tiers, disease burden severity, dose dropout,
// coverage/incidence correlation and priority scoring. Every view is a pure
// function of the snapshot and the configured thresholds.
package views

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is one band of a threshold partition. A value belongs to the highest
// tier whose Min it reaches: bands are closed on the lower bound and open on
// the upper.
type Tier struct {
	Label string  `yaml:"label"`
	Min   float64 `yaml:"min"`
}

// PriorityRule combines average coverage and average incidence per country.
// Both conditions holding yields High Priority, exactly one Medium, neither
// Low.
type PriorityRule struct {
	CoverageBelow  float64 `yaml:"coverage_below"`
	IncidenceAbove float64 `yaml:"incidence_above"`
}

// EffectivenessPair links an antigen code pattern to the disease its
// coverage is expected to suppress. Matching is substring on the antigen
// code (DTP matches DTPCV1..3).
type EffectivenessPair struct {
	AntigenPattern string `yaml:"antigen_pattern"`
	DiseaseCode    string `yaml:"disease_code"`
}

// Thresholds externalizes every classification boundary used by the view
// engine. Public-health targets vary by context, so none of these are baked
// into query logic.
type Thresholds struct {
	CoverageTiers         []Tier              `yaml:"coverage_tiers"`
	SeverityBands         []Tier              `yaml:"severity_bands"`
	Priority              PriorityRule        `yaml:"priority"`
	MinCorrelationSamples int                 `yaml:"min_correlation_samples"`
	EffectivenessPairs    []EffectivenessPair `yaml:"effectiveness_pairs"`
}

// DefaultThresholds returns the WHO-style defaults: coverage tiers at
// 50/80/95, severity bands at 10/100 incidence per 100k, the 80/50 priority
// rule and a 50-observation correlation floor.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CoverageTiers: []Tier{
			{Label: "critical", Min: 0},
			{Label: "low", Min: 50},
			{Label: "adequate", Min: 80},
			{Label: "target-met", Min: 95},
		},
		SeverityBands: []Tier{
			{Label: "low", Min: 0},
			{Label: "medium", Min: 10},
			{Label: "high", Min: 100},
		},
		Priority: PriorityRule{
			CoverageBelow:  80,
			IncidenceAbove: 50,
		},
		MinCorrelationSamples: 50,
		EffectivenessPairs: []EffectivenessPair{
			{AntigenPattern: "DTP", DiseaseCode: "DIPHTHERIA"},
			{AntigenPattern: "MCV", DiseaseCode: "MEASLES"},
			{AntigenPattern: "POL", DiseaseCode: "POLIOMYELITIS"},
			{AntigenPattern: "BCG", DiseaseCode: "TUBERCULOSIS"},
			{AntigenPattern: "HEPB", DiseaseCode: "HEPATITISB"},
		},
	}
}

// LoadThresholds reads a YAML thresholds file. Missing sections fall back
// to the defaults so a file may override only what it cares about.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var overrides Thresholds
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return t, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	if len(overrides.CoverageTiers) > 0 {
		t.CoverageTiers = overrides.CoverageTiers
	}
	if len(overrides.SeverityBands) > 0 {
		t.SeverityBands = overrides.SeverityBands
	}
	if overrides.Priority != (PriorityRule{}) {
		t.Priority = overrides.Priority
	}
	if overrides.MinCorrelationSamples > 0 {
		t.MinCorrelationSamples = overrides.MinCorrelationSamples
	}
	if len(overrides.EffectivenessPairs) > 0 {
		t.EffectivenessPairs = overrides.EffectivenessPairs
	}

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid thresholds file: %w", err)
	}
	return t, nil
}

func validateTiers(name string, tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%s must have at least one band", name)
	}
	for i, tier := range tiers {
		if strings.TrimSpace(tier.Label) == "" {
			return fmt.Errorf("%s band %d has an empty label", name, i)
		}
		if i > 0 && tiers[i].Min <= tiers[i-1].Min {
			return fmt.Errorf("%s bands must have strictly ascending bounds", name)
		}
	}
	return nil
}

func (t *Thresholds) Validate() error {
	if err := validateTiers("coverage_tiers", t.CoverageTiers); err != nil {
		return err
	}
	if err := validateTiers("severity_bands", t.SeverityBands); err != nil {
		return err
	}
	if t.MinCorrelationSamples < 2 {
		return errors.New("min_correlation_samples must be at least 2")
	}
	for i, p := range t.EffectivenessPairs {
		if p.AntigenPattern == "" || p.DiseaseCode == "" {
			return fmt.Errorf("effectiveness pair %d is incomplete", i)
		}
	}
	return nil
}

func classify(tiers []Tier, v float64) string {
	// Bands are validated ascending; take the highest reached lower bound.
	idx := sort.Search(len(tiers), func(i int) bool { return tiers[i].Min > v })
	if idx == 0 {
		return tiers[0].Label
	}
	return tiers[idx-1].Label
}

// TierFor labels a coverage percentage.
func (t Thresholds) TierFor(coverage float64) string {
	return classify(t.CoverageTiers, coverage)
}

// SeverityFor labels an incidence rate.
func (t Thresholds) SeverityFor(rate float64) string {
	return classify(t.SeverityBands, rate)
}

// TargetCoverage is the lower bound of the top coverage tier, used by the
// target-progress aggregation.
func (t Thresholds) TargetCoverage() float64 {
	return t.CoverageTiers[len(t.CoverageTiers)-1].Min
}
