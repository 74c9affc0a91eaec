// Package rules evaluates measurements against a versioned table of
// accessibility standards and emits severity-ranked violations.
package rules

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civicworks/ada-audit/internal/model"
)

// Comparison is the rule evaluation operator.
type Comparison string

const (
	CompareMax   Comparison = "max"   // fail when detected > Max
	CompareMin   Comparison = "min"   // fail when detected < Min
	CompareRange Comparison = "range" // fail when detected outside [Min, Max]
)

// SeverityTier maps a deviation-ratio floor to a severity. A deviation at
// exactly the floor belongs to the tier (boundary ties round up).
type SeverityTier struct {
	MinDeviation float64        `yaml:"min_deviation" json:"min_deviation"`
	Severity     model.Severity `yaml:"severity" json:"severity"`
}

// Rule is one standard clause: a threshold on one measurement kind for a
// set of asset classes.
type Rule struct {
	ID             string                 `yaml:"id" json:"id"`
	Kind           model.MeasurementKind  `yaml:"kind" json:"kind"`
	Classes        []model.AssetClass     `yaml:"classes" json:"classes"`
	Comparison     Comparison             `yaml:"comparison" json:"comparison"`
	Min            float64                `yaml:"min,omitempty" json:"min,omitempty"`
	Max            float64                `yaml:"max,omitempty" json:"max,omitempty"`
	Unit           string                 `yaml:"unit" json:"unit"`
	Description    string                 `yaml:"description" json:"description"`
	Reference      string                 `yaml:"reference" json:"reference"`
	Recommendation string                 `yaml:"recommendation" json:"recommendation"`
	Tiers          []SeverityTier         `yaml:"tiers" json:"tiers"`
}

// AppliesTo reports whether the rule covers the given asset class.
func (r Rule) AppliesTo(class model.AssetClass) bool {
	for _, c := range r.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// SeverityFor maps a deviation ratio to the rule's severity tier.
func (r Rule) SeverityFor(deviation float64) model.Severity {
	sev := r.Tiers[0].Severity
	for _, t := range r.Tiers {
		if deviation >= t.MinDeviation {
			sev = t.Severity
		}
	}
	return sev
}

// RuleSet is an immutable, versioned rule table loaded once per run.
type RuleSet struct {
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// ForKindAndClass returns the rules matching a measurement kind and asset
// class, in table order.
func (rs *RuleSet) ForKindAndClass(kind model.MeasurementKind, class model.AssetClass) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Kind == kind && r.AppliesTo(class) {
			out = append(out, r)
		}
	}
	return out
}

// Load reads a rule set from a YAML file and validates it. A missing or
// invalid rule table is fatal to the run: a partial table would silently
// under-report violations.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "rules: read rule table")
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, eris.Wrap(err, "rules: unmarshal rule table")
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks structural soundness: known kinds and operators, and
// severity tiers that are monotonic in deviation ratio.
func (rs *RuleSet) Validate() error {
	if rs.Version == "" {
		return eris.New("rules: rule set version is required")
	}
	if len(rs.Rules) == 0 {
		return eris.New("rules: rule set has no rules")
	}

	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.ID == "" {
			return eris.New("rules: rule with empty id")
		}
		if seen[r.ID] {
			return eris.Errorf("rules: duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true

		switch r.Comparison {
		case CompareMax, CompareMin, CompareRange:
		default:
			return eris.Errorf("rules: rule %s: unknown comparison %q", r.ID, r.Comparison)
		}
		if r.Comparison == CompareRange && r.Min >= r.Max {
			return eris.Errorf("rules: rule %s: range requires min < max", r.ID)
		}
		// Thresholds divide the deviation ratio, so zero is as fatal as
		// negative.
		if (r.Comparison == CompareMax || r.Comparison == CompareRange) && r.Max <= 0 {
			return eris.Errorf("rules: rule %s: max threshold must be positive", r.ID)
		}
		if (r.Comparison == CompareMin || r.Comparison == CompareRange) && r.Min <= 0 {
			return eris.Errorf("rules: rule %s: min threshold must be positive", r.ID)
		}

		validKind := false
		for _, k := range model.Kinds() {
			if r.Kind == k {
				validKind = true
				break
			}
		}
		if !validKind {
			return eris.Errorf("rules: rule %s: unknown measurement kind %q", r.ID, r.Kind)
		}

		if len(r.Classes) == 0 {
			return eris.Errorf("rules: rule %s: no asset classes", r.ID)
		}
		for _, c := range r.Classes {
			if !c.Valid() {
				return eris.Errorf("rules: rule %s: unknown asset class %q", r.ID, c)
			}
		}

		if len(r.Tiers) == 0 {
			return eris.Errorf("rules: rule %s: no severity tiers", r.ID)
		}
		if r.Tiers[0].MinDeviation != 0 {
			return eris.Errorf("rules: rule %s: first tier must start at deviation 0", r.ID)
		}
		if !sort.SliceIsSorted(r.Tiers, func(i, j int) bool {
			return r.Tiers[i].MinDeviation < r.Tiers[j].MinDeviation
		}) {
			return eris.Errorf("rules: rule %s: tiers not sorted by deviation", r.ID)
		}
		for i := 1; i < len(r.Tiers); i++ {
			if r.Tiers[i].Severity.Rank() < r.Tiers[i-1].Severity.Rank() {
				return eris.Errorf("rules: rule %s: severity not monotonic in deviation", r.ID)
			}
		}
		for _, t := range r.Tiers {
			if t.Severity.Rank() == 0 {
				return eris.Errorf("rules: rule %s: unknown severity %q", r.ID, t.Severity)
			}
		}
	}
	return nil
}

// defaultTiers is the standard deviation-to-severity ladder used by the
// built-in ADA 2010 table.
func defaultTiers() []SeverityTier {
	return []SeverityTier{
		{MinDeviation: 0, Severity: model.SeverityLow},
		{MinDeviation: 0.10, Severity: model.SeverityMedium},
		{MinDeviation: 0.30, Severity: model.SeverityHigh},
		{MinDeviation: 1.00, Severity: model.SeverityCritical},
	}
}

// Default returns the built-in ADA 2010 rule table.
func Default() *RuleSet {
	return &RuleSet{
		Version: "ada-2010",
		Rules: []Rule{
			{
				ID:             "ADAAG-406.2-running-slope",
				Kind:           model.KindRunningSlope,
				Classes:        []model.AssetClass{model.ClassCurbRamp},
				Comparison:     CompareMax,
				Max:            8.33, // 1:12
				Unit:           "percent",
				Description:    "Curb ramp running slope must not exceed 1:12 (8.33%)",
				Reference:      "ADAAG 406.2",
				Recommendation: "Reconstruct ramp to meet 1:12 maximum slope",
				Tiers:          defaultTiers(),
			},
			{
				ID:             "ADAAG-406.3-cross-slope",
				Kind:           model.KindCrossSlope,
				Classes:        []model.AssetClass{model.ClassCurbRamp, model.ClassSidewalkSegment},
				Comparison:     CompareMax,
				Max:            2.0, // 1:48
				Unit:           "percent",
				Description:    "Cross slope must not exceed 1:48 (2%)",
				Reference:      "ADAAG 406.3",
				Recommendation: "Regrade surface to reduce cross slope to 2% maximum",
				Tiers:          defaultTiers(),
			},
			{
				ID:             "ADAAG-403.5.1-clear-width",
				Kind:           model.KindWidth,
				Classes:        []model.AssetClass{model.ClassSidewalkSegment, model.ClassCrosswalk},
				Comparison:     CompareMin,
				Min:            36,
				Unit:           "inches",
				Description:    "Minimum continuous clear width of 36 inches",
				Reference:      "ADAAG 403.5.1",
				Recommendation: "Widen path to minimum 36 inches",
				Tiers:          defaultTiers(),
			},
			{
				ID:             "ADAAG-302.3-surface-gap",
				Kind:           model.KindSurfaceGap,
				Classes:        []model.AssetClass{model.ClassSidewalkSegment},
				Comparison:     CompareMax,
				Max:            0.5,
				Unit:           "inches",
				Description:    "Surface openings not to exceed 0.5 inch",
				Reference:      "ADAAG 302.3",
				Recommendation: "Repair or replace damaged surface",
				Tiers:          defaultTiers(),
			},
			{
				ID:             "ADAAG-302.1-surface-quality",
				Kind:           model.KindSurfaceQuality,
				Classes:        []model.AssetClass{model.ClassCurbRamp, model.ClassSidewalkSegment, model.ClassCrosswalk, model.ClassDetectableWarning},
				Comparison:     CompareMin,
				Min:            0.6,
				Unit:           "index",
				Description:    "Surface must be firm, stable and free of hazards",
				Reference:      "ADAAG 302.1",
				Recommendation: "Restore surface to a firm, even condition",
				Tiers:          defaultTiers(),
			},
		},
	}
}
