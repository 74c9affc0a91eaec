// Package cost prices remediation work for violations using a versioned
// cost model with severity-proportional scaling and a contingency load.
package cost

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ScaleKind selects how a line item grows with deviation ratio.
type ScaleKind string

const (
	// ScaleLinear grows the base cost as 1 + coefficient*deviation.
	ScaleLinear ScaleKind = "linear"
	// ScaleLog grows the base cost as 1 + coefficient*ln(1+deviation).
	// Used for items where marginal damage flattens out.
	ScaleLog ScaleKind = "log"
)

// Entry is one priced line item, keyed by rule id in the model.
type Entry struct {
	Base        float64   `yaml:"base" mapstructure:"base"`
	Unit        string    `yaml:"unit" mapstructure:"unit"`
	LaborHours  float64   `yaml:"labor_hours" mapstructure:"labor_hours"`
	Scale       ScaleKind `yaml:"scale" mapstructure:"scale"`
	Coefficient float64   `yaml:"coefficient" mapstructure:"coefficient"`
}

// Model is an immutable, versioned remediation cost table.
type Model struct {
	Version     string           `yaml:"version" mapstructure:"version"`
	Currency    string           `yaml:"currency" mapstructure:"currency"`
	Contingency float64          `yaml:"contingency" mapstructure:"contingency"`
	CapMultiple float64          `yaml:"cap_multiple" mapstructure:"cap_multiple"`
	Entries     map[string]Entry `yaml:"entries" mapstructure:"entries"`
}

// Load reads a cost model from a YAML file and validates it.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "cost: read cost model")
	}

	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "cost: unmarshal cost model")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural soundness of the model.
func (m *Model) Validate() error {
	if m.Version == "" {
		return eris.New("cost: cost model version is required")
	}
	if m.Currency == "" {
		return eris.New("cost: cost model currency is required")
	}
	if m.Contingency < 0 || m.Contingency >= 1 {
		return eris.Errorf("cost: contingency %v outside [0, 1)", m.Contingency)
	}
	if m.CapMultiple < 1 {
		return eris.Errorf("cost: cap multiple %v must be >= 1", m.CapMultiple)
	}
	if len(m.Entries) == 0 {
		return eris.New("cost: cost model has no entries")
	}
	for id, e := range m.Entries {
		if e.Base <= 0 {
			return eris.Errorf("cost: entry %s: base must be positive", id)
		}
		if e.LaborHours < 0 {
			return eris.Errorf("cost: entry %s: negative labor hours", id)
		}
		switch e.Scale {
		case ScaleLinear, ScaleLog:
		default:
			return eris.Errorf("cost: entry %s: unknown scale kind %q", id, e.Scale)
		}
		if e.Coefficient < 0 {
			return eris.Errorf("cost: entry %s: negative scale coefficient", id)
		}
	}
	return nil
}

// Default returns the built-in 2026 unit cost table. Base figures track
// typical municipal bid tabs for small concrete work.
func Default() *Model {
	return &Model{
		Version:     "unit-costs-2026",
		Currency:    "USD",
		Contingency: 0.12,
		CapMultiple: 3.0,
		Entries: map[string]Entry{
			"ADAAG-406.2-running-slope": {
				Base: 2500, Unit: "per ramp", LaborHours: 24,
				Scale: ScaleLinear, Coefficient: 1.0,
			},
			"ADAAG-406.3-cross-slope": {
				Base: 3200, Unit: "per panel", LaborHours: 32,
				Scale: ScaleLinear, Coefficient: 1.0,
			},
			"ADAAG-403.5.1-clear-width": {
				Base: 1800, Unit: "per segment", LaborHours: 18,
				Scale: ScaleLinear, Coefficient: 0.8,
			},
			"ADAAG-302.3-surface-gap": {
				Base: 1200, Unit: "per hazard", LaborHours: 10,
				Scale: ScaleLog, Coefficient: 1.0,
			},
			"ADAAG-302.1-surface-quality": {
				Base: 2200, Unit: "per panel", LaborHours: 20,
				Scale: ScaleLinear, Coefficient: 0.5,
			},
		},
	}
}
