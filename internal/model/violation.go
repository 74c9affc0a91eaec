package model

// Severity is the ordered classification of how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric order of a severity (low=1 .. critical=4).
// Unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// CostEstimate holds the priced remediation for a single violation.
type CostEstimate struct {
	Base        float64 `json:"base"`
	ScaleFactor float64 `json:"scale_factor"`
	Contingency float64 `json:"contingency"` // fraction, e.g. 0.12
	Final       float64 `json:"final"`       // base * scale * (1 + contingency)
	LaborHours  float64 `json:"labor_hours"`
	Currency    string  `json:"currency"`
}

// Violation records one rule failure for one asset. Created exactly once
// per (asset, rule, rule-set version).
type Violation struct {
	AssetID        string   `json:"asset_id"`
	RuleID         string   `json:"rule_id"`
	RuleSetVersion string   `json:"rule_set_version"`
	Severity       Severity `json:"severity"`

	Detected       float64 `json:"detected"`
	Threshold      float64 `json:"threshold"`
	DeviationRatio float64 `json:"deviation_ratio"` // |detected - threshold| / threshold, >= 0
	Unit           string  `json:"unit"`

	Description    string `json:"description,omitempty"`
	Reference      string `json:"reference,omitempty"` // e.g. "ADAAG 406.2"
	Recommendation string `json:"recommendation,omitempty"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Cost is nil until the estimator runs. A violation whose rule is
	// missing from the cost model stays unpriced with PricingError set.
	Cost         *CostEstimate `json:"cost,omitempty"`
	PricingError string        `json:"pricing_error,omitempty"`

	// Priority is 0 until the prioritizer runs; 1 is most urgent.
	Priority int `json:"priority,omitempty"`

	// Phase is empty until scheduled; PhaseBacklog for unfunded violations.
	Phase string `json:"phase,omitempty"`
}

// PhaseBacklog is the phase label for violations no budget could absorb.
const PhaseBacklog = "backlog"

// Key returns the deduplication key for a violation.
func (v Violation) Key() string {
	return v.AssetID + "|" + v.RuleID + "|" + v.RuleSetVersion
}

// ReviewReason explains why an asset/kind pair needs human review instead
// of an automated verdict.
type ReviewReason string

const (
	ReviewNoMeasurement ReviewReason = "no_measurement"
	ReviewIndeterminate ReviewReason = "indeterminate_geometry"
	ReviewLowConfidence ReviewReason = "below_confidence_threshold"
	ReviewUncalibrated  ReviewReason = "uncalibrated_scale"
)

// ReviewItem flags an (asset, rule) pair the engine could not evaluate.
type ReviewItem struct {
	AssetID string          `json:"asset_id"`
	RuleID  string          `json:"rule_id"`
	Kind    MeasurementKind `json:"kind"`
	Reason  ReviewReason    `json:"reason"`
}
