package model

import "time"

// AssetStatus is the per-asset verdict exposed in the report rollup.
type AssetStatus string

const (
	AssetCompliant    AssetStatus = "compliant"
	AssetNonCompliant AssetStatus = "non_compliant"
	AssetNeedsReview  AssetStatus = "needs_review"
)

// AssetRollup aggregates all findings for one asset for display purposes.
// Individual violations are retained separately for costing and scheduling.
type AssetRollup struct {
	AssetID        string      `json:"asset_id"`
	Class          AssetClass  `json:"class"`
	Status         AssetStatus `json:"status"`
	ViolationCount int         `json:"violation_count"`
	WorstSeverity  Severity    `json:"worst_severity,omitempty"`
	TotalCost      float64     `json:"total_cost"`
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
}

// PhaseBudget is a caller-supplied remediation tranche: a label and a
// budget cap in the cost model's currency.
type PhaseBudget struct {
	Label string  `json:"label"`
	Cap   float64 `json:"cap"`
}

// Phase is one scheduled tranche of the remediation plan.
type Phase struct {
	Label         string      `json:"label"`
	Cap           float64     `json:"cap"`
	Assigned      []Violation `json:"assigned"`
	AssignedCost  float64     `json:"assigned_cost"` // sum of final costs, <= Cap
	LaborHours    float64     `json:"labor_hours"`
	EstimatedTime string      `json:"estimated_time"` // e.g. "6 weeks"
}

// RemediationPlan is the ordered phase schedule plus the unfunded backlog.
type RemediationPlan struct {
	Phases   []Phase     `json:"phases"`
	Backlog  []Violation `json:"backlog"` // fit no phase; visible, never dropped
	Unpriced []Violation `json:"unpriced,omitempty"`
}

// AssetError records a per-asset failure that was isolated rather than
// aborting the batch.
type AssetError struct {
	AssetID string `json:"asset_id"`
	Stage   string `json:"stage"` // "calibrate", "measure", "evaluate", "cost"
	Error   string `json:"error"`
}

// ComplianceReport is the immutable aggregate output of one assessment run.
type ComplianceReport struct {
	GeneratedAt      time.Time `json:"generated_at"`
	BatchLabel       string    `json:"batch_label,omitempty"`
	RuleSetVersion   string    `json:"rule_set_version"`
	CostModelVersion string    `json:"cost_model_version"`

	// ComplianceScore = compliant / (compliant + non-compliant), in percent.
	// Assets with only needs-review findings are excluded from both sides.
	ComplianceScore float64 `json:"compliance_score"`
	// WeightedScore discounts by violation severity, 0-100.
	WeightedScore float64 `json:"weighted_score"`

	AssetsAssessed    int `json:"assets_assessed"`
	CompliantCount    int `json:"compliant_count"`
	NonCompliantCount int `json:"non_compliant_count"`
	NeedsReviewCount  int `json:"needs_review_count"`

	Violations  []Violation   `json:"violations"`
	NeedsReview []ReviewItem  `json:"needs_review"`
	Rollups     []AssetRollup `json:"rollups"`
	AssetErrors []AssetError  `json:"asset_errors,omitempty"`

	TotalCost       float64            `json:"total_cost"` // with contingency
	CostBySeverity  map[string]float64 `json:"cost_by_severity"`
	CostByRule      map[string]float64 `json:"cost_by_rule"`
	TotalLaborHours float64            `json:"total_labor_hours"`
	Timeline        string             `json:"timeline"`

	Plan RemediationPlan `json:"plan"`
}

// RunStatus tracks an assessment run through the pipeline stages.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusMeasuring  RunStatus = "measuring"
	RunStatusEvaluating RunStatus = "evaluating"
	RunStatusCosting    RunStatus = "costing"
	RunStatusScheduling RunStatus = "scheduling"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one persisted assessment execution.
type Run struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Status    RunStatus         `json:"status"`
	Report    *ComplianceReport `json:"report,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
