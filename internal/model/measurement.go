package model

// MeasurementKind enumerates the physical quantities the extractor derives
// from detection geometry. Closed set; rules dispatch on it.
type MeasurementKind string

const (
	KindRunningSlope   MeasurementKind = "running_slope"
	KindCrossSlope     MeasurementKind = "cross_slope"
	KindWidth          MeasurementKind = "width"
	KindSurfaceGap     MeasurementKind = "surface_gap"
	KindSurfaceQuality MeasurementKind = "surface_quality"
)

// Kinds lists all measurement kinds in a stable order.
func Kinds() []MeasurementKind {
	return []MeasurementKind{
		KindRunningSlope,
		KindCrossSlope,
		KindWidth,
		KindSurfaceGap,
		KindSurfaceQuality,
	}
}

// DerivationMethod tags how a measurement value was produced.
type DerivationMethod string

const (
	MethodGeometricFit         DerivationMethod = "geometric_fit"
	MethodStatisticalAggregate DerivationMethod = "statistical_aggregate"
)

// Measurement is a physical quantity derived from one detection. At most
// one measurement exists per (asset, kind); recomputation replaces.
type Measurement struct {
	AssetID string          `json:"asset_id"`
	Kind    MeasurementKind `json:"kind"`
	Value   float64         `json:"value"`
	Unit    string          `json:"unit"` // "percent", "inches", "index"

	// Confidence is the product of detection confidence and calibration
	// certainty. It gates whether violations derived from this measurement
	// are auto-reported or flagged for review.
	Confidence float64          `json:"confidence"`
	Method     DerivationMethod `json:"method"`

	// Uncalibrated marks a value derived from a fallback scale (or none).
	// Such measurements are never reported as physical fact without this flag.
	Uncalibrated bool `json:"uncalibrated,omitempty"`

	// Indeterminate marks degenerate geometry (near-vertical fit, empty
	// boundary). The value is meaningless and the measurement is excluded
	// from rule evaluation.
	Indeterminate bool `json:"indeterminate,omitempty"`
}
