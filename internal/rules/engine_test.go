package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/ada-audit/internal/model"
)

func ramp(assetID string) model.Detection {
	return model.Detection{
		AssetID:    assetID,
		Class:      model.ClassCurbRamp,
		Confidence: 0.9,
		Latitude:   40.0,
		Longitude:  -80.0,
	}
}

func slopeMeasurement(assetID string, value float64) model.Measurement {
	return model.Measurement{
		AssetID:    assetID,
		Kind:       model.KindRunningSlope,
		Value:      value,
		Unit:       "percent",
		Confidence: 0.9,
		Method:     model.MethodGeometricFit,
	}
}

func TestEvaluate_EmitsViolation(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	eval := e.Evaluate(
		[]model.Detection{ramp("ramp-1")},
		[]model.Measurement{slopeMeasurement("ramp-1", 14.74)},
	)

	require.Len(t, eval.Violations, 1)
	v := eval.Violations[0]
	assert.Equal(t, "ramp-1", v.AssetID)
	assert.Equal(t, "ADAAG-406.2-running-slope", v.RuleID)
	assert.Equal(t, "ada-2010", v.RuleSetVersion)
	assert.Equal(t, 8.33, v.Threshold)
	assert.InDelta(t, 0.77, v.DeviationRatio, 0.01)
	assert.Equal(t, model.SeverityHigh, v.Severity)
	assert.Equal(t, 40.0, v.Latitude)
	assert.True(t, eval.Evaluated["ramp-1"])
}

func TestEvaluate_CompliantValueNoViolation(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	eval := e.Evaluate(
		[]model.Detection{ramp("ramp-1")},
		[]model.Measurement{slopeMeasurement("ramp-1", 7.5)},
	)

	assert.Empty(t, eval.Violations)
	assert.True(t, eval.Evaluated["ramp-1"], "compliant assets still count as evaluated")
}

func TestEvaluate_MissingMeasurementFlagsReview(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	// A curb ramp with only a running-slope measurement: cross slope and
	// surface quality rules have nothing to evaluate.
	eval := e.Evaluate(
		[]model.Detection{ramp("ramp-1")},
		[]model.Measurement{slopeMeasurement("ramp-1", 7.5)},
	)

	reasons := make(map[string]model.ReviewReason)
	for _, item := range eval.NeedsReview {
		reasons[item.RuleID] = item.Reason
	}
	assert.Equal(t, model.ReviewNoMeasurement, reasons["ADAAG-406.3-cross-slope"])
	assert.Equal(t, model.ReviewNoMeasurement, reasons["ADAAG-302.1-surface-quality"])
}

func TestEvaluate_IndeterminateRoutedToReview(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	m := slopeMeasurement("ramp-1", 14.74)
	m.Indeterminate = true

	eval := e.Evaluate([]model.Detection{ramp("ramp-1")}, []model.Measurement{m})

	assert.Empty(t, eval.Violations)
	assert.False(t, eval.Evaluated["ramp-1"])
	found := false
	for _, item := range eval.NeedsReview {
		if item.RuleID == "ADAAG-406.2-running-slope" {
			found = true
			assert.Equal(t, model.ReviewIndeterminate, item.Reason)
		}
	}
	assert.True(t, found)
}

func TestEvaluate_UncalibratedRoutedToReview(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	m := slopeMeasurement("ramp-1", 14.74)
	m.Uncalibrated = true

	eval := e.Evaluate([]model.Detection{ramp("ramp-1")}, []model.Measurement{m})

	assert.Empty(t, eval.Violations)
	for _, item := range eval.NeedsReview {
		if item.RuleID == "ADAAG-406.2-running-slope" {
			assert.Equal(t, model.ReviewUncalibrated, item.Reason)
		}
	}
}

func TestEvaluate_LowConfidenceRoutedToReview(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	m := slopeMeasurement("ramp-1", 14.74)
	m.Confidence = 0.3

	eval := e.Evaluate([]model.Detection{ramp("ramp-1")}, []model.Measurement{m})

	assert.Empty(t, eval.Violations)
	for _, item := range eval.NeedsReview {
		if item.RuleID == "ADAAG-406.2-running-slope" {
			assert.Equal(t, model.ReviewLowConfidence, item.Reason)
		}
	}
}

func TestEvaluate_DeduplicatesByAssetRuleVersion(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	// Same asset detected twice in one batch; measurements replace, so a
	// single violation comes out.
	eval := e.Evaluate(
		[]model.Detection{ramp("ramp-1"), ramp("ramp-1")},
		[]model.Measurement{slopeMeasurement("ramp-1", 14.74)},
	)

	require.Len(t, eval.Violations, 1)
}

func TestEvaluate_DeterministicOrder(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	dets := []model.Detection{ramp("ramp-b"), ramp("ramp-a")}
	ms := []model.Measurement{
		slopeMeasurement("ramp-a", 14.74),
		slopeMeasurement("ramp-b", 10.0),
	}

	first := e.Evaluate(dets, ms)
	second := e.Evaluate(dets, ms)

	require.Equal(t, len(first.Violations), len(second.Violations))
	for i := range first.Violations {
		assert.Equal(t, first.Violations[i].Key(), second.Violations[i].Key())
	}
	// Detection order, not asset id order.
	assert.Equal(t, "ramp-b", first.Violations[0].AssetID)
	assert.Equal(t, "ramp-a", first.Violations[1].AssetID)
}

func TestEvaluate_RuleClassMismatchSkipped(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	det := model.Detection{AssetID: "walk-1", Class: model.ClassSidewalkSegment, Confidence: 0.9}
	m := model.Measurement{
		AssetID: "walk-1", Kind: model.KindRunningSlope, Value: 14.74,
		Unit: "percent", Confidence: 0.9, Method: model.MethodGeometricFit,
	}

	// Running slope applies to curb ramps only; a sidewalk segment with a
	// steep running slope produces nothing from that rule.
	eval := e.Evaluate([]model.Detection{det}, []model.Measurement{m})
	for _, v := range eval.Violations {
		assert.NotEqual(t, "ADAAG-406.2-running-slope", v.RuleID)
	}
}

func TestEvaluate_DuplicateDetectionsSingleReviewItem(t *testing.T) {
	e := NewEngine(Default(), 0.5)

	// Same ramp in two images, with no measurements at all: each
	// applicable rule flags review once, not once per image.
	eval := e.Evaluate(
		[]model.Detection{ramp("ramp-1"), ramp("ramp-1")},
		nil,
	)

	seen := make(map[string]int)
	for _, item := range eval.NeedsReview {
		seen[item.AssetID+"|"+item.RuleID]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}
	assert.NotEmpty(t, eval.NeedsReview)
}
