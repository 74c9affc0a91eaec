package rules

import (
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/model"
)

// Engine evaluates measurements against a rule set. Stateless over its
// immutable inputs; safe for concurrent use.
type Engine struct {
	rules *RuleSet

	// confidenceThreshold gates auto-reporting: measurements below it are
	// routed to needs-review instead of producing violations.
	confidenceThreshold float64
}

// NewEngine creates an Engine for one rule set version.
func NewEngine(rules *RuleSet, confidenceThreshold float64) *Engine {
	return &Engine{rules: rules, confidenceThreshold: confidenceThreshold}
}

// Evaluation is the rule engine output for one batch.
type Evaluation struct {
	Violations  []model.Violation
	NeedsReview []model.ReviewItem

	// Evaluated marks assets with at least one measurement that passed
	// the confidence and calibration gates. Assets absent from it carry
	// only needs-review findings and are excluded from the score.
	Evaluated map[string]bool
}

// Evaluate runs every applicable rule over the batch measurements.
// Violations are deduplicated by (asset, rule, rule-set version) and
// emitted in detection-then-table order, so repeated runs over the same
// inputs produce the identical set.
func (e *Engine) Evaluate(detections []model.Detection, measurements []model.Measurement) Evaluation {
	byAssetKind := make(map[string]map[model.MeasurementKind]model.Measurement, len(detections))
	for _, m := range measurements {
		kinds, ok := byAssetKind[m.AssetID]
		if !ok {
			kinds = make(map[model.MeasurementKind]model.Measurement)
			byAssetKind[m.AssetID] = kinds
		}
		// At most one measurement per (asset, kind): recomputation replaces.
		kinds[m.Kind] = m
	}

	eval := Evaluation{Evaluated: make(map[string]bool)}
	emitted := make(map[string]bool)

	// Review findings dedup like violations do: an asset detected in two
	// images yields one finding per rule, not two.
	reviewSeen := make(map[string]bool)
	addReview := func(item model.ReviewItem) {
		key := item.AssetID + "|" + item.RuleID
		if reviewSeen[key] {
			return
		}
		reviewSeen[key] = true
		eval.NeedsReview = append(eval.NeedsReview, item)
	}

	for _, det := range detections {
		kinds := byAssetKind[det.AssetID]
		for _, rule := range e.rules.Rules {
			if !rule.AppliesTo(det.Class) {
				continue
			}

			m, ok := kinds[rule.Kind]
			if !ok {
				addReview(model.ReviewItem{
					AssetID: det.AssetID, RuleID: rule.ID, Kind: rule.Kind, Reason: model.ReviewNoMeasurement,
				})
				continue
			}
			if reason, ok := reviewReason(m, e.confidenceThreshold); ok {
				addReview(model.ReviewItem{
					AssetID: det.AssetID, RuleID: rule.ID, Kind: rule.Kind, Reason: reason,
				})
				continue
			}

			eval.Evaluated[det.AssetID] = true

			deviation, threshold, failed := rule.Check(m.Value)
			if !failed {
				continue
			}

			v := model.Violation{
				AssetID:        det.AssetID,
				RuleID:         rule.ID,
				RuleSetVersion: e.rules.Version,
				Severity:       rule.SeverityFor(deviation),
				Detected:       m.Value,
				Threshold:      threshold,
				DeviationRatio: deviation,
				Unit:           rule.Unit,
				Description:    rule.Description,
				Reference:      rule.Reference,
				Recommendation: rule.Recommendation,
				Latitude:       det.Latitude,
				Longitude:      det.Longitude,
			}
			if emitted[v.Key()] {
				continue
			}
			emitted[v.Key()] = true
			eval.Violations = append(eval.Violations, v)
		}
	}

	zap.L().Info("rules: batch evaluated",
		zap.String("rule_set", e.rules.Version),
		zap.Int("violations", len(eval.Violations)),
		zap.Int("needs_review", len(eval.NeedsReview)),
	)
	return eval
}

// reviewReason returns the needs-review reason for a measurement that
// cannot support an automated verdict, if any.
func reviewReason(m model.Measurement, confidenceThreshold float64) (model.ReviewReason, bool) {
	switch {
	case m.Indeterminate:
		return model.ReviewIndeterminate, true
	case m.Uncalibrated:
		return model.ReviewUncalibrated, true
	case m.Confidence < confidenceThreshold:
		return model.ReviewLowConfidence, true
	}
	return "", false
}

// Check evaluates a detected value against the rule threshold. It returns
// the deviation ratio, the governing threshold, and whether the rule
// failed. Deviation is always >= 0 and positive exactly when failed.
func (r Rule) Check(detected float64) (deviation, threshold float64, failed bool) {
	switch r.Comparison {
	case CompareMax:
		if detected > r.Max {
			return (detected - r.Max) / r.Max, r.Max, true
		}
		return 0, r.Max, false
	case CompareMin:
		if detected < r.Min {
			return (r.Min - detected) / r.Min, r.Min, true
		}
		return 0, r.Min, false
	case CompareRange:
		if detected < r.Min {
			return (r.Min - detected) / r.Min, r.Min, true
		}
		if detected > r.Max {
			return (detected - r.Max) / r.Max, r.Max, true
		}
		return 0, r.Min, false
	}
	return 0, 0, false
}
