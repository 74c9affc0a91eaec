// Package report assembles the compliance report for one assessment run
// and renders it to JSON, CSV, GeoJSON, XLSX and chart form.
package report

import (
	"time"

	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/model"
	"github.com/civicworks/ada-audit/internal/plan"
	"github.com/civicworks/ada-audit/internal/rules"
)

// maxSeverityWeight is the per-violation ceiling used by the weighted
// score denominator (critical rank).
const maxSeverityWeight = 4.0

// Inputs collects everything one report is built from.
type Inputs struct {
	BatchLabel       string
	Detections       []model.Detection
	Evaluation       rules.Evaluation
	Plan             model.RemediationPlan
	AssetErrors      []model.AssetError
	RuleSetVersion   string
	CostModelVersion string
	GeneratedAt      time.Time
}

// Build assembles the report. Violations in the evaluation are expected to
// be priced and scheduled already; Build only aggregates.
func Build(in Inputs) model.ComplianceReport {
	byAsset := make(map[string][]model.Violation)
	for _, v := range in.Evaluation.Violations {
		byAsset[v.AssetID] = append(byAsset[v.AssetID], v)
	}
	r := model.ComplianceReport{
		GeneratedAt:      in.GeneratedAt,
		BatchLabel:       in.BatchLabel,
		RuleSetVersion:   in.RuleSetVersion,
		CostModelVersion: in.CostModelVersion,
		Violations:       in.Evaluation.Violations,
		NeedsReview:      in.Evaluation.NeedsReview,
		AssetErrors:      in.AssetErrors,
		Plan:             in.Plan,
		CostBySeverity:   make(map[string]float64),
		CostByRule:       make(map[string]float64),
	}

	weightSum := 0.0
	// One rollup per asset: the same asset may appear in several images,
	// but scores and counts are defined over assets, not detections.
	seen := make(map[string]bool, len(in.Detections))
	for _, det := range in.Detections {
		if seen[det.AssetID] {
			continue
		}
		seen[det.AssetID] = true
		vs := byAsset[det.AssetID]
		rollup := model.AssetRollup{
			AssetID:        det.AssetID,
			Class:          det.Class,
			ViolationCount: len(vs),
			Latitude:       det.Latitude,
			Longitude:      det.Longitude,
		}

		switch {
		case len(vs) > 0:
			rollup.Status = model.AssetNonCompliant
			r.NonCompliantCount++
		case in.Evaluation.Evaluated[det.AssetID]:
			rollup.Status = model.AssetCompliant
			r.CompliantCount++
		default:
			// Nothing evaluable: only review findings (or none at all).
			rollup.Status = model.AssetNeedsReview
			r.NeedsReviewCount++
		}

		for _, v := range vs {
			if v.Severity.Rank() > rollup.WorstSeverity.Rank() {
				rollup.WorstSeverity = v.Severity
			}
			weightSum += float64(v.Severity.Rank())
			if v.Cost != nil {
				rollup.TotalCost += v.Cost.Final
			}
		}

		r.Rollups = append(r.Rollups, rollup)
	}
	r.AssetsAssessed = len(r.Rollups)

	evaluated := r.CompliantCount + r.NonCompliantCount
	if evaluated > 0 {
		r.ComplianceScore = 100 * float64(r.CompliantCount) / float64(evaluated)
		penalty := weightSum / (float64(evaluated) * maxSeverityWeight)
		if penalty > 1 {
			penalty = 1
		}
		r.WeightedScore = 100 * (1 - penalty)
	}

	for _, v := range in.Evaluation.Violations {
		if v.Cost == nil {
			continue
		}
		r.TotalCost += v.Cost.Final
		r.TotalLaborHours += v.Cost.LaborHours
		r.CostBySeverity[string(v.Severity)] += v.Cost.Final
		r.CostByRule[v.RuleID] += v.Cost.Final
	}
	if r.TotalLaborHours > 0 {
		r.Timeline = plan.EstimateDuration(r.TotalLaborHours)
	}

	zap.L().Info("report: built",
		zap.String("batch", in.BatchLabel),
		zap.Int("assets", r.AssetsAssessed),
		zap.Float64("compliance_score", r.ComplianceScore),
		zap.Float64("total_cost", r.TotalCost),
	)
	return r
}
