// Package pipeline orchestrates one assessment run: calibrate and measure
// the detection batch, evaluate rules, price the violations, schedule
// remediation phases and assemble the report.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/cost"
	"github.com/civicworks/ada-audit/internal/measure"
	"github.com/civicworks/ada-audit/internal/model"
	"github.com/civicworks/ada-audit/internal/plan"
	"github.com/civicworks/ada-audit/internal/report"
	"github.com/civicworks/ada-audit/internal/rules"
	"github.com/civicworks/ada-audit/internal/store"
)

// Pipeline wires the assessment stages together. All stage inputs are
// immutable once constructed; a Pipeline is safe for concurrent runs.
type Pipeline struct {
	extractor *measure.Extractor
	engine    *rules.Engine
	estimator *cost.Estimator
	scheduler *plan.Scheduler
	store     store.Store

	ruleSetVersion string
}

// New creates a Pipeline with all dependencies.
func New(
	extractor *measure.Extractor,
	engine *rules.Engine,
	ruleSetVersion string,
	estimator *cost.Estimator,
	scheduler *plan.Scheduler,
	st store.Store,
) *Pipeline {
	return &Pipeline{
		extractor:      extractor,
		engine:         engine,
		estimator:      estimator,
		scheduler:      scheduler,
		store:          st,
		ruleSetVersion: ruleSetVersion,
	}
}

// Run creates the run record and executes the full assessment for one
// detection batch. Per-asset failures are isolated into the report; only
// infrastructure failures (store writes) abort the run.
func (p *Pipeline) Run(ctx context.Context, batch model.Batch, budgets []model.PhaseBudget) (*model.ComplianceReport, error) {
	run, err := p.store.CreateRun(ctx, batch.Label)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return p.Execute(ctx, run.ID, batch, budgets)
}

// Execute runs the assessment against an already-created run record.
// Callers that need the run ID before the work starts (the async API)
// create the record themselves and hand its ID in.
func (p *Pipeline) Execute(ctx context.Context, runID string, batch model.Batch, budgets []model.PhaseBudget) (*model.ComplianceReport, error) {
	log := zap.L().With(zap.String("batch", batch.Label), zap.String("run_id", runID))
	log.Info("pipeline: starting assessment", zap.Int("detections", len(batch.Detections)))

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, runID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	rep, err := p.assess(ctx, batch, budgets, setStatus)
	if err != nil {
		if failErr := p.store.FailRun(ctx, runID, err); failErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(failErr))
		}
		return nil, err
	}

	if err := p.store.CompleteRun(ctx, runID, rep); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete run")
	}

	// Row-level persistence is best effort; the report on the run record
	// is the source of truth.
	if err := p.store.SaveViolations(ctx, runID, rep.Violations); err != nil {
		log.Warn("pipeline: failed to save violation rows", zap.Error(err))
	}
	if err := p.store.UpsertRollups(ctx, rep.Rollups); err != nil {
		log.Warn("pipeline: failed to upsert asset rollups", zap.Error(err))
	}

	log.Info("pipeline: assessment complete",
		zap.Float64("compliance_score", rep.ComplianceScore),
		zap.Int("violations", len(rep.Violations)),
	)
	return rep, nil
}

// assess runs the stages, reporting progress through setStatus.
func (p *Pipeline) assess(ctx context.Context, batch model.Batch, budgets []model.PhaseBudget, setStatus func(model.RunStatus)) (*model.ComplianceReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: context done")
	}

	// Detection order is normalized up front so re-running the same batch
	// yields the identical report regardless of input ordering.
	batch.Detections = sortedDetections(batch.Detections)

	setStatus(model.RunStatusMeasuring)
	extracted := p.extractor.ExtractBatch(ctx, batch)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: context done after measure")
	}

	setStatus(model.RunStatusEvaluating)
	eval := p.engine.Evaluate(batch.Detections, extracted.Measurements)

	setStatus(model.RunStatusCosting)
	p.estimator.PriceAll(eval.Violations)

	setStatus(model.RunStatusScheduling)
	remediation := p.scheduler.Build(eval.Violations, budgets)

	rep := report.Build(report.Inputs{
		BatchLabel:       batch.Label,
		Detections:       batch.Detections,
		Evaluation:       eval,
		Plan:             remediation,
		AssetErrors:      extracted.Errors,
		RuleSetVersion:   p.ruleSetVersion,
		CostModelVersion: p.estimator.Version(),
		GeneratedAt:      time.Now().UTC(),
	})
	return &rep, nil
}

// sortedDetections returns a copy ordered by asset id, ties broken by
// image id so duplicated assets keep a stable order.
func sortedDetections(dets []model.Detection) []model.Detection {
	out := make([]model.Detection, len(dets))
	copy(out, dets)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AssetID != out[j].AssetID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].ImageID < out[j].ImageID
	})
	return out
}
