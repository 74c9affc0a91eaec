// Package measure turns detection pixel geometry into physical
// measurements using the per-image calibration scale.
package measure

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/model"
)

// kindsByClass maps each asset class to the measurements derived for it.
// Resolved at init; the set of kinds is closed.
var kindsByClass = map[model.AssetClass][]model.MeasurementKind{
	model.ClassCurbRamp:          {model.KindRunningSlope, model.KindCrossSlope, model.KindSurfaceQuality},
	model.ClassSidewalkSegment:   {model.KindWidth, model.KindCrossSlope, model.KindSurfaceGap, model.KindSurfaceQuality},
	model.ClassCrosswalk:         {model.KindWidth, model.KindSurfaceQuality},
	model.ClassDetectableWarning: {model.KindSurfaceQuality},
	// Obstructions carry no derivable measurements; the rule engine
	// reports them as needs-review.
	model.ClassObstruction: nil,
}

// Extractor derives measurements for a detection batch using a fixed-size
// worker pool. All measurements for one asset are produced by a single
// worker invocation.
type Extractor struct {
	resolver *calibrate.Resolver
	workers  int
}

// NewExtractor creates an Extractor. Workers below 1 are clamped to 1.
func NewExtractor(resolver *calibrate.Resolver, workers int) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{resolver: resolver, workers: workers}
}

// Result aggregates the batch extraction outcome. Per-asset failures are
// isolated into Errors; they never abort the batch.
type Result struct {
	Measurements []model.Measurement
	Errors       []model.AssetError
}

// ExtractBatch measures every detection in the batch. Output order follows
// the input detection order regardless of worker scheduling.
func (e *Extractor) ExtractBatch(ctx context.Context, batch model.Batch) Result {
	perAsset := make([][]model.Measurement, len(batch.Detections))
	perErr := make([]*model.AssetError, len(batch.Detections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, det := range batch.Detections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				perErr[i] = &model.AssetError{AssetID: det.AssetID, Stage: "measure", Error: err.Error()}
				return nil
			}
			ms, err := e.extractAsset(det, batch.Calibrations)
			if err != nil {
				perErr[i] = &model.AssetError{AssetID: det.AssetID, Stage: "measure", Error: err.Error()}
				return nil // isolate, keep measuring other assets
			}
			perAsset[i] = ms
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	for i := range batch.Detections {
		result.Measurements = append(result.Measurements, perAsset[i]...)
		if perErr[i] != nil {
			result.Errors = append(result.Errors, *perErr[i])
		}
	}

	zap.L().Info("measure: batch extracted",
		zap.Int("detections", len(batch.Detections)),
		zap.Int("measurements", len(result.Measurements)),
		zap.Int("asset_errors", len(result.Errors)),
	)
	return result
}

// extractAsset produces all measurements for one detection as an atomic
// unit, so a single calibration basis covers the whole asset.
func (e *Extractor) extractAsset(d model.Detection, contexts map[string]model.CalibrationContext) ([]model.Measurement, error) {
	if !d.Class.Valid() {
		return nil, eris.Errorf("measure: unknown asset class %q", d.Class)
	}

	kinds := kindsByClass[d.Class]
	if len(kinds) == 0 {
		return nil, nil
	}

	scale, err := e.resolver.Resolve(d.ImageID, contexts)
	uncalibrated := false
	switch {
	case err == nil:
		uncalibrated = scale.Fallback
	case eris.Is(err, calibrate.ErrNoCalibration):
		// Degrade: measure with a unit scale but mark everything
		// uncalibrated and near-zero confidence. The asset stays visible.
		scale = calibrate.Scale{ImageID: d.ImageID, InchesPerPx: 1, Certainty: 0, Fallback: true}
		uncalibrated = true
	default:
		return nil, eris.Wrapf(err, "measure: resolve scale for asset %s", d.AssetID)
	}

	ms := make([]model.Measurement, 0, len(kinds))
	for _, kind := range kinds {
		m, err := measureKind(kind, d, scale)
		if err != nil {
			return nil, err
		}

		// Confidence combination rule: detection confidence times
		// calibration certainty (dimensionless kinds use detection
		// confidence alone). Monotonic in both inputs.
		if m.Unit == "index" {
			m.Confidence = d.Confidence
		} else {
			m.Confidence = d.Confidence * scale.Certainty
			m.Uncalibrated = uncalibrated
		}
		ms = append(ms, m)
	}
	return ms, nil
}

// measureKind dispatches to the handler for one measurement kind.
func measureKind(kind model.MeasurementKind, d model.Detection, scale calibrate.Scale) (model.Measurement, error) {
	switch kind {
	case model.KindRunningSlope:
		return runningSlope(d, scale), nil
	case model.KindCrossSlope:
		return crossSlope(d, scale), nil
	case model.KindWidth:
		return clearWidth(d, scale), nil
	case model.KindSurfaceGap:
		return surfaceGap(d, scale), nil
	case model.KindSurfaceQuality:
		return surfaceQuality(d), nil
	default:
		return model.Measurement{}, eris.New(fmt.Sprintf("measure: unhandled kind %q", kind))
	}
}
