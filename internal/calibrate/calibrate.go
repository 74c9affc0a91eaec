// Package calibrate resolves per-image reference metadata into a
// pixel-to-inches conversion. A scale is only ever valid for the image it
// was computed from.
package calibrate

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/model"
)

// ErrNoCalibration is returned when an image has no usable reference
// metadata and no fallback scale is configured. Callers degrade to
// uncalibrated measurements rather than dropping the asset.
var ErrNoCalibration = eris.New("calibrate: no reference metadata and no fallback scale")

// fallbackCertainty is the calibration certainty assigned to scales derived
// from the configured default rather than real reference metadata.
const fallbackCertainty = 0.35

// Scale converts pixel spans in one image to physical inches.
type Scale struct {
	ImageID     string
	InchesPerPx float64
	Certainty   float64 // 0.0-1.0
	Fallback    bool    // derived from the configured default scale
}

// ToInches converts a pixel span to inches.
func (s Scale) ToInches(px float64) float64 {
	return px * s.InchesPerPx
}

// Resolver derives scales from calibration contexts, with an optional
// configured fallback for images that carry no reference metadata.
type Resolver struct {
	fallbackInchesPerPx float64 // 0 disables the fallback
}

// NewResolver creates a Resolver. A zero fallback disables the default
// scale: images without reference metadata then fail with ErrNoCalibration.
func NewResolver(fallbackInchesPerPx float64) *Resolver {
	return &Resolver{fallbackInchesPerPx: fallbackInchesPerPx}
}

// Resolve produces the scale for one image from the batch's calibration
// contexts. Missing or degenerate reference metadata falls back to the
// configured default scale when one is set.
func (r *Resolver) Resolve(imageID string, contexts map[string]model.CalibrationContext) (Scale, error) {
	cc, ok := contexts[imageID]
	if ok {
		if s, ok := fromContext(imageID, cc); ok {
			return s, nil
		}
		zap.L().Warn("calibrate: unusable reference metadata",
			zap.String("image_id", imageID),
			zap.String("reference", string(cc.Reference)),
		)
	}

	if r.fallbackInchesPerPx > 0 {
		return Scale{
			ImageID:     imageID,
			InchesPerPx: r.fallbackInchesPerPx,
			Certainty:   fallbackCertainty,
			Fallback:    true,
		}, nil
	}

	return Scale{}, eris.Wrapf(ErrNoCalibration, "image %s", imageID)
}

// fromContext derives a scale from explicit reference metadata. Returns
// false when the metadata is degenerate (zero spans, zero disparity).
func fromContext(imageID string, cc model.CalibrationContext) (Scale, bool) {
	var inchesPerPx float64

	switch cc.Reference {
	case model.RefObject:
		if cc.ObjectSpanPx <= 0 || cc.ObjectSpanIn <= 0 {
			return Scale{}, false
		}
		inchesPerPx = cc.ObjectSpanIn / cc.ObjectSpanPx

	case model.RefStereo:
		// Ground-sample distance at the ground plane: baseline / disparity.
		if cc.DisparityPx <= 0 || cc.BaselineIn <= 0 {
			return Scale{}, false
		}
		inchesPerPx = cc.BaselineIn / cc.DisparityPx

	case model.RefIntrinsics:
		// Ground-plane assumption: GSD = camera height / focal length.
		if cc.FocalPx <= 0 || cc.CameraHeightIn <= 0 {
			return Scale{}, false
		}
		inchesPerPx = cc.CameraHeightIn / cc.FocalPx

	default:
		return Scale{}, false
	}

	certainty := cc.Certainty
	if certainty <= 0 || certainty > 1 {
		certainty = 1.0
	}

	return Scale{
		ImageID:     imageID,
		InchesPerPx: inchesPerPx,
		Certainty:   certainty,
	}, true
}
