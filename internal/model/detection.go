// Package model defines the shared data types flowing through the
// assessment pipeline: detections in, measurements, violations, and the
// final compliance report out.
package model

// AssetClass identifies the kind of pedestrian infrastructure a detection
// represents. The set is fixed; the detection model is trained against it.
type AssetClass string

const (
	ClassCurbRamp          AssetClass = "curb_ramp"
	ClassSidewalkSegment   AssetClass = "sidewalk_segment"
	ClassCrosswalk         AssetClass = "crosswalk"
	ClassDetectableWarning AssetClass = "detectable_warning"
	ClassObstruction       AssetClass = "obstruction"
)

// Valid reports whether c is one of the known asset classes.
func (c AssetClass) Valid() bool {
	switch c {
	case ClassCurbRamp, ClassSidewalkSegment, ClassCrosswalk, ClassDetectableWarning, ClassObstruction:
		return true
	}
	return false
}

// Point is a pixel-space coordinate within a source image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is a single object-detection result supplied by the external
// vision model. Immutable once produced.
type Detection struct {
	AssetID    string     `json:"asset_id"`
	Class      AssetClass `json:"class"`
	Polygon    []Point    `json:"polygon"`    // boundary in pixel space, closed implicitly
	Confidence float64    `json:"confidence"` // 0.0-1.0
	ImageID    string     `json:"image_id"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	// Contours holds disjoint surface-edge contours flagged as irregular
	// by the detector, used for gap and surface-quality measurement.
	Contours []Contour `json:"contours,omitempty"`
}

// Contour is a disjoint surface-edge outline within a detection, with its
// enclosed pixel area as reported by the detector.
type Contour struct {
	Points    []Point `json:"points"`
	AreaPx    float64 `json:"area_px"`
	Irregular bool    `json:"irregular"`
}

// BBox returns the axis-aligned pixel bounding box of the detection polygon.
// Returns zeros for an empty polygon.
func (d Detection) BBox() (minX, minY, maxX, maxY float64) {
	if len(d.Polygon) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX = d.Polygon[0].X, d.Polygon[0].X
	minY, maxY = d.Polygon[0].Y, d.Polygon[0].Y
	for _, p := range d.Polygon[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY
}

// Batch is the unit of work for one assessment run: a finite set of
// detections plus the calibration metadata for the images they came from.
type Batch struct {
	Label        string                        `json:"label,omitempty"`
	Detections   []Detection                   `json:"detections"`
	Calibrations map[string]CalibrationContext `json:"calibrations"` // keyed by image ID
}

// CalibrationReference identifies which kind of reference metadata a
// CalibrationContext carries.
type CalibrationReference string

const (
	RefObject     CalibrationReference = "reference_object"
	RefStereo     CalibrationReference = "stereo_pair"
	RefIntrinsics CalibrationReference = "camera_intrinsics"
)

// CalibrationContext holds the per-image reference metadata used to derive
// a pixel-to-inches scale. Valid only for the image it was computed for;
// never shared across camera setups.
type CalibrationContext struct {
	ImageID   string               `json:"image_id"`
	Reference CalibrationReference `json:"reference"`

	// Reference object: a known physical span and its pixel extent.
	ObjectSpanIn float64 `json:"object_span_in,omitempty"`
	ObjectSpanPx float64 `json:"object_span_px,omitempty"`

	// Stereo pair: baseline and disparity at the ground plane.
	BaselineIn  float64 `json:"baseline_in,omitempty"`
	DisparityPx float64 `json:"disparity_px,omitempty"`
	FocalPx     float64 `json:"focal_px,omitempty"`

	// Camera intrinsics with a ground-plane assumption.
	CameraHeightIn float64 `json:"camera_height_in,omitempty"`

	// Certainty of the calibration itself, 0.0-1.0. Zero means unset and
	// is treated as 1.0 for explicit references.
	Certainty float64 `json:"certainty,omitempty"`
}
