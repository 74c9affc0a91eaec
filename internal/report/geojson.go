package report

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/civicworks/ada-audit/internal/model"
)

// WriteGeoJSON writes the per-asset rollups as a GeoJSON FeatureCollection
// of WGS84 points, one feature per assessed asset. Assets without
// coordinates are skipped; a zero lat/lon pair means the detection carried
// no fix.
func WriteGeoJSON(w io.Writer, r model.ComplianceReport) error {
	fc := geojson.FeatureCollection{}

	for _, roll := range r.Rollups {
		if roll.Latitude == 0 && roll.Longitude == 0 {
			continue
		}

		props := map[string]interface{}{
			"asset_id":        roll.AssetID,
			"class":           string(roll.Class),
			"status":          string(roll.Status),
			"violation_count": roll.ViolationCount,
			"total_cost":      roll.TotalCost,
		}
		if roll.WorstSeverity != "" {
			props["worst_severity"] = string(roll.WorstSeverity)
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID: roll.AssetID,
			Geometry: geom.NewPointFlat(geom.XY,
				[]float64{roll.Longitude, roll.Latitude}).SetSRID(4326),
			Properties: props,
		})
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "report: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "report: write geojson")
	}
	return nil
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, r model.ComplianceReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(r), "report: encode json")
}
