// Package ingest loads detection batches from the file formats survey
// vendors deliver: JSON exports and XLSX workbooks.
package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/civicworks/ada-audit/internal/model"
)

const (
	detectionsSheet   = "detections"
	calibrationsSheet = "calibrations"
)

// BatchFromXLSX reads a detection batch from an XLSX workbook. The
// workbook must have a "detections" sheet; a "calibrations" sheet is
// optional. Both sheets map columns by header name, so column order
// does not matter.
func BatchFromXLSX(path, label string) (model.Batch, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return model.Batch{}, eris.Wrap(err, "ingest: open xlsx")
	}

	batch := model.Batch{Label: label, Calibrations: map[string]model.CalibrationContext{}}

	sheet, ok := f.Sheet[detectionsSheet]
	if !ok {
		return model.Batch{}, eris.Errorf("ingest: sheet %q not found", detectionsSheet)
	}
	batch.Detections, err = parseDetections(sheet)
	if err != nil {
		return model.Batch{}, err
	}

	if cal, ok := f.Sheet[calibrationsSheet]; ok {
		batch.Calibrations, err = parseCalibrations(cal)
		if err != nil {
			return model.Batch{}, err
		}
	}

	return batch, nil
}

func parseDetections(sheet *xlsx.Sheet) ([]model.Detection, error) {
	rows := sheetRows(sheet)
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: sheet %q is empty", detectionsSheet)
	}
	cols := headerIndex(rows[0])

	var dets []model.Detection
	for i, row := range rows[1:] {
		rowNum := i + 2
		d := model.Detection{
			AssetID: cell(row, cols, "asset_id"),
			Class:   model.AssetClass(cell(row, cols, "class")),
			ImageID: cell(row, cols, "image_id"),
		}
		if d.AssetID == "" {
			continue // blank trailing row
		}

		var err error
		if d.Confidence, err = cellFloat(row, cols, "confidence"); err != nil {
			return nil, eris.Wrapf(err, "ingest: detections row %d", rowNum)
		}
		if d.Latitude, err = cellFloat(row, cols, "latitude"); err != nil {
			return nil, eris.Wrapf(err, "ingest: detections row %d", rowNum)
		}
		if d.Longitude, err = cellFloat(row, cols, "longitude"); err != nil {
			return nil, eris.Wrapf(err, "ingest: detections row %d", rowNum)
		}
		if d.Polygon, err = parsePolygon(cell(row, cols, "polygon")); err != nil {
			return nil, eris.Wrapf(err, "ingest: detections row %d", rowNum)
		}

		dets = append(dets, d)
	}
	return dets, nil
}

func parseCalibrations(sheet *xlsx.Sheet) (map[string]model.CalibrationContext, error) {
	rows := sheetRows(sheet)
	cals := map[string]model.CalibrationContext{}
	if len(rows) == 0 {
		return cals, nil
	}
	cols := headerIndex(rows[0])

	for i, row := range rows[1:] {
		rowNum := i + 2
		c := model.CalibrationContext{
			ImageID:   cell(row, cols, "image_id"),
			Reference: model.CalibrationReference(cell(row, cols, "reference")),
		}
		if c.ImageID == "" {
			continue
		}

		var err error
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"object_span_in", &c.ObjectSpanIn},
			{"object_span_px", &c.ObjectSpanPx},
			{"baseline_in", &c.BaselineIn},
			{"disparity_px", &c.DisparityPx},
			{"focal_px", &c.FocalPx},
			{"camera_height_in", &c.CameraHeightIn},
			{"certainty", &c.Certainty},
		} {
			if *f.dst, err = cellFloat(row, cols, f.name); err != nil {
				return nil, eris.Wrapf(err, "ingest: calibrations row %d", rowNum)
			}
		}

		cals[c.ImageID] = c
	}
	return cals, nil
}

// parsePolygon decodes "x,y; x,y; ..." into pixel points.
func parsePolygon(s string) ([]model.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var pts []model.Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, eris.Errorf("ingest: malformed polygon point %q", pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: polygon x in %q", pair)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: polygon y in %q", pair)
		}
		pts = append(pts, model.Point{X: x, Y: y})
	}
	return pts, nil
}

// headerIndex maps lowercased header names to column positions.
func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellFloat(row []string, cols map[string]int, name string) (float64, error) {
	s := cell(row, cols, name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: column %s", name)
	}
	return v, nil
}

func sheetRows(sheet *xlsx.Sheet) [][]string {
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows
}
