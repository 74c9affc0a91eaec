package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/model"
)

// WriteCSV writes the violation table as CSV, one row per violation, in
// report order.
func WriteCSV(w io.Writer, r model.ComplianceReport) error {
	cw := csv.NewWriter(w)

	header := []string{
		"asset_id", "rule_id", "severity", "detected", "threshold", "unit",
		"deviation_ratio", "cost", "labor_hours", "priority", "phase",
		"latitude", "longitude", "reference", "recommendation",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}

	for _, v := range r.Violations {
		cost, hours := "", ""
		if v.Cost != nil {
			cost = strconv.FormatFloat(v.Cost.Final, 'f', 2, 64)
			hours = strconv.FormatFloat(v.Cost.LaborHours, 'f', 1, 64)
		}
		row := []string{
			v.AssetID,
			v.RuleID,
			string(v.Severity),
			strconv.FormatFloat(v.Detected, 'f', -1, 64),
			strconv.FormatFloat(v.Threshold, 'f', -1, 64),
			v.Unit,
			strconv.FormatFloat(v.DeviationRatio, 'f', 4, 64),
			cost,
			hours,
			strconv.Itoa(v.Priority),
			v.Phase,
			strconv.FormatFloat(v.Latitude, 'f', 6, 64),
			strconv.FormatFloat(v.Longitude, 'f', 6, 64),
			v.Reference,
			v.Recommendation,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}
