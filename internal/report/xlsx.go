package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/civicworks/ada-audit/internal/model"
)

// WriteXLSX writes the report as a workbook with Summary, Violations and
// Phases sheets.
func WriteXLSX(w io.Writer, r model.ComplianceReport) error {
	f := xlsx.NewFile()

	if err := summarySheet(f, r); err != nil {
		return err
	}
	if err := violationsSheet(f, r); err != nil {
		return err
	}
	if err := phasesSheet(f, r); err != nil {
		return err
	}

	return eris.Wrap(f.Write(w), "report: write xlsx")
}

func summarySheet(f *xlsx.File, r model.ComplianceReport) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	kv := func(k string, v interface{}) {
		row := sheet.AddRow()
		row.AddCell().SetString(k)
		switch val := v.(type) {
		case string:
			row.AddCell().SetString(val)
		case int:
			row.AddCell().SetInt(val)
		case float64:
			row.AddCell().SetFloat(val)
		}
	}

	kv("Batch", r.BatchLabel)
	kv("Generated", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	kv("Rule set", r.RuleSetVersion)
	kv("Cost model", r.CostModelVersion)
	kv("Assets assessed", r.AssetsAssessed)
	kv("Compliant", r.CompliantCount)
	kv("Non-compliant", r.NonCompliantCount)
	kv("Needs review", r.NeedsReviewCount)
	kv("Compliance score", r.ComplianceScore)
	kv("Weighted score", r.WeightedScore)
	kv("Total cost", r.TotalCost)
	kv("Total labor hours", r.TotalLaborHours)
	kv("Timeline", r.Timeline)
	return nil
}

func violationsSheet(f *xlsx.File, r model.ComplianceReport) error {
	sheet, err := f.AddSheet("Violations")
	if err != nil {
		return eris.Wrap(err, "report: add violations sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Asset", "Rule", "Severity", "Detected", "Threshold", "Unit",
		"Deviation", "Cost", "Priority", "Phase", "Recommendation",
	} {
		header.AddCell().SetString(h)
	}

	for _, v := range r.Violations {
		row := sheet.AddRow()
		row.AddCell().SetString(v.AssetID)
		row.AddCell().SetString(v.RuleID)
		row.AddCell().SetString(string(v.Severity))
		row.AddCell().SetFloat(v.Detected)
		row.AddCell().SetFloat(v.Threshold)
		row.AddCell().SetString(v.Unit)
		row.AddCell().SetFloat(v.DeviationRatio)
		if v.Cost != nil {
			row.AddCell().SetFloat(v.Cost.Final)
		} else {
			row.AddCell().SetString("unpriced: " + v.PricingError)
		}
		row.AddCell().SetInt(v.Priority)
		row.AddCell().SetString(v.Phase)
		row.AddCell().SetString(v.Recommendation)
	}
	return nil
}

func phasesSheet(f *xlsx.File, r model.ComplianceReport) error {
	sheet, err := f.AddSheet("Phases")
	if err != nil {
		return eris.Wrap(err, "report: add phases sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Phase", "Budget", "Assigned cost", "Items", "Labor hours", "Duration"} {
		header.AddCell().SetString(h)
	}

	for _, p := range r.Plan.Phases {
		row := sheet.AddRow()
		row.AddCell().SetString(p.Label)
		row.AddCell().SetFloat(p.Cap)
		row.AddCell().SetFloat(p.AssignedCost)
		row.AddCell().SetInt(len(p.Assigned))
		row.AddCell().SetFloat(p.LaborHours)
		row.AddCell().SetString(p.EstimatedTime)
	}

	if len(r.Plan.Backlog) > 0 {
		backlogCost := 0.0
		for _, v := range r.Plan.Backlog {
			backlogCost += v.Cost.Final
		}
		row := sheet.AddRow()
		row.AddCell().SetString(model.PhaseBacklog)
		row.AddCell().SetString("unfunded")
		row.AddCell().SetFloat(backlogCost)
		row.AddCell().SetInt(len(r.Plan.Backlog))
	}
	return nil
}
