package report

import (
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/model"
)

var severityOrder = []model.Severity{
	model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical,
}

// WriteDashboard renders the report as a standalone HTML dashboard:
// status breakdown, remediation cost by severity and by rule, and phase
// budget utilisation.
func WriteDashboard(w io.Writer, r model.ComplianceReport) error {
	page := components.NewPage()
	page.PageTitle = "Compliance Dashboard"
	page.AddCharts(
		statusPie(r),
		costBySeverityBar(r),
		costByRuleBar(r),
		phaseBar(r),
	)

	return eris.Wrap(page.Render(w), "report: render dashboard")
}

func statusPie(r model.ComplianceReport) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Asset status",
			Subtitle: r.BatchLabel,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	pie.AddSeries("assets", []opts.PieData{
		{Name: "compliant", Value: r.CompliantCount},
		{Name: "non-compliant", Value: r.NonCompliantCount},
		{Name: "needs review", Value: r.NeedsReviewCount},
	}, charts.WithPieChartOpts(opts.PieChart{Radius: []string{"35%", "65%"}}))
	return pie
}

func costBySeverityBar(r model.ComplianceReport) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Remediation cost by severity"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(severityOrder))
	data := make([]opts.BarData, 0, len(severityOrder))
	for _, sev := range severityOrder {
		labels = append(labels, string(sev))
		data = append(data, opts.BarData{Value: r.CostBySeverity[string(sev)]})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("cost", data)
	return bar
}

func costByRuleBar(r model.ComplianceReport) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Remediation cost by rule"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	rules := make([]string, 0, len(r.CostByRule))
	for id := range r.CostByRule {
		rules = append(rules, id)
	}
	sort.Strings(rules)

	data := make([]opts.BarData, 0, len(rules))
	for _, id := range rules {
		data = append(data, opts.BarData{Value: r.CostByRule[id]})
	}

	bar.SetXAxis(rules)
	bar.AddSeries("cost", data)
	return bar
}

func phaseBar(r model.ComplianceReport) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Phase budget utilisation"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(r.Plan.Phases))
	caps := make([]opts.BarData, 0, len(r.Plan.Phases))
	assigned := make([]opts.BarData, 0, len(r.Plan.Phases))
	for _, p := range r.Plan.Phases {
		labels = append(labels, p.Label)
		caps = append(caps, opts.BarData{Value: p.Cap})
		assigned = append(assigned, opts.BarData{Value: p.AssignedCost})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("budget", caps)
	bar.AddSeries("assigned", assigned)
	return bar
}
