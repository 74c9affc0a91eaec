package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/model"
)

// WriteSummary writes a plain-text executive summary of the report.
func WriteSummary(w io.Writer, r model.ComplianceReport) error {
	var b strings.Builder

	title := "ADA Compliance Assessment"
	if r.BatchLabel != "" {
		title += ": " + r.BatchLabel
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	fmt.Fprintf(&b, "Generated:        %s\n", r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Rule set:         %s\n", r.RuleSetVersion)
	fmt.Fprintf(&b, "Cost model:       %s\n\n", r.CostModelVersion)

	fmt.Fprintf(&b, "Compliance score: %.1f%%\n", r.ComplianceScore)
	fmt.Fprintf(&b, "Weighted score:   %.1f\n", r.WeightedScore)
	fmt.Fprintf(&b, "Assets assessed:  %d (%d compliant, %d non-compliant, %d needs review)\n\n",
		r.AssetsAssessed, r.CompliantCount, r.NonCompliantCount, r.NeedsReviewCount)

	fmt.Fprintf(&b, "Violations:       %d\n", len(r.Violations))
	fmt.Fprintf(&b, "Estimated cost:   %.2f (incl. contingency)\n", r.TotalCost)
	fmt.Fprintf(&b, "Labor hours:      %.1f\n", r.TotalLaborHours)
	if r.Timeline != "" {
		fmt.Fprintf(&b, "Timeline:         %s\n", r.Timeline)
	}
	b.WriteString("\n")

	if len(r.CostBySeverity) > 0 {
		b.WriteString("Cost by severity\n")
		for _, sev := range severityOrder {
			if c, ok := r.CostBySeverity[string(sev)]; ok {
				fmt.Fprintf(&b, "  %-10s %12.2f\n", sev, c)
			}
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "report: write summary")
	}

	if len(r.Plan.Phases) > 0 || len(r.Plan.Backlog) > 0 {
		if err := writePhaseTable(w, r.Plan); err != nil {
			return err
		}
	}

	if len(r.Violations) > 0 {
		if err := writeTopViolations(w, r.Violations); err != nil {
			return err
		}
	}

	return nil
}

func writePhaseTable(w io.Writer, plan model.RemediationPlan) error {
	if _, err := io.WriteString(w, "Remediation phases\n"); err != nil {
		return eris.Wrap(err, "report: write summary")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  PHASE\tBUDGET\tASSIGNED\tVIOLATIONS\tDURATION")
	for _, p := range plan.Phases {
		fmt.Fprintf(tw, "  %s\t%.2f\t%.2f\t%d\t%s\n",
			p.Label, p.Cap, p.AssignedCost, len(p.Assigned), p.EstimatedTime)
	}
	if len(plan.Backlog) > 0 {
		var backlogCost float64
		for _, v := range plan.Backlog {
			if v.Cost != nil {
				backlogCost += v.Cost.Final
			}
		}
		fmt.Fprintf(tw, "  backlog\t-\t%.2f\t%d\t-\n", backlogCost, len(plan.Backlog))
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: flush phase table")
	}

	_, err := io.WriteString(w, "\n")
	return eris.Wrap(err, "report: write summary")
}

// writeTopViolations lists the most urgent violations, capped at ten.
func writeTopViolations(w io.Writer, violations []model.Violation) error {
	ordered := make([]model.Violation, len(violations))
	copy(ordered, violations)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Priority, ordered[j].Priority
		if pi == 0 {
			pi = 1 << 30
		}
		if pj == 0 {
			pj = 1 << 30
		}
		return pi < pj
	})
	if len(ordered) > 10 {
		ordered = ordered[:10]
	}

	if _, err := io.WriteString(w, "Top violations\n"); err != nil {
		return eris.Wrap(err, "report: write summary")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ASSET\tRULE\tSEVERITY\tDETECTED\tTHRESHOLD\tCOST\tPHASE")
	for _, v := range ordered {
		cost := "unpriced"
		if v.Cost != nil {
			cost = fmt.Sprintf("%.2f", v.Cost.Final)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%.2f %s\t%.2f\t%s\t%s\n",
			v.AssetID, v.RuleID, v.Severity, v.Detected, v.Unit, v.Threshold, cost, v.Phase)
	}
	return eris.Wrap(tw.Flush(), "report: flush violations table")
}
