package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/ingest"
	"github.com/civicworks/ada-audit/internal/model"
	"github.com/civicworks/ada-audit/internal/report"
)

var (
	assessInput  string
	assessLabel  string
	assessRules  string
	assessCosts  string
	assessPhases string
	assessOut    string
	assessFormat string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess a detection batch and produce a compliance report",
	Long:  "Reads a detection batch (with per-image calibration contexts) from a JSON or XLSX file, runs measurement, rule evaluation, cost estimation and phase scheduling, and writes the report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		batch, err := ingest.ReadBatch(assessInput, assessLabel)
		if err != nil {
			return err
		}
		if assessLabel != "" {
			batch.Label = assessLabel
		}

		budgets, err := parsePhases(assessPhases)
		if err != nil {
			return err
		}

		e, err := initPipeline(ctx, assessRules, assessCosts)
		if err != nil {
			return err
		}
		defer e.Close()

		rep, err := e.Pipeline.Run(ctx, batch, budgets)
		if err != nil {
			return eris.Wrap(err, "assess")
		}

		zap.L().Info("assessment written",
			zap.String("format", assessFormat),
			zap.Float64("compliance_score", rep.ComplianceScore),
			zap.Int("violations", len(rep.Violations)),
		)
		return writeReport(*rep, assessOut, assessFormat)
	},
}

func writeReport(rep model.ComplianceReport, out, format string) error {
	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	switch format {
	case "json":
		return report.WriteJSON(w, rep)
	case "csv":
		return report.WriteCSV(w, rep)
	case "geojson":
		return report.WriteGeoJSON(w, rep)
	case "xlsx":
		return report.WriteXLSX(w, rep)
	case "html":
		return report.WriteDashboard(w, rep)
	case "text":
		return report.WriteSummary(w, rep)
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func init() {
	assessCmd.Flags().StringVar(&assessInput, "input", "", "detection batch file, .json or .xlsx (required)")
	assessCmd.Flags().StringVar(&assessLabel, "label", "", "batch label (overrides the label in the file)")
	assessCmd.Flags().StringVar(&assessRules, "rules", "", "rule table YAML (default: built-in ADA 2010)")
	assessCmd.Flags().StringVar(&assessCosts, "costs", "", "cost model YAML (default: built-in unit costs)")
	assessCmd.Flags().StringVar(&assessPhases, "phases", "", `budget phases, e.g. "FY27:250000,FY28:100000"`)
	assessCmd.Flags().StringVar(&assessOut, "out", "", "output file (default: stdout)")
	assessCmd.Flags().StringVar(&assessFormat, "format", "json", "output format: json, csv, geojson, xlsx, html, text")
	_ = assessCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(assessCmd)
}
