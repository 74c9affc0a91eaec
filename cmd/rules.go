package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/civicworks/ada-audit/internal/cost"
	"github.com/civicworks/ada-audit/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule tables and cost models",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active rule table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("rules")
		rs, err := loadRules(path)
		if err != nil {
			return err
		}

		formatRuleSet(os.Stdout, rs)
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <rules.yaml> [costs.yaml]",
	Short: "Validate a rule table, and optionally a cost model against it",
	Long:  "Checks structural soundness of a YAML rule table. With a cost model argument, additionally reports rules that the model cannot price.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("rule table %s: %d rules, OK\n", rs.Version, len(rs.Rules))

		if len(args) == 2 {
			cm, err := cost.Load(args[1])
			if err != nil {
				return err
			}
			fmt.Printf("cost model %s: %d entries, OK\n", cm.Version, len(cm.Entries))

			unpriceable := 0
			for _, r := range rs.Rules {
				if _, ok := cm.Entries[r.ID]; !ok {
					fmt.Printf("  warning: rule %s has no cost entry\n", r.ID)
					unpriceable++
				}
			}
			if unpriceable > 0 {
				fmt.Printf("%d rule(s) will produce unpriced violations\n", unpriceable)
			}
		}
		return nil
	},
}

func formatRuleSet(w io.Writer, rs *rules.RuleSet) {
	fmt.Fprintf(w, "Rule set: %s\n\n", rs.Version)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tCLASSES\tCHECK\tUNIT\tREFERENCE")
	for _, r := range rs.Rules {
		check := ""
		switch r.Comparison {
		case rules.CompareMax:
			check = fmt.Sprintf("<= %g", r.Max)
		case rules.CompareMin:
			check = fmt.Sprintf(">= %g", r.Min)
		case rules.CompareRange:
			check = fmt.Sprintf("%g..%g", r.Min, r.Max)
		}
		classes := ""
		for i, c := range r.Classes {
			if i > 0 {
				classes += ","
			}
			classes += string(c)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, classes, check, r.Unit, r.Reference)
	}
	_ = tw.Flush()
}

func init() {
	rulesShowCmd.Flags().String("rules", "", "rule table YAML (default: built-in ADA 2010)")
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}
