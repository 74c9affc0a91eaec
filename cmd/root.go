package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ada-audit",
	Short: "ADA pedestrian infrastructure compliance assessment",
	Long:  "Measures curb ramps, sidewalks and crosswalks from calibrated detection geometry, evaluates ADA accessibility rules, prices remediation and schedules it into budget phases.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
