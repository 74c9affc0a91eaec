package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/cost"
	"github.com/civicworks/ada-audit/internal/measure"
	"github.com/civicworks/ada-audit/internal/model"
	"github.com/civicworks/ada-audit/internal/pipeline"
	"github.com/civicworks/ada-audit/internal/plan"
	"github.com/civicworks/ada-audit/internal/rules"
	"github.com/civicworks/ada-audit/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ada-audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadRules returns the rule table from the --rules flag, the configured
// path, or the built-in ADA 2010 table.
func loadRules(path string) (*rules.RuleSet, error) {
	if path == "" {
		path = cfg.Rules.Path
	}
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}

// loadCosts returns the cost model from the --costs flag, the configured
// path, or the built-in unit cost table.
func loadCosts(path string) (*cost.Model, error) {
	if path == "" {
		path = cfg.Cost.Path
	}
	if path == "" {
		return cost.Default(), nil
	}
	return cost.Load(path)
}

// parsePhases parses "FY27:250000,FY28:100000" into phase budgets,
// preserving order.
func parsePhases(spec string) ([]model.PhaseBudget, error) {
	if spec == "" {
		return nil, nil
	}

	var budgets []model.PhaseBudget
	for _, part := range strings.Split(spec, ",") {
		label, capStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, eris.Errorf("invalid phase %q, want label:budget", part)
		}
		capVal, err := strconv.ParseFloat(capStr, 64)
		if err != nil || capVal <= 0 {
			return nil, eris.Errorf("invalid phase budget %q", capStr)
		}
		budgets = append(budgets, model.PhaseBudget{Label: label, Cap: capVal})
	}
	return budgets, nil
}

// env bundles the assembled pipeline and its store for commands.
type env struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline builds the full assessment pipeline from config and
// optional rule/cost table overrides.
func initPipeline(ctx context.Context, rulesPath, costsPath string) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	rs, err := loadRules(rulesPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	cm, err := loadCosts(costsPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	prio, err := plan.NewPrioritizer(cfg.Plan.ImpactWeight, plan.TieBreak(cfg.Plan.TieBreak))
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	p := pipeline.New(
		measure.NewExtractor(calibrate.NewResolver(cfg.Calibration.FallbackInchesPerPx), cfg.Measure.Workers),
		rules.NewEngine(rs, cfg.Rules.ConfidenceThreshold),
		rs.Version,
		cost.NewEstimator(cm),
		plan.NewScheduler(prio),
		st,
	)
	return &env{Pipeline: p, Store: st}, nil
}
