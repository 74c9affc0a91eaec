package cost

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/model"
)

// ErrUnknownCostRule marks a violation whose rule has no entry in the cost
// model. Such violations stay unpriced and are surfaced in the report;
// they never default to zero dollars.
var ErrUnknownCostRule = eris.New("cost: no cost entry for rule")

// Estimator prices violations against one cost model.
type Estimator struct {
	model *Model
}

// NewEstimator creates an Estimator for the given cost model.
func NewEstimator(m *Model) *Estimator {
	return &Estimator{model: m}
}

// Version returns the cost model version the estimator prices with.
func (e *Estimator) Version() string {
	return e.model.Version
}

// Estimate prices one violation. The final figure is
// base * scale(deviation) * (1 + contingency), with the scale factor
// capped at the model's cap multiple so extreme deviations cannot blow
// up a line item.
func (e *Estimator) Estimate(v model.Violation) (model.CostEstimate, error) {
	entry, ok := e.model.Entries[v.RuleID]
	if !ok {
		return model.CostEstimate{}, eris.Wrapf(ErrUnknownCostRule, "rule %s", v.RuleID)
	}

	scale := scaleFactor(entry, v.DeviationRatio)
	if scale > e.model.CapMultiple {
		scale = e.model.CapMultiple
	}

	return model.CostEstimate{
		Base:        entry.Base,
		ScaleFactor: scale,
		Contingency: e.model.Contingency,
		Final:       entry.Base * scale * (1 + e.model.Contingency),
		LaborHours:  entry.LaborHours,
		Currency:    e.model.Currency,
	}, nil
}

// PriceAll prices every violation in place. Violations with no cost entry
// keep a nil Cost and record the failure in PricingError; pricing the rest
// of the batch continues.
func (e *Estimator) PriceAll(violations []model.Violation) {
	unpriced := 0
	for i := range violations {
		est, err := e.Estimate(violations[i])
		if err != nil {
			violations[i].Cost = nil
			violations[i].PricingError = eris.Cause(err).Error()
			unpriced++
			continue
		}
		violations[i].Cost = &est
		violations[i].PricingError = ""
	}

	if unpriced > 0 {
		zap.L().Warn("cost: violations left unpriced",
			zap.String("cost_model", e.model.Version),
			zap.Int("unpriced", unpriced),
		)
	}
}

func scaleFactor(entry Entry, deviation float64) float64 {
	switch entry.Scale {
	case ScaleLog:
		return 1 + entry.Coefficient*math.Log1p(deviation)
	default:
		return 1 + entry.Coefficient*deviation
	}
}
