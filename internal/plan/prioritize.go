// Package plan turns priced violations into an ordered remediation
// schedule: a priority tier per violation and a greedy phase packing
// against caller-supplied budget tranches.
package plan

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/model"
)

// TieBreak orders violations within a priority tier.
type TieBreak string

const (
	// TieBreakCostDesc schedules the most expensive work in a tier first,
	// so big-ticket items claim budget before it fragments.
	TieBreakCostDesc TieBreak = "cost_desc"
	// TieBreakCostAsc schedules the cheapest work first, maximizing the
	// count of fixes per tranche.
	TieBreakCostAsc TieBreak = "cost_asc"
)

// Prioritizer assigns priority tiers and produces a deterministic
// scheduling order.
type Prioritizer struct {
	// impactWeight multiplies the severity score before tier cutoffs are
	// applied. At 1.0 (the default), critical and high land in tier 1,
	// medium in tier 2, low in tier 3.
	impactWeight float64
	tieBreak     TieBreak
}

// NewPrioritizer creates a Prioritizer. An unknown tie-break is an error;
// a silent fallback would reorder schedules between runs.
func NewPrioritizer(impactWeight float64, tieBreak TieBreak) (*Prioritizer, error) {
	switch tieBreak {
	case TieBreakCostDesc, TieBreakCostAsc:
	default:
		return nil, eris.Errorf("plan: unknown tie-break %q", tieBreak)
	}
	if impactWeight <= 0 {
		return nil, eris.Errorf("plan: impact weight %v must be positive", impactWeight)
	}
	return &Prioritizer{impactWeight: impactWeight, tieBreak: tieBreak}, nil
}

// Tier maps a severity to a priority tier (1 most urgent).
func (p *Prioritizer) Tier(sev model.Severity) int {
	score := float64(sev.Rank()) * p.impactWeight
	switch {
	case score >= 3:
		return 1
	case score >= 2:
		return 2
	default:
		return 3
	}
}

// Order assigns Priority to every violation in place and returns indices
// into the slice in scheduling order: ascending tier, then the configured
// cost tie-break, then asset id so equal-cost items have a stable order.
// Unpriced violations are excluded; the scheduler cannot budget them.
func (p *Prioritizer) Order(violations []model.Violation) []int {
	idx := make([]int, 0, len(violations))
	for i := range violations {
		violations[i].Priority = p.Tier(violations[i].Severity)
		if violations[i].Cost != nil {
			idx = append(idx, i)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := violations[idx[a]], violations[idx[b]]
		if va.Priority != vb.Priority {
			return va.Priority < vb.Priority
		}
		ca, cb := va.Cost.Final, vb.Cost.Final
		if ca != cb {
			if p.tieBreak == TieBreakCostAsc {
				return ca < cb
			}
			return ca > cb
		}
		return va.Key() < vb.Key()
	})
	return idx
}
