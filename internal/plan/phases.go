package plan

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/civicworks/ada-audit/internal/model"
)

// Crew assumptions behind phase duration estimates.
const (
	crewSize     = 2.5 // effective workers, accounting for part-time roles
	hoursPerDay  = 7.0
	scheduleSlip = 1.2 // buffer on raw labor hours
	workdaysWeek = 5.0
	workdaysMon  = 21.0
)

// Scheduler packs prioritized violations into budget phases.
type Scheduler struct {
	prio *Prioritizer
}

// NewScheduler creates a Scheduler using the given prioritizer.
func NewScheduler(prio *Prioritizer) *Scheduler {
	return &Scheduler{prio: prio}
}

// Build packs violations into the given phases using greedy earliest-fit:
// each violation, in priority order, lands in the first phase with enough
// remaining budget. Greedy is not optimal packing, but it is deterministic
// and keeps urgent work as early as the budget allows. Violations that fit
// no phase go to the backlog; unpriced violations are reported separately.
// Phase assignments are also written back onto the violations.
func (s *Scheduler) Build(violations []model.Violation, budgets []model.PhaseBudget) model.RemediationPlan {
	order := s.prio.Order(violations)

	phases := make([]model.Phase, len(budgets))
	for i, b := range budgets {
		phases[i] = model.Phase{Label: b.Label, Cap: b.Cap}
	}

	plan := model.RemediationPlan{}
	for _, i := range order {
		v := &violations[i]
		placed := false
		for pi := range phases {
			if phases[pi].AssignedCost+v.Cost.Final <= phases[pi].Cap {
				v.Phase = phases[pi].Label
				phases[pi].Assigned = append(phases[pi].Assigned, *v)
				phases[pi].AssignedCost += v.Cost.Final
				phases[pi].LaborHours += v.Cost.LaborHours
				placed = true
				break
			}
		}
		if !placed {
			v.Phase = model.PhaseBacklog
			plan.Backlog = append(plan.Backlog, *v)
		}
	}

	for i := range violations {
		if violations[i].Cost == nil {
			plan.Unpriced = append(plan.Unpriced, violations[i])
		}
	}

	for pi := range phases {
		phases[pi].EstimatedTime = EstimateDuration(phases[pi].LaborHours)
	}
	plan.Phases = phases

	zap.L().Info("plan: schedule built",
		zap.Int("phases", len(phases)),
		zap.Int("backlog", len(plan.Backlog)),
		zap.Int("unpriced", len(plan.Unpriced)),
	)
	return plan
}

// EstimateDuration converts labor hours into a coarse crew-calendar
// estimate. Returns "none" for zero work.
func EstimateDuration(laborHours float64) string {
	if laborHours <= 0 {
		return "none"
	}

	days := math.Ceil(laborHours * scheduleSlip / (crewSize * hoursPerDay))
	if days <= 10 {
		return plural(int(days), "day")
	}
	weeks := math.Ceil(days / workdaysWeek)
	if weeks <= 12 {
		return plural(int(weeks), "week")
	}
	months := math.Ceil(days / workdaysMon)
	return plural(int(months), "month")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
