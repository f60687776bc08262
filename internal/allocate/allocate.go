// Package allocate distributes each disaster's aggregate reported impacts
// across its disaggregated monthly admin-1 sub-events.
package allocate

import (
	"log/slog"
	"math"

	"github.com/cskoven/go-flood-panel/internal/models"
)

// Allocation policies, selected per disaster id by flood-mask availability.
const (
	PolicyPopWeighted = 1 // every sub-event has flooded pixels
	PolicyEqualSplit  = 2 // no sub-event has flooded pixels
	PolicyMixed       = 3 // some do, some don't: 95/5 split
)

// mixedResidualShare is the fraction of the aggregate impact handed to
// sub-events without a usable flood map under the mixed policy.
const mixedResidualShare = 0.05

// Run groups events by disaster id, preserving first-seen order, and
// allocates each group. Every event comes out with a non-nil Impact and a
// numeric policy note appended.
func Run(events []*models.MonthlyEvent) {
	order := make([]string, 0)
	groups := make(map[string][]*models.MonthlyEvent)
	for _, ev := range events {
		if _, ok := groups[ev.ID]; !ok {
			order = append(order, ev.ID)
		}
		groups[ev.ID] = append(groups[ev.ID], ev)
	}

	for _, id := range order {
		Group(groups[id])
	}
}

// Group allocates one disaster's aggregate impacts across its sub-events.
// The policy is decided by the group's flooded-area values: all positive,
// none positive, or mixed. Under all policies the allocated impacts sum to
// the aggregate; the raw impact fields are never rewritten.
func Group(group []*models.MonthlyEvent) {
	if len(group) == 0 {
		return
	}

	allPositive := true
	anyPositive := false
	for _, ev := range group {
		if floodedArea(ev) > 0 {
			anyPositive = true
		} else {
			allPositive = false
		}
	}

	switch {
	case allPositive:
		popWeighted(group)
	case !anyPositive:
		equalSplit(group)
	default:
		slog.Debug("mixed flood-map availability", "id", group[0].ID, "subevents", len(group))
		mixed(group)
	}
}

func floodedArea(ev *models.MonthlyEvent) float64 {
	if ev.Metrics == nil {
		return math.NaN()
	}
	return ev.Metrics.FloodedArea
}

func floodedPopulation(ev *models.MonthlyEvent) float64 {
	if ev.Metrics == nil {
		return math.NaN()
	}
	return ev.Metrics.FloodedPopulation
}

func popWeighted(group []*models.MonthlyEvent) {
	var sum float64
	for _, ev := range group {
		sum += floodedPopulation(ev)
	}
	for _, ev := range group {
		w := floodedPopulation(ev) / sum
		ev.Impact = &models.AllocatedImpact{
			Policy:           PolicyPopWeighted,
			PopulationWeight: w,
			AffectedWeighted: ev.TotalAffected * w,
			DamageWeighted:   ev.TotalDamageAdj * w,
		}
		ev.Notes = append(ev.Notes, "14")
	}
}

func equalSplit(group []*models.MonthlyEvent) {
	w := 1 / float64(len(group))
	for _, ev := range group {
		ev.Impact = &models.AllocatedImpact{
			Policy:           PolicyEqualSplit,
			PopulationWeight: w,
			AffectedWeighted: ev.TotalAffected * w,
			DamageWeighted:   ev.TotalDamageAdj * w,
		}
		ev.Notes = append(ev.Notes, "13")
	}
}

// mixed hands 95% of each impact to the sub-events with flooded pixels,
// population weighted within that subset, and splits the remaining 5%
// equally across the rest. The two impact variables are split
// independently, so no single per-row weight exists; PopulationWeight is
// NaN on every row and only the allocated columns are authoritative.
func mixed(group []*models.MonthlyEvent) {
	var popSum float64
	var nZero int
	for _, ev := range group {
		if floodedArea(ev) > 0 {
			popSum += floodedPopulation(ev)
		} else {
			nZero++
		}
	}

	for _, ev := range group {
		impact := &models.AllocatedImpact{
			Policy:           PolicyMixed,
			PopulationWeight: math.NaN(),
		}
		if floodedArea(ev) > 0 {
			w := floodedPopulation(ev) / popSum
			impact.AffectedWeighted = ev.TotalAffected * (1 - mixedResidualShare) * w
			impact.DamageWeighted = ev.TotalDamageAdj * (1 - mixedResidualShare) * w
		} else {
			w := 1 / float64(nZero)
			impact.AffectedWeighted = ev.TotalAffected * mixedResidualShare * w
			impact.DamageWeighted = ev.TotalDamageAdj * mixedResidualShare * w
		}
		ev.Impact = impact
		ev.Notes = append(ev.Notes, "15")
	}
}
