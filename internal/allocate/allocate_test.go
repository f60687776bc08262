package allocate

import (
	"math"
	"testing"

	"github.com/cskoven/go-flood-panel/internal/models"
)

func subEvent(id string, affected, damage, floodedArea, floodedPop float64) *models.MonthlyEvent {
	ev := &models.MonthlyEvent{
		Metrics: &models.FloodMetrics{
			FloodedArea:       floodedArea,
			FloodedPopulation: floodedPop,
		},
	}
	ev.ID = id
	ev.TotalAffected = affected
	ev.TotalDamageAdj = damage
	return ev
}

func TestGroup_PopWeighted(t *testing.T) {
	group := []*models.MonthlyEvent{
		subEvent("a", 1000, 500, 10, 300),
		subEvent("a", 1000, 500, 5, 100),
	}

	Group(group)

	if group[0].Impact.Policy != PolicyPopWeighted {
		t.Fatalf("expected policy 1, got %d", group[0].Impact.Policy)
	}
	if w := group[0].Impact.PopulationWeight; math.Abs(w-0.75) > 1e-12 {
		t.Errorf("expected weight 0.75, got %f", w)
	}
	if got := group[0].Impact.AffectedWeighted; math.Abs(got-750) > 1e-9 {
		t.Errorf("expected 750 affected, got %f", got)
	}
	if !containsNote(group[1], "14") {
		t.Errorf("expected policy note 14, got %v", group[1].Notes)
	}
}

func TestGroup_EqualSplit(t *testing.T) {
	group := []*models.MonthlyEvent{
		subEvent("b", 900, 300, 0, 0),
		subEvent("b", 900, 300, 0, 0),
		subEvent("b", 900, 300, math.NaN(), math.NaN()),
	}

	Group(group)

	for i, ev := range group {
		if ev.Impact.Policy != PolicyEqualSplit {
			t.Fatalf("row %d: expected policy 2, got %d", i, ev.Impact.Policy)
		}
		if got := ev.Impact.AffectedWeighted; math.Abs(got-300) > 1e-9 {
			t.Errorf("row %d: expected 300 affected, got %f", i, got)
		}
		if !containsNote(ev, "13") {
			t.Errorf("row %d: expected policy note 13, got %v", i, ev.Notes)
		}
	}
}

func TestGroup_Mixed(t *testing.T) {
	group := []*models.MonthlyEvent{
		subEvent("c", 1000, 2000, 10, 600),
		subEvent("c", 1000, 2000, 20, 200),
		subEvent("c", 1000, 2000, 0, 0),
		subEvent("c", 1000, 2000, math.NaN(), math.NaN()),
	}

	Group(group)

	if group[0].Impact.Policy != PolicyMixed {
		t.Fatalf("expected policy 3, got %d", group[0].Impact.Policy)
	}
	// 95% of the aggregate, population weighted over the flooded subset.
	if got := group[0].Impact.AffectedWeighted; math.Abs(got-1000*0.95*0.75) > 1e-9 {
		t.Errorf("unexpected flooded-row share %f", got)
	}
	// 5% split equally over the two rows without flooded pixels.
	if got := group[2].Impact.AffectedWeighted; math.Abs(got-1000*0.05/2) > 1e-9 {
		t.Errorf("unexpected residual share %f", got)
	}
	if !math.IsNaN(group[0].Impact.PopulationWeight) {
		t.Errorf("expected NaN weight under mixed policy, got %f", group[0].Impact.PopulationWeight)
	}
	if !containsNote(group[3], "15") {
		t.Errorf("expected policy note 15, got %v", group[3].Notes)
	}
}

func TestGroup_ConservesAggregates(t *testing.T) {
	cases := map[string][]*models.MonthlyEvent{
		"pop_weighted": {
			subEvent("p", 1000, 333, 3, 100),
			subEvent("p", 1000, 333, 7, 900),
		},
		"equal_split": {
			subEvent("q", 1000, 333, 0, 0),
			subEvent("q", 1000, 333, 0, 0),
			subEvent("q", 1000, 333, 0, 0),
		},
		"mixed": {
			subEvent("r", 1000, 333, 4, 250),
			subEvent("r", 1000, 333, 0, 0),
			subEvent("r", 1000, 333, 9, 750),
		},
	}

	for name, group := range cases {
		Group(group)
		var affected, damage float64
		for _, ev := range group {
			affected += ev.Impact.AffectedWeighted
			damage += ev.Impact.DamageWeighted
		}
		if math.Abs(affected-1000) > 1e-9 {
			t.Errorf("%s: affected sums to %f, want 1000", name, affected)
		}
		if math.Abs(damage-333) > 1e-9 {
			t.Errorf("%s: damage sums to %f, want 333", name, damage)
		}
	}
}

func TestRun_GroupsByID(t *testing.T) {
	events := []*models.MonthlyEvent{
		subEvent("a", 100, 0, 5, 50),
		subEvent("b", 200, 0, 0, 0),
		subEvent("a", 100, 0, 5, 50),
	}

	Run(events)

	if events[0].Impact.Policy != PolicyPopWeighted || events[2].Impact.Policy != PolicyPopWeighted {
		t.Error("id a must be allocated as one group")
	}
	if events[1].Impact.Policy != PolicyEqualSplit {
		t.Errorf("id b: expected policy 2, got %d", events[1].Impact.Policy)
	}
	if got := events[1].Impact.PopulationWeight; got != 1 {
		t.Errorf("singleton equal split weight must be 1, got %f", got)
	}
}

func TestGroup_NilMetricsCountsAsNoFlood(t *testing.T) {
	ev := &models.MonthlyEvent{}
	ev.ID = "n"
	ev.TotalAffected = 40
	group := []*models.MonthlyEvent{ev, subEvent("n", 40, 0, 6, 10)}

	Group(group)

	if group[0].Impact.Policy != PolicyMixed {
		t.Errorf("expected mixed policy with a nil-metrics row, got %d", group[0].Impact.Policy)
	}
}

func containsNote(ev *models.MonthlyEvent, note string) bool {
	for _, n := range ev.Notes {
		if n == note {
			return true
		}
	}
	return false
}
