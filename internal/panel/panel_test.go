package panel

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/registry"
)

func TestQuantile_LinearInterpolation(t *testing.T) {
	vals := []float64{1, 2, 3, 4}

	if got := Quantile(vals, 0); got != 1 {
		t.Errorf("q0: got %f", got)
	}
	if got := Quantile(vals, 1); got != 4 {
		t.Errorf("q1: got %f", got)
	}
	if got := Quantile(vals, 0.5); math.Abs(got-2.5) > 1e-12 {
		t.Errorf("q0.5: got %f", got)
	}
	// h = 0.05 * 3 = 0.15, between the first two order statistics.
	if got := Quantile(vals, 0.05); math.Abs(got-1.15) > 1e-12 {
		t.Errorf("q0.05: got %f", got)
	}
}

func TestQuantile_Degenerate(t *testing.T) {
	if !math.IsNaN(Quantile(nil, 0.05)) {
		t.Error("empty input must yield NaN")
	}
	if got := Quantile([]float64{7}, 0.3); got != 7 {
		t.Errorf("single value: got %f", got)
	}
}

func TestQuantile_DoesNotReorderInput(t *testing.T) {
	vals := []float64{3, 1, 2}
	Quantile(vals, 0.5)
	if vals[0] != 3 || vals[1] != 1 || vals[2] != 2 {
		t.Errorf("input reordered: %v", vals)
	}
}

func testBoundary(t *testing.T) *registry.Boundary {
	t.Helper()
	dir := t.TempDir()
	adm1 := filepath.Join(dir, "adm1.csv")
	adm2 := filepath.Join(dir, "adm2.csv")
	if err := os.WriteFile(adm1, []byte("adm1_code,adm1_name,adm0_code,adm0_name\n825,Ontario,46,Canada\n826,Quebec,46,Canada\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(adm2, []byte("adm2_code,adm2_name,adm1_code,adm1_name,adm0_name\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := registry.LoadBoundary(adm1, adm2)
	if err != nil {
		t.Fatalf("loading boundary: %v", err)
	}
	return b
}

func panelEvent(id string, adm1 int, monYr string, affectedNorm, damagesStd float64) *models.MonthlyEvent {
	ev := &models.MonthlyEvent{
		MonYr: monYr,
		Key:   monYr + "-" + id,
		Impact: &models.AllocatedImpact{
			AffectedWeighted: 100,
			DamageWeighted:   50,
		},
		Normalized: models.NormalizedImpacts{
			AffectedPctPopulation: affectedNorm,
			DamagePctGDP:          damagesStd,
			FloodedAreaPctAdm1:    math.NaN(),
		},
	}
	ev.ID = id
	ev.Adm1Code = adm1
	return ev
}

func TestBuild_BalancedGrid(t *testing.T) {
	b := &Builder{
		Boundary:  testBoundary(t),
		StartYear: 2004,
		EndYear:   2005,
	}
	events := []*models.MonthlyEvent{
		panelEvent("a", 825, "07-2004", 2.0, 1.0),
		panelEvent("b", 825, "07-2004", 4.0, 3.0),
		panelEvent("c", 825, "03-2005", 6.0, 5.0),
	}

	cells := b.Build(events)

	// One admin unit with events, two years, twelve months.
	if len(cells) != 24 {
		t.Fatalf("expected 24 cells, got %d", len(cells))
	}

	byMonth := make(map[string]*models.PanelCell)
	for _, c := range cells {
		if c.Adm1Code != 825 {
			t.Fatalf("unexpected admin unit %d in grid", c.Adm1Code)
		}
		byMonth[c.MonYr] = c
	}

	july := byMonth["07-2004"]
	if july.EventOccurrance != 1 {
		t.Error("expected event occurrence in 07-2004")
	}
	// Two events share the cell; their normalized impacts sum.
	if math.Abs(july.AffectedNormalized-6.0) > 1e-9 {
		t.Errorf("expected summed 6.0, got %f", july.AffectedNormalized)
	}
	if math.Abs(july.TotalAffected-200) > 1e-9 {
		t.Errorf("expected raw sum 200, got %f", july.TotalAffected)
	}

	empty := byMonth["01-2004"]
	if empty.EventOccurrance != 0 {
		t.Error("expected no event in 01-2004")
	}
	if empty.TotalAffected != 0 {
		t.Errorf("raw impacts must be zero-filled, got %f", empty.TotalAffected)
	}

	if july.Country != "Canada" || july.CountryYr != "Canada_2004" || july.CountryMon != "Canada_07" {
		t.Errorf("unexpected fixed-effect keys: %q %q", july.CountryYr, july.CountryMon)
	}
}

func TestBuild_InfillDistinguishesEventAndEmptyCells(t *testing.T) {
	b := &Builder{
		Boundary:  testBoundary(t),
		StartYear: 2004,
		EndYear:   2004,
	}
	// Four events with observed values, one with a missing normalized
	// impact sitting alone in its cell.
	events := []*models.MonthlyEvent{
		panelEvent("a", 825, "01-2004", 1.0, 1.0),
		panelEvent("b", 825, "02-2004", 2.0, 2.0),
		panelEvent("c", 825, "03-2004", 3.0, 3.0),
		panelEvent("d", 825, "04-2004", 4.0, 4.0),
		panelEvent("e", 825, "05-2004", math.NaN(), math.NaN()),
	}

	cells := b.Build(events)
	byMonth := make(map[string]*models.PanelCell)
	for _, c := range cells {
		byMonth[c.MonYr] = c
	}

	// 5th percentile of {1,2,3,4} is 1.15; 2nd percentile is 1.06.
	eventFill := byMonth["05-2004"].AffectedNormalized
	emptyFill := byMonth["06-2004"].AffectedNormalized
	if math.Abs(eventFill-1.15) > 1e-9 {
		t.Errorf("expected event-cell fill 1.15, got %f", eventFill)
	}
	if math.Abs(emptyFill-1.06) > 1e-9 {
		t.Errorf("expected empty-cell fill 1.06, got %f", emptyFill)
	}
	if emptyFill >= eventFill {
		t.Error("empty-cell fill must sit below the event-cell fill")
	}

	// Log transform runs after infill, so both are finite.
	if math.IsInf(byMonth["06-2004"].LnAffectedNormalized, 0) || math.IsNaN(byMonth["06-2004"].LnAffectedNormalized) {
		t.Errorf("empty-cell log not finite: %f", byMonth["06-2004"].LnAffectedNormalized)
	}
	if math.Abs(byMonth["06-2004"].LnAffectedNormalized-math.Log(1.06)) > 1e-9 {
		t.Errorf("expected ln(1.06), got %f", byMonth["06-2004"].LnAffectedNormalized)
	}
}

func TestBuild_ExcludesRecoveryRowsAndNoMonth(t *testing.T) {
	b := &Builder{
		Boundary:  testBoundary(t),
		StartYear: 2004,
		EndYear:   2004,
	}
	recovered := panelEvent("r", 826, "07-2004", 1.0, 1.0)
	recovered.Flags = models.FlagSet{}.Add(models.FlagMissingAdmin)
	noMonth := panelEvent("n", 826, "", 1.0, 1.0)
	noMonth.MonYr = ""

	cells := b.Build([]*models.MonthlyEvent{
		panelEvent("a", 825, "03-2004", 1.0, 1.0),
		recovered,
		noMonth,
	})

	for _, c := range cells {
		if c.Adm1Code == 826 {
			t.Fatal("admin unit with only excluded rows must not enter the grid")
		}
	}
	if len(cells) != 12 {
		t.Errorf("expected 12 cells, got %d", len(cells))
	}
}

func TestBuild_AnomalyMerge(t *testing.T) {
	b := &Builder{
		Boundary:  testBoundary(t),
		StartYear: 2004,
		EndYear:   2004,
		Anomalies: map[int]map[string]float64{
			825: {"03-2004": 1.5},
		},
	}

	cells := b.Build([]*models.MonthlyEvent{panelEvent("a", 825, "03-2004", 1.0, 1.0)})
	byMonth := make(map[string]*models.PanelCell)
	for _, c := range cells {
		byMonth[c.MonYr] = c
	}

	if got := byMonth["03-2004"].PrecipStdAnom; got != 1.5 {
		t.Errorf("expected anomaly 1.5, got %f", got)
	}
	if !math.IsNaN(byMonth["04-2004"].PrecipStdAnom) {
		t.Error("expected NaN where climate coverage is missing")
	}
}
