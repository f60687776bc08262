package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cskoven/go-flood-panel/internal/models"
	"github.com/cskoven/go-flood-panel/internal/repository"
)

// mockStore implements both repository interfaces for testing.
type mockStore struct {
	events []*models.MonthlyEvent
	cells  []*models.PanelCell
}

func (m *mockStore) ReplaceEvents(ctx context.Context, events []*models.MonthlyEvent) error {
	m.events = events
	return nil
}

func (m *mockStore) GetEventByKey(ctx context.Context, key string) (*models.MonthlyEvent, error) {
	for _, ev := range m.events {
		if ev.Key == key {
			return ev, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) ListEvents(ctx context.Context, opts repository.Filter) ([]*models.MonthlyEvent, error) {
	results := m.events

	if opts.Adm1Code != nil {
		var filtered []*models.MonthlyEvent
		for _, ev := range results {
			if ev.Adm1Code == *opts.Adm1Code {
				filtered = append(filtered, ev)
			}
		}
		results = filtered
	}
	if opts.Flag != nil {
		var filtered []*models.MonthlyEvent
		for _, ev := range results {
			if ev.Flags.Contains(*opts.Flag) {
				filtered = append(filtered, ev)
			}
		}
		results = filtered
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *mockStore) ReplacePanel(ctx context.Context, cells []*models.PanelCell) error {
	m.cells = cells
	return nil
}

func (m *mockStore) ListPanel(ctx context.Context, opts repository.Filter) ([]*models.PanelCell, error) {
	results := m.cells
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func testMonthlyEvent(id, key string, adm1 int) *models.MonthlyEvent {
	ev := &models.MonthlyEvent{
		Key:        key,
		MonYr:      "07-2004",
		Normalized: models.NewNormalizedImpacts(),
		Flags:      models.FlagSet{}.Add(models.FlagPopWeighted),
	}
	ev.ID = id
	ev.Adm1Code = adm1
	ev.TotalAffected = math.NaN()
	ev.TotalDamageAdj = 600
	ev.TotalDeaths = math.NaN()
	ev.TotalDamage = math.NaN()
	ev.CPI = math.NaN()
	return ev
}

func setupTestRouter(store *mockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(store, store)
	handler.RegisterRoutes(router)
	return router
}

func TestGetEvents_ReturnsJSON(t *testing.T) {
	store := &mockStore{
		events: []*models.MonthlyEvent{
			testMonthlyEvent("2004-0481-CAN", "07-2004-0481-CAN-825", 825),
		},
	}

	router := setupTestRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/events", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Events []eventResponse `json:"events"`
		Count  int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 1 || len(resp.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", resp.Count)
	}

	ev := resp.Events[0]
	if ev.Key != "07-2004-0481-CAN-825" {
		t.Errorf("unexpected key %s", ev.Key)
	}
	// NaN fields must serialize as JSON null, not break encoding.
	if ev.TotalAffected != nil {
		t.Errorf("expected null total_affected, got %v", *ev.TotalAffected)
	}
	if ev.TotalDamageAdj == nil || *ev.TotalDamageAdj != 600 {
		t.Error("expected total_damage_adjusted 600")
	}
	if ev.Flags != "14" {
		t.Errorf("expected flags \"14\", got %q", ev.Flags)
	}
}

func TestGetEvents_Adm1Filter(t *testing.T) {
	store := &mockStore{
		events: []*models.MonthlyEvent{
			testMonthlyEvent("a", "07-a-825", 825),
			testMonthlyEvent("b", "07-b-826", 826),
			testMonthlyEvent("c", "08-c-825", 825),
		},
	}

	router := setupTestRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/events?adm1=825", nil)
	router.ServeHTTP(w, req)

	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Count != 2 {
		t.Errorf("expected 2 events for adm1 825, got %d", resp.Count)
	}
}

func TestGetEvent_ByKey(t *testing.T) {
	store := &mockStore{
		events: []*models.MonthlyEvent{
			testMonthlyEvent("a", "07-a-825", 825),
		},
	}

	router := setupTestRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/events/07-a-825", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/events/missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetFlagSummary(t *testing.T) {
	store := &mockStore{
		events: []*models.MonthlyEvent{
			testMonthlyEvent("a", "07-a-825", 825),
			testMonthlyEvent("a", "08-a-825", 825),
		},
	}

	router := setupTestRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/flags", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Flags []flagStatResponse `json:"flags"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Flags) != 1 || resp.Flags[0].Flag != 14 {
		t.Fatalf("expected one flag-14 row, got %+v", resp.Flags)
	}
	if resp.Flags[0].SubEvents != 2 || resp.Flags[0].Events != 1 {
		t.Errorf("unexpected counts: %+v", resp.Flags[0])
	}
}

func TestGetPanel(t *testing.T) {
	store := &mockStore{
		cells: []*models.PanelCell{
			{Adm1Code: 825, MonYr: "01-2004", PrecipStdAnom: math.NaN()},
			{Adm1Code: 825, MonYr: "02-2004", EventOccurrance: 1, TotalAffected: 1000, PrecipStdAnom: 0.5},
		},
	}

	router := setupTestRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/panel", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Cells []panelResponse `json:"cells"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 cells, got %d", resp.Count)
	}
	if resp.Cells[0].PrecipStdAnom != nil {
		t.Error("expected null anomaly for missing coverage")
	}
	if resp.Cells[1].PrecipStdAnom == nil || *resp.Cells[1].PrecipStdAnom != 0.5 {
		t.Error("expected anomaly 0.5")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	limited := false
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected the burst to hit the rate limit")
	}
}
