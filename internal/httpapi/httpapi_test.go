package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/smukkama/energy-workshop/internal/analysis"
	"github.com/smukkama/energy-workshop/internal/broadcast"
	"github.com/smukkama/energy-workshop/internal/coordinator"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/events"
	"github.com/smukkama/energy-workshop/internal/logging"
	"github.com/smukkama/energy-workshop/internal/metrics"
	"github.com/smukkama/energy-workshop/internal/status"
	"github.com/smukkama/energy-workshop/internal/timeseries"
	"github.com/smukkama/energy-workshop/pkg/config"
	"gotest.tools/v3/assert"
)

type memStore struct {
	mu      sync.Mutex
	teams   map[int]*database.Team
	results map[int]*database.SimulationResult
}

func (m *memStore) ListTeams(_ context.Context) ([]*database.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Team
	for _, t := range m.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetTeam(_ context.Context, teamID int) (*database.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teams[teamID], nil
}

func (m *memStore) TeamIDs(ctx context.Context) ([]int, error) {
	teams, _ := m.ListTeams(ctx)
	ids := make([]int, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	return ids, nil
}

func (m *memStore) UpdateTeamParameters(_ context.Context, teamID int, params database.Parameters) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return false, nil
	}
	t.Parameters = params
	return true, nil
}

func (m *memStore) LatestSimulationResult(_ context.Context, teamID int) (*database.SimulationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[teamID], nil
}

type fakeSimulator struct {
	submitted [][]int
	err       error
}

func (f *fakeSimulator) Submit(teamIDs []int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, teamIDs)
	return "batch-1", nil
}

func (f *fakeSimulator) SubmitTeam(teamID int) (string, error) {
	return f.Submit([]int{teamID})
}

func (f *fakeSimulator) Running() (string, bool) {
	if f.err != nil {
		return "batch-0", true
	}
	return "", false
}

type stubLoader map[int]*timeseries.Bundle

func (s stubLoader) Load(_ context.Context, teamID int) (*timeseries.Bundle, error) {
	return s[teamID], nil
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Broadcast(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

type fixture struct {
	handler http.Handler
	store   *memStore
	sim     *fakeSimulator
	events  *recorder
	svc     *analysis.Service
	loader  stubLoader
}

func flat(v float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func testBundle(hours int) *timeseries.Bundle {
	times := make([]string, hours)
	b := timeseries.NewBundle(times)
	b.Electricity[timeseries.Demand] = flat(10, hours)
	b.Electricity[timeseries.GridImport] = flat(4, hours)
	b.Production[timeseries.PV] = flat(6, hours)
	b.Heat[timeseries.Demand] = flat(5, hours)
	b.Heat[timeseries.GridImport] = flat(5, hours)
	return b
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &memStore{
		teams: map[int]*database.Team{
			1: {ID: 1, Name: "Moabit", Parameters: database.DefaultParameters(), SimulationStatus: status.Completed},
			2: {ID: 2, Name: "Kreuzberg", Parameters: database.DefaultParameters(), SimulationStatus: status.Idle},
		},
		results: map[int]*database.SimulationResult{},
	}
	loader := stubLoader{1: testBundle(48)}
	svc := analysis.NewService(config.EconomicsConfig{Lifetime: 20}, filepath.Join(t.TempDir(), "tables"), loader, logging.Discard())
	sim := &fakeSimulator{}
	rec := &recorder{}

	srv := New(Deps{
		Teams:     store,
		Simulator: sim,
		Results:   loader,
		Analysis:  svc,
		Publisher: rec,
		Hub:       broadcast.NewHub(broadcast.HubConfig{}, nil, logging.Discard()),
		Upgrader:  broadcast.NewUpgrader([]string{"*"}),
		Metrics:   metrics.New(),
		Logger:    logging.Discard(),
	})
	return &fixture{
		handler: srv.Handler([]string{"*"}, nil),
		store:   store,
		sim:     sim,
		events:  rec,
		svc:     svc,
		loader:  loader,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, body["status"], "ok")
	assert.Equal(t, body["batch_running"], false)
	assert.Equal(t, body["listeners"], 0.0)
}

func TestTeams_ListAndGet(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/teams", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var list struct {
		Teams []database.Team `json:"teams"`
	}
	decode(t, rec, &list)
	assert.Equal(t, len(list.Teams), 2)
	assert.Equal(t, list.Teams[0].Name, "Moabit")

	rec = f.do(t, http.MethodGet, "/api/teams/2", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var team database.Team
	decode(t, rec, &team)
	assert.Equal(t, team.SimulationStatus, status.Idle)

	rec = f.do(t, http.MethodGet, "/api/teams/9", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestUpdateTeamConfig(t *testing.T) {
	f := newFixture(t)

	body := `{"windturbines":4,"chps":0,"boilers":1,"pv_plants":0,"heat_pumps":2,"pv_area":1.5,"solar_thermal_area":0,"electrical_storage":1,"thermal_storage":0.5}`
	rec := f.do(t, http.MethodPost, "/api/teams/2/config", body)
	assert.Equal(t, rec.Code, http.StatusOK, rec.Body.String())
	assert.Equal(t, f.store.teams[2].Parameters.Windturbines, 4)
	assert.Equal(t, f.store.teams[2].Parameters.PVArea, 1.5)

	assert.Equal(t, len(f.events.events), 1)
	e := f.events.events[0]
	assert.Equal(t, e.Type, events.TeamUpdated)
	assert.Equal(t, e.TeamID, 2)
	var cfg database.Parameters
	assert.NilError(t, json.Unmarshal(e.Config, &cfg))
	assert.Equal(t, cfg.HeatPumps, 2)

	rec = f.do(t, http.MethodPost, "/api/teams/2/config", `{"chps":-1}`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodPost, "/api/teams/2/config", `not json`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodPost, "/api/teams/9/config", `{}`)
	assert.Equal(t, rec.Code, http.StatusNotFound)
	assert.Equal(t, len(f.events.events), 1)
}

func TestSimulate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/teams/1/simulate", "")
	assert.Equal(t, rec.Code, http.StatusAccepted)

	rec = f.do(t, http.MethodPost, "/api/simulate/all", "")
	assert.Equal(t, rec.Code, http.StatusAccepted)
	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, body["batch_id"], "batch-1")

	rec = f.do(t, http.MethodPost, "/api/simulate/selected", `[2]`)
	assert.Equal(t, rec.Code, http.StatusAccepted)

	assert.DeepEqual(t, f.sim.submitted, [][]int{{1}, {1, 2}, {2}})

	rec = f.do(t, http.MethodPost, "/api/teams/9/simulate", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestSimulateSelected_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/simulate/selected", `[1, 9]`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	assert.Assert(t, strings.Contains(rec.Body.String(), "Invalid team IDs: [9]"))

	rec = f.do(t, http.MethodPost, "/api/simulate/selected", `[]`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodPost, "/api/simulate/selected", `{"ids":[1]}`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	assert.Equal(t, len(f.sim.submitted), 0)
}

func TestSimulate_ConflictWhileBatchRuns(t *testing.T) {
	f := newFixture(t)
	f.sim.err = coordinator.ErrBatchInProgress

	rec := f.do(t, http.MethodPost, "/api/simulate/all", "")
	assert.Equal(t, rec.Code, http.StatusConflict)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, body["batch_id"], "batch-0")
}

func TestTeamResults_Sources(t *testing.T) {
	f := newFixture(t)

	// Nothing yet: zeros under the team's name.
	rec := f.do(t, http.MethodGet, "/api/teams/2/results", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var result analysis.Result
	decode(t, rec, &result)
	assert.Equal(t, result.TeamName, "Kreuzberg")
	assert.Equal(t, result.EnergyCost, 0.0)

	// Stored per-team result.
	stored, err := json.Marshal(analysis.Result{TeamName: "Kreuzberg", EnergyCost: 2.5, Synthetic: true})
	assert.NilError(t, err)
	f.store.results[2] = &database.SimulationResult{TeamID: 2, Synthetic: true, Data: stored}
	rec = f.do(t, http.MethodGet, "/api/teams/2/results", "")
	decode(t, rec, &result)
	assert.Equal(t, result.EnergyCost, 2.5)

	// The comparison table wins.
	assert.NilError(t, analysis.WriteTable(f.svc.TablePath(), []analysis.Row{{TeamName: "Kreuzberg", Costs: 3.456}}))
	rec = f.do(t, http.MethodGet, "/api/teams/2/results", "")
	result = analysis.Result{}
	decode(t, rec, &result)
	assert.Equal(t, result.EnergyCost, 3.46)
	assert.Assert(t, result.Synthetic)
}

func TestCompare_OnlyCompletedTeamsWithCosts(t *testing.T) {
	f := newFixture(t)
	assert.NilError(t, analysis.WriteTable(f.svc.TablePath(), []analysis.Row{
		{TeamName: "Moabit", Costs: 1.5},
		{TeamName: "Kreuzberg", Costs: 2.5},
	}))

	rec := f.do(t, http.MethodGet, "/api/compare", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	var body struct {
		Teams []map[string]any `json:"teams"`
	}
	decode(t, rec, &body)
	assert.Equal(t, len(body.Teams), 1)
	assert.Equal(t, body.Teams[0]["team_id"], 1.0)
	assert.Equal(t, body.Teams[0]["team_name"], "Moabit")
	assert.Equal(t, body.Teams[0]["energy_cost"], 1.5)
}

func TestCompareCSV(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/compare/csv", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)

	rec = f.do(t, http.MethodGet, "/api/compare/csv-data", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, strings.TrimSpace(rec.Body.String()), "[]")

	assert.NilError(t, analysis.WriteTable(f.svc.TablePath(), []analysis.Row{{TeamName: "Moabit", Costs: 1.5}}))

	rec = f.do(t, http.MethodGet, "/api/compare/csv", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(rec.Header().Get("Content-Disposition"), "team_comparison_results.csv"))
	assert.Assert(t, strings.HasPrefix(rec.Body.String(), "team name,costs,"))

	rec = f.do(t, http.MethodGet, "/api/compare/csv-data", "")
	var rows []map[string]any
	decode(t, rec, &rows)
	assert.Equal(t, len(rows), 1)
	assert.Equal(t, rows[0]["team name"], "Moabit")
	assert.Equal(t, rows[0]["costs"], 1.5)
}

func TestTimeseries_TeamEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/timeseries/team/1", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	rec = f.do(t, http.MethodGet, "/api/timeseries/team/2", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)

	rec = f.do(t, http.MethodGet, "/api/timeseries/team/9", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/timeseries/team/1/variables", "")
	var vars struct {
		Variables []timeseries.Variable `json:"variables"`
	}
	decode(t, rec, &vars)
	assert.Equal(t, len(vars.Variables), 5)

	// pv production falls back to the production group
	rec = f.do(t, http.MethodGet, "/api/timeseries/team/1/variable/electricity_pv_production", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var variable struct {
		Data []float64 `json:"data"`
		Hour []int     `json:"hour"`
	}
	decode(t, rec, &variable)
	assert.Equal(t, len(variable.Data), 48)
	assert.Equal(t, variable.Data[0], 6.0)

	rec = f.do(t, http.MethodGet, "/api/timeseries/team/1/variable/heat_excess", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestTimeseries_Sankey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/timeseries/team/1/sankey?time_period=fortnight", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/timeseries/team/1/sankey?time_period=day", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var graph struct {
		TimePeriod       string  `json:"time_period"`
		TotalElectricity float64 `json:"total_electricity"`
	}
	decode(t, rec, &graph)
	assert.Equal(t, graph.TimePeriod, "day")

	rec = f.do(t, http.MethodGet, "/api/timeseries/team/2/sankey", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestTimeseries_Compare(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/timeseries/compare?variable=electricity_demand&teams=1,2,x&time_range=day&start_hour=30", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	var body struct {
		StartHour int                  `json:"start_hour"`
		EndHour   int                  `json:"end_hour"`
		Teams     map[string][]float64 `json:"teams"`
		TimeAxis  []int                `json:"time_axis"`
	}
	decode(t, rec, &body)
	assert.Equal(t, body.StartHour, 30)
	assert.Equal(t, body.EndHour, 54)
	assert.Equal(t, len(body.TimeAxis), 24)
	// team 1 has 48 hours, so only 18 remain; team 2 has no data
	assert.Equal(t, len(body.Teams["Team_01"]), 18)
	_, ok := body.Teams["Team_02"]
	assert.Assert(t, !ok)

	rec = f.do(t, http.MethodGet, "/api/timeseries/compare?variable=electricity_demand&time_range=decade", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/timeseries/compare?variable=electricity_demand&teams=7", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/timeseries/compare?teams=1", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestTimeseries_Summary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/timeseries/summary", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var body struct {
		Summary map[string]timeseries.TeamSummary `json:"summary"`
	}
	decode(t, rec, &body)
	assert.Assert(t, body.Summary["Team_01"].Available)
	assert.Assert(t, !body.Summary["Team_02"].Available)
}

func TestHandler_CORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	req.Header.Set("Origin", "http://workshop.local")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, rec.Header().Get("Access-Control-Allow-Origin") != "")
}
