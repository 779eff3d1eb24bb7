package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/smukkama/energy-workshop/internal/analysis"
	"github.com/smukkama/energy-workshop/internal/broadcast"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/metrics"
	"github.com/smukkama/energy-workshop/internal/timeseries"
)

// TeamStore is the part of the database the web layer reads and writes
type TeamStore interface {
	ListTeams(ctx context.Context) ([]*database.Team, error)
	GetTeam(ctx context.Context, teamID int) (*database.Team, error)
	TeamIDs(ctx context.Context) ([]int, error)
	UpdateTeamParameters(ctx context.Context, teamID int, params database.Parameters) (bool, error)
	LatestSimulationResult(ctx context.Context, teamID int) (*database.SimulationResult, error)
}

// Simulator starts background simulation batches
type Simulator interface {
	Submit(teamIDs []int) (string, error)
	SubmitTeam(teamID int) (string, error)
	Running() (string, bool)
}

// Deps wires the server. Metrics may be nil.
type Deps struct {
	Teams     TeamStore
	Simulator Simulator
	Results   timeseries.Loader
	Analysis  *analysis.Service
	Publisher broadcast.Publisher
	Hub       *broadcast.Hub
	Upgrader  *websocket.Upgrader
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Server serves the workshop REST API and the live update socket
type Server struct {
	teams     TeamStore
	simulator Simulator
	results   timeseries.Loader
	analysis  *analysis.Service
	publisher broadcast.Publisher
	hub       *broadcast.Hub
	upgrader  *websocket.Upgrader
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(deps Deps) *Server {
	return &Server{
		teams:     deps.Teams,
		simulator: deps.Simulator,
		results:   deps.Results,
		analysis:  deps.Analysis,
		publisher: deps.Publisher,
		hub:       deps.Hub,
		upgrader:  deps.Upgrader,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "http"),
	}
}

// Router registers every route
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	s.handle(r, "/health", s.health, http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.Handler(s.upgrader))
	}

	s.handle(r, "/api/teams", s.listTeams, http.MethodGet)
	s.handle(r, "/api/teams/{id:[0-9]+}", s.getTeam, http.MethodGet)
	s.handle(r, "/api/teams/{id:[0-9]+}/config", s.updateTeamConfig, http.MethodPost)
	s.handle(r, "/api/teams/{id:[0-9]+}/simulate", s.simulateTeam, http.MethodPost)
	s.handle(r, "/api/simulate/all", s.simulateAll, http.MethodPost)
	s.handle(r, "/api/simulate/selected", s.simulateSelected, http.MethodPost)

	s.handle(r, "/api/teams/{id:[0-9]+}/results", s.teamResults, http.MethodGet)
	s.handle(r, "/api/compare", s.compare, http.MethodGet)
	s.handle(r, "/api/compare/csv-data", s.compareCSVData, http.MethodGet)
	s.handle(r, "/api/compare/csv", s.compareCSV, http.MethodGet)

	s.handle(r, "/api/timeseries/summary", s.timeseriesSummary, http.MethodGet)
	s.handle(r, "/api/timeseries/compare", s.timeseriesCompare, http.MethodGet)
	s.handle(r, "/api/timeseries/team/{id:[0-9]+}", s.teamTimeseries, http.MethodGet)
	s.handle(r, "/api/timeseries/team/{id:[0-9]+}/variables", s.teamVariables, http.MethodGet)
	s.handle(r, "/api/timeseries/team/{id:[0-9]+}/variable/{key}", s.teamVariable, http.MethodGet)
	s.handle(r, "/api/timeseries/team/{id:[0-9]+}/sankey", s.teamSankey, http.MethodGet)

	return r
}

func (s *Server) handle(r *mux.Router, path string, h http.HandlerFunc, methods ...string) {
	r.Handle(path, s.metrics.WrapHandler(path, h)).Methods(methods...)
}

// Handler wraps the router with CORS and panic recovery. Requests are
// logged to accessLog when it is not nil.
func (s *Server) Handler(allowedOrigins []string, accessLog io.Writer) http.Handler {
	var h http.Handler = s.Router()

	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)(h)

	h = handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)

	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	batchID, running := s.simulator.Running()
	body := map[string]any{"status": "ok", "batch_running": running}
	if running {
		body["batch_id"] = batchID
	}
	if s.hub != nil {
		body["listeners"] = s.hub.Count()
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

// internalError logs err and answers 500 with a short detail
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, detail string, err error) {
	s.logger.Error(detail, "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusInternalServerError, detail+": "+err.Error())
}

func teamID(r *http.Request) int {
	// The route pattern only admits digits.
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}
