package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/smukkama/energy-workshop/internal/sankey"
	"github.com/smukkama/energy-workshop/internal/timeseries"
)

// compareRanges are the windows accepted by the cross-team comparison
var compareRanges = map[string]int{
	"hour":  1,
	"day":   24,
	"week":  168,
	"month": 744,
	"year":  8760,
	"all":   8760,
}

// maxHour bounds comparison windows to one year
const maxHour = timeseries.SyntheticHours

func (s *Server) timeseriesSummary(w http.ResponseWriter, r *http.Request) {
	ids, err := s.teams.TeamIDs(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list teams", err)
		return
	}
	summary, err := timeseries.Summary(r.Context(), s.results, ids)
	if err != nil {
		s.internalError(w, r, "Error getting timeseries summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// loadBundle validates the team and loads its bundle. Unknown teams are a
// 400. ok is false when a response was already written.
func (s *Server) loadBundle(w http.ResponseWriter, r *http.Request) (int, *timeseries.Bundle, bool) {
	id := teamID(r)
	team, err := s.teams.GetTeam(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "failed to load team", err)
		return id, nil, false
	}
	if team == nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown team %d", id))
		return id, nil, false
	}

	b, err := s.results.Load(r.Context(), id)
	if err != nil {
		s.internalError(w, r, fmt.Sprintf("Error loading timeseries for team %d", id), err)
		return id, nil, false
	}
	return id, b, true
}

func (s *Server) teamTimeseries(w http.ResponseWriter, r *http.Request) {
	id, b, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	if b == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("No timeseries data found for team %d", id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"team_id": id, "data": b})
}

func (s *Server) teamVariables(w http.ResponseWriter, r *http.Request) {
	id, b, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	vars := timeseries.Variables(b)
	if vars == nil {
		vars = []timeseries.Variable{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"team_id": id, "variables": vars})
}

func (s *Server) teamVariable(w http.ResponseWriter, r *http.Request) {
	id, b, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	series, found := timeseries.Lookup(b, key)
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for variable '%s' in team %d", key, id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"team_id":  id,
		"variable": key,
		"time":     b.Time,
		"hour":     b.Hour,
		"data":     series,
	})
}

func (s *Server) teamSankey(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("time_period")
	if raw == "" {
		raw = "year"
	}
	period, err := sankey.ParsePeriod(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, b, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	graph := sankey.Project(id, b, period)
	if graph == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("No energy flow data found for team %d", id))
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

// parseTeamSelection resolves "all" or a comma separated id list against
// the known teams. Unknown and malformed ids are dropped.
func parseTeamSelection(raw string, known []int) []int {
	if raw == "" || raw == "all" {
		return known
	}
	isKnown := make(map[int]bool, len(known))
	for _, id := range known {
		isKnown[id] = true
	}

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil && isKnown[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) timeseriesCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	variable := q.Get("variable")
	if variable == "" {
		s.writeError(w, http.StatusBadRequest, "variable is required")
		return
	}

	timeRange := q.Get("time_range")
	if timeRange == "" {
		timeRange = "all"
	}
	hours, ok := compareRanges[timeRange]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid time range")
		return
	}

	startHour := 0
	if raw := q.Get("start_hour"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			s.writeError(w, http.StatusBadRequest, "start_hour must be a non-negative integer")
			return
		}
		startHour = v
	}
	endHour := min(startHour+hours, maxHour)
	if endHour < startHour {
		endHour = startHour
	}

	known, err := s.teams.TeamIDs(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list teams", err)
		return
	}
	ids := parseTeamSelection(q.Get("teams"), known)
	if len(ids) == 0 {
		s.writeError(w, http.StatusBadRequest, "No valid team IDs provided")
		return
	}

	teams := make(map[string][]float64, len(ids))
	for _, id := range ids {
		b, err := s.results.Load(r.Context(), id)
		if err != nil {
			s.internalError(w, r, "Error in timeseries comparison", err)
			return
		}
		series, found := timeseries.Lookup(b, variable)
		if !found {
			continue
		}
		window := []float64{}
		if endHour > startHour {
			window = timeseries.Window(series, startHour, endHour-startHour)
		}
		teams[fmt.Sprintf("Team_%02d", id)] = window
	}

	axis := make([]int, 0, endHour-startHour)
	for h := startHour; h < endHour; h++ {
		axis = append(axis, h)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"variable":   variable,
		"time_range": timeRange,
		"start_hour": startHour,
		"end_hour":   endHour,
		"teams":      teams,
		"time_axis":  axis,
	})
}
