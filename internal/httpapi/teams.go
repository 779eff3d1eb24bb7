package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/smukkama/energy-workshop/internal/coordinator"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/events"
)

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.teams.ListTeams(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list teams", err)
		return
	}
	if teams == nil {
		teams = []*database.Team{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// loadTeam writes a 404 and returns nil when the team does not exist
func (s *Server) loadTeam(w http.ResponseWriter, r *http.Request) *database.Team {
	team, err := s.teams.GetTeam(r.Context(), teamID(r))
	if err != nil {
		s.internalError(w, r, "failed to load team", err)
		return nil
	}
	if team == nil {
		s.writeError(w, http.StatusNotFound, "Team not found")
		return nil
	}
	return team
}

func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	if team := s.loadTeam(w, r); team != nil {
		s.writeJSON(w, http.StatusOK, team)
	}
}

func validateParameters(p database.Parameters) error {
	counts := map[string]int{
		"windturbines": p.Windturbines,
		"chps":         p.CHPs,
		"boilers":      p.Boilers,
		"pv_plants":    p.PVPlants,
		"heat_pumps":   p.HeatPumps,
	}
	for name, v := range counts {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	sizes := map[string]float64{
		"pv_area":            p.PVArea,
		"solar_thermal_area": p.SolarThermalArea,
		"electrical_storage": p.ElectricalStorage,
		"thermal_storage":    p.ThermalStorage,
	}
	for name, v := range sizes {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (s *Server) updateTeamConfig(w http.ResponseWriter, r *http.Request) {
	id := teamID(r)

	var params database.Parameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid configuration: "+err.Error())
		return
	}
	if err := validateParameters(params); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := s.teams.UpdateTeamParameters(r.Context(), id, params)
	if err != nil {
		s.internalError(w, r, "failed to update team", err)
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "Team not found")
		return
	}

	e, err := events.New(events.TeamUpdated).ForTeam(id).WithConfig(params)
	if err != nil {
		s.logger.Error("team update not broadcast", "team_id", id, "error", err)
	} else {
		s.publisher.Broadcast(r.Context(), e)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Team configuration updated"})
}

// submitted answers a started batch, or 409 when another batch runs
func (s *Server) submitted(w http.ResponseWriter, r *http.Request, batchID string, err error, body map[string]any) {
	if errors.Is(err, coordinator.ErrBatchInProgress) {
		running, _ := s.simulator.Running()
		s.writeJSON(w, http.StatusConflict, map[string]any{"detail": err.Error(), "batch_id": running})
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to start simulation", err)
		return
	}
	body["batch_id"] = batchID
	s.writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) simulateTeam(w http.ResponseWriter, r *http.Request) {
	team := s.loadTeam(w, r)
	if team == nil {
		return
	}
	batchID, err := s.simulator.SubmitTeam(team.ID)
	s.submitted(w, r, batchID, err, map[string]any{
		"message": "Simulation started",
		"team_id": team.ID,
	})
}

func (s *Server) simulateAll(w http.ResponseWriter, r *http.Request) {
	ids, err := s.teams.TeamIDs(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list teams", err)
		return
	}
	if len(ids) == 0 {
		s.writeError(w, http.StatusBadRequest, "no teams configured")
		return
	}

	batchID, err := s.simulator.Submit(ids)
	s.submitted(w, r, batchID, err, map[string]any{
		"message":  fmt.Sprintf("Sequential simulation started for %d teams", len(ids)),
		"team_ids": ids,
	})
}

func (s *Server) simulateSelected(w http.ResponseWriter, r *http.Request) {
	var ids []int
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected a JSON array of team ids: "+err.Error())
		return
	}
	if len(ids) == 0 {
		s.writeError(w, http.StatusBadRequest, "no team ids given")
		return
	}

	known, err := s.teams.TeamIDs(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list teams", err)
		return
	}
	var invalid []int
	for _, id := range ids {
		if !slices.Contains(known, id) {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid team IDs: %v", invalid))
		return
	}

	batchID, err := s.simulator.Submit(ids)
	s.submitted(w, r, batchID, err, map[string]any{
		"message":  fmt.Sprintf("Sequential simulation started for %d selected teams", len(ids)),
		"team_ids": ids,
	})
}
