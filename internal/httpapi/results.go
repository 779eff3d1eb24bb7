package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/smukkama/energy-workshop/internal/analysis"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/status"
)

// comparisonEntry is a result tagged with its team id
type comparisonEntry struct {
	TeamID int `json:"team_id"`
	analysis.Result
}

// resultFor builds the result payload of a team. The comparison table wins
// over the stored per-team result; a team without either gets zeros.
func (s *Server) resultFor(ctx context.Context, team *database.Team) (analysis.Result, error) {
	latest, err := s.teams.LatestSimulationResult(ctx, team.ID)
	if err != nil {
		return analysis.Result{}, err
	}

	row, ok, err := s.analysis.RowFor(team.Name)
	if err != nil {
		return analysis.Result{}, err
	}
	if ok {
		return analysis.ResultFromRow(row, latest != nil && latest.Synthetic), nil
	}

	if latest != nil {
		var result analysis.Result
		if err := json.Unmarshal(latest.Data, &result); err != nil {
			return analysis.Result{}, err
		}
		return result, nil
	}

	return analysis.Result{TeamName: team.Name}, nil
}

func (s *Server) teamResults(w http.ResponseWriter, r *http.Request) {
	team := s.loadTeam(w, r)
	if team == nil {
		return
	}
	result, err := s.resultFor(r.Context(), team)
	if err != nil {
		s.internalError(w, r, "failed to load results", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// compare lists completed teams that have real results
func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	teams, err := s.teams.ListTeams(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list teams", err)
		return
	}

	entries := []comparisonEntry{}
	for _, team := range teams {
		if team.SimulationStatus != status.Completed {
			continue
		}
		result, err := s.resultFor(r.Context(), team)
		if err != nil {
			s.internalError(w, r, "failed to load results", err)
			return
		}
		if result.EnergyCost > 0 {
			entries = append(entries, comparisonEntry{TeamID: team.ID, Result: result})
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"teams": entries})
}

func (s *Server) compareCSVData(w http.ResponseWriter, r *http.Request) {
	rows, err := s.analysis.Rows()
	if err != nil {
		s.internalError(w, r, "Error reading CSV data", err)
		return
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = row.Map()
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) compareCSV(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.analysis.TablePath())
	if errors.Is(err, fs.ErrNotExist) {
		s.writeError(w, http.StatusNotFound, "Results CSV not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to open results", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.internalError(w, r, "failed to open results", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="team_comparison_results.csv"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
