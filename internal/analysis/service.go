package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/smukkama/energy-workshop/internal/timeseries"
	"github.com/smukkama/energy-workshop/pkg/config"
)

// Service runs the cohort aggregation pass and serves the resulting table
type Service struct {
	econ      config.EconomicsConfig
	tablePath string
	loader    timeseries.Loader
	logger    *slog.Logger
}

// NewService creates a service writing its table into tablesDir
func NewService(econ config.EconomicsConfig, tablesDir string, loader timeseries.Loader, logger *slog.Logger) *Service {
	return &Service{
		econ:      econ,
		tablePath: filepath.Join(tablesDir, TableFileName),
		loader:    loader,
		logger:    logger.With("component", "analysis"),
	}
}

// TablePath is where the comparison table lives
func (s *Service) TablePath() string {
	return s.tablePath
}

// Evaluate computes the KPI row of one team
func (s *Service) Evaluate(team Team, b *timeseries.Bundle) Row {
	return Summarize(team, b, s.econ)
}

// Aggregate summarizes every team in roster order and replaces the table.
// Every team must have results.
func (s *Service) Aggregate(ctx context.Context, teams []Team) ([]Row, error) {
	if len(teams) == 0 {
		return nil, ErrNoTeams
	}

	rows := make([]Row, 0, len(teams))
	for _, team := range teams {
		b, err := s.loader.Load(ctx, team.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load results of team %d: %w", team.ID, err)
		}
		if b == nil {
			return nil, fmt.Errorf("team %d (%s): %w", team.ID, team.Name, ErrMissingResults)
		}
		rows = append(rows, s.Evaluate(team, b))
	}

	if err := WriteTable(s.tablePath, rows); err != nil {
		return nil, err
	}

	s.logger.Info("comparison table written", "teams", len(rows), "path", s.tablePath)
	return rows, nil
}

// Rows reads the current comparison table
func (s *Service) Rows() ([]Row, error) {
	return ReadTable(s.tablePath)
}

// RowFor finds the row of a team by name
func (s *Service) RowFor(teamName string) (Row, bool, error) {
	rows, err := s.Rows()
	if err != nil {
		return Row{}, false, err
	}
	for _, r := range rows {
		if r.TeamName == teamName {
			return r, true, nil
		}
	}
	return Row{}, false, nil
}

var (
	ErrNoTeams        = &AnalysisError{"no teams to analyse"}
	ErrMissingResults = &AnalysisError{"team has no simulation results"}
)

// AnalysisError represents an aggregation error
type AnalysisError struct {
	msg string
}

func (e *AnalysisError) Error() string {
	return e.msg
}
