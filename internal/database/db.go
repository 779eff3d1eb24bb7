package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/smukkama/energy-workshop/internal/status"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// SeedTeams creates one team per name when the teams table is empty.
// It returns the number of teams inserted.
func (db *DB) SeedTeams(ctx context.Context, names []string, params Parameters) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for i, name := range names {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, parameters)
			VALUES ($1, $2, $3)
		`, i+1, name, raw)
		if err != nil {
			return 0, fmt.Errorf("failed to seed team %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(names), nil
}

const teamColumns = `id, name, parameters, simulation_status, created_at, updated_at`

func scanTeam(row interface{ Scan(...any) error }) (*Team, error) {
	var (
		t   Team
		raw []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &raw, &t.SimulationStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &t.Parameters); err != nil {
		return nil, fmt.Errorf("team %d has malformed parameters: %w", t.ID, err)
	}
	return &t, nil
}

// ListTeams returns every team ordered by id
func (db *DB) ListTeams(ctx context.Context) ([]*Team, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

// GetTeam retrieves a team by id. A missing team yields nil, nil.
func (db *DB) GetTeam(ctx context.Context, teamID int) (*Team, error) {
	t, err := scanTeam(db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TeamIDs returns the ids of every known team
func (db *DB) TeamIDs(ctx context.Context) ([]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateTeamParameters replaces a team's parameters. It reports whether the
// team exists.
func (db *DB) UpdateTeamParameters(ctx context.Context, teamID int, params Parameters) (bool, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx, `
		UPDATE teams
		SET parameters = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, raw, teamID)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	return n > 0, err
}

// TransitionStatus moves a team to status `to` if its current status is one
// of `from`. The check and the write happen in one statement.
func (db *DB) TransitionStatus(ctx context.Context, teamID int, to status.Status, from []status.Status) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE teams
		SET simulation_status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND simulation_status = ANY($3)
	`, string(to), teamID, pq.Array(allowed))
	if err != nil {
		return fmt.Errorf("failed to update status of team %d: %w", teamID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	current, found, err := db.SimulationStatus(ctx, teamID)
	if err != nil {
		return err
	}
	if !found {
		return status.ErrUnknownTeam
	}
	return fmt.Errorf("team %d %s -> %s: %w", teamID, current, to, status.ErrInvalidTransition)
}

// SimulationStatus returns the stored status of a team and whether the team
// exists.
func (db *DB) SimulationStatus(ctx context.Context, teamID int) (status.Status, bool, error) {
	var s status.Status
	err := db.QueryRowContext(ctx, `SELECT simulation_status FROM teams WHERE id = $1`, teamID).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return status.Idle, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// ResetStatuses moves every team currently in `from` to `to`
func (db *DB) ResetStatuses(ctx context.Context, from, to status.Status) (int64, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE teams
		SET simulation_status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE simulation_status = $2
	`, string(to), string(from))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// StoreSimulationResult appends a result row for a team
func (db *DB) StoreSimulationResult(ctx context.Context, r *SimulationResult) error {
	query := `
		INSERT INTO simulation_results (
			team_id, energy_cost, co2_emissions, renewable_share, synthetic, results_data
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	return db.QueryRowContext(ctx, query,
		r.TeamID,
		r.EnergyCost,
		r.CO2Emissions,
		r.RenewableShare,
		r.Synthetic,
		[]byte(r.Data),
	).Scan(&r.ID, &r.CreatedAt)
}

// LatestSimulationResult returns the newest result of a team, or nil
func (db *DB) LatestSimulationResult(ctx context.Context, teamID int) (*SimulationResult, error) {
	query := `
		SELECT id, team_id, energy_cost, co2_emissions, renewable_share,
		       synthetic, results_data, created_at
		FROM simulation_results
		WHERE team_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var (
		r   SimulationResult
		raw []byte
	)
	err := db.QueryRowContext(ctx, query, teamID).Scan(
		&r.ID,
		&r.TeamID,
		&r.EnergyCost,
		&r.CO2Emissions,
		&r.RenewableShare,
		&r.Synthetic,
		&raw,
		&r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Data = raw
	return &r, nil
}

// InsertEvents writes a batch of journaled events in one transaction
func (db *DB) InsertEvents(ctx context.Context, records []*EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO workshop_events (event_type, team_id, batch_id, payload, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.EventType,
			rec.TeamID,
			rec.BatchID,
			[]byte(rec.Payload),
			rec.OccurredAt,
			rec.ReceivedAt,
		); err != nil {
			return fmt.Errorf("failed to insert %s event: %w", rec.EventType, err)
		}
	}

	return tx.Commit()
}
