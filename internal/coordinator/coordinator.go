package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smukkama/energy-workshop/internal/analysis"
	"github.com/smukkama/energy-workshop/internal/broadcast"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/events"
	"github.com/smukkama/energy-workshop/internal/metrics"
	"github.com/smukkama/energy-workshop/internal/optimizer"
	"github.com/smukkama/energy-workshop/internal/status"
	"github.com/smukkama/energy-workshop/internal/timeseries"
)

// TeamStore is the part of the database the coordinator needs
type TeamStore interface {
	GetTeam(ctx context.Context, teamID int) (*database.Team, error)
	ListTeams(ctx context.Context) ([]*database.Team, error)
	StoreSimulationResult(ctx context.Context, r *database.SimulationResult) error
}

// Deps wires the coordinator. Metrics may be nil.
type Deps struct {
	Teams     TeamStore
	Tracker   *status.Tracker
	Runner    optimizer.Runner
	Results   timeseries.Loader
	Analysis  *analysis.Service
	Publisher broadcast.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Coordinator runs team simulations one at a time. At most one batch runs
// per process; overlapping triggers are rejected.
type Coordinator struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	batchID string

	wg sync.WaitGroup
}

// TeamOutcome is the result of one team within a batch
type TeamOutcome struct {
	TeamID int              `json:"team_id"`
	Status status.Status    `json:"status"`
	Error  string           `json:"error,omitempty"`
	Result *analysis.Result `json:"result,omitempty"`
}

// BatchReport summarizes a finished batch
type BatchReport struct {
	BatchID          string        `json:"batch_id"`
	Outcomes         []TeamOutcome `json:"outcomes"`
	Aggregated       bool          `json:"aggregated"`
	AggregationError string        `json:"aggregation_error,omitempty"`
}

func New(deps Deps) *Coordinator {
	return &Coordinator{
		deps:   deps,
		logger: deps.Logger.With("component", "coordinator"),
	}
}

// Running reports the id of the batch in progress, if any
func (c *Coordinator) Running() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batchID, c.running
}

func (c *Coordinator) acquire() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.deps.Metrics.BatchRejected()
		return "", ErrBatchInProgress
	}
	c.running = true
	c.batchID = uuid.New().String()
	return c.batchID, nil
}

func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.batchID = ""
}

// RunMany runs the given teams in order and blocks until the batch and any
// resulting aggregation finished. A failing team does not stop the batch.
func (c *Coordinator) RunMany(ctx context.Context, teamIDs []int) (*BatchReport, error) {
	batchID, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.release()

	return c.runBatch(ctx, batchID, teamIDs), nil
}

// Submit starts a batch in the background and returns its id. The guard is
// checked before returning, so a rejected batch never starts.
func (c *Coordinator) Submit(teamIDs []int) (string, error) {
	return c.submit(teamIDs, true)
}

// SubmitTeam starts a background batch for a single team
func (c *Coordinator) SubmitTeam(teamID int) (string, error) {
	return c.submit([]int{teamID}, false)
}

func (c *Coordinator) submit(teamIDs []int, bulk bool) (string, error) {
	batchID, err := c.acquire()
	if err != nil {
		return "", err
	}

	if bulk {
		e := events.New(events.BulkSimulationStarted).InBatch(batchID)
		e.TeamIDs = teamIDs
		c.deps.Publisher.Broadcast(context.Background(), e)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release()
		c.runBatch(context.Background(), batchID, teamIDs)
	}()

	return batchID, nil
}

// Wait blocks until every submitted batch finished
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runBatch(ctx context.Context, batchID string, teamIDs []int) *BatchReport {
	logger := c.logger.With("batch_id", batchID)
	logger.Info("batch started", "teams", teamIDs)

	report := &BatchReport{BatchID: batchID}
	for _, id := range teamIDs {
		outcome := TeamOutcome{TeamID: id, Status: status.Completed}
		result, err := c.RunOne(ctx, batchID, id)
		if err != nil {
			outcome.Status = status.Error
			outcome.Error = err.Error()
		}
		outcome.Result = result
		report.Outcomes = append(report.Outcomes, outcome)
	}

	c.aggregateIfComplete(ctx, batchID, report)

	logger.Info("batch finished", "teams", len(teamIDs), "aggregated", report.Aggregated)
	return report
}

// RunOne runs a single team: mark it running, optimize, extract, summarize,
// persist, mark it completed. Any failure marks the team as errored and is
// broadcast before being returned.
func (c *Coordinator) RunOne(ctx context.Context, batchID string, teamID int) (*analysis.Result, error) {
	logger := c.logger.With("batch_id", batchID, "team_id", teamID)

	if err := c.deps.Tracker.SetStatus(ctx, teamID, status.Running); err != nil {
		// The team keeps whatever status it had.
		logger.Warn("team not started", "error", err)
		c.publish(ctx, events.New(events.SimulationError).ForTeam(teamID).InBatch(batchID).WithError(err))
		return nil, err
	}
	c.publish(ctx, events.New(events.SimulationStarted).ForTeam(teamID).InBatch(batchID))

	start := time.Now()
	result, err := c.execute(ctx, teamID)
	c.deps.Metrics.SimulationFinished(time.Since(start), err)

	if err == nil {
		err = c.deps.Tracker.SetStatus(ctx, teamID, status.Completed)
	}
	if err != nil {
		logger.Error("simulation failed", "error", err, "duration", time.Since(start))
		if serr := c.deps.Tracker.SetStatus(ctx, teamID, status.Error); serr != nil {
			logger.Error("failed to mark team as errored", "error", serr)
		}
		c.publish(ctx, events.New(events.SimulationError).ForTeam(teamID).InBatch(batchID).WithError(err))
		return nil, err
	}

	logger.Info("simulation completed", "duration", time.Since(start), "synthetic", result.Synthetic)

	e, merr := events.New(events.SimulationCompleted).ForTeam(teamID).InBatch(batchID).WithResults(result)
	if merr != nil {
		logger.Error("failed to attach results", "error", merr)
	}
	c.publish(ctx, e)
	return result, nil
}

func (c *Coordinator) execute(ctx context.Context, teamID int) (*analysis.Result, error) {
	team, err := c.deps.Teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team: %w", err)
	}
	if team == nil {
		return nil, status.ErrUnknownTeam
	}

	if err := c.deps.Runner.Run(ctx, team.Parameters, team.ID); err != nil {
		return nil, err
	}

	b, err := c.deps.Results.Load(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to extract results: %w", err)
	}
	if b == nil {
		return nil, ErrNoDump
	}

	row := c.deps.Analysis.Evaluate(analysisTeam(team), b)
	result := analysis.ResultFromRow(row, b.Synthetic)

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	record := &database.SimulationResult{
		TeamID:         team.ID,
		EnergyCost:     result.EnergyCost,
		CO2Emissions:   result.CO2Emissions,
		RenewableShare: result.RenewableShare,
		Synthetic:      result.Synthetic,
		Data:           data,
	}
	if err := c.deps.Teams.StoreSimulationResult(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	return &result, nil
}

// aggregateIfComplete runs the aggregation pass once every known team, not
// only the ones in this batch, is completed.
func (c *Coordinator) aggregateIfComplete(ctx context.Context, batchID string, report *BatchReport) {
	logger := c.logger.With("batch_id", batchID)

	teams, err := c.deps.Teams.ListTeams(ctx)
	if err != nil {
		logger.Error("failed to list teams for aggregation", "error", err)
		return
	}

	ids := make([]int, len(teams))
	roster := make([]analysis.Team, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
		roster[i] = analysisTeam(t)
	}

	done, err := c.deps.Tracker.AllCompleted(ctx, ids)
	if err != nil {
		logger.Error("failed to check cohort status", "error", err)
		return
	}
	if !done {
		return
	}

	_, err = c.deps.Analysis.Aggregate(ctx, roster)
	c.deps.Metrics.AggregationFinished(err)
	if err != nil {
		logger.Error("aggregation failed", "error", err)
		report.AggregationError = err.Error()
		c.publish(ctx, events.New(events.DetailedAnalysisError).InBatch(batchID).WithError(err))
		return
	}

	report.Aggregated = true
	c.publish(ctx, events.New(events.DetailedAnalysisCompleted).InBatch(batchID))
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	c.deps.Publisher.Broadcast(ctx, e)
}

func analysisTeam(t *database.Team) analysis.Team {
	return analysis.Team{ID: t.ID, Name: t.Name, Params: t.Parameters}
}

var (
	ErrBatchInProgress = &CoordinatorError{"a simulation batch is already running"}
	ErrNoDump          = &CoordinatorError{"optimizer produced no results"}
)

// CoordinatorError represents an orchestration error
type CoordinatorError struct {
	msg string
}

func (e *CoordinatorError) Error() string {
	return e.msg
}
