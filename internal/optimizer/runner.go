package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/pkg/config"
)

// Runner optimizes the energy system of one team and leaves its dump in
// the dumps directory. Run blocks until the dump is written or the run
// failed.
type Runner interface {
	Run(ctx context.Context, params database.Parameters, teamID int) error
}

// New builds the runner selected by cfg.Mode
func New(cfg config.OptimizerConfig, workshop config.WorkshopConfig, logger *slog.Logger) (Runner, error) {
	switch cfg.Mode {
	case "command":
		return NewCommandRunner(cfg, workshop.DataDir, workshop.DumpsDir(), logger), nil
	case "demo":
		return NewDemoRunner(workshop.DumpsDir(), DemoHours), nil
	}
	return nil, fmt.Errorf("unknown optimizer mode %q", cfg.Mode)
}

// CommandRunner runs an external optimizer process per team
type CommandRunner struct {
	command  string
	args     []string
	workDir  string
	dataDir  string
	dumpsDir string
	logger   *slog.Logger
}

// NewCommandRunner creates a runner executing cfg.Command
func NewCommandRunner(cfg config.OptimizerConfig, dataDir, dumpsDir string, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{
		command:  cfg.Command,
		args:     cfg.Args,
		workDir:  cfg.WorkDir,
		dataDir:  dataDir,
		dumpsDir: dumpsDir,
		logger:   logger.With("component", "optimizer"),
	}
}

// Run writes the team's parameter file and executes the optimizer with
// --team, --parameters and --dumps appended to the configured arguments.
func (r *CommandRunner) Run(ctx context.Context, params database.Parameters, teamID int) error {
	paramPath, err := WriteParameterFile(r.dataDir, teamID, params)
	if err != nil {
		return err
	}

	args := append([]string{}, r.args...)
	args = append(args,
		"--team", strconv.Itoa(teamID),
		"--parameters", paramPath,
		"--dumps", r.dumpsDir,
	)

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = r.workDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	r.logger.Info("optimizer started", "team_id", teamID, "command", r.command)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("optimizer failed for team %d: %w: %s", teamID, err, tail(output.String(), 5))
	}

	r.logger.Info("optimizer finished", "team_id", teamID, "duration", time.Since(start))
	return nil
}

// tail returns the last n non-empty lines of s
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
