package config

import (
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WORKSHOP_TEAM_NAMES", "")
	t.Setenv("OPTIMIZER_MODE", "")

	cfg, err := Load()
	assert.NilError(t, err)

	assert.Equal(t, len(cfg.Workshop.TeamNames), 8)
	assert.Equal(t, cfg.Workshop.TeamNames[0], "Moabit")
	assert.Equal(t, cfg.Optimizer.Mode, "command")
	assert.Equal(t, cfg.HTTP.ListenerIdleTimeout, 2*time.Minute)
	assert.Equal(t, cfg.Economics.Lifetime, 20)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKSHOP_TEAM_NAMES", " Alpha, ,Beta ")
	t.Setenv("OPTIMIZER_MODE", "demo")
	t.Setenv("ECON_WACC", "0.07")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("WORKSHOP_RESULTS_DIR", "/tmp/out")

	cfg, err := Load()
	assert.NilError(t, err)

	assert.DeepEqual(t, cfg.Workshop.TeamNames, []string{"Alpha", "Beta"})
	assert.Equal(t, cfg.Optimizer.Mode, "demo")
	assert.Equal(t, cfg.Economics.WACC, 0.07)
	assert.Assert(t, cfg.Kafka.Enabled)
	assert.Equal(t, cfg.Workshop.DumpsDir(), filepath.Join("/tmp/out", "optimisation_results", "dumps"))
	assert.Equal(t, cfg.Workshop.TablesDir(), filepath.Join("/tmp/out", "optimisation_results", "tables"))
}

func TestLoad_RejectsUnknownOptimizerMode(t *testing.T) {
	t.Setenv("OPTIMIZER_MODE", "pyomo")

	_, err := Load()
	assert.ErrorContains(t, err, "unknown OPTIMIZER_MODE")
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "w", SSLMode: "disable"}
	assert.Equal(t, d.ConnectionString(), "host=db port=5433 user=u password=p dbname=w sslmode=disable")
}
