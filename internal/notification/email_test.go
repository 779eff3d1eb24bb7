package notification

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/smukkama/energy-workshop/internal/events"
	"github.com/smukkama/energy-workshop/internal/logging"
	"github.com/smukkama/energy-workshop/pkg/config"
	"gotest.tools/v3/assert"
)

func TestCompose_SimulationError(t *testing.T) {
	e := events.New(events.SimulationError).ForTeam(4).InBatch("b-1").WithError(errors.New("solver infeasible"))

	subject, body, err := Compose(e)
	assert.NilError(t, err)
	assert.Equal(t, subject, "Simulation FAILED - team 4")
	assert.Assert(t, strings.Contains(body, "Team: 4"))
	assert.Assert(t, strings.Contains(body, "Batch: b-1"))
	assert.Assert(t, strings.Contains(body, "solver infeasible"))
}

func TestCompose_Analysis(t *testing.T) {
	subject, body, err := Compose(events.New(events.DetailedAnalysisCompleted).InBatch("b-2"))
	assert.NilError(t, err)
	assert.Equal(t, subject, "Cohort analysis completed")
	assert.Assert(t, strings.Contains(body, "b-2"))

	_, _, err = Compose(events.New(events.SimulationStarted))
	assert.ErrorContains(t, err, "simulation_started")
}

func TestNotify(t *testing.T) {
	cfg := &config.SMTPConfig{Host: "mail", Port: 25, Username: "u", Password: "p", From: "a@x", To: "b@x"}

	var sent []string
	n := NewEmailNotifier(cfg, logging.Discard()).WithSender(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, addr, "mail:25")
		assert.Equal(t, from, "a@x")
		assert.DeepEqual(t, to, []string{"b@x"})
		sent = append(sent, string(msg))
		return nil
	})

	assert.NilError(t, n.Notify(events.New(events.SimulationStarted).ForTeam(1)))
	assert.Equal(t, len(sent), 0)

	assert.NilError(t, n.Notify(events.New(events.DetailedAnalysisError).WithError(errors.New("missing results"))))
	assert.Equal(t, len(sent), 1)
	assert.Assert(t, strings.Contains(sent[0], "Subject: Cohort analysis FAILED\r\n"))
	assert.Assert(t, strings.Contains(sent[0], "missing results"))
}

func TestNotify_SkipsWithoutCredentials(t *testing.T) {
	n := NewEmailNotifier(&config.SMTPConfig{}, logging.Discard()).WithSender(func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not send")
		return nil
	})
	assert.NilError(t, n.Notify(events.New(events.SimulationError).ForTeam(1)))
}
