package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
)

func TestMetrics_SimulationOutcomes(t *testing.T) {
	m := New()
	m.SimulationFinished(2*time.Second, nil)
	m.SimulationFinished(time.Second, errors.New("boom"))
	m.SimulationFinished(time.Second, nil)

	assert.Equal(t, testutil.ToFloat64(m.simulationRuns.WithLabelValues("success")), 2.0)
	assert.Equal(t, testutil.ToFloat64(m.simulationRuns.WithLabelValues("error")), 1.0)

	m.AggregationFinished(nil)
	assert.Equal(t, testutil.ToFloat64(m.aggregationRuns.WithLabelValues("success")), 1.0)

	m.BatchRejected()
	assert.Equal(t, testutil.ToFloat64(m.batchesRejected), 1.0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.SimulationFinished(time.Second, nil)
	m.AggregationFinished(nil)
	m.BatchRejected()

	h := m.WrapHandler("x", http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestMetrics_WrapHandlerAndExpose(t *testing.T) {
	m := New()
	m.ListenerGauge().Set(3)

	h := m.WrapHandler("/api/teams", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/teams", nil))

	assert.Equal(t, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/teams", "418")), 1.0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	assert.NilError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(body), "workshop_live_listeners 3"))
}
