package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	r.FormulaEvaluations.WithLabelValues("ok").Inc()
	r.FormulaEvaluations.WithLabelValues("ok").Inc()
	r.FormulaEvaluations.WithLabelValues("error").Inc()
	r.RowsNormalized.Add(100)
	r.ObserveRequest("/api/templates/{id}", http.MethodGet, 404, 5*time.Millisecond)
	r.ObserveRequest("", http.MethodGet, 404, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(r.FormulaEvaluations.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.FormulaEvaluations.WithLabelValues("error")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(r.RowsNormalized), 0)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `manifestkit_formula_evaluations_total{result="ok"} 2`)
	assert.Contains(t, string(body), `route="/api/templates/{id}"`)
	assert.Contains(t, string(body), `route="unmatched"`)
	assert.Contains(t, string(body), "go_goroutines")
}
