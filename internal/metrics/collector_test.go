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

	"github.com/banking/batch-analysis/internal/domain"
)

func TestCollector_RunCompleted(t *testing.T) {
	c := NewCollector()

	c.RunCompleted("success", 20*time.Millisecond)
	c.RunCompleted("success", 30*time.Millisecond)
	c.RunCompleted("upstream_error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("upstream_error")))
}

func TestCollector_PatternsDetected(t *testing.T) {
	c := NewCollector()

	c.PatternsDetected([]domain.PatternFinding{
		{Type: domain.PatternRapidSuccession, EntityID: "S1", RiskScore: 0.8},
		{Type: domain.PatternRapidSuccession, EntityID: "S2", RiskScore: 0.9},
		{Type: domain.PatternPotentialStructuring, RiskScore: 0.8},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.patternsDetected.WithLabelValues(string(domain.PatternRapidSuccession))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.patternsDetected.WithLabelValues(string(domain.PatternPotentialStructuring))))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.lastRunFindings))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.TransactionsFetched(12)
	c.RunCompleted("empty", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "batch_analysis_runs_total")
	assert.Contains(t, string(body), "batch_analysis_transactions_fetched_count 1")
}
