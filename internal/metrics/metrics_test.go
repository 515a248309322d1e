package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveStage("load", 20*time.Millisecond, 100)
	m.SetResults(12, 3)
	m.RunFinished(nil)
	m.RunFinished(errors.New("boom"))
	m.ObserveRequest(http.MethodGet, http.StatusOK, time.Millisecond)

	assert.Equal(t, 100.0, testutil.ToFloat64(m.stageRows.WithLabelValues("load")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.itemsets))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rules))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("load", time.Second, 1)
		m.SetResults(1, 1)
		m.RunFinished(nil)
		m.ObserveRequest(http.MethodGet, http.StatusOK, time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetResults(5, 2)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "basket_frequent_itemsets 5"))
	assert.True(t, strings.Contains(body, "basket_association_rules 2"))
}
