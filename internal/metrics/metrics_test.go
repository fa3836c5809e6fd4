package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(draftsDeleted.WithLabelValues(ReasonCleanup))

	DraftsDeleted(ReasonCleanup, 3)
	ReportCreated(PathPromotion)

	assert.Equal(t, before+3, testutil.ToFloat64(draftsDeleted.WithLabelValues(ReasonCleanup)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(reportsCreated.WithLabelValues(PathPromotion)), 1.0)
}

func TestHandlerExposesCounters(t *testing.T) {
	RemoteWriteFailed("createReport")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mopc_reportes_remote_write_failures_total{operation="createReport"}`)
}
