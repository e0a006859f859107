package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppSync(t *testing.T) {
	before := testutil.ToFloat64(syncApps.WithLabelValues("success"))
	changesBefore := testutil.ToFloat64(versionChanges)

	RecordAppSync("success", 120*time.Millisecond, true)

	assert.Equal(t, before+1, testutil.ToFloat64(syncApps.WithLabelValues("success")))
	assert.Equal(t, changesBefore+1, testutil.ToFloat64(versionChanges))
}

func TestHandler(t *testing.T) {
	RecordBatch("manual")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `appsync_sync_batches_total{trigger="manual"}`)
}
