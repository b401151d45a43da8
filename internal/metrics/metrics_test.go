package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconcile(ReconcileCreated)
	c.RecordReconcile(ReconcileCreated)
	c.RecordReconcile(ReconcileRelinked)
	c.RecordRoleChange(RoleChangePartialWrite)
	c.RecordCascade(1, 2)
	c.RecordRequest("GET", "/api/tasks", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(c.reconciles.WithLabelValues(ReconcileCreated)); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.reconciles.WithLabelValues(ReconcileRelinked)); got != 1 {
		t.Errorf("relinked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.roles.WithLabelValues(RoleChangePartialWrite)); got != 1 {
		t.Errorf("partial_write = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cascade.WithLabelValues("reassigned")); got != 2 {
		t.Errorf("reassigned = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("GET", "/api/tasks", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordReconcile(ReconcileUpdated)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `taskmanager_reconcile_total{outcome="updated"} 1`) {
		t.Errorf("metric missing from scrape output:\n%s", body)
	}
}
