package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectorDisabledMetricsOnlyReportsAuditDrops(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})
	if n := testutil.CollectAndCount(c); n != 1 {
		t.Fatalf("expected only the audit counter, got %d series", n)
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricCodeReplay:     2,
				authcore.MetricLoginSuccess:   7,
				authcore.MetricRateLimitHit:   0,
				authcore.MetricRefreshSuccess: 1,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})

	expected := `
# HELP authcore_code_replay_total Already redeemed authorization codes presented again.
# TYPE authcore_code_replay_total counter
authcore_code_replay_total 2
# HELP authcore_login_success_total Successful password logins.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"authcore_code_replay_total", "authcore_login_success_total", "authcore_audit_dropped_total"); err != nil {
		t.Fatal(err)
	}

	hist := `
# HELP authcore_authenticate_latency_seconds Access token authentication latency.
# TYPE authcore_authenticate_latency_seconds histogram
authcore_authenticate_latency_seconds_bucket{le="0.005"} 1
authcore_authenticate_latency_seconds_bucket{le="0.01"} 3
authcore_authenticate_latency_seconds_bucket{le="0.025"} 6
authcore_authenticate_latency_seconds_bucket{le="0.05"} 10
authcore_authenticate_latency_seconds_bucket{le="0.1"} 15
authcore_authenticate_latency_seconds_bucket{le="0.25"} 21
authcore_authenticate_latency_seconds_bucket{le="0.5"} 28
authcore_authenticate_latency_seconds_bucket{le="+Inf"} 36
authcore_authenticate_latency_seconds_sum 0
authcore_authenticate_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(hist), "authcore_authenticate_latency_seconds"); err != nil {
		t.Fatal(err)
	}
}

func TestCollectorRegistersCleanly(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollectorFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricLogout: 1},
	}})
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1},
	}})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authcore_login_success_total 1") {
		t.Fatalf("missing counter in output:\n%s", rec.Body.String())
	}
}

