package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCollectorCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordResolution("resolved")
	c.RecordResolution("resolved")
	c.RecordResolution("failed")
	c.RecordStaleDrop()
	c.RecordSignIn("invalid_credential")
	c.RecordEmail("failed")
	c.RecordEmail("delivered")

	if got := counterValue(t, reg, "alumni_session_resolutions_total", "resolved"); got != 2 {
		t.Errorf("resolved = %v, want 2", got)
	}
	if got := counterValue(t, reg, "alumni_session_resolutions_total", "failed"); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := counterValue(t, reg, "alumni_session_stale_results_total", ""); got != 1 {
		t.Errorf("stale = %v, want 1", got)
	}
	if got := counterValue(t, reg, "alumni_rsvp_emails_total", "delivered"); got != 1 {
		t.Errorf("delivered = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSignIn("success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `alumni_sign_in_attempts_total{outcome="success"} 1`) {
		t.Fatalf("metrics output missing sign-in counter:\n%s", body)
	}
}
