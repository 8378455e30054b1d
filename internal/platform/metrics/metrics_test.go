package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequestCounts(t *testing.T) {
	c := New()
	c.ObserveRequest("echo", OutcomeOK, time.Now())
	c.ObserveRequest("echo", OutcomeOK, time.Now())
	c.ObserveRequest("echo", OutcomeError, time.Now())

	if got := testutil.ToFloat64(c.requests.WithLabelValues("echo", OutcomeOK)); got != 2 {
		t.Fatalf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("echo", OutcomeError)); got != 1 {
		t.Fatalf("expected 1 failed request, got %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveRequest("echo", OutcomeOK, time.Now())
	c.Throttled("http")
	c.SetAccounts(3)
	if c.Registry() != nil {
		t.Fatal("nil collector has no registry")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.SetAccounts(5)
	c.Throttled("http")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"omni_accounts 5", `omni_throttled_total{transport="http"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
