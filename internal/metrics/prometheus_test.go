package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollectorRegistersMetrics(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	c.RecordRequest("tools/call")

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("tools/call")); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestSanitizeMethodBucketsUnknownMethods(t *testing.T) {
	if sanitizeMethod("tools/call") != "tools/call" {
		t.Fatal("known method must pass through unchanged")
	}
	if sanitizeMethod("totally/bogus") != unknownLabel {
		t.Fatalf("expected unknown method to bucket to %q", unknownLabel)
	}
}

func TestSanitizePhaseNameTruncatesAndReplaces(t *testing.T) {
	got := sanitizePhaseName("exploit phase! #2")
	if strings.ContainsAny(got, " !#") {
		t.Fatalf("expected non-alphanumerics replaced, got %q", got)
	}

	long := strings.Repeat("a", 100)
	got = sanitizePhaseName(long)
	if len(got) != maxPhaseNameLen {
		t.Fatalf("expected truncation to %d chars, got %d", maxPhaseNameLen, len(got))
	}
}

func TestRecordResponseObservesDurationAndSuccessLabel(t *testing.T) {
	c := NewCollector()
	c.RecordResponse("tools/call", true, 12.5)
	c.RecordResponse("tools/call", false, 3)

	if got := testutil.ToFloat64(c.responsesTotal.WithLabelValues("tools/call", "true")); got != 1 {
		t.Fatalf("got %v", got)
	}
	if got := testutil.ToFloat64(c.responsesTotal.WithLabelValues("tools/call", "false")); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestRecordPhaseTransitionSetsGaugeAndCounter(t *testing.T) {
	c := NewCollector()
	c.RecordPhaseTransition("exploit", 1)

	if got := testutil.ToFloat64(c.currentPhase); got != 1 {
		t.Fatalf("got %v", got)
	}
	if got := testutil.ToFloat64(c.phaseTransitionsTotal.WithLabelValues("exploit")); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestRecordSideEffectAndConnectionsActive(t *testing.T) {
	c := NewCollector()
	c.RecordSideEffect("slow_loris")
	c.SetConnectionsActive(3)

	if got := testutil.ToFloat64(c.sideEffectsTotal.WithLabelValues("slow_loris")); got != 1 {
		t.Fatalf("got %v", got)
	}
	if got := testutil.ToFloat64(c.connectionsActive); got != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("ping")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("got status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "thoughtjack_requests_total") {
		t.Fatal("expected requests_total in exposition output")
	}
}
