package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

func TestTracer_RecordsSpan(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	span := tr.Start(context.Background(), "vote", map[string]string{"dao": "dao-dev"})
	span.Set("choice", "approve")
	span.End(nil)

	spans := tr.Recent(1)
	if len(spans) != 1 {
		t.Fatalf("Recent(1) returned %d, want 1", len(spans))
	}
	got := spans[0]
	if got.Operation != "vote" {
		t.Errorf("Operation = %q, want vote", got.Operation)
	}
	if got.Status != SpanOK {
		t.Errorf("Status = %v, want ok", got.Status)
	}
	if got.Attrs["dao"] != "dao-dev" || got.Attrs["choice"] != "approve" {
		t.Errorf("Attrs = %v", got.Attrs)
	}
	if got.TraceID == "" || got.SpanID == "" {
		t.Error("root span should get trace and span IDs")
	}
}

func TestTracer_ErrorSpan(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	before := testutil.ToFloat64(TraceErrors)

	span := tr.Start(context.Background(), "verify", nil)
	span.End(errors.New("already decided"))

	got := tr.Recent(1)[0]
	if got.Status != SpanError || got.Status.String() != "error" {
		t.Errorf("Status = %v, want error", got.Status)
	}
	if got.Attrs["error"] != "already decided" {
		t.Errorf("error attr = %q", got.Attrs["error"])
	}
	if _, errs := tr.Stats(); errs != 1 {
		t.Errorf("error spans = %d, want 1", errs)
	}
	if after := testutil.ToFloat64(TraceErrors); after != before+1 {
		t.Errorf("TraceErrors = %v, want %v", after, before+1)
	}
}

func TestTracer_EndTwiceRecordsOnce(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	span := tr.Start(context.Background(), "claim", nil)
	span.End(nil)
	span.End(nil)
	if n, _ := tr.Stats(); n != 1 {
		t.Errorf("retained = %d, want 1", n)
	}
}

func TestTracer_Disabled(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: false, MaxSpans: 100})
	tr.Start(context.Background(), "noop", nil).End(nil)
	if n, _ := tr.Stats(); n != 0 {
		t.Errorf("disabled tracer retained %d spans", n)
	}
	if tr.Recent(0) != nil {
		t.Error("disabled tracer should return no spans")
	}
}

func TestTracer_NilSafe(t *testing.T) {
	var tr *Tracer
	span := tr.Start(context.Background(), "mint", nil)
	span.End(nil)
	if tr.Recent(5) != nil {
		t.Error("nil tracer should return no spans")
	}
}

func TestTracer_RingOverwritesOldest(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: true, MaxSpans: 3})
	for _, op := range []string{"a", "b", "c", "d", "e"} {
		tr.Start(context.Background(), op, nil).End(nil)
	}

	if n, _ := tr.Stats(); n != 3 {
		t.Errorf("retained = %d, want 3", n)
	}
	got := tr.Recent(0)
	want := []string{"e", "d", "c"}
	for i := range want {
		if got[i].Operation != want[i] {
			t.Errorf("Recent[%d] = %s, want %s", i, got[i].Operation, want[i])
		}
	}
}

func TestTracer_RecentLimit(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	for i := 0; i < 10; i++ {
		tr.Start(context.Background(), "op", nil).End(nil)
	}
	if got := len(tr.Recent(3)); got != 3 {
		t.Errorf("Recent(3) returned %d, want 3", got)
	}
	if got := len(tr.Recent(50)); got != 10 {
		t.Errorf("Recent(50) returned %d, want 10", got)
	}
}

// ─── Context Propagation ────────────────────────────────────────────────────

func TestTracer_ChildSpan(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	parent := tr.Start(context.Background(), "vote", nil)
	child := tr.Start(parent.Context(context.Background()), "submit_contribution", nil)

	if child.TraceID != parent.TraceID {
		t.Errorf("child TraceID = %q, want %q", child.TraceID, parent.TraceID)
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child ParentID = %q, want %q", child.ParentID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("span IDs should be unique")
	}
	child.End(nil)
	parent.End(nil)
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestOperationDuration_Observed(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	before := testutil.CollectAndCount(OperationDuration)
	tr.Start(context.Background(), "observability_test_op", nil).End(nil)
	if after := testutil.CollectAndCount(OperationDuration); after != before+1 {
		t.Errorf("histogram series = %d, want %d", after, before+1)
	}
}

func TestCounters_Labels(t *testing.T) {
	ContributionsVerified.WithLabelValues("approved").Inc()
	if got := testutil.ToFloat64(ContributionsVerified.WithLabelValues("approved")); got < 1 {
		t.Errorf("approved = %v, want ≥ 1", got)
	}
	PTokenSupply.Set(42)
	if got := testutil.ToFloat64(PTokenSupply); got != 42 {
		t.Errorf("supply gauge = %v, want 42", got)
	}
}
