package reporters

import (
	"context"
	"errors"
	"testing"
)

type stubReporter struct {
	id     string
	typ    string
	err    error
	calls  int
	closed bool
}

func (s *stubReporter) ID() string   { return s.id }
func (s *stubReporter) Type() string { return s.typ }
func (s *stubReporter) Report(context.Context, Event) error {
	s.calls++
	return s.err
}

type closingReporter struct {
	stubReporter
}

func (c *closingReporter) Close() error {
	c.closed = true
	return nil
}

func TestFanoutReportAggregatesErrors(t *testing.T) {
	ok := &stubReporter{id: "ok", typ: "http"}
	bad := &stubReporter{id: "bad", typ: "http", err: errors.New("failed")}
	fanout := NewFanout([]Reporter{ok, nil, bad})

	if fanout.Size() != 2 {
		t.Fatalf("expected nil reporters to be dropped, size=%d", fanout.Size())
	}
	count, err := fanout.Report(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("expected every reporter called once, got %d and %d", ok.calls, bad.calls)
	}
}

func TestFanoutCloseReleasesClosers(t *testing.T) {
	c := &closingReporter{stubReporter{id: "ps", typ: TypeGCPPubSub}}
	fanout := NewFanout([]Reporter{&stubReporter{id: "plain"}, c})

	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.closed {
		t.Fatalf("expected closer reporter to be closed")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	reps, err := BuildAll(context.Background(), reg, []ReporterConfig{
		{ID: "hook", Type: TypeHTTP, HTTP: &HTTPReporterConfig{URL: "https://example.com", TimeoutSeconds: 1}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(reps) != 1 || reps[0].Type() != TypeHTTP {
		t.Fatalf("unexpected reporters %#v", reps)
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []ReporterConfig{{ID: "x", Type: "kafka"}}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown reporter type")
	}
}

func TestBuildAllClosesBuiltReportersOnFailure(t *testing.T) {
	built := &closingReporter{stubReporter{id: "first", typ: "closing"}}
	reg := NewRegistry(map[string]Builder{
		"closing": func(context.Context, ReporterConfig, Logger) (Reporter, error) { return built, nil },
		"broken": func(context.Context, ReporterConfig, Logger) (Reporter, error) {
			return nil, errors.New("cannot connect")
		},
	})

	reps, err := BuildAll(context.Background(), reg, []ReporterConfig{
		{ID: "first", Type: "closing"},
		{ID: "second", Type: "broken"},
	}, nil)
	if err == nil || reps != nil {
		t.Fatalf("expected build failure, got %v, %v", reps, err)
	}
	if !built.closed {
		t.Fatalf("expected already built reporter to be closed")
	}
}
