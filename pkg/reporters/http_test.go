package reporters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestHTTPReporter(t *testing.T, url string) Reporter {
	t.Helper()
	rep, err := newHTTPReporter(context.Background(), ReporterConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPReporterConfig{URL: url, TimeoutSeconds: 2},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPReporter: %v", err)
	}
	return rep
}

func TestHTTPReporterPostsJSONEvent(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &received); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newTestHTTPReporter(t, srv.URL).Report(context.Background(), Event{RequestID: "search", StatusCode: 200})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if received.RequestID != "search" || received.StatusCode != 200 {
		t.Fatalf("unexpected event received %#v", received)
	}
}

func TestHTTPReporterErrorOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := newTestHTTPReporter(t, srv.URL).Report(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error on 4xx response")
	}
}

func TestHTTPReporterErrorWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	if err := newTestHTTPReporter(t, url).Report(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error when the sink is unreachable")
	}
}

func TestHTTPReporterSendsConfiguredHeaders(t *testing.T) {
	var auth, trace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		trace = r.Header.Get("X-Trace")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "reporters.yaml")
	content := "reporters:\n" +
		"  - id: hook\n" +
		"    type: http\n" +
		"    http:\n" +
		"      url: " + srv.URL + "\n" +
		"      headers:\n" +
		"        Authorization: ' Bearer secret '\n" +
		"        X-Trace: ''\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write reporters file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cfg, ok := reg.ByID("hook")
	if !ok || len(cfg.HTTP.Headers) != 1 {
		t.Fatalf("expected empty header dropped, got %#v", cfg.HTTP)
	}
	reps, err := BuildAll(context.Background(), DefaultRegistry(), reg.Enabled(), nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if err := reps[0].Report(context.Background(), Event{RequestID: "search"}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if auth != "Bearer secret" || trace != "" {
		t.Fatalf("unexpected headers Authorization=%q X-Trace=%q", auth, trace)
	}
}
