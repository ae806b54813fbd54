package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/httpkit/internal/app"
	"github.com/samvad-hq/httpkit/internal/config"
	"github.com/samvad-hq/httpkit/internal/domain"
	"github.com/samvad-hq/httpkit/internal/logger"
	"github.com/samvad-hq/httpkit/pkg/httpclient"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppName:                "httpkit",
		HistoryType:            "bbolt",
		HistoryPath:            filepath.Join(dir, "history.db"),
		HistoryTTL:             time.Hour,
		HistoryCleanupInterval: time.Hour,
	}
}

func execute(t *testing.T, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeWithLogger(t, cfg, logger.NopLogger{}, stdin, args...)
}

func executeWithLogger(t *testing.T, cfg *config.Config, log logger.Logger, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { httpclient.SetDefault(nil) })
	var out bytes.Buffer
	root := newRootCmd(cfg, log)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGetPrintsBodyWithQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing " + r.URL.Query().Get("q")))
	}))
	defer srv.Close()

	out, err := execute(t, testConfig(t), "", "get", srv.URL, "q=cats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != "missing cats" {
		t.Fatalf("unexpected output %q", out)
	}
}

type recordingLogger struct {
	logger.NopLogger
	warns []string
}

func (l *recordingLogger) WarnObj(msg, _ string, _ interface{}) { l.warns = append(l.warns, msg) }

func TestRequestCommandsLogThroughConfiguredLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	log := &recordingLogger{}
	if _, err := executeWithLogger(t, testConfig(t), log, "", "get", srv.URL); err != nil {
		t.Fatalf("get: %v", err)
	}
	n := 0
	for _, msg := range log.warns {
		if msg == "http request returned non-success status" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one non-success warning, got %v", log.warns)
	}
}

func TestPostFormSendsParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		_, _ = w.Write([]byte(r.Method + " " + r.PostForm.Get("user")))
	}))
	defer srv.Close()

	out, err := execute(t, testConfig(t), "", "post-form", srv.URL, "user=alice")
	if err != nil {
		t.Fatalf("post-form: %v", err)
	}
	if out != "POST alice" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPostJSONReadsStdin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	out, err := execute(t, testConfig(t), `{"x":1}`, "post-json", srv.URL, "-")
	if err != nil {
		t.Fatalf("post-json: %v", err)
	}
	if out != `{"x":1}` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestUnreachableHostReturnsAbsent(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := closed.URL
	closed.Close()

	out, err := execute(t, testConfig(t), "", "get", deadURL)
	if !errors.Is(err, errAbsent) {
		t.Fatalf("expected errAbsent, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestGetRejectsMalformedParams(t *testing.T) {
	if _, err := execute(t, testConfig(t), "", "get", "http://example.test", "novalue"); err == nil {
		t.Fatalf("expected error for parameter without '='")
	}
	if _, err := execute(t, testConfig(t), "", "get"); err == nil {
		t.Fatalf("expected error for missing URL")
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"a=1", "b=x=y", "c="})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if params["a"] != "1" || params["b"] != "x=y" || params["c"] != "" || len(params) != 3 {
		t.Fatalf("unexpected params %#v", params)
	}
	if params, err := parseParams(nil); err != nil || params != nil {
		t.Fatalf("expected nil params, got %#v, %v", params, err)
	}
	if _, err := parseParams([]string{"=v"}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestDateFormatsGivenTime(t *testing.T) {
	out, err := execute(t, testConfig(t), "", "date", "--pattern", "yyyyMMdd'T'HHmm", "2020-04-06T09:05:00Z")
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	if out != "20200406T0905\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := execute(t, testConfig(t), "", "date", "--pattern", "QQ"); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}

func TestHistoryPrintsRecentExchanges(t *testing.T) {
	cfg := testConfig(t)
	store, err := app.OpenStore(cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	for _, id := range []string{"first", "second", "third"} {
		if _, err := store.Record(domain.Exchange{RequestID: id, Present: true, StatusCode: 200}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, err := execute(t, cfg, "", "history", "--limit", "2")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	var ex domain.Exchange
	if err := json.Unmarshal([]byte(lines[0]), &ex); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if ex.RequestID != "third" {
		t.Fatalf("expected newest first, got %#v", ex)
	}
}
