package runner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/httpkit/internal/domain"
	"github.com/samvad-hq/httpkit/pkg/httpclient"
	"github.com/samvad-hq/httpkit/pkg/plan"
	"github.com/samvad-hq/httpkit/pkg/reporters"
)

type memoryStore struct {
	records []domain.Exchange
	err     error
}

func (m *memoryStore) Record(ex domain.Exchange) (domain.Exchange, error) {
	if m.err != nil {
		return ex, m.err
	}
	ex.ID = uint64(len(m.records) + 1)
	m.records = append(m.records, ex)
	return ex, nil
}

type recordingReporter struct {
	events []reporters.Event
	err    error
}

func (r *recordingReporter) Report(_ context.Context, evt reporters.Event) (int, error) {
	r.events = append(r.events, evt)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte("results for " + r.URL.Query().Get("q")))
		case "/login":
			_ = r.ParseForm()
			_, _ = w.Write([]byte("hello " + r.PostForm.Get("user")))
		case "/api":
			raw, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write(raw)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunDispatchesEveryKind(t *testing.T) {
	srv := newStubServer(t)
	store := &memoryStore{}
	rep := &recordingReporter{}
	svc := NewService(httpclient.New(), store, rep, nil)

	sum, err := svc.Run(context.Background(), []plan.Request{
		{ID: "search", Kind: plan.KindGet, URL: srv.URL + "/search", Params: map[string]string{"q": "cats"}},
		{ID: "login", Kind: plan.KindForm, URL: srv.URL + "/login", Params: map[string]string{"user": "alice"}},
		{ID: "create", Kind: plan.KindJSON, URL: srv.URL + "/api", Body: `{"x":1}`},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 3 || sum.Succeeded != 3 || sum.Absent != 0 {
		t.Fatalf("unexpected summary %#v", sum)
	}

	if len(store.records) != 3 {
		t.Fatalf("expected 3 recorded exchanges, got %d", len(store.records))
	}
	search := store.records[0]
	if search.Method != http.MethodGet || search.StatusCode != 200 || search.BodyBytes != len("results for cats") {
		t.Fatalf("unexpected search exchange %#v", search)
	}
	login := store.records[1]
	if login.Method != http.MethodPost || login.BodyBytes != len("hello alice") {
		t.Fatalf("unexpected login exchange %#v", login)
	}
	create := store.records[2]
	if create.StatusCode != http.StatusInternalServerError || !create.Present || create.Succeeded() {
		t.Fatalf("unexpected create exchange %#v", create)
	}

	if len(rep.events) != 3 || rep.events[2].RequestID != "create" || rep.events[2].Succeeded {
		t.Fatalf("unexpected reported events %#v", rep.events)
	}
}

func TestRunAggregatesAbsentResults(t *testing.T) {
	srv := newStubServer(t)
	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := closed.URL
	closed.Close()

	store := &memoryStore{}
	svc := NewService(httpclient.New(), store, nil, nil)

	sum, err := svc.Run(context.Background(), []plan.Request{
		{ID: "dead", Kind: plan.KindGet, URL: deadURL},
		{ID: "search", Kind: plan.KindGet, URL: srv.URL + "/search"},
	})
	if err == nil || !strings.Contains(err.Error(), "request dead") {
		t.Fatalf("expected error naming the failed request, got %v", err)
	}
	if sum.Total != 2 || sum.Succeeded != 1 || sum.Absent != 1 {
		t.Fatalf("unexpected summary %#v", sum)
	}
	if len(store.records) != 2 || store.records[0].Present {
		t.Fatalf("absent exchange should still be recorded: %#v", store.records)
	}
}

func TestRunSurfacesStoreAndReporterErrors(t *testing.T) {
	srv := newStubServer(t)
	svc := NewService(httpclient.New(), &memoryStore{err: errors.New("disk full")}, &recordingReporter{err: errors.New("sink down")}, nil)

	_, err := svc.Run(context.Background(), []plan.Request{{ID: "search", Kind: plan.KindGet, URL: srv.URL + "/search"}})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "disk full") || !strings.Contains(err.Error(), "sink down") {
		t.Fatalf("expected store and reporter errors, got %v", err)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	srv := newStubServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(httpclient.New(), nil, nil, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	sum, err := svc.Run(ctx, []plan.Request{
		{ID: "first", Kind: plan.KindGet, URL: srv.URL + "/search", DelayMs: 5000},
		{ID: "second", Kind: plan.KindGet, URL: srv.URL + "/search"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sum.Total != 1 {
		t.Fatalf("expected only the first request to run, got %#v", sum)
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	if _, err := NewService(httpclient.New(), nil, nil, nil).Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty request list")
	}
	var svc *Service
	if _, err := svc.Run(context.Background(), []plan.Request{{ID: "a"}}); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
