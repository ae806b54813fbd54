package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/httpkit/internal/domain"
	"github.com/samvad-hq/httpkit/internal/logger"
	"github.com/samvad-hq/httpkit/pkg/httpclient"
	"github.com/samvad-hq/httpkit/pkg/plan"
	"github.com/samvad-hq/httpkit/pkg/reporters"
)

// Summary counts the outcome of one Run.
type Summary struct {
	Total     int
	Succeeded int
	Absent    int
}

// Service executes plan requests through the request helper.
type Service struct {
	client   httpclient.Client
	store    HistoryStore
	reporter EventReporter
	log      logger.Logger
	now      func() time.Time
}

// NewService wires a runner with its client, history store and reporter.
// store and reporter may be nil.
func NewService(client httpclient.Client, store HistoryStore, reporter EventReporter, log logger.Logger) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		client:   client,
		store:    store,
		reporter: reporter,
		log:      log,
		now:      time.Now,
	}
}

// Run executes reqs sequentially. Failures of individual requests do not stop
// the run; they are joined into the returned error.
func (s *Service) Run(ctx context.Context, reqs []plan.Request) (Summary, error) {
	var sum Summary
	if s == nil || s.client == nil {
		return sum, fmt.Errorf("runner service is not initialized")
	}
	if len(reqs) == 0 {
		return sum, fmt.Errorf("no requests to run")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ex, err := s.runRequest(ctx, req)
		sum.Total++
		if ex.Present {
			sum.Succeeded++
		} else {
			sum.Absent++
		}
		if err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("request run failed", "run_error", map[string]any{
				"request_id": req.ID,
				"error":      err.Error(),
			})
		}

		if delay := req.Delay(); delay > 0 && i < len(reqs)-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				errs = append(errs, ctx.Err())
				return sum, errors.Join(errs...)
			case <-timer.C:
			}
		}
	}

	s.log.InfoObj("plan run completed", "run_summary", map[string]any{
		"total":     sum.Total,
		"succeeded": sum.Succeeded,
		"absent":    sum.Absent,
	})
	return sum, errors.Join(errs...)
}

func (s *Service) runRequest(ctx context.Context, req plan.Request) (domain.Exchange, error) {
	start := s.now()
	res, method := s.dispatch(ctx, req)
	body, ok := res.Value()

	ex := domain.Exchange{
		RequestID:  req.ID,
		Kind:       req.Kind,
		Method:     method,
		URL:        req.URL,
		StatusCode: res.StatusCode(),
		Present:    ok,
		BodyBytes:  len(body),
		StartedAt:  start.UTC(),
		Elapsed:    s.now().Sub(start),
	}

	var errs []error
	if !ok {
		errs = append(errs, fmt.Errorf("request %s: no response body", req.ID))
	}
	if s.store != nil {
		recorded, err := s.store.Record(ex)
		if err != nil {
			errs = append(errs, fmt.Errorf("record request %s: %w", req.ID, err))
		} else {
			ex = recorded
		}
	}
	if s.reporter != nil {
		if _, err := s.reporter.Report(ctx, reporters.NewEvent(ex)); err != nil {
			errs = append(errs, fmt.Errorf("report request %s: %w", req.ID, err))
		}
	}
	return ex, errors.Join(errs...)
}

func (s *Service) dispatch(ctx context.Context, req plan.Request) (httpclient.Result, string) {
	switch req.Kind {
	case plan.KindForm:
		return s.client.PostForm(ctx, req.URL, req.Params), http.MethodPost
	case plan.KindJSON:
		return s.client.PostJSON(ctx, req.URL, req.Body), http.MethodPost
	default:
		return s.client.GetText(ctx, req.URL, req.Params), http.MethodGet
	}
}
