package reporters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/httpkit/pkg/httpclient"
)

type httpReporter struct {
	id     string
	url    string
	client httpclient.Client
	typ    string
}

func newHTTPReporter(_ context.Context, cfg ReporterConfig, log Logger) (Reporter, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("reporter %q missing http configuration", cfg.ID)
	}

	client := httpclient.New(
		httpclient.WithTimeout(time.Duration(cfg.HTTP.TimeoutSeconds)*time.Second),
		httpclient.WithHeaders(cfg.HTTP.Headers),
		httpclient.WithLogger(ensureLogger(log)),
	)

	return &httpReporter{
		id:     cfg.ID,
		typ:    TypeHTTP,
		url:    cfg.HTTP.URL,
		client: client,
	}, nil
}

func (h *httpReporter) ID() string   { return h.id }
func (h *httpReporter) Type() string { return h.typ }

// Report posts the event as JSON; an absent result or an error status fails.
func (h *httpReporter) Report(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res := h.client.PostJSON(ctx, h.url, string(payload))
	body, ok := res.Value()
	if !ok {
		return errors.New("http request could not be completed")
	}
	if res.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("http response status %d: %s", res.StatusCode(), readBodySnippet(body))
	}
	return nil
}

func readBodySnippet(body string) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(body)
}
