package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	acceptJSON      = "application/json"
	charsetUTF8     = "utf-8"

	maxLoggedBody = 512
)

// Helper issues one blocking HTTP request per call on top of a shared
// resty.Client. Request state is never shared between calls.
type Helper struct {
	client *resty.Client
	log    Logger
}

// Option configures a Helper.
type Option func(*helperOptions)

type helperOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
	userAgent string
	headers   map[string]string
	log       Logger
}

// WithTimeout bounds every exchange. Zero leaves the client without a timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *helperOptions) { o.timeout = d }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *helperOptions) { o.transport = rt }
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(o *helperOptions) { o.userAgent = strings.TrimSpace(ua) }
}

// WithHeaders sets extra headers sent on every request. Per-call headers such
// as the JSON Content-Type still take precedence.
func WithHeaders(headers map[string]string) Option {
	return func(o *helperOptions) { o.headers = headers }
}

// WithLogger routes dispatch and outcome lines to log.
func WithLogger(log Logger) Option {
	return func(o *helperOptions) { o.log = log }
}

// New creates a Helper with the provided options.
func New(opts ...Option) *Helper {
	var o helperOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	log := ensureLogger(o.log)
	return &Helper{
		client: newRestyBaseClient(o, log),
		log:    log,
	}
}

// newRestyBaseClient creates the resty.Client shared by all calls of a Helper.
func newRestyBaseClient(o helperOptions, log Logger) *resty.Client {
	c := resty.New()
	if o.timeout > 0 {
		c.SetTimeout(o.timeout)
	}
	if o.transport != nil {
		c.SetTransport(o.transport)
	}
	if len(o.headers) > 0 {
		c.SetHeaders(o.headers)
	}
	if o.userAgent != "" {
		c.SetHeader("User-Agent", o.userAgent)
	}
	c.SetLogger(restyLogger{log: log})
	return c
}

var (
	defaultMu     sync.Mutex
	defaultHelper *Helper
)

// Default returns the package-level Helper used by GetText, PostForm and
// PostJSON. Until SetDefault is called it is a Helper without a logger.
func Default() *Helper {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHelper == nil {
		defaultHelper = New()
	}
	return defaultHelper
}

// SetDefault replaces the package-level Helper, typically with one carrying
// the application logger and timeouts. A nil h restores the bare default.
func SetDefault(h *Helper) {
	defaultMu.Lock()
	defaultHelper = h
	defaultMu.Unlock()
}

// GetText issues a GET through the default Helper.
func GetText(ctx context.Context, url string, params map[string]string) Result {
	return Default().GetText(ctx, url, params)
}

// PostForm issues a form POST through the default Helper.
func PostForm(ctx context.Context, url string, params map[string]string) Result {
	return Default().PostForm(ctx, url, params)
}

// PostJSON issues a JSON POST through the default Helper.
func PostJSON(ctx context.Context, url, jsonBody string) Result {
	return Default().PostJSON(ctx, url, jsonBody)
}

// GetText appends params to url as query parameters, performs a GET and
// returns the body decoded with the declared (or UTF-8) charset. The body is
// returned for every status code. Without params url is sent as given; an
// existing query is kept, so a repeated key ends up present twice.
func (h *Helper) GetText(ctx context.Context, url string, params map[string]string) Result {
	target, err := checkURL(url)
	if err != nil {
		return h.fail(http.MethodGet, url, err)
	}
	req := h.newRequest(ctx)
	if len(params) > 0 {
		req.SetQueryParamsFromValues(toValues(params))
	}
	return h.exchange(req, http.MethodGet, target, "")
}

// PostForm sends params as an application/x-www-form-urlencoded body (none
// when params is empty) and returns the body decoded as UTF-8.
func (h *Helper) PostForm(ctx context.Context, url string, params map[string]string) Result {
	target, err := checkURL(url)
	if err != nil {
		return h.fail(http.MethodPost, url, err)
	}
	req := h.newRequest(ctx)
	if len(params) > 0 {
		req.SetFormDataFromValues(toValues(params))
	}
	return h.exchange(req, http.MethodPost, target, charsetUTF8)
}

// PostJSON posts jsonBody verbatim with JSON content negotiation headers and
// returns the body decoded with the declared (or UTF-8) charset.
func (h *Helper) PostJSON(ctx context.Context, url, jsonBody string) Result {
	target, err := checkURL(url)
	if err != nil {
		return h.fail(http.MethodPost, url, err)
	}
	req := h.newRequest(ctx).
		SetHeader("Content-Type", contentTypeJSON).
		SetHeader("Accept", acceptJSON)
	if jsonBody != "" {
		req.SetBody([]byte(jsonBody))
	}
	h.log.DebugObj("http json body attached", "http_json", map[string]any{
		"url":   target,
		"bytes": len(jsonBody),
	})
	return h.exchange(req, http.MethodPost, target, "")
}

func (h *Helper) newRequest(ctx context.Context) *resty.Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return h.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
}

// exchange executes req and converts the outcome into a Result. The raw body
// is closed on every path once Execute has returned, PostJSON included.
func (h *Helper) exchange(req *resty.Request, method, target, forcedCharset string) Result {
	dispatch := map[string]any{
		"method": method,
		"url":    target,
	}
	if len(req.QueryParam) > 0 {
		dispatch["query"] = req.QueryParam.Encode()
	}
	h.log.InfoObj("http request dispatched", "http_request", dispatch)

	resp, err := req.Execute(method, target)
	defer closeBody(resp)
	target = sentURL(resp, target)
	if err != nil {
		return h.fail(method, target, err)
	}

	raw, err := readBody(resp)
	if err != nil {
		return h.fail(method, target, fmt.Errorf("read body: %w", err))
	}
	text, err := decodeBody(raw, resp.Header().Get("Content-Type"), forcedCharset)
	if err != nil {
		return h.fail(method, target, err)
	}

	outcome := map[string]any{
		"method": method,
		"url":    target,
		"status": resp.StatusCode(),
		"body":   bodySnippet(text),
	}
	if resp.IsSuccess() {
		h.log.InfoObj("http request succeeded", "http_response", outcome)
	} else {
		h.log.WarnObj("http request returned non-success status", "http_response", outcome)
	}
	return present(text, resp.StatusCode())
}

func (h *Helper) fail(method, target string, err error) Result {
	h.log.ErrorObj("http request failed", "http_error", map[string]any{
		"method": method,
		"url":    target,
		"error":  err.Error(),
	})
	return absent()
}

func readBody(resp *resty.Response) ([]byte, error) {
	body := resp.RawBody()
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(body)
}

func closeBody(resp *resty.Response) {
	if resp == nil {
		return
	}
	if body := resp.RawBody(); body != nil {
		_ = body.Close()
	}
}

// checkURL rejects empty, unparsable and relative URLs before any request is
// built.
func checkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is empty")
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", raw)
	}
	return raw, nil
}

// sentURL reports the URL resty actually requested, query included.
func sentURL(resp *resty.Response, fallback string) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == "" {
		return fallback
	}
	return resp.Request.URL
}

func toValues(params map[string]string) neturl.Values {
	values := make(neturl.Values, len(params))
	for k, v := range params {
		values.Add(k, v)
	}
	return values
}

func bodySnippet(body string) string {
	s := strings.TrimSpace(body)
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// restyLogger forwards resty's internal warnings into the helper's Logger.
type restyLogger struct {
	log Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.ErrorObj("resty error", "resty", fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.WarnObj("resty warning", "resty", fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.DebugObj("resty debug", "resty", fmt.Sprintf(format, v...))
}
