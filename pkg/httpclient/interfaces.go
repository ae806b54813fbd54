package httpclient

import "context"

// Client is the blocking request-helper surface. Implementations never return
// errors; a failed exchange is an absent Result.
type Client interface {
	GetText(ctx context.Context, url string, params map[string]string) Result
	PostForm(ctx context.Context, url string, params map[string]string) Result
	PostJSON(ctx context.Context, url, jsonBody string) Result
}

// Logger defines the logging surface the helper relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
