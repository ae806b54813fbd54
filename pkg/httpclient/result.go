package httpclient

// Result is the outcome of a single exchange: either the decoded body text
// with its status code, or absent when the request could not be completed or
// the body could not be read.
type Result struct {
	body       string
	statusCode int
	present    bool
}

func present(body string, statusCode int) Result {
	return Result{body: body, statusCode: statusCode, present: true}
}

func absent() Result { return Result{} }

// Value returns the body text and whether the result is present.
func (r Result) Value() (string, bool) { return r.body, r.present }

// OK reports whether a body was obtained, whatever the status code.
func (r Result) OK() bool { return r.present }

// StatusCode returns the response status, or 0 for an absent result.
func (r Result) StatusCode() int { return r.statusCode }

// OrElse returns the body text, or fallback when absent.
func (r Result) OrElse(fallback string) string {
	if !r.present {
		return fallback
	}
	return r.body
}
