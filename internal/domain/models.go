package domain

import "time"

// Domain contains core models shared by the runtime packages.

// Exchange records one executed request and its outcome.
type Exchange struct {
	ID         uint64        `json:"id"`
	RequestID  string        `json:"request_id"`
	Kind       string        `json:"kind"`
	Method     string        `json:"method"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Present    bool          `json:"present"`
	BodyBytes  int           `json:"body_bytes"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Succeeded reports whether a body was obtained with a 2xx status.
func (e Exchange) Succeeded() bool {
	return e.Present && e.StatusCode >= 200 && e.StatusCode < 300
}
