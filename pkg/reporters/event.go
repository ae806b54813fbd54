package reporters

import (
	"time"

	"github.com/samvad-hq/httpkit/internal/domain"
)

// Event represents the payload reported downstream for one exchange.
type Event struct {
	RequestID   string    `json:"request_id"`
	Kind        string    `json:"kind"`
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	Present     bool      `json:"present"`
	Succeeded   bool      `json:"succeeded"`
	BodyBytes   int       `json:"body_bytes"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewEvent constructs an Event for the given exchange.
func NewEvent(ex domain.Exchange) Event {
	return Event{
		RequestID:   ex.RequestID,
		Kind:        ex.Kind,
		Method:      ex.Method,
		URL:         ex.URL,
		StatusCode:  ex.StatusCode,
		Present:     ex.Present,
		Succeeded:   ex.Succeeded(),
		BodyBytes:   ex.BodyBytes,
		ElapsedMs:   ex.Elapsed.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
}
