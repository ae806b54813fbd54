package runner

import (
	"context"

	"github.com/samvad-hq/httpkit/internal/domain"
	"github.com/samvad-hq/httpkit/pkg/reporters"
)

// HistoryStore persists executed exchanges.
type HistoryStore interface {
	Record(ex domain.Exchange) (domain.Exchange, error)
}

// EventReporter forwards exchange events downstream.
type EventReporter interface {
	Report(ctx context.Context, evt reporters.Event) (int, error)
}
