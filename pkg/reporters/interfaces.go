package reporters

import "context"

// Reporter sends exchange events to a downstream sink (HTTP, SQS, SNS, Pub/Sub).
type Reporter interface {
	ID() string
	Type() string
	Report(ctx context.Context, evt Event) error
}
