package queue

import (
	"context"
	"encoding/json"
)

// Job consumes one message type. Handle returning an error schedules a
// retry; the payload is the raw JSON given to Enqueue.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}
