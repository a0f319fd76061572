package notify

import "context"

// Message is one notification to deliver. Priority follows ntfy semantics
// (low, default, high); backends that have no matching concept ignore it.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Sink delivers messages to one backend.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
