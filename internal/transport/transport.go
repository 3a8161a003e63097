package transport

import "context"

// Envelope is one outbound message. GroupKey selects an ordered
// delivery group: messages sharing a group are observed in submission
// order, different groups move in parallel. DedupKey, when set, is the
// transport-level deduplication token: publishing the same key twice
// inside the dedup window yields one logical message.
type Envelope struct {
	Body       []byte
	Attributes map[string]string
	DedupKey   string
	GroupKey   string
}

type Result struct {
	MessageID string
	// Duplicate reports that the dedup window collapsed this publish;
	// MessageID is then the id of the original message.
	Duplicate bool
}

type Transport interface {
	Send(ctx context.Context, env Envelope) (Result, error)
}
