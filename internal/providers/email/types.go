package email

import (
	"context"
	"time"
)

// Payload is one outbound message. When both bodies are set the message is
// sent as multipart/alternative with the text part first.
type Payload struct {
	MessageID string
	From      string
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	TextBody  string
	HTMLBody  string
	Headers   map[string]string
}

// RawResponse is the relay's answer to a single send.
type RawResponse struct {
	ID        string
	Code      int
	Body      string
	Timestamp time.Time
}

// Session is an open connection to a mail relay. A session may send several
// messages and must be closed exactly once by its owner.
type Session interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
	Close() error
}

// Transport opens sessions. Implementations hold only immutable configuration
// and are safe for concurrent use; sessions are not shared.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}
