package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/models"
	emailprovider "github.com/example/roadside-intake/internal/providers/email"
)

const defaultMessageIDDomain = "roadside-intake.local"

// Option customises dispatcher behaviour.
type Option func(*Dispatcher)

// WithMessageIDDomain sets the right-hand side of generated Message-ID
// headers. It is normally the sender's domain.
func WithMessageIDDomain(domain string) Option {
	return func(d *Dispatcher) {
		if domain = strings.TrimSpace(domain); domain != "" {
			d.messageIDDomain = domain
		}
	}
}

// WithClock replaces the clock used to time dispatches.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher hands notification documents to a mail transport. It holds no
// connection itself: every pipeline invocation acquires its own Session.
type Dispatcher struct {
	logger          zerolog.Logger
	transport       emailprovider.Transport
	messageIDDomain string
	newUUID         func() string
	now             func() time.Time
}

// New constructs a dispatcher over transport.
func New(transport emailprovider.Transport, log zerolog.Logger, opts ...Option) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("dispatch: %w: transport dependency is required", ErrNotConfigured)
	}

	d := &Dispatcher{
		logger:          logger.Component(log, "dispatch"),
		transport:       transport,
		messageIDDomain: defaultMessageIDDomain,
		newUUID:         uuid.NewString,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Acquire opens a transport session scoped to the caller. The caller must
// Close it on every path. Errors are classified like send failures.
func (d *Dispatcher) Acquire(ctx context.Context) (*Session, error) {
	inner, err := d.transport.Open(ctx)
	if err != nil {
		_, _, wrapped := classify(err, nil)
		return nil, fmt.Errorf("dispatch: acquire transport: %w", wrapped)
	}
	if inner == nil {
		return nil, fmt.Errorf("dispatch: acquire transport: %w", ErrNotConfigured)
	}
	return &Session{d: d, inner: inner}, nil
}

// AcquireFailure converts an Acquire error into the outcome recorded for the
// document that could not be sent.
func AcquireFailure(target models.Audience, err error) models.DispatchOutcome {
	kind, code, _ := classify(err, nil)
	if errors.Is(err, ErrNotConfigured) {
		kind = models.FailureKindConfiguration
	}
	return models.DispatchOutcome{Target: target, Err: err, Kind: kind, Code: code}
}

// Session sends documents over one open transport session.
type Session struct {
	d     *Dispatcher
	inner emailprovider.Session
}

// Dispatch sends doc and reports the outcome. It only waits for the relay to
// accept the message, not for final delivery.
func (s *Session) Dispatch(ctx context.Context, doc models.NotificationDocument) models.DispatchOutcome {
	d := s.d
	start := d.now()
	outcome := models.DispatchOutcome{Target: doc.Audience}

	payload := d.buildPayload(doc)
	raw, err := s.inner.Send(ctx, payload)
	outcome.Duration = d.now().Sub(start)

	if err != nil {
		kind, code, wrapped := classify(err, raw)
		outcome.Err = fmt.Errorf("dispatch %s: %w", doc.Audience, wrapped)
		outcome.Kind = kind
		outcome.Code = code
		d.logger.Info().
			Str("request_id", doc.RequestID).
			Str("target", string(doc.Audience)).
			Str("kind", kind).
			Int("smtp_code", code).
			Dur("duration", outcome.Duration).
			Err(err).
			Msg("notification dispatch failed")
		return outcome
	}

	outcome.Succeeded = true
	if raw != nil {
		outcome.Code = raw.Code
	}
	d.logger.Debug().
		Str("request_id", doc.RequestID).
		Str("target", string(doc.Audience)).
		Str("message_id", payload.MessageID).
		Int("recipients", len(doc.Recipients)).
		Dur("duration", outcome.Duration).
		Msg("notification dispatched")
	return outcome
}

// Close releases the underlying transport session.
func (s *Session) Close() error {
	if err := s.inner.Close(); err != nil {
		return fmt.Errorf("dispatch: release transport: %w", err)
	}
	return nil
}

func (d *Dispatcher) buildPayload(doc models.NotificationDocument) *emailprovider.Payload {
	messageID := fmt.Sprintf("<%s@%s>", d.newUUID(), d.messageIDDomain)

	headers := map[string]string{
		"Message-ID": messageID,
	}
	if doc.RequestID != "" {
		headers["X-Request-ID"] = doc.RequestID
	}
	for k, v := range priorityHeaders(doc.Priority) {
		headers[k] = v
	}

	return &emailprovider.Payload{
		MessageID: messageID,
		To:        append([]string(nil), doc.Recipients...),
		Subject:   doc.Subject,
		TextBody:  doc.TextBody,
		HTMLBody:  doc.Body,
		Headers:   headers,
	}
}

func priorityHeaders(p models.Priority) map[string]string {
	if p == models.PriorityHigh {
		return map[string]string{
			"X-Priority": "1 (Highest)",
			"Importance": "High",
			"Priority":   "urgent",
		}
	}
	return map[string]string{
		"X-Priority": "3 (Normal)",
		"Importance": "Normal",
	}
}

// DomainOf returns the domain part of an address, or "" when addr does not
// parse.
func DomainOf(addr string) string {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return ""
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at < 0 {
		return ""
	}
	return parsed.Address[at+1:]
}
