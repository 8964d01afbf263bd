package enrich

import (
	"time"

	"github.com/example/roadside-intake/internal/models"
)

// IDSource yields tracking identifiers.
type IDSource interface {
	NewRequestID() string
}

// Enricher turns a submitted request into the record every later stage reads.
type Enricher struct {
	formatter *Formatter
	ids       IDSource
	now       func() time.Time
}

// Option customises an Enricher.
type Option func(*Enricher)

// WithFormatter overrides the timestamp formatter.
func WithFormatter(f *Formatter) Option {
	return func(e *Enricher) {
		if f != nil {
			e.formatter = f
		}
	}
}

// WithIDSource overrides the identifier generator.
func WithIDSource(ids IDSource) Option {
	return func(e *Enricher) {
		if ids != nil {
			e.ids = ids
		}
	}
}

// WithClock overrides the receipt clock.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnricher builds an Enricher with Asia/Dhaka formatting and the default
// identifier generator.
func NewEnricher(opts ...Option) *Enricher {
	e := &Enricher{
		formatter: DefaultFormatter(),
		ids:       defaultGenerator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich derives display strings, the formatted timestamp and a fresh request
// id. The input is copied, never modified.
func (e *Enricher) Enrich(req models.SubmittedRequest) models.EnrichedRequest {
	received := e.now()
	submitted := ParseSubmittedTimestamp(req.Timestamp, received)

	return models.EnrichedRequest{
		SubmittedRequest:      req,
		RequestID:             e.ids.NewRequestID(),
		SubmittedAt:           submitted,
		FormattedTimestamp:    e.formatter.Format(submitted),
		VehicleModelDisplay:   VehicleModelDisplay(req.VehicleModel),
		AssistanceTypeDisplay: AssistanceTypeDisplay(req.AssistanceType),
		ReceivedAt:            received,
	}
}
