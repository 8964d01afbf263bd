package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/config"
	"github.com/example/roadside-intake/internal/dispatch"
	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/models"
)

// State is a step of one intake invocation.
type State string

const (
	StateReceived         State = "received"
	StateValidated        State = "validated"
	StateEnriched         State = "enriched"
	StateInternalNotified State = "internal_notified"
	StateCustomerNotified State = "customer_notified"
	StateCustomerSkipped  State = "customer_skipped"
	StateCustomerFailed   State = "customer_failed"
	StateResponded        State = "responded"
	StateAborted          State = "aborted"
)

// Public response messages. Internal error detail never reaches the submitter.
const (
	MessageSuccess = "Emergency request submitted successfully"
	MessageFailure = "Failed to submit emergency request. Please try again or call our hotline."
)

// CustomerFailurePolicy decides what a failed customer confirmation means for
// the submission as a whole.
type CustomerFailurePolicy string

const (
	// CustomerFailureStrict reports the whole submission as failed.
	CustomerFailureStrict CustomerFailurePolicy = config.CustomerFailureStrict
	// CustomerFailureLenient reports success because the response team was
	// reached.
	CustomerFailureLenient CustomerFailurePolicy = config.CustomerFailureLenient
)

// Enricher derives the enriched record from a validated submission.
type Enricher interface {
	Enrich(req models.SubmittedRequest) models.EnrichedRequest
}

// Composer renders notification documents.
type Composer interface {
	ComposeInternal(req models.EnrichedRequest) (models.NotificationDocument, error)
	ComposeCustomer(req models.EnrichedRequest) (models.NotificationDocument, error)
}

// Mailer acquires a mail session scoped to one invocation.
type Mailer interface {
	Acquire(ctx context.Context) (*dispatch.Session, error)
}

// Response is the JSON body returned to the submitter.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Result describes one finished invocation.
type Result struct {
	State     State
	Path      []State
	Customer  State
	RequestID string
	Documents []models.NotificationDocument
	Outcomes  []models.DispatchOutcome
	Kind      Kind
	Err       error
	Response  Response
}

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithCustomerFailurePolicy selects strict or lenient handling of a failed
// customer confirmation. Unknown values keep the strict default.
func WithCustomerFailurePolicy(p CustomerFailurePolicy) Option {
	return func(o *Orchestrator) {
		switch CustomerFailurePolicy(strings.ToLower(string(p))) {
		case CustomerFailureLenient:
			o.policy = CustomerFailureLenient
		case CustomerFailureStrict:
			o.policy = CustomerFailureStrict
		}
	}
}

// WithEventPublisher attaches an observational event sink.
func WithEventPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.events = p
		}
	}
}

// WithClock replaces the clock used for event timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs the intake pipeline. It holds only read-only
// collaborators and may serve many invocations concurrently.
type Orchestrator struct {
	logger   zerolog.Logger
	enricher Enricher
	composer Composer
	mailer   Mailer
	events   EventPublisher
	policy   CustomerFailurePolicy
	now      func() time.Time
}

// New wires an orchestrator.
func New(enricher Enricher, composer Composer, mailer Mailer, log zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if enricher == nil {
		return nil, errors.New("pipeline: enricher dependency is required")
	}
	if composer == nil {
		return nil, errors.New("pipeline: composer dependency is required")
	}
	if mailer == nil {
		return nil, errors.New("pipeline: mailer dependency is required")
	}

	o := &Orchestrator{
		logger:   logger.Component(log, "pipeline"),
		enricher: enricher,
		composer: composer,
		mailer:   mailer,
		events:   nopPublisher{},
		policy:   CustomerFailureStrict,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Policy reports the active customer failure policy.
func (o *Orchestrator) Policy() CustomerFailurePolicy { return o.policy }

type run struct {
	o        *Orchestrator
	ctx      context.Context
	start    time.Time
	res      *Result
	enriched models.EnrichedRequest
	log      zerolog.Logger
}

// Handle runs one submission to a terminal state. The caller's cancellation
// is not propagated: once started, notifications are sent or fail on their
// own transport deadline.
func (o *Orchestrator) Handle(ctx context.Context, req models.SubmittedRequest) (res Result) {
	r := &run{
		o:     o,
		ctx:   context.WithoutCancel(ctx),
		start: o.now(),
		res:   &Result{},
		log:   o.logger,
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.abort(KindInternal, fmt.Errorf("pipeline: panic: %v", rec))
		}
		r.respond()
		res = *r.res
	}()

	r.enter(StateReceived, models.IntakeEventReceived, "", "")

	validated, err := Validate(req)
	if err != nil {
		r.abort(KindValidation, err)
		return
	}
	r.enter(StateValidated, "", "", "")

	r.enriched = o.enricher.Enrich(validated)
	r.res.RequestID = r.enriched.RequestID
	r.log = r.log.With().Str("request_id", r.enriched.RequestID).Logger()
	r.enter(StateEnriched, "", "", "")

	internalDoc, err := o.composer.ComposeInternal(r.enriched)
	if err != nil {
		r.abort(KindInternal, err)
		return
	}
	r.res.Documents = append(r.res.Documents, internalDoc)

	session, err := o.mailer.Acquire(r.ctx)
	if err != nil {
		r.res.Outcomes = append(r.res.Outcomes, dispatch.AcquireFailure(models.AudienceInternal, err))
		r.abort(KindDispatch, err)
		return
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Msg("mail session close failed")
		}
	}()

	outcome := session.Dispatch(r.ctx, internalDoc)
	r.res.Outcomes = append(r.res.Outcomes, outcome)
	if outcome.Failed() {
		r.abort(KindDispatch, outcome.Err)
		return
	}
	r.enter(StateInternalNotified, models.IntakeEventInternalNotified, models.AudienceInternal, "")

	if !validated.HasEmail() {
		r.res.Customer = StateCustomerSkipped
		r.enter(StateCustomerSkipped, models.IntakeEventCustomerSkipped, models.AudienceCustomer, "")
		return
	}

	customerDoc, err := o.composer.ComposeCustomer(r.enriched)
	if err != nil {
		r.customerFailed(KindInternal, err)
		return
	}
	r.res.Documents = append(r.res.Documents, customerDoc)

	outcome = session.Dispatch(r.ctx, customerDoc)
	r.res.Outcomes = append(r.res.Outcomes, outcome)
	if outcome.Failed() {
		r.customerFailed(KindDispatch, outcome.Err)
		return
	}
	r.res.Customer = StateCustomerNotified
	r.enter(StateCustomerNotified, models.IntakeEventCustomerNotified, models.AudienceCustomer, "")
	return
}

func (r *run) customerFailed(kind Kind, err error) {
	r.res.Customer = StateCustomerFailed
	r.enter(StateCustomerFailed, models.IntakeEventCustomerFailed, models.AudienceCustomer, r.describe(kind, err))

	if r.o.policy == CustomerFailureLenient {
		r.log.Warn().
			Err(err).
			Msg("customer confirmation failed; response team was notified")
		return
	}
	r.abort(kind, err)
}

func (r *run) enter(state State, eventType string, target models.Audience, detail string) {
	r.res.State = state
	r.res.Path = append(r.res.Path, state)
	if eventType != "" {
		r.emit(eventType, target, detail)
	}
}

func (r *run) abort(kind Kind, err error) {
	if r.res.State == StateAborted {
		return
	}
	r.res.Kind = kind
	r.res.Err = err
	r.enter(StateAborted, "", "", "")

	if kind == KindValidation {
		r.log.Info().Str("kind", string(kind)).Err(err).Msg("emergency request rejected")
		r.emit(models.IntakeEventRejected, "", r.describe(kind, err))
		return
	}
	r.log.Error().Str("kind", string(kind)).Err(err).Msg("emergency request failed")
	r.emit(models.IntakeEventAborted, "", r.describe(kind, err))
}

// describe summarises a failure for the event sink. Transport errors can
// quote recipient addresses, so only the classification leaves the process.
func (r *run) describe(kind Kind, err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	if n := len(r.res.Outcomes); n > 0 && kind == KindDispatch {
		last := r.res.Outcomes[n-1]
		if last.Failed() {
			if last.Code != 0 {
				return fmt.Sprintf("%s dispatch failed: %s (smtp %d)", last.Target, last.Kind, last.Code)
			}
			return fmt.Sprintf("%s dispatch failed: %s", last.Target, last.Kind)
		}
	}
	return string(kind)
}

func (r *run) respond() {
	if r.res.State == StateAborted {
		msg := MessageFailure
		var verr *ValidationError
		if errors.As(r.res.Err, &verr) {
			msg = "Invalid request: " + strings.TrimPrefix(verr.Error(), ErrValidation.Error()+": ")
		}
		r.res.Response = Response{Success: false, Message: msg}
		r.res.Path = append(r.res.Path, StateResponded)
		return
	}

	r.enter(StateResponded, models.IntakeEventCompleted, "", "")
	r.res.Response = Response{Success: true, Message: MessageSuccess, RequestID: r.res.RequestID}

	e := r.enriched
	r.log.Info().
		Str("timestamp", e.FormattedTimestamp).
		Str("name", e.Name).
		Str("location", e.Location).
		Str("vehicle", e.VehicleModelDisplay).
		Str("assistance", e.AssistanceTypeDisplay).
		Str("customer", string(r.res.Customer)).
		Dur("duration", r.o.now().Sub(r.start)).
		Msg("emergency request submitted")
}

func (r *run) emit(eventType string, target models.Audience, detail string) {
	evt := models.IntakeEvent{
		EventID:        uuid.NewString(),
		RequestID:      r.res.RequestID,
		EventType:      eventType,
		State:          string(r.res.State),
		Target:         target,
		VehicleModel:   r.enriched.VehicleModelDisplay,
		AssistanceType: r.enriched.AssistanceTypeDisplay,
		Duration:       r.o.now().Sub(r.start),
		Error:          detail,
		Timestamp:      r.o.now().UTC(),
	}
	if perr := r.o.events.PublishIntakeEvent(r.ctx, evt); perr != nil {
		r.log.Warn().Err(perr).Str("event_type", eventType).Msg("intake event publish failed")
	}
}
