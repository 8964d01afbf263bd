package models

import "time"

// Audience identifies who a notification document is written for.
type Audience string

const (
	AudienceInternal Audience = "internal"
	AudienceCustomer Audience = "customer"
)

// Priority is the delivery priority flag carried by a document.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// NotificationDocument is the rendered output of the composer for a single
// audience. The dispatcher treats Body and TextBody as opaque.
type NotificationDocument struct {
	Audience   Audience
	RequestID  string
	Recipients []string
	Subject    string
	Body       string
	TextBody   string
	Priority   Priority
}

// Failure kinds attached to a failed DispatchOutcome.
const (
	FailureKindPermanent     = "permanent"
	FailureKindTransient     = "transient"
	FailureKindConfiguration = "configuration"
)

// DispatchOutcome records the result of handing one document to the mail
// transport. Err is non-nil iff Succeeded is false.
type DispatchOutcome struct {
	Target    Audience
	Succeeded bool
	Err       error
	Kind      string
	Code      int
	Duration  time.Duration
}

// Failed reports whether the dispatch did not reach the relay.
func (o DispatchOutcome) Failed() bool { return !o.Succeeded }
