package models

import "time"

// Intake event types emitted to the operational event sink.
const (
	IntakeEventReceived         = "received"
	IntakeEventRejected         = "rejected"
	IntakeEventInternalNotified = "internal_notified"
	IntakeEventCustomerNotified = "customer_notified"
	IntakeEventCustomerSkipped  = "customer_skipped"
	IntakeEventCustomerFailed   = "customer_failed"
	IntakeEventCompleted        = "completed"
	IntakeEventAborted          = "aborted"
)

// IntakeEvent is an observational record of a pipeline transition. It carries
// display strings only; submitter contact details never leave the process.
type IntakeEvent struct {
	EventID        string        `json:"event_id"`
	RequestID      string        `json:"request_id,omitempty"`
	EventType      string        `json:"event_type"`
	State          string        `json:"state"`
	Target         Audience      `json:"target,omitempty"`
	VehicleModel   string        `json:"vehicle_model,omitempty"`
	AssistanceType string        `json:"assistance_type,omitempty"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ns,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
