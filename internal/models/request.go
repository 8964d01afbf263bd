package models

import "time"

// SubmittedRequest models the JSON body posted by the emergency assistance
// form. Nothing here is trusted until the pipeline has validated it.
type SubmittedRequest struct {
	Name             string `json:"name"`
	ContactNumber    string `json:"contactNumber"`
	Email            string `json:"email,omitempty"`
	VehicleModel     string `json:"vehicleModel"`
	VehicleRegNumber string `json:"vehicleRegNumber"`
	AssistanceType   string `json:"assistanceType"`
	Location         string `json:"location"`
	Description      string `json:"description,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// HasEmail reports whether the submitter supplied an address for the
// customer confirmation.
func (r SubmittedRequest) HasEmail() bool { return r.Email != "" }

// HasDescription reports whether free-text details were supplied.
func (r SubmittedRequest) HasDescription() bool { return r.Description != "" }

// EnrichedRequest is the immutable record built once per submission. It owns a
// copy of the submitted fields so later stages never observe caller mutation.
type EnrichedRequest struct {
	SubmittedRequest

	RequestID             string    `json:"requestId"`
	SubmittedAt           time.Time `json:"submittedAt"`
	FormattedTimestamp    string    `json:"formattedTimestamp"`
	VehicleModelDisplay   string    `json:"vehicleModelDisplay"`
	AssistanceTypeDisplay string    `json:"assistanceTypeDisplay"`
	ReceivedAt            time.Time `json:"receivedAt"`
}
