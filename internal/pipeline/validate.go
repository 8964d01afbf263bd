package pipeline

import (
	"strings"

	"github.com/example/roadside-intake/internal/models"
	"github.com/example/roadside-intake/internal/util"
)

const (
	reasonRequired = "is required"
	reasonInvalid  = "is invalid"
	reasonTooLong  = "is too long"
)

var fieldLimits = map[string]int{
	"name":             120,
	"contactNumber":    32,
	"email":            254,
	"vehicleModel":     64,
	"vehicleRegNumber": 64,
	"assistanceType":   64,
	"location":         500,
	"description":      2000,
}

// Validate checks a submission and returns a trimmed copy. Name, contact
// number, vehicle model, assistance type and location are required; email and
// description are optional but must be well formed when present.
func Validate(req models.SubmittedRequest) (models.SubmittedRequest, error) {
	out := models.SubmittedRequest{
		Name:             strings.TrimSpace(req.Name),
		ContactNumber:    strings.TrimSpace(req.ContactNumber),
		Email:            strings.TrimSpace(req.Email),
		VehicleModel:     strings.TrimSpace(req.VehicleModel),
		VehicleRegNumber: strings.TrimSpace(req.VehicleRegNumber),
		AssistanceType:   strings.TrimSpace(req.AssistanceType),
		Location:         strings.TrimSpace(req.Location),
		Description:      strings.TrimSpace(req.Description),
		Timestamp:        strings.TrimSpace(req.Timestamp),
	}

	verr := &ValidationError{}

	required := []struct {
		field string
		value string
	}{
		{"name", out.Name},
		{"contactNumber", out.ContactNumber},
		{"vehicleModel", out.VehicleModel},
		{"assistanceType", out.AssistanceType},
		{"location", out.Location},
	}
	for _, r := range required {
		if r.value == "" {
			verr.add(r.field, reasonRequired)
		}
	}

	if out.ContactNumber != "" {
		if _, err := util.NormalizePhone(out.ContactNumber); err != nil {
			verr.add("contactNumber", reasonInvalid)
		}
	}

	if out.Email != "" {
		normalized, err := util.NormalizeEmail(out.Email)
		if err != nil {
			verr.add("email", reasonInvalid)
		} else {
			out.Email = normalized
		}
	}

	lengths := []struct {
		field string
		value string
	}{
		{"name", out.Name},
		{"contactNumber", out.ContactNumber},
		{"email", out.Email},
		{"vehicleModel", out.VehicleModel},
		{"vehicleRegNumber", out.VehicleRegNumber},
		{"assistanceType", out.AssistanceType},
		{"location", out.Location},
		{"description", out.Description},
	}
	for _, l := range lengths {
		if err := util.EnsureMaxRunes(l.field, l.value, fieldLimits[l.field]); err != nil {
			verr.add(l.field, reasonTooLong)
		}
	}

	if err := verr.orNil(); err != nil {
		return models.SubmittedRequest{}, err
	}
	return out, nil
}
