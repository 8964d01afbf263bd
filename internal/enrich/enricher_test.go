package enrich

import (
	"testing"
	"time"

	"github.com/example/roadside-intake/internal/models"
)

type staticIDs string

func (s staticIDs) NewRequestID() string { return string(s) }

func TestEnrich(t *testing.T) {
	received := time.Date(2025, 10, 11, 10, 5, 0, 0, time.UTC)
	e := NewEnricher(
		WithIDSource(staticIDs("ER-TEST-ABCDE")),
		WithClock(func() time.Time { return received }),
	)

	req := models.SubmittedRequest{
		Name:           "Rahim",
		ContactNumber:  "01712345678",
		VehicleModel:   "tiggo7pro",
		AssistanceType: "flat-tire",
		Location:       "Gulshan-2",
		Timestamp:      "2025-10-11T10:00:00Z",
	}
	before := req

	got := e.Enrich(req)

	if req != before {
		t.Fatalf("input was mutated")
	}
	if got.SubmittedRequest != req {
		t.Fatalf("submitted fields not carried over: %+v", got.SubmittedRequest)
	}
	if got.RequestID != "ER-TEST-ABCDE" {
		t.Fatalf("unexpected request id %q", got.RequestID)
	}
	if got.VehicleModelDisplay != "Tiggo 7 Pro" {
		t.Fatalf("unexpected vehicle display %q", got.VehicleModelDisplay)
	}
	if got.AssistanceTypeDisplay != "Flat Tire" {
		t.Fatalf("unexpected assistance display %q", got.AssistanceTypeDisplay)
	}
	if got.FormattedTimestamp != "Saturday, October 11, 2025 at 4:00 PM (GMT+6)" {
		t.Fatalf("unexpected timestamp %q", got.FormattedTimestamp)
	}
	if !got.ReceivedAt.Equal(received) {
		t.Fatalf("unexpected receipt time %s", got.ReceivedAt)
	}
}

func TestEnrichUnknownModelPassesThrough(t *testing.T) {
	e := NewEnricher()
	got := e.Enrich(models.SubmittedRequest{VehicleModel: "unknownmodel", AssistanceType: "winch"})
	if got.VehicleModelDisplay != "unknownmodel" {
		t.Fatalf("expected identity fallback, got %q", got.VehicleModelDisplay)
	}
	if got.AssistanceTypeDisplay != "winch" {
		t.Fatalf("expected identity fallback, got %q", got.AssistanceTypeDisplay)
	}
	if got.RequestID == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestEnrichGarbageTimestamp(t *testing.T) {
	e := NewEnricher()
	got := e.Enrich(models.SubmittedRequest{Timestamp: "not a time"})
	if got.FormattedTimestamp != UnknownTime {
		t.Fatalf("expected %q, got %q", UnknownTime, got.FormattedTimestamp)
	}
}
