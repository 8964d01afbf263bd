package enrich

import "testing"

func TestVehicleModelDisplay(t *testing.T) {
	cases := map[string]string{
		"tiggo4pro": "Tiggo 4 Pro",
		"tiggo7pro": "Tiggo 7 Pro",
		"tiggo8pro": "Tiggo 8 Pro",
		"arrizo6":   "Arrizo 6",
		"omoda":     "Omoda",
		"jaccoo":    "Jaccoo",
		"other":     "Other",
	}
	for code, want := range cases {
		if got := VehicleModelDisplay(code); got != want {
			t.Fatalf("VehicleModelDisplay(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestAssistanceTypeDisplay(t *testing.T) {
	cases := map[string]string{
		"towing":    "Vehicle Recovery/Towing",
		"flat-tire": "Flat Tire",
		"battery":   "Battery Jump Start",
		"fuel":      "Fuel Delivery",
		"lockout":   "Lockout Assistance",
		"other":     "Other Emergency",
	}
	for code, want := range cases {
		if got := AssistanceTypeDisplay(code); got != want {
			t.Fatalf("AssistanceTypeDisplay(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestMapCodeIdentityFallback(t *testing.T) {
	unmapped := []string{"unknownmodel", "", "Tiggo7Pro", " tiggo7pro", "FLAT-TIRE"}
	for _, code := range unmapped {
		if got := VehicleModelDisplay(code); got != code {
			t.Fatalf("expected %q unchanged, got %q", code, got)
		}
		if got := AssistanceTypeDisplay(code); got != code {
			t.Fatalf("expected %q unchanged, got %q", code, got)
		}
	}
}

func TestMapCodeIsIdempotent(t *testing.T) {
	for code := range VehicleModels {
		first := VehicleModelDisplay(code)
		for i := 0; i < 3; i++ {
			if again := VehicleModelDisplay(code); again != first {
				t.Fatalf("mapping for %q changed between calls: %q vs %q", code, first, again)
			}
		}
	}
}
