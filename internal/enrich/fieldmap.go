package enrich

// CodeTable maps a coded form value to its display string.
type CodeTable map[string]string

// VehicleModels lists the vehicle model codes offered by the intake form.
var VehicleModels = CodeTable{
	"tiggo4pro": "Tiggo 4 Pro",
	"tiggo7pro": "Tiggo 7 Pro",
	"tiggo8pro": "Tiggo 8 Pro",
	"arrizo6":   "Arrizo 6",
	"omoda":     "Omoda",
	"jaccoo":    "Jaccoo",
	"other":     "Other",
}

// AssistanceTypes lists the assistance codes offered by the intake form.
var AssistanceTypes = CodeTable{
	"towing":    "Vehicle Recovery/Towing",
	"flat-tire": "Flat Tire",
	"battery":   "Battery Jump Start",
	"fuel":      "Fuel Delivery",
	"lockout":   "Lockout Assistance",
	"other":     "Other Emergency",
}

// MapCode returns the display string for code, or code itself when the table
// has no entry. Lookup is exact.
func MapCode(table CodeTable, code string) string {
	if display, ok := table[code]; ok {
		return display
	}
	return code
}

// VehicleModelDisplay maps a vehicle model code.
func VehicleModelDisplay(code string) string { return MapCode(VehicleModels, code) }

// AssistanceTypeDisplay maps an assistance type code.
func AssistanceTypeDisplay(code string) string { return MapCode(AssistanceTypes, code) }
