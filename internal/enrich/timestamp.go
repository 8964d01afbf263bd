package enrich

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/example/roadside-intake/internal/util"
)

const (
	// DefaultTimezone is the zone every timestamp is rendered in.
	DefaultTimezone = "Asia/Dhaka"
	// UnknownTime is rendered in place of a timestamp that could not be parsed.
	UnknownTime = "Unknown time"

	displayLayout = "Monday, January 2, 2006 at 3:04 PM"
)

// Bangladesh has observed a fixed +06:00 offset without DST since 2009.
var dhakaFallback = time.FixedZone("GMT+6", 6*60*60)

// Formatter renders instants in one fixed zone regardless of the host's
// local timezone.
type Formatter struct {
	loc *time.Location
}

// NewFormatter loads the named zone. An empty name selects DefaultTimezone.
// If DefaultTimezone itself cannot be loaded the fixed +06:00 offset is used.
func NewFormatter(zone string) (*Formatter, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		if zone == DefaultTimezone {
			return &Formatter{loc: dhakaFallback}, nil
		}
		return nil, fmt.Errorf("enrich: load timezone %q: %w", zone, err)
	}
	return &Formatter{loc: loc}, nil
}

// DefaultFormatter renders in Asia/Dhaka.
func DefaultFormatter() *Formatter {
	f, _ := NewFormatter(DefaultTimezone)
	return f
}

// Location exposes the zone used for rendering.
func (f *Formatter) Location() *time.Location { return f.loc }

// Format renders t as e.g. "Saturday, October 11, 2025 at 4:00 PM (GMT+6)".
// The zero time renders as UnknownTime.
func (f *Formatter) Format(t time.Time) string {
	if t.IsZero() {
		return UnknownTime
	}
	local := t.In(f.loc)
	return local.Format(displayLayout) + " (" + offsetLabel(local) + ")"
}

// FormatTimestamp renders t with the default Asia/Dhaka formatter.
func FormatTimestamp(t time.Time) string {
	return DefaultFormatter().Format(t)
}

// ParseSubmittedTimestamp interprets the timestamp sent by the form. RFC 3339
// strings and epoch milliseconds are accepted. An empty value means the client
// sent nothing, so now is used. Anything else yields the zero time.
func ParseSubmittedTimestamp(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	if ts, err := util.ParseRFC3339(raw); err == nil {
		return ts
	}
	if ts, err := util.ParseEpochMillis(raw); err == nil {
		return ts
	}
	return time.Time{}
}

func offsetLabel(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("GMT%s%d", sign, hours)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, hours, minutes)
}
