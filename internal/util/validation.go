package util

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidTimestamp indicates the value is neither RFC3339 nor epoch milliseconds.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrInvalidEmail is returned when an email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPhone is returned when a contact number has the wrong shape.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// Contact numbers are typed by hand on a phone, so separators are tolerated.
var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ().\-]{2,24}$`)

const minPhoneDigits = 3

// ParseRFC3339 parses a timestamp string using RFC3339Nano for maximum fidelity.
func ParseRFC3339(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: value is empty", ErrInvalidTimestamp)
	}

	ts, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	return ts, nil
}

// ParseEpochMillis parses a decimal count of milliseconds since the Unix epoch.
func ParseEpochMillis(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: value is empty", ErrInvalidTimestamp)
	}
	ms, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, fmt.Errorf("%w: %q is not epoch milliseconds", ErrInvalidTimestamp, trimmed)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// NormalizeEmail validates and normalizes an email address. The returned value
// is lowercased and stripped of surrounding whitespace.
func NormalizeEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	// Display names would end up in the customer's To header.
	if addr.Name != "" || addr.Address == "" {
		return "", fmt.Errorf("%w: must not include display name", ErrInvalidEmail)
	}

	if addr.Address != trimmed {
		return "", fmt.Errorf("%w: unexpected formatting", ErrInvalidEmail)
	}

	return strings.ToLower(addr.Address), nil
}

// NormalizePhone checks that a contact number looks dialable and returns it
// trimmed. Local formats such as 01712-345678 are accepted alongside E.164.
func NormalizePhone(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidPhone)
	}
	if !phonePattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, trimmed)
	}
	if countDigits(trimmed) < minPhoneDigits {
		return "", fmt.Errorf("%w: %q has too few digits", ErrInvalidPhone, trimmed)
	}
	return trimmed, nil
}

// TelURI renders a phone number as a tel: link target, keeping a leading plus
// and the digits only.
func TelURI(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	b.WriteString("tel:")
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UniqueAddresses trims, drops empties and removes case-insensitive duplicates
// while preserving first-seen order.
func UniqueAddresses(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// EnsureMaxRunes ensures a string is not longer than the provided rune count.
func EnsureMaxRunes(field, value string, max int) error {
	if max <= 0 {
		return nil
	}
	length := utf8.RuneCountInString(value)
	if length > max {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, max)
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
