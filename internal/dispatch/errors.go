package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/roadside-intake/internal/models"
	emailprovider "github.com/example/roadside-intake/internal/providers/email"
)

// Sentinel errors attached to every failed dispatch so callers can tell a
// rejected message from a relay that may accept it later.
var (
	ErrTransient     = errors.New("transient error")
	ErrPermanent     = errors.New("permanent error")
	ErrNotConfigured = errors.New("mail transport not configured")
)

var smtpErrPattern = regexp.MustCompile(`smtp\s+(\d{3})`)

// WrapTransient annotates an error so callers can detect transient failures.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// wrapConfiguration marks credential and setup failures. They are permanent
// until an operator changes the configuration.
func wrapConfiguration(err error) error {
	return fmt.Errorf("%w: %w", ErrNotConfigured, WrapPermanent(err))
}

// classify maps a transport failure to a failure kind, the relay reply code
// when one is known, and the error wrapped with the matching sentinel.
func classify(err error, raw *emailprovider.RawResponse) (string, int, error) {
	code := replyCode(err, raw)

	switch {
	case isAuthCode(code):
		return models.FailureKindConfiguration, code, wrapConfiguration(err)
	case isPermanentCode(code):
		return models.FailureKindPermanent, code, WrapPermanent(err)
	case code >= 400:
		return models.FailureKindTransient, code, WrapTransient(err)
	case isTimeout(err):
		return models.FailureKindTransient, code, WrapTransient(err)
	case isMalformed(err):
		return models.FailureKindPermanent, code, WrapPermanent(err)
	default:
		return models.FailureKindTransient, code, WrapTransient(err)
	}
}

func replyCode(err error, raw *emailprovider.RawResponse) int {
	if raw != nil && raw.Code >= 400 {
		return raw.Code
	}
	if code := emailprovider.SMTPCode(err); code != 0 {
		return code
	}
	if code, ok := extractSMTPCode(err); ok {
		return code
	}
	return 0
}

func extractSMTPCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	matches := smtpErrPattern.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0, false
	}
	code, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// isMalformed catches address and payload errors raised before anything was
// written to the wire.
func isMalformed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid recipient") ||
		strings.Contains(msg, "invalid from address") ||
		strings.Contains(msg, "at least one recipient")
}

func isAuthCode(code int) bool {
	return code == 530 || code == 535
}

func isPermanentCode(code int) bool {
	switch code {
	case 530, 535, 550, 551, 553:
		return true
	default:
		return false
	}
}
