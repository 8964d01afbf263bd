package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/config"
	emailprovider "github.com/example/roadside-intake/internal/providers/email"
)

// Email constructs the configured mail transport, supporting SMTP and mock
// backends.
func Email(cfg config.MailConfig, logger zerolog.Logger) (emailprovider.Transport, error) {
	backend := normalize(cfg.Transport, config.TransportSMTP)
	switch backend {
	case config.TransportSMTP:
		transport, err := emailprovider.NewSMTPTransport(cfg.SMTP, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: smtp transport init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Str("host", cfg.SMTP.Host).
			Int("port", cfg.SMTP.Port).
			Msg("mail transport initialised")
		return transport, nil
	case config.TransportMock:
		transport := emailprovider.NewMockTransport(logger)
		logger.Warn().
			Str("backend", backend).
			Msg("mail transport initialised; notifications will not leave the process")
		return transport, nil
	default:
		return nil, fmt.Errorf("factory: unsupported mail transport %q", cfg.Transport)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
