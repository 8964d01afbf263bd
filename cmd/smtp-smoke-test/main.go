package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/config"
	"github.com/example/roadside-intake/internal/dispatch"
	"github.com/example/roadside-intake/internal/enrich"
	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/models"
	"github.com/example/roadside-intake/internal/notify"
	"github.com/example/roadside-intake/internal/providers/factory"
)

// smtp-smoke-test renders a sample internal notification and sends it
// through the configured transport. SMOKE_TEST_TO overrides the admin list.
func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	recipients := cfg.Intake.AdminRecipients
	if override := strings.TrimSpace(os.Getenv("SMOKE_TEST_TO")); override != "" {
		recipients = strings.Split(override, ",")
	}

	composer, err := notify.NewComposer(notify.Config{
		AdminRecipients: recipients,
		SupportHotline:  cfg.Intake.SupportHotline,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise composer")
	}

	formatter, err := enrich.NewFormatter(cfg.Intake.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load timezone")
	}
	enriched := enrich.NewEnricher(enrich.WithFormatter(formatter)).Enrich(models.SubmittedRequest{
		Name:             "Smoke Test",
		ContactNumber:    "+8801700000000",
		VehicleModel:     "tiggo7pro",
		VehicleRegNumber: "SMOKE-TEST",
		AssistanceType:   "other",
		Location:         "Connectivity check, no action required",
		Description:      "Sent by smtp-smoke-test.",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})

	doc, err := composer.ComposeInternal(enriched)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compose sample notification")
	}
	doc.Subject = "[SMOKE TEST] " + doc.Subject

	transport, err := factory.Email(cfg.Mail, logger.Component(log, "mail-transport"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise mail transport")
	}
	mailer, err := dispatch.New(transport, log, dispatch.WithMessageIDDomain(dispatch.DomainOf(cfg.Mail.SMTP.From)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	timeout := cfg.Mail.SMTP.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	session, err := mailer.Acquire(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mail session")
	}
	outcome := session.Dispatch(ctx, doc)
	if err := session.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close mail session")
	}

	if outcome.Failed() {
		log.Fatal().
			Err(outcome.Err).
			Str("kind", outcome.Kind).
			Int("code", outcome.Code).
			Msg("sample notification was not accepted")
	}

	log.Info().
		Str("request_id", enriched.RequestID).
		Strs("recipients", doc.Recipients).
		Dur("duration", outcome.Duration).
		Msg("mail transport working as expected")
}
