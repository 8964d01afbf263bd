package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/example/roadside-intake/internal/config"
	"github.com/example/roadside-intake/internal/dispatch"
	"github.com/example/roadside-intake/internal/enrich"
	"github.com/example/roadside-intake/internal/httpapi"
	"github.com/example/roadside-intake/internal/kafka/producer"
	kafkapublisher "github.com/example/roadside-intake/internal/kafka/publisher"
	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/notify"
	"github.com/example/roadside-intake/internal/pipeline"
	"github.com/example/roadside-intake/internal/providers/factory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("binary", "intake-api").Logger()

	if err := run(ctx, cfg, log); err != nil {
		stop()
		fail("run", err)
	}
	log.Info().Msg("intake api stopped")
}

// run owns every resource with a shutdown step, so all of them are released
// before main decides the exit status.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	formatter, err := enrich.NewFormatter(cfg.Intake.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Intake.Timezone, err)
	}
	enricher := enrich.NewEnricher(enrich.WithFormatter(formatter))

	composer, err := notify.NewComposer(notify.Config{
		AdminRecipients: cfg.Intake.AdminRecipients,
		SupportHotline:  cfg.Intake.SupportHotline,
	})
	if err != nil {
		return fmt.Errorf("notification composer: %w", err)
	}

	transport, err := factory.Email(cfg.Mail, logger.Component(log, "mail-transport"))
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}
	mailer, err := dispatch.New(transport, log, dispatch.WithMessageIDDomain(dispatch.DomainOf(cfg.Mail.SMTP.From)))
	if err != nil {
		return fmt.Errorf("mail dispatcher: %w", err)
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithCustomerFailurePolicy(pipeline.CustomerFailurePolicy(cfg.Intake.CustomerFailurePolicy)),
	}
	var httpOpts []httpapi.Option

	if cfg.Kafka.Enabled() {
		prod, err := producer.New(cfg.Kafka.Brokers, logger.Component(log, "kafka"))
		if err != nil {
			log.Warn().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("intake event sink unavailable; continuing without it")
		} else {
			defer func() {
				if err := prod.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close kafka producer")
				}
			}()
			sink := kafkapublisher.NewIntakeEventPublisher(prod, cfg.Kafka.IntakeEventsTopic, log)
			events, err := kafkapublisher.NewAsyncPublisher(sink, cfg.Kafka.EventQueueSize, log)
			if err != nil {
				return fmt.Errorf("intake event publisher: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				if err := events.Close(closeCtx); err != nil {
					log.Warn().Err(err).Msg("intake events not fully flushed")
				}
			}()
			pipelineOpts = append(pipelineOpts, pipeline.WithEventPublisher(events))
			httpOpts = append(httpOpts, httpapi.WithReadiness("kafka", prod))
			log.Info().Str("topic", cfg.Kafka.IntakeEventsTopic).Msg("intake event sink enabled")
		}
	}

	orch, err := pipeline.New(enricher, composer, mailer, log, pipelineOpts...)
	if err != nil {
		return fmt.Errorf("intake pipeline: %w", err)
	}

	api, err := httpapi.New(httpapi.Config{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		MaxInFlight:    int64(cfg.Intake.MaxInFlight),
	}, orch, log, httpOpts...)
	if err != nil {
		return fmt.Errorf("http api: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           api.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("policy", string(orch.Policy())).
			Str("mail_transport", cfg.Mail.Transport).
			Msg("intake api started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("intake api failed")
}
