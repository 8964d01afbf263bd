package config_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/example/roadside-intake/internal/config"
)

func setSMTPEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MAIL_TRANSPORT", "smtp")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_USER", "mailer@example.com")
	t.Setenv("SMTP_PASS", "app-password")
	t.Setenv("SMTP_FROM", "noreply@example.com")
}

func TestLoadSuccess(t *testing.T) {
	setSMTPEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9093")
	t.Setenv("ADMIN_RECIPIENTS", "ops@example.com, dispatch@example.com")
	t.Setenv("CUSTOMER_FAILURE_POLICY", "Lenient")
	t.Setenv("SMTP_TIMEOUT_SECONDS", "12")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected app env production, got %s", cfg.App.Env)
	}
	if cfg.App.Port != 9000 {
		t.Fatalf("expected app port 9000, got %d", cfg.App.Port)
	}
	if cfg.App.LogLevel != "warn" {
		t.Fatalf("expected log level warn, got %s", cfg.App.LogLevel)
	}

	wantBrokers := []string{"broker-a:9092", "broker-b:9093"}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, wantBrokers) {
		t.Fatalf("expected brokers %v, got %v", wantBrokers, cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.Enabled() {
		t.Fatalf("expected kafka sink to be enabled")
	}

	wantAdmins := []string{"ops@example.com", "dispatch@example.com"}
	if !reflect.DeepEqual(cfg.Intake.AdminRecipients, wantAdmins) {
		t.Fatalf("expected admin recipients %v, got %v", wantAdmins, cfg.Intake.AdminRecipients)
	}
	if cfg.Intake.CustomerFailurePolicy != config.CustomerFailureLenient {
		t.Fatalf("expected lenient policy, got %s", cfg.Intake.CustomerFailurePolicy)
	}
	if cfg.Mail.SMTP.Timeout != 12*time.Second {
		t.Fatalf("expected smtp timeout 12s, got %s", cfg.Mail.SMTP.Timeout)
	}
	if cfg.Mail.SMTP.From != "noreply@example.com" {
		t.Fatalf("expected smtp from noreply@example.com, got %s", cfg.Mail.SMTP.From)
	}
}

func TestLoadDefaults(t *testing.T) {
	setSMTPEnv(t)
	t.Setenv("SMTP_FROM", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ADMIN_RECIPIENTS", "")
	t.Setenv("CUSTOMER_FAILURE_POLICY", "")
	t.Setenv("TIMEZONE", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Intake.CustomerFailurePolicy != config.CustomerFailureStrict {
		t.Fatalf("expected strict default policy, got %s", cfg.Intake.CustomerFailurePolicy)
	}
	if cfg.Intake.Timezone != "Asia/Dhaka" {
		t.Fatalf("expected Asia/Dhaka default timezone, got %s", cfg.Intake.Timezone)
	}
	if !reflect.DeepEqual(cfg.Intake.AdminRecipients, config.DefaultAdminRecipients) {
		t.Fatalf("expected default admin recipients, got %v", cfg.Intake.AdminRecipients)
	}
	if cfg.Mail.SMTP.From != "mailer@example.com" {
		t.Fatalf("expected from to fall back to smtp user, got %s", cfg.Mail.SMTP.From)
	}
	if cfg.Kafka.Enabled() {
		t.Fatalf("expected kafka sink to be disabled without brokers")
	}
	if cfg.Kafka.EventQueueSize != 256 {
		t.Fatalf("expected default event queue size 256, got %d", cfg.Kafka.EventQueueSize)
	}
	if !reflect.DeepEqual(cfg.HTTP.AllowedOrigins, []string{"*"}) {
		t.Fatalf("expected wildcard origins, got %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadSMTPRequiresCredentials(t *testing.T) {
	setSMTPEnv(t)
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASS", "")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected error when smtp credentials missing")
	}

	msg := err.Error()
	if !strings.Contains(msg, "SMTP_USER is required") {
		t.Fatalf("expected error about missing SMTP_USER, got %q", msg)
	}
	if !strings.Contains(msg, "SMTP_PASS is required") {
		t.Fatalf("expected error about missing SMTP_PASS, got %q", msg)
	}
}

func TestLoadMockTransportSkipsCredentials(t *testing.T) {
	t.Setenv("MAIL_TRANSPORT", "mock")
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASS", "")
	t.Setenv("SMTP_FROM", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading mock transport: %v", err)
	}
	if cfg.Mail.Transport != config.TransportMock {
		t.Fatalf("expected mock transport, got %s", cfg.Mail.Transport)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "policy", key: "CUSTOMER_FAILURE_POLICY", val: "sometimes", want: "CUSTOMER_FAILURE_POLICY must be"},
		{name: "transport", key: "MAIL_TRANSPORT", val: "pigeon", want: "MAIL_TRANSPORT must be"},
		{name: "port", key: "SMTP_PORT", val: "70000", want: "SMTP_PORT must be between"},
		{name: "port not int", key: "SMTP_PORT", val: "abc", want: "SMTP_PORT must be a valid integer"},
		{name: "inflight", key: "INTAKE_MAX_INFLIGHT", val: "0", want: "INTAKE_MAX_INFLIGHT must be >= 1"},
		{name: "event queue", key: "KAFKA_EVENT_QUEUE_SIZE", val: "0", want: "KAFKA_EVENT_QUEUE_SIZE must be >= 1"},
		{name: "admin list", key: "ADMIN_RECIPIENTS", val: "ops@example.com,not-an-address", want: "ADMIN_RECIPIENTS contains invalid address"},
		{name: "from", key: "SMTP_FROM", val: "nobody", want: "SMTP_FROM must be a valid email address"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			setSMTPEnv(t)
			t.Setenv(tc.key, tc.val)

			_, err := config.Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %q", tc.want, err.Error())
			}
		})
	}
}
