package config

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Customer failure policies accepted by CUSTOMER_FAILURE_POLICY.
const (
	CustomerFailureStrict  = "strict"
	CustomerFailureLenient = "lenient"
)

// Mail transport backends accepted by MAIL_TRANSPORT.
const (
	TransportSMTP = "smtp"
	TransportMock = "mock"
)

// DefaultAdminRecipients is the operational distribution list used when
// ADMIN_RECIPIENTS is not set.
var DefaultAdminRecipients = []string{
	"emergency@roadside-assist.com.bd",
	"dispatch@roadside-assist.com.bd",
	"support@roadside-assist.com.bd",
}

// Config captures all runtime configuration for the intake service. It is
// built once at startup and treated as read-only afterwards.
type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	Intake IntakeConfig
	Mail   MailConfig
	Kafka  KafkaConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// HTTPConfig tunes the inbound HTTP server.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
	MaxBodyBytes      int64
}

// IntakeConfig holds pipeline level policy.
type IntakeConfig struct {
	MaxInFlight           int
	CustomerFailurePolicy string
	Timezone              string
	AdminRecipients       []string
	SupportHotline        string
}

// SMTPConfig stores SMTP credentials for email delivery. User is the account
// identity and Pass the application-level secret.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
	Timeout  time.Duration
}

// MailConfig selects and configures the outbound mail transport.
type MailConfig struct {
	Transport string
	SMTP      SMTPConfig
}

// KafkaConfig configures the optional intake event sink. An empty broker list
// disables the sink.
type KafkaConfig struct {
	Brokers           []string
	IntakeEventsTopic string
	EventQueueSize    int
}

// Enabled reports whether intake events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.IntakeEventsTopic != ""
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.HTTP.ReadHeaderTimeout = time.Duration(ldr.getInt("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5, false)) * time.Second
	cfg.HTTP.ShutdownTimeout = time.Duration(ldr.getInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 10, false)) * time.Second
	cfg.HTTP.AllowedOrigins = ldr.getStringSlice("API_ALLOWED_ORIGINS", false)
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	cfg.HTTP.MaxBodyBytes = int64(ldr.getInt("MAX_BODY_BYTES", 64<<10, false))

	cfg.Intake.MaxInFlight = ldr.getInt("INTAKE_MAX_INFLIGHT", 64, false)
	cfg.Intake.CustomerFailurePolicy = strings.ToLower(ldr.getString("CUSTOMER_FAILURE_POLICY", CustomerFailureStrict, false))
	cfg.Intake.Timezone = ldr.getString("TIMEZONE", "Asia/Dhaka", false)
	cfg.Intake.AdminRecipients = ldr.getStringSlice("ADMIN_RECIPIENTS", false)
	if len(cfg.Intake.AdminRecipients) == 0 {
		cfg.Intake.AdminRecipients = append([]string(nil), DefaultAdminRecipients...)
	}
	cfg.Intake.SupportHotline = ldr.getString("SUPPORT_HOTLINE", "16699", false)

	cfg.Mail.Transport = strings.ToLower(ldr.getString("MAIL_TRANSPORT", TransportSMTP, false))
	requireSMTP := cfg.Mail.Transport == TransportSMTP
	cfg.Mail.SMTP.Host = ldr.getString("SMTP_HOST", "smtp.gmail.com", false)
	cfg.Mail.SMTP.Port = ldr.getInt("SMTP_PORT", 587, false)
	cfg.Mail.SMTP.User = ldr.getString("SMTP_USER", "", requireSMTP)
	cfg.Mail.SMTP.Pass = ldr.getString("SMTP_PASS", "", requireSMTP)
	cfg.Mail.SMTP.From = ldr.getString("SMTP_FROM", cfg.Mail.SMTP.User, false)
	cfg.Mail.SMTP.FromName = ldr.getString("SMTP_FROM_NAME", "Roadside Assistance", false)
	cfg.Mail.SMTP.Timeout = time.Duration(ldr.getInt("SMTP_TIMEOUT_SECONDS", 30, false)) * time.Second

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.IntakeEventsTopic = ldr.getString("KAFKA_INTAKE_EVENTS_TOPIC", "roadside.intake.events", false)
	cfg.Kafka.EventQueueSize = ldr.getInt("KAFKA_EVENT_QUEUE_SIZE", 256, false)

	ldr.check(cfg)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) check(cfg *Config) {
	switch cfg.Intake.CustomerFailurePolicy {
	case CustomerFailureStrict, CustomerFailureLenient:
	default:
		l.addError(fmt.Sprintf("CUSTOMER_FAILURE_POLICY must be %q or %q", CustomerFailureStrict, CustomerFailureLenient))
	}

	switch cfg.Mail.Transport {
	case TransportSMTP, TransportMock:
	default:
		l.addError(fmt.Sprintf("MAIL_TRANSPORT must be %q or %q", TransportSMTP, TransportMock))
	}

	if cfg.Intake.MaxInFlight < 1 {
		l.addError("INTAKE_MAX_INFLIGHT must be >= 1")
	}
	if cfg.Kafka.EventQueueSize < 1 {
		l.addError("KAFKA_EVENT_QUEUE_SIZE must be >= 1")
	}
	if cfg.HTTP.MaxBodyBytes < 1 {
		l.addError("MAX_BODY_BYTES must be >= 1")
	}
	if cfg.Mail.SMTP.Port <= 0 || cfg.Mail.SMTP.Port > 65535 {
		l.addError("SMTP_PORT must be between 1 and 65535")
	}
	if cfg.Mail.Transport == TransportSMTP && strings.TrimSpace(cfg.Mail.SMTP.From) != "" {
		if _, err := mail.ParseAddress(cfg.Mail.SMTP.From); err != nil {
			l.addError("SMTP_FROM must be a valid email address")
		}
	}
	for _, addr := range cfg.Intake.AdminRecipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			l.addError(fmt.Sprintf("ADMIN_RECIPIENTS contains invalid address %q", addr))
		}
	}
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
