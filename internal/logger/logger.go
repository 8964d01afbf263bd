package logger

import (
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	simpleTimeFormat = "02-01-2006 15:04:05"
	serviceName      = "roadside-intake"
)

// New builds the process logger. Development environments get a console
// writer; everything else emits JSON tagged with the service name so log
// shippers can route intake records. Extra writers replace stdout, which is
// how tests capture output.
func New(env, level string, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = simpleTimeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer
	switch {
	case len(writers) > 0:
		output = io.MultiWriter(writers...)
	case isDevelopment(env):
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: simpleTimeFormat}
		cw.FieldsExclude = []string{zerolog.TimestampFieldName, "service"}
		output = cw
	default:
		output = os.Stdout
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", strings.ToLower(strings.TrimSpace(env))).
		Logger().
		Level(lvl)
	return &logger, nil
}

// OrNop returns l unless it is the zero value, in which case a disabled
// logger is returned. Components accept loggers by value and call this in
// their constructors.
func OrNop(l zerolog.Logger) zerolog.Logger {
	if reflect.ValueOf(l).IsZero() {
		return zerolog.Nop()
	}
	return l
}

// Component derives a child logger carrying the component field.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return OrNop(l).With().Str("component", name).Logger()
}

func isDevelopment(env string) bool {
	return strings.EqualFold(env, "development") || strings.EqualFold(env, "dev")
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, err
	}
	return lvl, nil
}
