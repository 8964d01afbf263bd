package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/models"
	"github.com/example/roadside-intake/internal/pipeline"
)

const (
	// MessageBadBody is returned when the request body is not a JSON object.
	MessageBadBody = "Invalid request body"
	// MessageBusy is returned when every intake slot is taken.
	MessageBusy = "Service is busy. Please try again or call our hotline."

	defaultMaxBodyBytes int64 = 64 << 10
	defaultMaxInFlight  int64 = 64
)

// Intake runs one submission through the pipeline.
type Intake interface {
	Handle(ctx context.Context, req models.SubmittedRequest) pipeline.Result
}

// ReadinessChecker reports whether an optional dependency is usable.
type ReadinessChecker interface {
	IsReady() bool
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	MaxInFlight    int64
}

// Option customises the Server.
type Option func(*Server)

// WithReadiness reports the named dependency on /healthz.
func WithReadiness(name string, c ReadinessChecker) Option {
	return func(s *Server) {
		if name != "" && c != nil {
			s.readiness[name] = c
		}
	}
}

// Server exposes the intake pipeline over HTTP.
type Server struct {
	logger    zerolog.Logger
	intake    Intake
	cfg       Config
	sem       *semaphore.Weighted
	readiness map[string]ReadinessChecker
}

// New builds the HTTP surface around intake.
func New(cfg Config, intake Intake, log zerolog.Logger, opts ...Option) (*Server, error) {
	if intake == nil {
		return nil, errors.New("httpapi: intake dependency is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}

	s := &Server{
		logger:    logger.Component(log, "httpapi"),
		intake:    intake,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(cfg.MaxInFlight),
		readiness: make(map[string]ReadinessChecker),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Routes returns the router with middleware attached.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)
	router.Use(withCORS(s.cfg.AllowedOrigins))

	router.Get("/healthz", s.healthHandler())
	router.Route("/api", func(r chi.Router) {
		r.Use(limitInFlight(s.sem, s.logger))
		r.Post("/emergency-request", s.emergencyHandler())
		r.Post("/emergency", s.emergencyHandler())
	})
	return router
}

func (s *Server) emergencyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SubmittedRequest
		decoder := json.NewDecoder(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
		if err := decoder.Decode(&req); err != nil {
			s.logger.Info().
				Err(err).
				Str("http_request_id", middleware.GetReqID(r.Context())).
				Msg("rejecting malformed request body")
			WriteJSON(s.logger, w, http.StatusBadRequest, pipeline.Response{Success: false, Message: MessageBadBody})
			return
		}

		res := s.intake.Handle(r.Context(), req)
		WriteJSON(s.logger, w, statusFor(res.Kind), res.Response)
	}
}

func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindNone:
		return http.StatusOK
	case pipeline.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type healthResponse struct {
	Status string          `json:"status"`
	Time   string          `json:"time"`
	Sinks  map[string]bool `json:"sinks,omitempty"`
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
		if len(s.readiness) > 0 {
			resp.Sinks = make(map[string]bool, len(s.readiness))
			for name, c := range s.readiness {
				resp.Sinks[name] = c.IsReady()
			}
		}
		WriteJSON(s.logger, w, http.StatusOK, resp)
	}
}
