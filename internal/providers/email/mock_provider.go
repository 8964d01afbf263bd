package email

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/logger"
)

// Scenario enumerates the supported mock behaviours.
type Scenario string

const (
	ScenarioSuccess   Scenario = "success"
	ScenarioTransient Scenario = "transient"
	ScenarioPermanent Scenario = "permanent"
	ScenarioTimeout   Scenario = "timeout"

	headerScenario = "X-Mock-Provider-Scenario"
	headerLatency  = "X-Mock-Provider-Latency"
)

// Option customizes the behaviour of the mock transport at construction time.
type Option func(*MockTransport)

// WithLatencyRange overrides the simulated send latency. Negative values are
// clamped to zero and max < min is coerced to min.
func WithLatencyRange(min, max time.Duration) Option {
	return func(p *MockTransport) {
		if min < 0 {
			min = 0
		}
		if max < 0 {
			max = 0
		}
		if max < min {
			max = min
		}
		p.minLatency = min
		p.maxLatency = max
	}
}

// WithDefaultScenario configures the behaviour for payloads that match no
// recipient rule and carry no scenario header.
func WithDefaultScenario(s Scenario) Option {
	return func(p *MockTransport) {
		p.defaultScenario = s
	}
}

// WithRecipientScenario forces a scenario for any payload addressed to addr.
func WithRecipientScenario(addr string, s Scenario) Option {
	return func(p *MockTransport) {
		p.recipientScenarios[strings.ToLower(strings.TrimSpace(addr))] = s
	}
}

// WithOpenError makes every Open call fail with err, simulating a relay that
// refuses the connection or the credentials.
func WithOpenError(err error) Option {
	return func(p *MockTransport) {
		p.openErr = err
	}
}

// WithRandomSeed swaps the RNG seed used when generating provider identifiers.
func WithRandomSeed(seed int64) Option {
	return func(p *MockTransport) {
		p.rnd = rand.New(rand.NewSource(seed)) // #nosec G404 -- deterministic seed for tests.
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *MockTransport) {
		if now != nil {
			p.now = now
		}
	}
}

// MockTransport simulates an SMTP relay without network access. It records
// every accepted payload and counts opened and closed sessions so callers can
// assert the acquire/release discipline.
type MockTransport struct {
	logger             zerolog.Logger
	minLatency         time.Duration
	maxLatency         time.Duration
	defaultScenario    Scenario
	recipientScenarios map[string]Scenario
	openErr            error
	now                func() time.Time

	mu     sync.Mutex
	rnd    *rand.Rand
	sent   []Payload
	opened int
	closed int
}

// NewMockTransport constructs a mock transport. By default sends succeed with
// no latency.
func NewMockTransport(log zerolog.Logger, opts ...Option) *MockTransport {
	p := &MockTransport{
		logger:             logger.Component(log, "mock_transport"),
		defaultScenario:    ScenarioSuccess,
		recipientScenarios: make(map[string]Scenario),
		now:                time.Now,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Open returns a new mock session unless an open error was configured.
func (p *MockTransport) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.mu.Lock()
	p.opened++
	p.mu.Unlock()
	return &mockSession{transport: p}, nil
}

// Sent returns copies of all payloads accepted so far.
func (p *MockTransport) Sent() []Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Payload(nil), p.sent...)
}

// Sessions reports how many sessions were opened and closed.
func (p *MockTransport) Sessions() (opened, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened, p.closed
}

type mockSession struct {
	transport *MockTransport
	once      sync.Once
	closed    bool
	mu        sync.Mutex
}

func (s *mockSession) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("email: payload is required")
	}
	if len(payload.To)+len(payload.CC)+len(payload.BCC) == 0 {
		return nil, errors.New("email: at least one recipient is required")
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("email: session is closed")
	}

	p := s.transport
	latency := p.sampleLatency(payload)
	if latency > 0 {
		if err := sleepCtx(ctx, latency); err != nil {
			return nil, err
		}
	}

	scenario := p.resolveScenario(payload)
	p.logger.Debug().
		Str("scenario", string(scenario)).
		Str("message_id", payload.MessageID).
		Msg("mock email transport invoked")

	switch scenario {
	case ScenarioPermanent:
		resp := p.baseResponse(payload, 550, "mock: mailbox unavailable")
		return resp, fmt.Errorf("smtp %d: %s", resp.Code, resp.Body)
	case ScenarioTransient:
		resp := p.baseResponse(payload, 451, "mock: requested action aborted, try again later")
		return resp, fmt.Errorf("smtp %d: %s", resp.Code, resp.Body)
	case ScenarioTimeout:
		if err := sleepCtx(ctx, p.maxLatency+p.minLatency); err != nil {
			return nil, err
		}
		return nil, context.DeadlineExceeded
	default:
		p.mu.Lock()
		p.sent = append(p.sent, clonePayload(payload))
		p.mu.Unlock()
		return p.baseResponse(payload, 250, "mock: message queued"), nil
	}
}

func (s *mockSession) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		p := s.transport
		p.mu.Lock()
		p.closed++
		p.mu.Unlock()
	})
	return nil
}

func (p *MockTransport) resolveScenario(payload *Payload) Scenario {
	if value, ok := pickHeader(payload.Headers, headerScenario); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case string(ScenarioPermanent):
			return ScenarioPermanent
		case string(ScenarioTransient):
			return ScenarioTransient
		case string(ScenarioTimeout):
			return ScenarioTimeout
		default:
			return ScenarioSuccess
		}
	}

	for _, group := range [][]string{payload.To, payload.CC, payload.BCC} {
		for _, addr := range group {
			if s, ok := p.recipientScenarios[strings.ToLower(strings.TrimSpace(addr))]; ok {
				return s
			}
		}
	}
	return p.defaultScenario
}

func (p *MockTransport) sampleLatency(payload *Payload) time.Duration {
	if value, ok := pickHeader(payload.Headers, headerLatency); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d >= 0 {
			return d
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxLatency <= p.minLatency {
		return p.minLatency
	}
	delta := p.maxLatency - p.minLatency
	return p.minLatency + time.Duration(p.rnd.Int63n(int64(delta)+1))
}

func (p *MockTransport) baseResponse(payload *Payload, code int, body string) *RawResponse {
	respID := payload.MessageID
	if respID == "" {
		p.mu.Lock()
		respID = fmt.Sprintf("mock-%08x", p.rnd.Uint32())
		p.mu.Unlock()
	}

	return &RawResponse{
		ID:        respID,
		Code:      code,
		Body:      body,
		Timestamp: p.now(),
	}
}

func clonePayload(in *Payload) Payload {
	out := *in
	out.To = append([]string(nil), in.To...)
	out.CC = append([]string(nil), in.CC...)
	out.BCC = append([]string(nil), in.BCC...)
	if in.Headers != nil {
		out.Headers = make(map[string]string, len(in.Headers))
		for k, v := range in.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pickHeader(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
