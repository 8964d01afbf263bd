package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/config"
	"github.com/example/roadside-intake/internal/logger"
)

// SMTPOption configures the behaviour of the SMTP transport.
type SMTPOption func(*SMTPTransport)

// WithSMTPTLSConfig overrides the TLS configuration used when negotiating
// STARTTLS. A nil config disables STARTTLS.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(p *SMTPTransport) {
		p.tlsConfig = cfg
	}
}

// WithSMTPDialer swaps the network dialer used to establish SMTP connections.
func WithSMTPDialer(d Dialer) SMTPOption {
	return func(p *SMTPTransport) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithSMTPAuth supplies a custom SMTP auth strategy. When omitted the
// transport uses PLAIN auth with the configured credentials.
func WithSMTPAuth(auth smtp.Auth) SMTPOption {
	return func(p *SMTPTransport) {
		p.auth = auth
	}
}

// WithSMTPClock replaces the clock used for Date headers and timestamps.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(p *SMTPTransport) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSMTPHelloName customises the EHLO/HELO identity presented to the server.
func WithSMTPHelloName(name string) SMTPOption {
	return func(p *SMTPTransport) {
		if strings.TrimSpace(name) != "" {
			p.helloName = strings.TrimSpace(name)
		}
	}
}

// Dialer abstracts net.Dialer to simplify testing.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SMTPTransport opens authenticated SMTP sessions against one relay.
type SMTPTransport struct {
	logger    zerolog.Logger
	host      string
	port      int
	from      string
	auth      smtp.Auth
	tlsConfig *tls.Config
	dialer    Dialer
	timeout   time.Duration
	now       func() time.Time
	helloName string
}

// NewSMTPTransport validates cfg and returns a transport. No connection is
// made until Open.
func NewSMTPTransport(cfg config.SMTPConfig, log zerolog.Logger, opts ...SMTPOption) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp provider: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp provider: invalid port %d", cfg.Port)
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.User)
	}
	if from == "" {
		return nil, errors.New("smtp provider: from address is required")
	}
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: invalid from address: %w", err)
	}
	if name := strings.TrimSpace(cfg.FromName); name != "" {
		parsed.Name = name
	}
	from = parsed.Address
	if parsed.Name != "" {
		from = parsed.String()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	p := &SMTPTransport{
		logger:    logger.Component(log, "smtp_transport"),
		host:      cfg.Host,
		port:      cfg.Port,
		from:      from,
		dialer:    &net.Dialer{Timeout: timeout},
		timeout:   timeout,
		now:       time.Now,
		helloName: "localhost",
	}

	if strings.TrimSpace(cfg.User) != "" {
		p.auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	p.tlsConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// From returns the header From value used when a payload does not set one.
func (p *SMTPTransport) From() string { return p.from }

// Open dials the relay, negotiates STARTTLS and authenticates. The returned
// session owns the connection until Close. If ctx is cancelled while the
// session is open the connection is torn down.
func (p *SMTPTransport) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: dial: %w", err)
	}

	deadline := p.now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	s := &smtpSession{
		transport: p,
		conn:      conn,
		done:      make(chan struct{}),
	}
	go s.watch(ctx)

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		s.abort()
		return nil, fmt.Errorf("smtp provider: new client: %w", err)
	}
	s.client = client

	if err := client.Hello(p.helloName); err != nil {
		s.abort()
		return nil, fmt.Errorf("smtp provider: hello: %w", err)
	}

	if cfg := p.sessionTLSConfig(); cfg != nil {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(cfg); err != nil {
				s.abort()
				return nil, fmt.Errorf("smtp provider: starttls: %w", err)
			}
		}
	}

	if p.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(p.auth); err != nil {
				s.abort()
				return nil, fmt.Errorf("smtp provider: auth: %w", err)
			}
		}
	}

	p.logger.Debug().Str("relay", addr).Msg("smtp session opened")
	return s, nil
}

type smtpSession struct {
	transport *SMTPTransport
	conn      net.Conn
	client    *smtp.Client

	mu     sync.Mutex
	used   bool
	closed bool
	done   chan struct{}
}

func (s *smtpSession) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = s.conn.Close()
	case <-s.done:
	}
}

// Send delivers one payload. Between messages the session issues RSET so a
// rejected recipient on one message does not poison the next.
func (s *smtpSession) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("smtp provider: payload is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("smtp provider: session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := s.transport
	recipients := uniqueAddresses(payload.To, payload.CC, payload.BCC)
	if len(recipients) == 0 {
		return nil, errors.New("smtp provider: at least one recipient is required")
	}

	from := strings.TrimSpace(payload.From)
	if from == "" {
		from = p.from
	}

	envelopeFrom, err := normalizeEnvelopeAddress(from)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: invalid from address: %w", err)
	}

	envelopeRecipients, err := normalizeEnvelopeList(recipients)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: invalid recipient: %w", err)
	}

	message, err := p.buildMessage(payload, from)
	if err != nil {
		return nil, err
	}

	resp := &RawResponse{
		ID:        payload.MessageID,
		Timestamp: p.now(),
	}

	if s.used {
		if err := s.client.Reset(); err != nil {
			code, body := classifySMTPError(err)
			resp.Code, resp.Body = code, body
			return resp, fmt.Errorf("smtp provider: rset: %w", err)
		}
	}
	s.used = true

	if err := s.deliver(envelopeFrom, envelopeRecipients, message); err != nil {
		code, body := classifySMTPError(err)
		resp.Code = code
		resp.Body = body
		if resp.Body == "" {
			resp.Body = err.Error()
		}
		return resp, err
	}

	resp.Code = 250
	resp.Body = "smtp: message accepted"
	return resp, nil
}

func (s *smtpSession) deliver(from string, recipients []string, message []byte) error {
	client := s.client
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp provider: mail from: %w", err)
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp provider: rcpt to %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp provider: data: %w", err)
	}

	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp provider: data write: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp provider: data close: %w", err)
	}
	return nil
}

// Close sends QUIT and releases the connection. It is safe to call more than
// once; only the first call does any work.
func (s *smtpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	var err error
	if qerr := s.client.Quit(); qerr != nil && !errors.Is(qerr, io.EOF) {
		err = fmt.Errorf("smtp provider: quit: %w", qerr)
	}
	_ = s.client.Close()
	return err
}

// abort is used while the session is still being set up.
func (s *smtpSession) abort() {
	s.closed = true
	close(s.done)
	if s.client != nil {
		_ = s.client.Close()
		return
	}
	_ = s.conn.Close()
}

func (p *SMTPTransport) buildMessage(payload *Payload, from string) ([]byte, error) {
	headers := make(map[string]string, len(payload.Headers)+8)
	for key, value := range payload.Headers {
		canonical := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
		if canonical == "" || strings.TrimSpace(value) == "" {
			continue
		}
		headers[canonical] = sanitizeHeaderValue(value)
	}

	headers["From"] = from
	if len(payload.To) > 0 {
		headers["To"] = strings.Join(payload.To, ", ")
	}
	if len(payload.CC) > 0 {
		headers["Cc"] = strings.Join(payload.CC, ", ")
	} else {
		delete(headers, "Cc")
	}
	delete(headers, "Bcc")

	if _, ok := headers["Date"]; !ok {
		headers["Date"] = p.now().UTC().Format(time.RFC1123Z)
	}

	if payload.Subject != "" {
		headers["Subject"] = mime.QEncoding.Encode("UTF-8", sanitizeHeaderValue(payload.Subject))
	}

	if payload.MessageID != "" {
		if _, exists := headers["Message-Id"]; !exists {
			headers["Message-Id"] = sanitizeHeaderValue(payload.MessageID)
		}
	}

	headers["Mime-Version"] = "1.0"

	body, contentType, err := encodeBody(payload.TextBody, payload.HTMLBody)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: encode body: %w", err)
	}
	headers["Content-Type"] = contentType
	if !strings.HasPrefix(contentType, "multipart/") {
		headers["Content-Transfer-Encoding"] = "quoted-printable"
	}

	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, key := range keys {
		value := headers[key]
		if value == "" {
			continue
		}
		buf.WriteString(key)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(body)

	return buf.Bytes(), nil
}

func encodeBody(text, html string) ([]byte, string, error) {
	switch {
	case text != "" && html != "":
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for _, part := range []struct{ ctype, content string }{
			{"text/plain; charset=UTF-8", text},
			{"text/html; charset=UTF-8", html},
		} {
			w, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {part.ctype},
				"Content-Transfer-Encoding": {"quoted-printable"},
			})
			if err != nil {
				return nil, "", err
			}
			if err := writeQuotedPrintable(w, part.content); err != nil {
				return nil, "", err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "multipart/alternative; boundary=" + mw.Boundary(), nil
	case html != "":
		var buf bytes.Buffer
		err := writeQuotedPrintable(&buf, html)
		return buf.Bytes(), "text/html; charset=UTF-8", err
	default:
		var buf bytes.Buffer
		err := writeQuotedPrintable(&buf, text)
		return buf.Bytes(), "text/plain; charset=UTF-8", err
	}
}

func writeQuotedPrintable(w io.Writer, content string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(normalizeBody(content))); err != nil {
		return err
	}
	return qp.Close()
}

func (p *SMTPTransport) sessionTLSConfig() *tls.Config {
	if p.tlsConfig == nil {
		return nil
	}
	cfg := p.tlsConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = p.host
	}
	return cfg
}

func normalizeBody(body string) string {
	if body == "" {
		return ""
	}
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}

func sanitizeHeaderValue(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}

func uniqueAddresses(list ...[]string) []string {
	result := make([]string, 0)
	seen := make(map[string]struct{})
	for _, group := range list {
		for _, raw := range group {
			addr := strings.TrimSpace(raw)
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			result = append(result, addr)
		}
	}
	return result
}

func normalizeEnvelopeList(addresses []string) ([]string, error) {
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		parsed, err := normalizeEnvelopeAddress(addr)
		if err != nil {
			return nil, err
		}
		result = append(result, parsed)
	}
	return result, nil
}

func normalizeEnvelopeAddress(value string) (string, error) {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", err
	}
	if addr.Address == "" {
		return "", errors.New("empty address")
	}
	return addr.Address, nil
}

func classifySMTPError(err error) (int, string) {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code, strings.TrimSpace(tpErr.Msg)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, "smtp: timeout"
	}

	return 0, ""
}

// SMTPCode extracts the relay reply code from an error returned by this
// package, or 0 when the failure happened below the SMTP layer.
func SMTPCode(err error) int {
	code, _ := classifySMTPError(err)
	return code
}
