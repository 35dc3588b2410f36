// Package notify delivers reminder emails over SMTP or the Resend API, and
// falls back to logging them when neither is configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// DefaultResendEndpoint is the Resend send-email URL.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// Message is one email.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// ErrHeaderLineBreak rejects an address carrying CR or LF.
var ErrHeaderLineBreak = errors.New("header value contains a line break")

// singleLine folds CR and LF runs into single spaces so a value stays on its
// header line.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

// Mailer sends messages. Simulated reports whether Send only logs.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Simulated() bool
}

// Config selects a transport. SMTP wins over Resend when both are set.
type Config struct {
	From           string        `yaml:"from"`
	SMTPHost       string        `yaml:"smtp_host"`
	SMTPPort       string        `yaml:"smtp_port"`
	SMTPUser       string        `yaml:"smtp_user"`
	SMTPPass       string        `yaml:"smtp_pass"`
	ResendAPIKey   string        `yaml:"resend_api_key"`
	ResendEndpoint string        `yaml:"resend_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
}

// NewMailer returns the transport cfg describes.
func NewMailer(cfg Config, logger *slog.Logger) Mailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	switch {
	case cfg.SMTPHost != "":
		port := cfg.SMTPPort
		if port == "" {
			port = "587"
		}
		return &SMTPMailer{
			addr:    cfg.SMTPHost + ":" + port,
			host:    cfg.SMTPHost,
			from:    fromAddress(cfg),
			user:    cfg.SMTPUser,
			pass:    cfg.SMTPPass,
			timeout: timeout,
			send:    smtp.SendMail,
		}
	case cfg.ResendAPIKey != "":
		endpoint := cfg.ResendEndpoint
		if endpoint == "" {
			endpoint = DefaultResendEndpoint
		}
		return &ResendMailer{
			endpoint: endpoint,
			apiKey:   cfg.ResendAPIKey,
			from:     fromAddress(cfg),
			client:   &http.Client{Timeout: timeout},
		}
	default:
		return &SimulatedMailer{logger: logger}
	}
}

func fromAddress(cfg Config) string {
	if cfg.From != "" {
		return cfg.From
	}
	return cfg.SMTPUser
}

// SMTPMailer sends through an SMTP relay with optional PLAIN auth.
type SMTPMailer struct {
	addr    string
	host    string
	from    string
	user    string
	pass    string
	timeout time.Duration
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Simulated() bool { return false }

// Send runs the SMTP exchange bounded by the configured timeout. A cancelled
// exchange keeps running in the background until the relay answers.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(m.from, "\r\n") {
		return fmt.Errorf("smtp send: %w", ErrHeaderLineBreak)
	}
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	raw := "From: " + m.from + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Subject: " + mime.QEncoding.Encode("utf-8", singleLine(msg.Subject)) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: " + contentType + "; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		msg.Body

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, auth, m.from, []string{msg.To}, []byte(raw))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// ResendMailer posts messages to the Resend HTTP API.
type ResendMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func (m *ResendMailer) Simulated() bool { return false }

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	body := resendRequest{From: m.from, To: []string{msg.To}, Subject: singleLine(msg.Subject)}
	if msg.HTML {
		body.HTML = msg.Body
	} else {
		body.Text = msg.Body
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	return nil
}

// SimulatedMailer logs messages instead of sending them.
type SimulatedMailer struct {
	logger *slog.Logger
}

// NewSimulatedMailer returns a mailer that only logs.
func NewSimulatedMailer(logger *slog.Logger) *SimulatedMailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SimulatedMailer{logger: logger}
}

func (m *SimulatedMailer) Simulated() bool { return true }

func (m *SimulatedMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "simulated email", "to", msg.To, "subject", msg.Subject)
	return nil
}
