package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"
	"time"
)

// EmailConfig holds SMTP settings and the base URL links point at.
type EmailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	FromName   string
	AppBaseURL string
	// Link lifetimes shown in the message body.
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService delivers verification and password reset links over SMTP.
type EmailService struct {
	config EmailConfig
	send   sendFunc
}

// NewEmailService creates a new SMTP notifier.
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config, send: smtp.SendMail}
}

var (
	verifyTemplate = template.Must(template.New("verify").Parse(`<html><body>
		<h2>Verify Your Email Address</h2>
		<p>Thank you for registering! Please verify your email address to complete your registration.</p>
		<p><a href="{{.URL}}">Click here to verify your email</a></p>
		<p>Or copy this link to your browser: {{.URL}}</p>
		<p>This link will expire in {{.TTL}}.</p>
	</body></html>`))

	resetTemplate = template.Must(template.New("reset").Parse(`<html><body>
		<h2>Reset Your Password</h2>
		<p>A password reset has been requested for your account.</p>
		<p><a href="{{.URL}}">Click here to reset your password</a></p>
		<p>Or copy this link to your browser: {{.URL}}</p>
		<p>This link will expire in {{.TTL}}.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`))
)

// SendVerificationEmail mails the email verification link for token.
func (s *EmailService) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := Link(s.config.AppBaseURL, "/verify-email", token)
	body, err := render(verifyTemplate, link, s.config.VerificationTTL)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, to, "Verify Your Email Address", body)
}

// SendPasswordResetEmail mails the password reset link for token.
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	link := Link(s.config.AppBaseURL, "/reset-password", token)
	body, err := render(resetTemplate, link, s.config.ResetTTL)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, to, "Reset Your Password", body)
}

func (s *EmailService) sendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Link builds the front-end URL a token is delivered in.
func Link(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func render(t *template.Template, link string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct {
		URL string
		TTL string
	}{URL: link, TTL: humanDuration(ttl)}); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0 && d >= time.Hour:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}

// LogNotifier writes links to the log instead of sending them. It is used
// when no SMTP server is configured.
type LogNotifier struct {
	logger     *slog.Logger
	appBaseURL string
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger, appBaseURL string) *LogNotifier {
	return &LogNotifier{logger: logger, appBaseURL: appBaseURL}
}

// SendVerificationEmail logs the verification link.
func (n *LogNotifier) SendVerificationEmail(ctx context.Context, to, token string) error {
	n.logger.InfoContext(ctx, "verification email", "to", to, "link", Link(n.appBaseURL, "/verify-email", token))
	return nil
}

// SendPasswordResetEmail logs the password reset link.
func (n *LogNotifier) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	n.logger.InfoContext(ctx, "password reset email", "to", to, "link", Link(n.appBaseURL, "/reset-password", token))
	return nil
}
