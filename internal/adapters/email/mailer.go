// Package email delivers transactional mail through Resend or plain SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/vncsmyrnk/fintrack/internal/config"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

var ErrNoTransport = errors.New("no email transport configured: set RESEND_API_KEY or SMTP_HOST")

type message struct {
	from    string
	to      string
	subject string
	text    string
	html    string
}

// NewMailer picks Resend when an API key is configured and SMTP otherwise.
func NewMailer(cfg config.EmailConfig, appName string) (ports.Mailer, error) {
	if cfg.ResendAPIKey != "" {
		return NewResendMailer(cfg.ResendAPIKey, cfg.From, appName), nil
	}
	if cfg.SMTPHost == "" {
		return nil, ErrNoTransport
	}
	return NewSMTPMailer(cfg, appName), nil
}

type disabledMailer struct{}

// Disabled returns a mailer whose sends always fail with ErrNoTransport.
func Disabled() ports.Mailer {
	return disabledMailer{}
}

func (disabledMailer) SendPasswordResetEmail(context.Context, string, string) error {
	return ErrNoTransport
}

func passwordResetMessage(appName, from, to, resetURL string) message {
	escaped := html.EscapeString(resetURL)
	return message{
		from:    from,
		to:      to,
		subject: fmt.Sprintf("Reset your %s password", appName),
		text: "Click the link below to reset your password. This link expires in 1 hour.\n\n" +
			resetURL +
			"\n\nIf you did not request a password reset, you can safely ignore this email.",
		html: "<p>Click the link below to reset your password. This link expires in 1 hour.</p>" +
			fmt.Sprintf(`<p><a href="%s">%s</a></p>`, escaped, escaped) +
			"<p>If you did not request a password reset, you can safely ignore this email.</p>",
	}
}
