package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/vncsmyrnk/fintrack/internal/config"
)

const (
	smtpConnectTimeout = 5 * time.Second
	smtpSocketTimeout  = 10 * time.Second
	smtpsPort          = 465
)

type SMTPMailer struct {
	cfg     config.EmailConfig
	appName string
}

func NewSMTPMailer(cfg config.EmailConfig, appName string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, appName: appName}
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, resetURL string) error {
	msg, err := m.buildMessage(passwordResetMessage(m.appName, m.cfg.From, to, resetURL))
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, smtpConnectTimeout+smtpSocketTimeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email via smtp: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(in message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(in.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(in.to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(in.subject)
	msg.SetBodyString(mail.TypeTextPlain, in.text)
	msg.AddAlternativeString(mail.TypeTextHTML, in.html)
	return msg, nil
}

// clientOptions uses implicit TLS on port 465 and opportunistic STARTTLS elsewhere.
// The dialer bounds the connect, WithTimeout bounds the whole session.
func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTimeout(smtpSocketTimeout),
		mail.WithDialContextFunc(m.dialContext()),
	}
	if m.cfg.SMTPPort == smtpsPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUser),
			mail.WithPassword(m.cfg.SMTPPass),
		)
	}
	return opts
}

// dialContext caps the TCP connect at smtpConnectTimeout; go-mail's own
// dialer is only bounded by WithTimeout. A custom dialer also disables
// go-mail's implicit TLS wrapping, so port 465 gets a TLS dialer here.
func (m *SMTPMailer) dialContext() mail.DialContextFunc {
	netDialer := m.netDialer()
	if m.cfg.SMTPPort != smtpsPort {
		return netDialer.DialContext
	}
	tlsDialer := &tls.Dialer{
		NetDialer: netDialer,
		Config:    &tls.Config{ServerName: m.cfg.SMTPHost, MinVersion: tls.VersionTLS12},
	}
	return tlsDialer.DialContext
}

func (m *SMTPMailer) netDialer() *net.Dialer {
	return &net.Dialer{Timeout: smtpConnectTimeout}
}
