package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

type ResendMailer struct {
	client  *resend.Client
	from    string
	appName string
}

func NewResendMailer(apiKey, from, appName string) *ResendMailer {
	return &ResendMailer{
		client:  resend.NewClient(apiKey),
		from:    from,
		appName: appName,
	}
}

func (m *ResendMailer) SendPasswordResetEmail(ctx context.Context, to, resetURL string) error {
	msg := passwordResetMessage(m.appName, m.from, to, resetURL)

	params := &resend.SendEmailRequest{
		From:    msg.from,
		To:      []string{msg.to},
		Subject: msg.subject,
		Text:    msg.text,
		Html:    msg.html,
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}
