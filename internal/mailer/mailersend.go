package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendOTP(toEmail, firstName, code string, expiresAt time.Time) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your verification code"
	html := fmt.Sprintf(`
		<h2>Verification code</h2>
		<p>Hi %s,</p>
		<p>Your verification code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>It expires at %s. If you didn't request it, you can ignore this email.</p>
	`, firstName, code, expiresAt.Format(time.RFC1123))
	text := fmt.Sprintf("Hi %s,\n\nYour verification code is: %s\n\nIt expires at %s.",
		firstName, code, expiresAt.Format(time.RFC1123))

	return m.sendEmail(toEmail, firstName, subject, text, html)
}

func (m *MailerSendClient) SendPasswordReset(toEmail, firstName, resetURL string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Reset your password"
	html := fmt.Sprintf(`
		<h2>Password reset</h2>
		<p>Hi %s,</p>
		<p>Click the link below to choose a new password:</p>
		<p><a href="%s">Reset password</a></p>
		<p>The link is single-use and expires. If you didn't request it, you can ignore this email.</p>
	`, firstName, resetURL)
	text := fmt.Sprintf("Hi %s,\n\nUse this link to reset your password: %s", firstName, resetURL)

	return m.sendEmail(toEmail, firstName, subject, text, html)
}

func (m *MailerSendClient) SendPasswordChanged(toEmail, firstName string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your password was changed"
	html := fmt.Sprintf("<h2>Password changed</h2><p>Hi %s,</p><p>The password on your account was just changed. If this wasn't you, reset your password and contact support immediately.</p>", firstName)
	text := fmt.Sprintf("Hi %s,\n\nThe password on your account was just changed. If this wasn't you, reset your password and contact support immediately.", firstName)

	return m.sendEmail(toEmail, firstName, subject, text, html)
}

func (m *MailerSendClient) SendWelcome(toEmail, firstName string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Welcome!"
	html := fmt.Sprintf("<h2>Welcome!</h2><p>Hi %s,</p><p>Your account has been created. You can sign in now.</p>", firstName)
	text := fmt.Sprintf("Hi %s,\n\nYour account has been created. You can sign in now.", firstName)

	return m.sendEmail(toEmail, firstName, subject, text, html)
}

func (m *MailerSendClient) SendEmailChanged(toEmail, firstName string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your account email was changed"
	html := fmt.Sprintf("<h2>Account email changed</h2><p>Hi %s,</p><p>The email address on your account was changed. If this wasn't you, contact support immediately.</p>", firstName)
	text := fmt.Sprintf("Hi %s,\n\nThe email address on your account was changed. If this wasn't you, contact support immediately.", firstName)

	return m.sendEmail(toEmail, firstName, subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
