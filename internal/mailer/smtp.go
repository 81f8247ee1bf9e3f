package mailer

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type SMTPMailer struct {
	Host   string
	Port   int
	From   string
	User   string
	Pass   string
	UseTLS bool
}

func NewSMTPMailer(host string, port int, from, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		Host:   strings.TrimSpace(host),
		Port:   port,
		From:   strings.TrimSpace(from),
		User:   strings.TrimSpace(user),
		Pass:   strings.TrimSpace(pass),
		UseTLS: useTLS,
	}
}

func (s *SMTPMailer) SendOTP(toEmail, firstName, code string, expiresAt time.Time) error {
	subject := "Your verification code"
	text := fmt.Sprintf("Hi %s,\n\nYour verification code is: %s\n\nIt expires at %s.",
		firstName, code, expiresAt.Format(time.RFC1123))
	html := fmt.Sprintf(`
		<h2>Verification code</h2>
		<p>Hi %s,</p>
		<p>Your verification code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>It expires at %s. If you didn't request it, you can ignore this email.</p>
	`, firstName, code, expiresAt.Format(time.RFC1123))

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) SendPasswordReset(toEmail, firstName, resetURL string) error {
	subject := "Reset your password"
	text := fmt.Sprintf("Hi %s,\n\nUse this link to reset your password: %s\n\nThe link is single-use and expires.", firstName, resetURL)
	html := fmt.Sprintf(`
		<h2>Password reset</h2>
		<p>Hi %s,</p>
		<p>Click the link below to choose a new password:</p>
		<p><a href="%s">Reset password</a></p>
		<p>The link is single-use and expires. If you didn't request it, you can ignore this email.</p>
	`, firstName, resetURL)

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) SendPasswordChanged(toEmail, firstName string) error {
	subject := "Your password was changed"
	text := fmt.Sprintf("Hi %s,\n\nThe password on your account was just changed. If this wasn't you, reset your password and contact support immediately.", firstName)
	html := fmt.Sprintf(`
		<h2>Password changed</h2>
		<p>Hi %s,</p>
		<p>The password on your account was just changed. If this wasn't you, reset your password and contact support immediately.</p>
	`, firstName)

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) SendWelcome(toEmail, firstName string) error {
	subject := "Welcome!"
	text := fmt.Sprintf("Hi %s,\n\nYour account has been created. You can sign in now.", firstName)
	html := fmt.Sprintf(`
		<h2>Welcome!</h2>
		<p>Hi %s,</p>
		<p>Your account has been created. You can sign in now.</p>
	`, firstName)

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) SendEmailChanged(toEmail, firstName string) error {
	subject := "Your account email was changed"
	text := fmt.Sprintf("Hi %s,\n\nThe email address on your account was changed. If this wasn't you, contact support immediately.", firstName)
	html := fmt.Sprintf(`
		<h2>Account email changed</h2>
		<p>Hi %s,</p>
		<p>The email address on your account was changed. If this wasn't you, contact support immediately.</p>
	`, firstName)

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) sendEmail(toEmail, subject, text, html string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	var buf bytes.Buffer
	boundary := "mixed-boundary"

	fmt.Fprintf(&buf, "From: %s\r\n", s.From)
	fmt.Fprintf(&buf, "To: %s\r\n", toEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", text)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", html)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	// Mailpit or development SMTP (no auth, no TLS)
	if !s.UseTLS && s.User == "" {
		return smtp.SendMail(addr, nil, s.From, []string{toEmail}, buf.Bytes())
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	// Try plain SMTP first (with STARTTLS if supported)
	if err := smtp.SendMail(addr, auth, s.From, []string{toEmail}, buf.Bytes()); err == nil {
		return nil
	}

	// Fallback to implicit TLS (port 465)
	if s.UseTLS {
		tlsCfg := &tls.Config{ServerName: s.Host}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, s.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		if s.User != "" {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}

		if err := c.Mail(s.From); err != nil {
			return err
		}
		if err := c.Rcpt(toEmail); err != nil {
			return err
		}

		w, err := c.Data()
		if err != nil {
			return err
		}

		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}

		return w.Close()
	}

	return fmt.Errorf("smtp send failed")
}
