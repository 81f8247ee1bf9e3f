package mailer

import (
	"time"

	"github.com/vadesso/account-service/pkg/logger"
)

// DevMailer logs outbound mail instead of sending it.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendOTP(toEmail, firstName, code string, expiresAt time.Time) error {
	logger.Info("[DEV MAIL] OTP code",
		"template", KeySendOTP,
		"to", toEmail,
		"name", firstName,
		"code", code,
		"expires_at", expiresAt.Format(time.RFC3339),
	)
	return nil
}

func (d *DevMailer) SendPasswordReset(toEmail, firstName, resetURL string) error {
	logger.Info("[DEV MAIL] Password reset",
		"template", KeyPasswordReset,
		"to", toEmail,
		"name", firstName,
		"reset_url", resetURL,
	)
	return nil
}

func (d *DevMailer) SendPasswordChanged(toEmail, firstName string) error {
	logger.Info("[DEV MAIL] Password changed",
		"template", KeyPasswordChanged,
		"to", toEmail,
		"name", firstName,
	)
	return nil
}

func (d *DevMailer) SendWelcome(toEmail, firstName string) error {
	logger.Info("[DEV MAIL] Welcome",
		"template", KeyWelcome,
		"to", toEmail,
		"name", firstName,
	)
	return nil
}

func (d *DevMailer) SendEmailChanged(toEmail, firstName string) error {
	logger.Info("[DEV MAIL] Account email changed",
		"template", KeyChangeUser,
		"to", toEmail,
		"name", firstName,
	)
	return nil
}
