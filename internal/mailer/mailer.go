package mailer

import (
	"time"
)

// Template keys, kept stable for operators filtering outbound mail.
const (
	KeyWelcome         = "welcome"
	KeySendOTP         = "send_otp"
	KeyPasswordReset   = "password_reset"
	KeyPasswordChanged = "password_changed"
	KeyChangeUser      = "change_user"
)

type Service interface {
	SendOTP(toEmail, firstName, code string, expiresAt time.Time) error
	SendPasswordReset(toEmail, firstName, resetURL string) error
	SendPasswordChanged(toEmail, firstName string) error
	SendWelcome(toEmail, firstName string) error
	SendEmailChanged(toEmail, firstName string) error
}
