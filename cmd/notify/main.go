package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vadesso/account-service/internal/mailer"
	"github.com/vadesso/account-service/pkg/config"
	"github.com/vadesso/account-service/pkg/events"
	"github.com/vadesso/account-service/pkg/logger"
)

// The notify worker drains account events off NATS and sends the
// transactional emails that don't need to block the originating request.

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	mail := selectMailer(cfg)

	subscribe(eventBus, events.UserRegistered, handleRegistered(mail))
	subscribe(eventBus, events.UserPasswordChanged, handlePasswordChanged(mail))
	subscribe(eventBus, events.UserPasswordReset, handlePasswordChanged(mail))
	subscribe(eventBus, events.UserEmailChanged, handleEmailChanged(mail))

	logger.Info("Notify worker started", "nats_url", cfg.NATS.URL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down notify worker...")
}

func handleRegistered(mail mailer.Service) func(msg *events.Message) {
	return func(msg *events.Message) {
		var evt events.UserRegisteredEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			logger.Error("Failed to decode registration event", "error", err)
			return
		}
		if err := mail.SendWelcome(evt.Email, evt.FirstName); err != nil {
			logger.Error("Failed to send welcome email", "error", err, "user_id", evt.UserID)
		}
	}
}

// handlePasswordChanged covers both a logged-in password change and a
// completed reset; the notice is the same either way.
func handlePasswordChanged(mail mailer.Service) func(msg *events.Message) {
	return func(msg *events.Message) {
		var evt events.UserPasswordChangedEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			logger.Error("Failed to decode password change event", "error", err)
			return
		}
		if err := mail.SendPasswordChanged(evt.Email, ""); err != nil {
			logger.Error("Failed to send password change notice", "error", err, "user_id", evt.UserID)
		}
	}
}

func handleEmailChanged(mail mailer.Service) func(msg *events.Message) {
	return func(msg *events.Message) {
		var evt events.UserEmailChangedEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			logger.Error("Failed to decode email change event", "error", err)
			return
		}
		// Notify the old address, which is the one that could be hijacked.
		if err := mail.SendEmailChanged(evt.OldEmail, ""); err != nil {
			logger.Error("Failed to send email change notice", "error", err, "user_id", evt.UserID)
		}
	}
}

func subscribe(bus events.EventBus, subject string, handler func(msg *events.Message)) {
	if err := bus.QueueSubscribe(subject, "notify", handler); err != nil {
		logger.Error("Failed to subscribe", "subject", subject, "error", err)
		os.Exit(1)
	}
}

func selectMailer(cfg *config.Config) mailer.Service {
	if cfg.Email.DevMode {
		return mailer.NewDevMailer()
	}
	if cfg.Email.MailerSendKey != "" {
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.SMTPFromName, cfg.Email.SMTPFrom)
	}
	return mailer.NewSMTPMailer(
		cfg.Email.SMTPHost, cfg.Email.SMTPPort,
		cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass,
		cfg.Email.SMTPUseTLS,
	)
}
