package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadesso/account-service/pkg/events"
)

type sentMail struct {
	template string
	to       string
}

type recordingMailer struct {
	sent []sentMail
}

func (m *recordingMailer) SendOTP(toEmail, firstName, code string, expiresAt time.Time) error {
	m.sent = append(m.sent, sentMail{template: "send_otp", to: toEmail})
	return nil
}

func (m *recordingMailer) SendPasswordReset(toEmail, firstName, resetURL string) error {
	m.sent = append(m.sent, sentMail{template: "password_reset", to: toEmail})
	return nil
}

func (m *recordingMailer) SendPasswordChanged(toEmail, firstName string) error {
	m.sent = append(m.sent, sentMail{template: "password_changed", to: toEmail})
	return nil
}

func (m *recordingMailer) SendWelcome(toEmail, firstName string) error {
	m.sent = append(m.sent, sentMail{template: "welcome", to: toEmail})
	return nil
}

func (m *recordingMailer) SendEmailChanged(toEmail, firstName string) error {
	m.sent = append(m.sent, sentMail{template: "change_user", to: toEmail})
	return nil
}

func message(t *testing.T, subject string, evt interface{}) *events.Message {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return &events.Message{Subject: subject, Data: data, Timestamp: time.Now()}
}

func TestHandleRegistered(t *testing.T) {
	mail := &recordingMailer{}

	handleRegistered(mail)(message(t, events.UserRegistered, events.UserRegisteredEvent{
		UserID: 1, Username: "alice", Email: "alice@example.com", FirstName: "Alice",
	}))

	require.Len(t, mail.sent, 1)
	assert.Equal(t, sentMail{template: "welcome", to: "alice@example.com"}, mail.sent[0])
}

func TestHandlePasswordChanged(t *testing.T) {
	mail := &recordingMailer{}
	handler := handlePasswordChanged(mail)

	// Both a logged-in change and a completed reset produce the same notice.
	handler(message(t, events.UserPasswordChanged, events.UserPasswordChangedEvent{
		UserID: 1, Email: "alice@example.com", ChangedAt: time.Now(),
	}))
	handler(message(t, events.UserPasswordReset, events.UserPasswordChangedEvent{
		UserID: 1, Email: "alice@example.com", ChangedAt: time.Now(),
	}))

	require.Len(t, mail.sent, 2)
	for _, sent := range mail.sent {
		assert.Equal(t, "password_changed", sent.template)
		assert.Equal(t, "alice@example.com", sent.to)
	}
}

func TestHandleEmailChangedNotifiesOldAddress(t *testing.T) {
	mail := &recordingMailer{}

	handleEmailChanged(mail)(message(t, events.UserEmailChanged, events.UserEmailChangedEvent{
		UserID: 1, OldEmail: "old@example.com", NewEmail: "new@example.com",
	}))

	require.Len(t, mail.sent, 1)
	assert.Equal(t, sentMail{template: "change_user", to: "old@example.com"}, mail.sent[0])
}

func TestHandlersDropMalformedPayloads(t *testing.T) {
	mail := &recordingMailer{}
	bad := &events.Message{Subject: events.UserRegistered, Data: []byte("{not json")}

	handleRegistered(mail)(bad)
	handlePasswordChanged(mail)(bad)
	handleEmailChanged(mail)(bad)

	assert.Empty(t, mail.sent)
}
