// Package otp runs the email one-time-password challenge flow used to gate
// sensitive account mutations.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vadesso/account-service/internal/domain"
	"github.com/vadesso/account-service/internal/mailer"
	"github.com/vadesso/account-service/internal/repo/postgres"
	"github.com/vadesso/account-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoDevice means the user has no confirmed device. Devices are
// provisioned at registration, so this should not happen, but it must be
// handled.
var ErrNoDevice = errors.New("no confirmed otp device for user")

// Challenge describes an issued challenge: the opaque device reference the
// client echoes back, where the code went, and when it stops verifying.
type Challenge struct {
	DeviceRef string
	Email     string
	ExpiresAt time.Time
}

type Service interface {
	RequestChallenge(ctx context.Context, user *domain.User, overrideEmail string) (*Challenge, error)
	Verify(ctx context.Context, user *domain.User, deviceRef, code string) (bool, error)
}

type service struct {
	devices     postgres.DeviceRepository
	mailer      mailer.Service
	validity    time.Duration
	codeDigits  int
	maxAttempts int
}

func NewService(devices postgres.DeviceRepository, mail mailer.Service, validity time.Duration, codeDigits, maxAttempts int) Service {
	if codeDigits <= 0 {
		codeDigits = 6
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &service{
		devices:     devices,
		mailer:      mail,
		validity:    validity,
		codeDigits:  codeDigits,
		maxAttempts: maxAttempts,
	}
}

// RequestChallenge generates a fresh code for the user's confirmed device
// and emails it. Any prior unconsumed challenge is discarded.
func (s *service) RequestChallenge(ctx context.Context, user *domain.User, overrideEmail string) (*Challenge, error) {
	device, err := s.devices.FindConfirmedByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}
	if device == nil {
		return nil, ErrNoDevice
	}

	if overrideEmail != "" {
		if err := s.devices.SetEmail(ctx, device.ID, &overrideEmail); err != nil {
			return nil, fmt.Errorf("failed to set device email: %w", err)
		}
		device.Email = &overrideEmail
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	expiresAt := time.Now().Add(s.validity)
	if err := s.devices.ReplaceChallenge(ctx, device.ID, string(codeHash), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	to := device.DeliveryAddress(user)
	if err := s.mailer.SendOTP(to, user.FirstName, code, expiresAt); err != nil {
		logger.ErrorContext(ctx, "Failed to send OTP email", "error", err, "user_id", user.ID)
		// The challenge stands; the client may retry delivery.
	}

	return &Challenge{
		DeviceRef: device.ID.String(),
		Email:     to,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks a submitted code against the live challenge for the
// device/user pair. A consumed or expired challenge never verifies; a
// mismatch burns an attempt.
func (s *service) Verify(ctx context.Context, user *domain.User, deviceRef, code string) (bool, error) {
	deviceID, err := uuid.Parse(deviceRef)
	if err != nil {
		return false, nil
	}

	device, err := s.devices.FindByIDAndUser(ctx, deviceID, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to look up device: %w", err)
	}
	if device == nil || !device.Confirmed {
		return false, nil
	}

	challenge, err := s.devices.LiveChallenge(ctx, device.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge == nil || challenge.Consumed() || challenge.Expired(time.Now()) {
		return false, nil
	}
	if challenge.Attempts >= s.maxAttempts {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)); err != nil {
		if err := s.devices.IncrementAttempts(ctx, challenge.ID); err != nil {
			logger.WarnContext(ctx, "Failed to record OTP attempt", "error", err)
		}
		return false, nil
	}

	if err := s.devices.MarkUsed(ctx, challenge.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to a concurrent verify; the code is spent.
			return false, nil
		}
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}

	return true, nil
}

func (s *service) generateCode() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.codeDigits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.codeDigits, n), nil
}
