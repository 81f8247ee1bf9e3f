package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/vadesso/account-service/internal/domain"
	"github.com/vadesso/account-service/internal/mailer"
	"github.com/vadesso/account-service/internal/otp"
	"github.com/vadesso/account-service/internal/repo/postgres"
	"github.com/vadesso/account-service/internal/resettoken"
	"github.com/vadesso/account-service/pkg/auth"
	"github.com/vadesso/account-service/pkg/config"
	"github.com/vadesso/account-service/pkg/events"
	"github.com/vadesso/account-service/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidLink        = errors.New("invalid or expired reset link")
	ErrInvalidOTP         = errors.New("the token submitted is invalid")
	ErrUserNotFound       = errors.New("user not found")
)

type AccountService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	Authenticate(ctx context.Context, req *domain.TokenObtainRequest) (*domain.TokenPairResponse, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	RequestPasswordReset(ctx context.Context, req *domain.PasswordResetRequest) error
	ResolveResetLink(ctx context.Context, uidb64, token string) *domain.User
	ConfirmPasswordReset(ctx context.Context, uidb64, token string, req *domain.SetPasswordRequest) error

	RequestOTP(ctx context.Context, user *domain.User, req *domain.OTPRequest) (*otp.Challenge, error)
	ChangePassword(ctx context.Context, user *domain.User, req *domain.ChangePasswordRequest) error
	ChangeEmail(ctx context.Context, user *domain.User, req *domain.ChangeEmailRequest) error

	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	UpdateUser(ctx context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type accountService struct {
	users    postgres.UserRepository
	otp      otp.Service
	resetGen *resettoken.Generator
	mailer   mailer.Service
	eventBus events.Publisher
	config   *config.Config
}

func NewAccountService(
	users postgres.UserRepository,
	otpService otp.Service,
	resetGen *resettoken.Generator,
	mail mailer.Service,
	eventBus events.Publisher,
	cfg *config.Config,
) AccountService {
	return &accountService{
		users:    users,
		otp:      otpService,
		resetGen: resetGen,
		mailer:   mail,
		eventBus: eventBus,
		config:   cfg,
	}
}

func (s *accountService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := argon2id.CreateHash(req.Password1, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req, passwordHash)
	if err != nil {
		return nil, mapDuplicate(err)
	}

	if err := s.eventBus.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		CreatedAt: user.DateJoined,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish registration event", "error", err, "user_id", user.ID)
	}

	return user, nil
}

func (s *accountService) Authenticate(ctx context.Context, req *domain.TokenObtainRequest) (*domain.TokenPairResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	role := auth.RoleUser
	if user.IsStaff {
		role = auth.RoleStaff
	}

	access, err := auth.NewAccessToken(user.ID, user.Username, user.Email, role,
		s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refresh, err := auth.NewRefreshToken(user.ID, user.Username, user.Email,
		s.config.Auth.JWTSecret, s.config.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	// A login also rotates the reset-token preimage.
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		logger.WarnContext(ctx, "Failed to update last login", "error", err, "user_id", user.ID)
	}

	return &domain.TokenPairResponse{Access: access, Refresh: refresh}, nil
}

func (s *accountService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := auth.Parse(refreshToken, s.config.Auth.JWTSecret)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if claims.Role != auth.RoleRefresh {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.FindByID(ctx, claims.Sub)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", ErrInvalidCredentials
	}

	role := auth.RoleUser
	if user.IsStaff {
		role = auth.RoleStaff
	}

	return auth.NewAccessToken(user.ID, user.Username, user.Email, role,
		s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
}

func (s *accountService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RequestPasswordReset sends a reset link to every active user matching the
// email case-insensitively. Unknown addresses are a silent no-op so the
// endpoint cannot be used to enumerate accounts.
func (s *accountService) RequestPasswordReset(ctx context.Context, req *domain.PasswordResetRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	users, err := s.users.FindActiveByEmail(ctx, req.Email)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up users for password reset", "error", err)
		return nil
	}

	for i := range users {
		user := &users[i]
		resetURL := s.buildResetURL(user)
		if err := s.mailer.SendPasswordReset(user.Email, user.FirstName, resetURL); err != nil {
			logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "user_id", user.ID)
		}
	}

	return nil
}

// ResolveResetLink returns the user a valid (uidb64, token) pair points at,
// or nil. It never errors: decode failures, unknown users, inactive users
// and stale tokens all read as an invalid link.
func (s *accountService) ResolveResetLink(ctx context.Context, uidb64, token string) *domain.User {
	id, err := resettoken.DecodeUID(uidb64)
	if err != nil {
		return nil
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil || user == nil || !user.IsActive {
		return nil
	}

	if !s.resetGen.Check(user, token) {
		return nil
	}
	return user
}

func (s *accountService) ConfirmPasswordReset(ctx context.Context, uidb64, token string, req *domain.SetPasswordRequest) error {
	user := s.ResolveResetLink(ctx, uidb64, token)
	if user == nil {
		return ErrInvalidLink
	}

	if err := req.Validate(); err != nil {
		return err
	}

	if err := s.setPassword(ctx, user, req.NewPassword1); err != nil {
		return err
	}

	if err := s.eventBus.Publish(ctx, events.UserPasswordReset, events.UserPasswordChangedEvent{
		UserID:    user.ID,
		Email:     user.Email,
		ChangedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish password reset event", "error", err, "user_id", user.ID)
	}

	return nil
}

func (s *accountService) RequestOTP(ctx context.Context, user *domain.User, req *domain.OTPRequest) (*otp.Challenge, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.otp.RequestChallenge(ctx, user, req.Email)
}

func (s *accountService) ChangePassword(ctx context.Context, user *domain.User, req *domain.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	// The old password is checked before the OTP so a typo doesn't burn the
	// single-use code.
	valid, err := argon2id.ComparePasswordAndHash(req.OldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return domain.FieldErrors{"old_password": "the old password didn't match"}
	}

	verified, err := s.otp.Verify(ctx, user, req.Device, req.Token)
	if err != nil {
		return fmt.Errorf("failed to verify otp: %w", err)
	}
	if !verified {
		return ErrInvalidOTP
	}

	if err := s.setPassword(ctx, user, req.NewPassword1); err != nil {
		return err
	}

	if err := s.eventBus.Publish(ctx, events.UserPasswordChanged, events.UserPasswordChangedEvent{
		UserID:    user.ID,
		Email:     user.Email,
		ChangedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish password change event", "error", err, "user_id", user.ID)
	}

	return nil
}

func (s *accountService) ChangeEmail(ctx context.Context, user *domain.User, req *domain.ChangeEmailRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	verified, err := s.otp.Verify(ctx, user, req.Device, req.Token)
	if err != nil {
		return fmt.Errorf("failed to verify otp: %w", err)
	}
	if !verified {
		return ErrInvalidOTP
	}

	if req.Email == user.Email {
		return domain.FieldErrors{"email": "the email has not changed"}
	}

	oldEmail := user.Email
	if err := s.users.UpdateEmail(ctx, user.ID, req.Email); err != nil {
		return mapDuplicate(err)
	}

	if err := s.eventBus.Publish(ctx, events.UserEmailChanged, events.UserEmailChangedEvent{
		UserID:    user.ID,
		OldEmail:  oldEmail,
		NewEmail:  req.Email,
		ChangedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish email change event", "error", err, "user_id", user.ID)
	}

	return nil
}

func (s *accountService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *accountService) UpdateUser(ctx context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *accountService) setPassword(ctx context.Context, user *domain.User, password string) error {
	passwordHash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *accountService) buildResetURL(user *domain.User) string {
	uidb64 := resettoken.EncodeUID(user.ID)
	token := s.resetGen.Make(user)
	return fmt.Sprintf("%s/user/password-reset/confirm/%s/%s/", s.config.App.BaseURL, uidb64, token)
}

// mapDuplicate converts storage uniqueness violations into field errors, so
// the losing side of a registration race sees a 400, not a 500.
func mapDuplicate(err error) error {
	switch {
	case errors.Is(err, postgres.ErrDuplicateUsername):
		return domain.FieldErrors{"username": "a user with that username already exists"}
	case errors.Is(err, postgres.ErrDuplicateEmail):
		return domain.FieldErrors{"email": "a user with that email already exists"}
	}
	return err
}
