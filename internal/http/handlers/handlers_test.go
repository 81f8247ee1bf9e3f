package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadesso/account-service/internal/domain"
	"github.com/vadesso/account-service/internal/otp"
	"github.com/vadesso/account-service/internal/service"
	"github.com/vadesso/account-service/pkg/auth"
	"github.com/vadesso/account-service/pkg/config"
)

const testSecret = "test-secret"

// ---------- Stubs ----------

type stubAccounts struct {
	registerErr error

	pair    *domain.TokenPairResponse
	authErr error

	refreshAccess string
	refreshErr    error

	user   *domain.User
	getErr error

	resetErr   error
	resolved   *domain.User
	confirmErr error

	challenge    *otp.Challenge
	otpErr       error
	lastOTPEmail string

	changePasswordErr error
	changeEmailErr    error

	users      []domain.User
	updated    *domain.User
	updateErr  error
	deleteErr  error
	lastDelete int64
}

func (s *stubAccounts) Register(_ context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &domain.User{ID: 1, Username: req.Username, Email: req.Email, IsActive: true}, nil
}

func (s *stubAccounts) Authenticate(_ context.Context, _ *domain.TokenObtainRequest) (*domain.TokenPairResponse, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return s.pair, nil
}

func (s *stubAccounts) RefreshAccessToken(_ context.Context, _ string) (string, error) {
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	return s.refreshAccess, nil
}

func (s *stubAccounts) GetUser(_ context.Context, _ int64) (*domain.User, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.user, nil
}

func (s *stubAccounts) RequestPasswordReset(_ context.Context, req *domain.PasswordResetRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	return s.resetErr
}

func (s *stubAccounts) ResolveResetLink(_ context.Context, _, _ string) *domain.User {
	return s.resolved
}

func (s *stubAccounts) ConfirmPasswordReset(_ context.Context, _, _ string, _ *domain.SetPasswordRequest) error {
	return s.confirmErr
}

func (s *stubAccounts) RequestOTP(_ context.Context, _ *domain.User, req *domain.OTPRequest) (*otp.Challenge, error) {
	s.lastOTPEmail = req.Email
	if s.otpErr != nil {
		return nil, s.otpErr
	}
	return s.challenge, nil
}

func (s *stubAccounts) ChangePassword(_ context.Context, _ *domain.User, _ *domain.ChangePasswordRequest) error {
	return s.changePasswordErr
}

func (s *stubAccounts) ChangeEmail(_ context.Context, _ *domain.User, _ *domain.ChangeEmailRequest) error {
	return s.changeEmailErr
}

func (s *stubAccounts) ListUsers(_ context.Context, _, _ int) ([]domain.User, error) {
	return s.users, nil
}

func (s *stubAccounts) UpdateUser(_ context.Context, _ int64, _ *domain.UpdateUserRequest) (*domain.User, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.updated, nil
}

func (s *stubAccounts) DeleteUser(_ context.Context, id int64) error {
	s.lastDelete = id
	return s.deleteErr
}

type stubLimiter struct {
	allowed bool
	calls   int
}

func (l *stubLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	l.calls++
	return l.allowed, nil
}

// ---------- Helpers ----------

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       testSecret,
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
}

func activeUser() *domain.User {
	return &domain.User{
		ID:           1,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "secret-hash-material",
		DocumentID:   "V12345678",
		AccountType:  domain.AccountPersonal,
		FirstName:    "Alice",
		LastName:     "Liddell",
		IsActive:     true,
		DateJoined:   time.Now(),
	}
}

func newRouter(accounts service.AccountService, limiter *stubLimiter) http.Handler {
	if limiter == nil {
		limiter = &stubLimiter{allowed: true}
	}
	return New(accounts, limiter, testConfig()).Routes()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if body != nil {
		req.ContentLength = int64(buf.Len())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func accessToken(t *testing.T, user *domain.User, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(user.ID, user.Username, user.Email, role, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// ---------- Registration ----------

func TestRegisterHandler(t *testing.T) {
	router := newRouter(&stubAccounts{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/register/", map[string]string{
		"username": "alice",
	}, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "You have successfully registered.", decodeBody(t, rec)["message"])
}

func TestRegisterHandlerInvalidJSON(t *testing.T) {
	router := newRouter(&stubAccounts{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/user/register/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterHandlerFieldErrors(t *testing.T) {
	router := newRouter(&stubAccounts{
		registerErr: domain.FieldErrors{"username": "a user with that username already exists"},
	}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/register/", map[string]string{"username": "alice"}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	detail, ok := body["detail"].(map[string]interface{})
	require.True(t, ok, "detail must carry the field map, got %v", body)
	assert.Contains(t, detail, "username")
}

// ---------- Tokens ----------

func TestTokenObtainHandler(t *testing.T) {
	router := newRouter(&stubAccounts{
		pair: &domain.TokenPairResponse{Access: "acc", Refresh: "ref"},
	}, nil)

	rec := doJSON(t, router, http.MethodPost, "/token/", map[string]string{
		"username": "alice", "password": "pass",
	}, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "acc", body["access"])
	assert.Equal(t, "ref", body["refresh"])
}

func TestTokenObtainHandlerBadCredentials(t *testing.T) {
	router := newRouter(&stubAccounts{authErr: service.ErrInvalidCredentials}, nil)

	rec := doJSON(t, router, http.MethodPost, "/token/", map[string]string{
		"username": "alice", "password": "wrong",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "no active account found with the given credentials", body["detail"])
	assert.EqualValues(t, http.StatusUnauthorized, body["status_code"])
}

func TestTokenRefreshHandler(t *testing.T) {
	router := newRouter(&stubAccounts{refreshAccess: "fresh-access"}, nil)

	rec := doJSON(t, router, http.MethodPost, "/token/refresh/", map[string]string{"refresh": "ref"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh-access", decodeBody(t, rec)["access"])

	rec = doJSON(t, router, http.MethodPost, "/token/refresh/", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenVerifyHandler(t *testing.T) {
	router := newRouter(&stubAccounts{}, nil)

	good := accessToken(t, activeUser(), auth.RoleUser)
	rec := doJSON(t, router, http.MethodPost, "/token/verify/", map[string]string{"token": good}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/token/verify/", map[string]string{"token": "garbage"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/token/verify/", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---------- Auth middleware ----------

func TestProfileRequiresAuth(t *testing.T) {
	router := newRouter(&stubAccounts{user: activeUser()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/user/profile/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user}, nil)

	req := httptest.NewRequest(http.MethodGet, "/user/profile/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, user, auth.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, rec.Body.String(), "secret-hash-material")
}

func TestRefreshTokenCannotAuthenticate(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user}, nil)

	refresh, err := auth.NewRefreshToken(user.ID, user.Username, user.Email, testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user/profile/", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInactiveUserRejected(t *testing.T) {
	user := activeUser()
	user.IsActive = false
	router := newRouter(&stubAccounts{user: user}, nil)

	req := httptest.NewRequest(http.MethodGet, "/user/profile/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, user, auth.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ---------- Password reset ----------

func TestPasswordResetHandler(t *testing.T) {
	router := newRouter(&stubAccounts{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/password-reset/", map[string]string{
		"email": "alice@example.com",
	}, "")

	assert.Equal(t, http.StatusCreated, rec.Code, "the response must not reveal whether the address exists")
	assert.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])
}

func TestPasswordResetRateLimited(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	router := newRouter(&stubAccounts{}, limiter)

	rec := doJSON(t, router, http.MethodPost, "/user/password-reset/", map[string]string{
		"email": "alice@example.com",
	}, "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, limiter.calls)
}

func TestPasswordResetConfirmCheck(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{resolved: user}, nil)

	req := httptest.NewRequest(http.MethodGet, "/user/password-reset/confirm/MQ/sometoken/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["invalid_link"])
}

func TestPasswordResetConfirmCheckInvalid(t *testing.T) {
	router := newRouter(&stubAccounts{resolved: nil}, nil)

	req := httptest.NewRequest(http.MethodGet, "/user/password-reset/confirm/MQ/bad/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["invalid_link"])
}

func TestPasswordResetConfirmInvalidLink(t *testing.T) {
	router := newRouter(&stubAccounts{confirmErr: service.ErrInvalidLink}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/password-reset/confirm/MQ/bad/", map[string]string{
		"new_password1": "brand-new-pass",
		"new_password2": "brand-new-pass",
	}, "")

	assert.Equal(t, http.StatusGone, rec.Code)
}

// ---------- OTP ----------

func TestGenerateOTP(t *testing.T) {
	user := activeUser()
	expires := time.Now().Add(5 * time.Minute)
	router := newRouter(&stubAccounts{
		user: user,
		challenge: &otp.Challenge{
			DeviceRef: "00000000-0000-0000-0000-000000000001",
			Email:     user.Email,
			ExpiresAt: expires,
		},
	}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/generate-otp/", nil,
		accessToken(t, user, auth.RoleUser))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", body["device"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "sent by email", body["message"])
	assert.Equal(t, expires.Format(time.RFC3339), body["expire"])
}

func TestGenerateOTPChunkedBody(t *testing.T) {
	user := activeUser()
	accounts := &stubAccounts{
		user: user,
		challenge: &otp.Challenge{
			DeviceRef: "00000000-0000-0000-0000-000000000001",
			Email:     "alt@example.com",
			ExpiresAt: time.Now().Add(5 * time.Minute),
		},
	}
	router := newRouter(accounts, nil)

	// Chunked transfer: ContentLength is -1 but the body still carries the
	// override address.
	req := httptest.NewRequest(http.MethodPost, "/user/generate-otp/",
		strings.NewReader(`{"email":"alt@example.com"}`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken(t, user, auth.RoleUser))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alt@example.com", accounts.lastOTPEmail)
}

func TestGenerateOTPBadJSON(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user}, nil)

	req := httptest.NewRequest(http.MethodPost, "/user/generate-otp/", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+accessToken(t, user, auth.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateOTPNoDevice(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user, otpErr: otp.ErrNoDevice}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/generate-otp/", nil,
		accessToken(t, user, auth.RoleUser))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "please contact customer service", decodeBody(t, rec)["detail"])
}

func TestChangePasswordInvalidOTP(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user, changePasswordErr: service.ErrInvalidOTP}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/change-password/", map[string]string{
		"device": "dev", "token": "000000",
		"old_password": "old", "new_password1": "newer-pass-1", "new_password2": "newer-pass-1",
	}, accessToken(t, user, auth.RoleUser))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "the token submitted is invalid", decodeBody(t, rec)["detail"])
}

func TestChangeEmail(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user}, nil)

	rec := doJSON(t, router, http.MethodPost, "/user/change-email/", map[string]string{
		"device": "dev", "token": "123456", "email": "new@example.com",
	}, accessToken(t, user, auth.RoleUser))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ---------- Admin ----------

func TestAdminRequiresStaff(t *testing.T) {
	user := activeUser()
	router := newRouter(&stubAccounts{user: user}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, user, auth.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminListUsers(t *testing.T) {
	staff := activeUser()
	staff.IsStaff = true
	router := newRouter(&stubAccounts{user: staff, users: []domain.User{*staff}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, staff, auth.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.NotContains(t, rec.Body.String(), "secret-hash-material")
}

func TestAdminDeleteUser(t *testing.T) {
	staff := activeUser()
	staff.IsStaff = true
	accounts := &stubAccounts{user: staff}
	router := newRouter(accounts, nil)

	req := httptest.NewRequest(http.MethodDelete, "/users/42", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, staff, auth.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), accounts.lastDelete)
}

func TestAdminGetUserBadID(t *testing.T) {
	staff := activeUser()
	staff.IsStaff = true
	router := newRouter(&stubAccounts{user: staff}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/not-a-number", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, staff, auth.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUpdateUserNotFound(t *testing.T) {
	staff := activeUser()
	staff.IsStaff = true
	router := newRouter(&stubAccounts{user: staff, updateErr: service.ErrUserNotFound}, nil)

	rec := doJSON(t, router, http.MethodPatch, "/users/999", map[string]interface{}{
		"is_active": false,
	}, accessToken(t, staff, auth.RoleStaff))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
