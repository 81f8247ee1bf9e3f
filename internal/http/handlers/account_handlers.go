package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vadesso/account-service/internal/domain"
	"github.com/vadesso/account-service/internal/http/response"
)

// Register creates a new user; the user's OTP device is provisioned as a
// side effect of creation.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	if _, err := h.accounts.Register(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "You have successfully registered.",
	})
}

// Profile returns the current user.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		response.Unauthorized(w, "authentication credentials were not provided")
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToProfile())
}

// PasswordReset emits a reset email per active user matching the address.
// The response is 201 regardless of whether anything matched.
func (h *Handlers) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

// PasswordResetConfirmCheck lets the frontend probe a reset link before
// showing the new-password form.
func (h *Handlers) PasswordResetConfirmCheck(w http.ResponseWriter, r *http.Request) {
	uidb64 := chi.URLParam(r, "uidb64")
	token := chi.URLParam(r, "token")

	user := h.accounts.ResolveResetLink(r.Context(), uidb64, token)
	data := map[string]bool{"invalid_link": user == nil}
	if user == nil {
		response.Gone(w, data)
		return
	}
	response.WriteJSON(w, http.StatusOK, data)
}

func (h *Handlers) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	uidb64 := chi.URLParam(r, "uidb64")
	token := chi.URLParam(r, "token")

	var req domain.SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	if err := h.accounts.ConfirmPasswordReset(r.Context(), uidb64, token, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Your password have been successfully changed. Please sign in with your new credentials.",
	})
}

// GenerateOTP issues a challenge for the current user's device and emails
// the code.
func (h *Handlers) GenerateOTP(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		response.Unauthorized(w, "authentication credentials were not provided")
		return
	}

	// An empty body means "use the registered address"; anything else must
	// be valid JSON. ContentLength is unreliable for chunked requests.
	var req domain.OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	challenge, err := h.accounts.RequestOTP(r.Context(), user, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]string{
		"device":  challenge.DeviceRef,
		"email":   challenge.Email,
		"expire":  challenge.ExpiresAt.Format(time.RFC3339),
		"message": "sent by email",
	})
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		response.Unauthorized(w, "authentication credentials were not provided")
		return
	}

	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Your password have been successfully changed.",
	})
}

func (h *Handlers) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		response.Unauthorized(w, "authentication credentials were not provided")
		return
	}

	var req domain.ChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	if err := h.accounts.ChangeEmail(r.Context(), user, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Your email have been successfully changed.",
	})
}
