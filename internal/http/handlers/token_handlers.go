package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vadesso/account-service/internal/domain"
	"github.com/vadesso/account-service/internal/http/response"
	"github.com/vadesso/account-service/pkg/auth"
)

// TokenObtain exchanges username/password for an access/refresh pair.
func (h *Handlers) TokenObtain(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenObtainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON format")
		return
	}

	pair, err := h.accounts.Authenticate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handlers) TokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		response.BadRequest(w, "refresh token is required")
		return
	}

	access, err := h.accounts.RefreshAccessToken(r.Context(), req.Refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"access": access})
}

// TokenVerify checks a token's signature and expiry without touching the
// identity store.
func (h *Handlers) TokenVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		response.BadRequest(w, "token is required")
		return
	}

	if _, err := auth.Parse(req.Token, h.config.Auth.JWTSecret); err != nil {
		response.Unauthorized(w, "token is invalid or expired")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{})
}
