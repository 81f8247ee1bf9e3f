package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vadesso/account-service/internal/domain"
	"github.com/vadesso/account-service/internal/http/response"
	"github.com/vadesso/account-service/internal/otp"
	"github.com/vadesso/account-service/internal/repo/redis"
	"github.com/vadesso/account-service/internal/service"
	"github.com/vadesso/account-service/pkg/auth"
	"github.com/vadesso/account-service/pkg/config"
	"github.com/vadesso/account-service/pkg/logger"
)

type contextKey string

const currentUserKey contextKey = "current_user"

type Handlers struct {
	accounts    service.AccountService
	rateLimiter redis.RateLimiter
	config      *config.Config
}

func New(accounts service.AccountService, rateLimiter redis.RateLimiter, cfg *config.Config) *Handlers {
	return &Handlers{
		accounts:    accounts,
		rateLimiter: rateLimiter,
		config:      cfg,
	}
}

// RequireAuth authenticates the Bearer access token and loads the current
// user into the request context. With staffOnly, non-staff tokens get 403.
func (h *Handlers) RequireAuth(staffOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(w, "authentication credentials were not provided")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil || claims.Role == auth.RoleRefresh {
				response.Unauthorized(w, "invalid token")
				return
			}

			if staffOnly && claims.Role != auth.RoleStaff {
				response.Forbidden(w, "you do not have permission to perform this action")
				return
			}

			user, err := h.accounts.GetUser(r.Context(), claims.Sub)
			if err != nil || !user.IsActive {
				response.Unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, currentUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit guards an endpoint with a fixed window per key. Limiter errors
// fail open.
func (h *Handlers) RateLimit(prefix string, requests int, window time.Duration, keyFn func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + ":" + keyFn(r)

			allowed, err := h.rateLimiter.Allow(r.Context(), key, requests, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				response.TooManyRequests(w, "too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIPKey(r *http.Request) string {
	return getClientIP(r)
}

func currentUserKeyFn(r *http.Request) string {
	if user := currentUser(r); user != nil {
		return strconv.FormatInt(user.ID, 10)
	}
	return getClientIP(r)
}

func currentUser(r *http.Request) *domain.User {
	if user, ok := r.Context().Value(currentUserKey).(*domain.User); ok {
		return user
	}
	return nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

// writeServiceError maps service errors onto the response envelope. Nothing
// falls through to the client as an unhandled fault.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs domain.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		response.BadRequest(w, fieldErrs)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(w, "no active account found with the given credentials")
	case errors.Is(err, service.ErrInvalidOTP):
		response.BadRequest(w, "the token submitted is invalid")
	case errors.Is(err, service.ErrInvalidLink):
		response.Gone(w, map[string]bool{"invalid_link": true})
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, otp.ErrNoDevice):
		response.NotImplemented(w, "please contact customer service")
	default:
		logger.ErrorContext(r.Context(), "Unhandled service error", "error", err)
		response.InternalError(w, "internal server error")
	}
}
