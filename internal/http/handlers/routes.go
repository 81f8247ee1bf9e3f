package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// Routes mounts every endpoint on a fresh router.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/user", func(r chi.Router) {
		r.Post("/register/", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(h.RateLimit("password_reset", 5, 15*time.Minute, clientIPKey))
			r.Post("/password-reset/", h.PasswordReset)
		})
		r.Get("/password-reset/confirm/{uidb64}/{token}/", h.PasswordResetConfirmCheck)
		r.Post("/password-reset/confirm/{uidb64}/{token}/", h.PasswordResetConfirm)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth(false))
			r.Get("/profile/", h.Profile)
			r.Post("/change-password/", h.ChangePassword)
			r.Post("/change-email/", h.ChangeEmail)

			r.Group(func(r chi.Router) {
				r.Use(h.RateLimit("generate_otp", 3, 5*time.Minute, currentUserKeyFn))
				r.Post("/generate-otp/", h.GenerateOTP)
			})
		})
	})

	r.Route("/token", func(r chi.Router) {
		r.Post("/", h.TokenObtain)
		r.Post("/refresh/", h.TokenRefresh)
		r.Post("/verify/", h.TokenVerify)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(h.RequireAuth(true))
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Patch("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})

	return r
}
