package login

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

// Handler mounts the /auth routes. Login and verify-login are public;
// everything else sits behind the full-token verifier.
func Handler(handle Handle, ja *jwtauth.JWTAuth) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/", handle.Login)
		r.Post("/2fa/verify-login", handle.VerifyLogin2FA)
	})

	r.Group(func(r chi.Router) {
		r.Use(Verifier(ja))
		r.Use(Authenticator)

		r.Get("/", handle.GetUser)
		r.Post("/2fa/setup", handle.Setup2FA)
		r.Post("/2fa/verify-setup", handle.VerifySetup2FA)
		r.Post("/2fa/disable", handle.Disable2FA)
	})

	return r
}
