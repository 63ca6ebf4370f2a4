package login

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// AuthTokenHeader is the request header carrying the session token.
const AuthTokenHeader = "x-auth-token"

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "devbook context value " + k.name
}

var userIDKey = &contextKey{"UserID"}

// TokenFromHeader extracts the session token from the x-auth-token
// header, the transport the DevBook client uses for authenticated calls.
func TokenFromHeader(r *http.Request) string {
	return r.Header.Get(AuthTokenHeader)
}

// Verifier parses and validates the x-auth-token header, stashing the
// result in the request context for Authenticator to inspect.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, TokenFromHeader)
}

// Authenticator rejects requests without a valid full session token.
// A pending token is refused here no matter how fresh it is: the
// requires_2fa claim marks it as proof of the password step only, never
// as access.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, MsgResponse{Msg: "No Token, Authorization Denied"})
			return
		}

		if pending, _ := claims["requires_2fa"].(bool); pending {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, MsgResponse{Msg: "Token is invalid"})
			return
		}

		sub, _ := claims["sub"].(string)
		userID, parseErr := uuid.Parse(sub)
		if parseErr != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, MsgResponse{Msg: "Token is invalid"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id placed in the
// context by Authenticator.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}
