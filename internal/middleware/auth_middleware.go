package middleware

import (
	"context"
	"net/http"
	"strings"

	"chat_gateway/internal/auth"
	"chat_gateway/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// IdentityKey is the context key for the verified caller identity
	IdentityKey ContextKey = "identity"
)

// Authenticate validates bearer JWTs for protected routes and embeds the
// verified identity in the request context.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			identity, err := auth.VerifyToken(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusForbidden, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the verified identity from the request context
func GetIdentity(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*auth.Identity)
	return identity, ok
}
