package httpapi

import (
	"net/http"
	"strings"

	"github.com/commitloop/engine/internal/api"
	"github.com/golang-jwt/jwt/v5"
)

// Auth verifies a bearer JWT on every request and stores its subject
// claim as the authenticated user id. The connection and extraction
// layers that run in the worker process never see a token; only the
// HTTP boundary does.
func Auth(secret []byte) api.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				api.Unauthorized(w, "missing bearer token")
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				api.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := api.WithUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
