package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"lumina/login-gate/internal/logging"
)

// RequireJWT rejects requests without a valid HS256 bearer token signed with
// secret. An empty secret disables the check.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		key := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				logging.L(r.Context()).Debug("rejected bearer token", "error", err)
				unauthorized(w, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
