package auth

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/platform/httpx"
)

// Middleware parses a Bearer access token into a claim set and stores
// it in the request context. Requests without an Authorization header
// pass through unauthenticated; permission middleware downstream
// rejects them where a credential is required. A present but invalid
// token is rejected here.
func Middleware(issuer *TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authorization header is malformed")
				return
			}
			cs, err := issuer.ParseAccessToken(strings.TrimSpace(token))
			if err != nil {
				if logger != nil {
					logger.Debug("access token rejected", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credential")
				return
			}
			next.ServeHTTP(w, r.WithContext(authz.ContextWithClaims(r.Context(), cs)))
		})
	}
}
