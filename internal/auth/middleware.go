package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendrec/videoconsent/internal/httputil"
)

type contextKey string

const subjectKey contextKey = "subject"

// RequireRole admits requests carrying a valid bearer token with role. An
// empty secret disables the guarded routes entirely.
func RequireRole(secret, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httputil.WriteError(w, http.StatusForbidden, "admin access is not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.Role != role {
				slog.Warn("auth: role mismatch", "subject", claims.Subject, "role", claims.Role, "required", role)
				httputil.WriteError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}
