package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/prudhvinik1/appsync/internal/services"
	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "claims"

type TokenVerifier interface {
	VerifyToken(token string) (*services.Claims, error)
}

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, "missing or malformed authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Warn("token validation failed",
					zap.Error(err),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("path", r.URL.Path))
				WriteErrorResponse(w, "token validation failed", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims RequireAdmin stored on the request.
func ClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
