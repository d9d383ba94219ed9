package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/loandesk/loandesk/internal/repository"
	"github.com/loandesk/loandesk/internal/service"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	tokenContextKey  contextKey = "accessToken"
)

// ClaimsFromContext returns the verified access-token claims stored by
// RequireAuth.
func ClaimsFromContext(ctx context.Context) (*service.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*service.Claims)
	return claims, ok
}

// AccessTokenFromContext returns the raw bearer token stored by
// RequireAuth.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}

type AuthMiddleware struct {
	tokenService *service.TokenService
	sessions     repository.SessionStore
	logger       *logrus.Logger
}

func NewAuthMiddleware(tokenService *service.TokenService, sessions repository.SessionStore, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		sessions:     sessions,
		logger:       logger,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondUnauthorized(w, "Missing authorization header")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondUnauthorized(w, "Invalid authorization header format")
			return
		}

		tokenString := parts[1]

		// Blacklist first: a logged-out token stays invalid even though
		// its signature still verifies.
		blacklisted, err := m.sessions.IsBlacklisted(r.Context(), tokenString)
		if err != nil {
			m.logger.WithError(err).Error("Failed to check token blacklist")
			m.respondUnauthorized(w, "Invalid or expired token")
			return
		}
		if blacklisted {
			m.respondUnauthorized(w, "Token has been logged out")
			return
		}

		claims, err := m.tokenService.VerifyAccessToken(tokenString)
		if err != nil {
			m.logger.WithError(err).Debug("Token verification failed")
			m.respondUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		ctx = context.WithValue(ctx, tokenContextKey, tokenString)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}
