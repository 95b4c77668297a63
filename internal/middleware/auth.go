package middleware

import (
	"context"
	"net/http"
	"strings"

	"hinan-bknd/internal/auth"

	"go.uber.org/zap"
)

// TokenVersionChecker confirms a token was issued for the operator's current token version.
type TokenVersionChecker interface {
	CheckTokenVersion(ctx context.Context, operatorID string, tokenVersion int) (bool, error)
}

type AuthMiddleware struct {
	jwt      *auth.JWTManager
	versions TokenVersionChecker
	logr     *zap.Logger
}

type contextKey string

const contextClaimsKey contextKey = "claims"

// NewAuthMiddleware creates a reusable JWT auth middleware instance
func NewAuthMiddleware(jwt *auth.JWTManager, versions TokenVersionChecker, logr *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, versions: versions, logr: logr}
}

// ClaimsFromContext returns the claims JWTAuth attached to the request.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(contextClaimsKey).(*auth.Claims)
	return c, ok
}

// JWTAuth validates the access token and attaches its claims to the request context
func (m *AuthMiddleware) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwt.VerifyToken(tokenString)
		if err != nil {
			m.logr.Warn("token parse error", zap.Error(err))
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		if claims.Kind != auth.AccessToken {
			http.Error(w, "access token required", http.StatusUnauthorized)
			return
		}

		valid, err := m.versions.CheckTokenVersion(r.Context(), claims.OperatorID, claims.TokenVersion)
		if err != nil {
			m.logr.Error("failed checking token version", zap.Error(err), zap.String("operator_id", claims.OperatorID))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !valid {
			m.logr.Warn("token version invalid", zap.String("operator_id", claims.OperatorID))
			http.Error(w, "token revoked or invalid", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose token lacks role. It must run after JWTAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !claims.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
