package middleware

import (
	"context"
	"net/http"
	"strings"

	"km-backend/internal/auth"
	"km-backend/internal/models"
	"km-backend/pkg/utils"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const RoleKey contextKey = "role"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
}

func NewAuthMiddleware(jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireRole validates the bearer token and ensures the user has one of the
// allowed roles. Browsers cannot set headers on websocket upgrades, so an
// access_token query parameter is accepted for those requests.
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED")
				return
			}

			claims, err := m.jwtManager.ValidateToken(token)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED")
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if claims.Role == role {
					hasRole = true
					break
				}
			}
			if !hasRole {
				utils.RespondError(w, http.StatusForbidden, "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is a middleware that ensures the user has admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(auth.RoleAdmin)(next)
}

// RequireCurator is a middleware that ensures the user has curator role
func (m *AuthMiddleware) RequireCurator(next http.Handler) http.Handler {
	return m.RequireRole(auth.RoleCurator)(next)
}

func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// ActorFromRequest is the audited identity of an authenticated request
func ActorFromRequest(r *http.Request) models.Actor {
	userID, _ := GetUserIDFromContext(r.Context())
	role, _ := GetRoleFromContext(r.Context())
	return models.Actor{
		UserID:    userID,
		Role:      role,
		IPAddress: GetClientIP(r),
	}
}
