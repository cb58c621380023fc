package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/saude-gov/regulacao/internal/shared/config"
	"github.com/saude-gov/regulacao/internal/shared/types"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// Sector role names carried in the JWT issued by the hospital's identity
// provider. A user with none of these acts as a regulation operator.
const (
	RoleNIR     = "nir"
	RoleSurgery = "centro_cirurgico"
	RoleBilling = "faturamento"
	RoleAdmin   = "admin"
)

// User represents the authenticated user from JWT claims
type User struct {
	ID       types.ID `json:"sub"`
	Name     string   `json:"name"`
	Sector   string   `json:"sector"`
	Roles    []string `json:"roles"`
	Unit     string   `json:"unit,omitempty"`
	Username string   `json:"username,omitempty"`
}

// Claims extends JWT claims with hospital-specific data
type Claims struct {
	jwt.RegisteredClaims
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
	Unit     string   `json:"unit,omitempty"`
	Username string   `json:"preferred_username,omitempty"`
}

// sectorFromRoles maps the first recognized sector role to the acting
// sector. Regulation is the default: it originates every record.
func sectorFromRoles(roles []string) string {
	for _, role := range roles {
		switch role {
		case RoleSurgery:
			return "SURGERY"
		case RoleBilling:
			return "BILLING"
		case RoleNIR:
			return "NIR"
		}
	}
	return "NIR"
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			user := &User{
				ID:       types.ID(claims.Subject),
				Name:     claims.Name,
				Sector:   sectorFromRoles(claims.Roles),
				Roles:    claims.Roles,
				Unit:     claims.Unit,
				Username: claims.Username,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// RequireRoles creates middleware that requires specific roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !hasAnyRole(user.Roles, roles) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HasRole checks if user has a specific role
func (u *User) HasRole(role string) bool {
	return hasAnyRole(u.Roles, []string{role})
}

// IsAdmin checks if user is an admin
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func hasAnyRole(userRoles, requiredRoles []string) bool {
	for _, required := range requiredRoles {
		for _, role := range userRoles {
			if role == required {
				return true
			}
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
