package middleware

import (
	"context"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"wafer-be/models"
	"wafer-be/utils"
)

type contextKey string

const (
	UserContextKey   contextKey = "user"
	ClaimsContextKey contextKey = "claims"
)

// CurrentUser returns the authenticated user, nil for anonymous requests
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

// WithUser attaches user to ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// loadUser resolves a token to a live user with groups preloaded
func loadUser(db *gorm.DB, secret, token string) (*models.User, *utils.Claims, error) {
	claims, err := utils.ValidateJWT(token, secret)
	if err != nil {
		return nil, nil, err
	}

	// Deleted users keep valid tokens until expiry; reject them here
	var user models.User
	if err := db.Preload("Groups").Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		return nil, nil, err
	}
	return &user, claims, nil
}

// Auth validates the JWT and loads the user into the request context
func Auth(db *gorm.DB, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth check for OPTIONS requests (CORS preflight)
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get("Authorization") == "" {
				utils.RespondUnauthorized(w, "Authorization header required")
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				utils.RespondUnauthorized(w, "Invalid authorization header format")
				return
			}

			user, claims, err := loadUser(db, secret, token)
			if err != nil {
				utils.RespondUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user when a valid token is sent and lets
// anonymous requests through. A bad token is treated as anonymous.
func OptionalAuth(db *gorm.DB, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if user, claims, err := loadUser(db, secret, token); err == nil {
					ctx := WithUser(r.Context(), user)
					ctx = context.WithValue(ctx, ClaimsContextKey, claims)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits users holding any of roles. Admins always pass.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			user := CurrentUser(r.Context())
			if user == nil {
				utils.RespondUnauthorized(w, "Unauthorized")
				return
			}
			if user.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.RespondForbidden(w, "Insufficient permissions")
		})
	}
}

// RequireAdmin is a helper for admin-only routes
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// CORS allows the configured origins with credentials and falls back to
// a wildcard for everything else.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			isAllowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					isAllowed = true
					break
				}
			}

			if isAllowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // Cache preflight for 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
