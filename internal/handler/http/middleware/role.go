package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// RequireRole lets the request through when the token's role is one of roles.
// Admin is always allowed.
func RequireRole(roles ...jwt.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.HandleError(w, jwt.ErrInsufficientRole)
				return
			}

			roleStr, ok := claims["role"].(string)
			if !ok {
				response.HandleError(w, jwt.ErrInsufficientRole)
				return
			}

			role := jwt.Role(roleStr)
			if role == jwt.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.HandleError(w, jwt.ErrInsufficientRole)
		})
	}
}
