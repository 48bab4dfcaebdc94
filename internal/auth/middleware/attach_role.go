package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/survey-registry/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// user, so role changes apply before tokens expire. allowClaimFallback keeps
// the token role for subjects missing from the users table (dev/offline).
func AttachRoleFromDB(users *Users, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claimRole := rbac.RoleFromContext(ctx)
			id, err := UserID(ctx)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			role, err := users.RoleByID(ctx, id)
			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case allowClaimFallback && claimRole != "" && (err == nil || errors.Is(err, ErrUserNotFound)):
				next.ServeHTTP(w, r)
			default:
				if err != nil && !errors.Is(err, ErrUserNotFound) {
					log.Printf("auth: role lookup %d: %v", id, err)
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
