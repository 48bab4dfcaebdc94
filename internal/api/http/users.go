package http

import (
	"encoding/json"
	"errors"
	"net/http"

	authmw "github.com/mind-engage/survey-registry/internal/auth/middleware"
	"golang.org/x/crypto/bcrypt"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /users/change-password
func ChangePasswordHandler(users *authmw.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := authmw.UserID(r.Context())
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
			http.Error(w, "new password required", http.StatusBadRequest)
			return
		}
		err = users.ChangePassword(r.Context(), uid, req.OldPassword, req.NewPassword)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, authmw.ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			http.Error(w, "incorrect old password", http.StatusForbidden)
		default:
			writeError(w, r, err)
		}
	}
}
