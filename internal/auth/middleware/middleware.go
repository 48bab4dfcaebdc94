package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/survey-registry/internal/rbac"
)

type AuthService struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{hmac: []byte(secret), ttl: 8 * time.Hour, now: time.Now}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // participant|staff|admin
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := a.now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "survey-registry",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return c, nil
}

// LoginOptions selects which credentials LoginHandler accepts.
type LoginOptions struct {
	AdminUser     string
	AdminPassHash string // bcrypt
	// DevUsers lets username==password log in as participant or staff,
	// creating the user on first login. Offline mode only.
	DevUsers bool
}

// POST /auth/login  { "username": "...", "password": "...", "role": "participant|staff" }
func LoginHandler(a *AuthService, users *Users, opt LoginOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		usr, err := authenticate(r, users, opt, req.Username, req.Password, req.Role)
		if err != nil {
			log.Printf("auth: login %s: %v", req.Username, err)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(strconv.FormatInt(usr.ID, 10), usr.Role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok, "user_id": usr.ID, "role": usr.Role})
	}
}

func authenticate(r *http.Request, users *Users, opt LoginOptions, username, password, role string) (User, error) {
	ctx := r.Context()
	if opt.AdminUser != "" && username == opt.AdminUser {
		if err := bcrypt.CompareHashAndPassword([]byte(opt.AdminPassHash), []byte(password)); err != nil {
			return User{}, err
		}
		return users.Ensure(ctx, username, opt.AdminPassHash, "admin")
	}
	usr, err := users.ByUsername(ctx, username)
	switch {
	case err == nil:
		if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
			return User{}, err
		}
		return usr, nil
	case !errors.Is(err, ErrUserNotFound):
		return User{}, err
	}
	if !opt.DevUsers || username != password || (role != "participant" && role != "staff") {
		return User{}, ErrUserNotFound
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return users.Ensure(ctx, username, hash, role)
}

// JWTMiddleware verifies the bearer token and puts subject and role in the
// request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), c.Sub)
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
