package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

var ErrUserNotFound = errors.New("auth: user not found")

type User struct {
	ID           int64
	Username     string
	Role         string
	PasswordHash string
}

// Users reads and writes the users table.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users { return &Users{db: db} }

func (u *Users) ByUsername(ctx context.Context, username string) (User, error) {
	var usr User
	err := u.db.QueryRowContext(ctx,
		`SELECT id, username, role, password_hash FROM users WHERE username=$1`, username,
	).Scan(&usr.ID, &usr.Username, &usr.Role, &usr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("auth: lookup %s: %w", username, err)
	}
	return usr, nil
}

func (u *Users) RoleByID(ctx context.Context, id int64) (string, error) {
	var role string
	err := u.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return role, err
}

// Ensure returns the user named username, creating it with the given
// bcrypt hash and role when absent. An existing user keeps its password and
// role.
func (u *Users) Ensure(ctx context.Context, username, hash, role string) (User, error) {
	usr, err := u.ByUsername(ctx, username)
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	usr = User{Username: username, Role: role, PasswordHash: hash}
	err = u.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		username, hash, role, time.Now().UnixMicro(),
	).Scan(&usr.ID)
	if err != nil {
		return User{}, fmt.Errorf("auth: create %s: %w", username, err)
	}
	return usr, nil
}

// ChangePassword replaces the password of user id after checking the old one.
func (u *Users) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	var stored string
	err := u.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = u.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
	return err
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	return string(b), err
}
