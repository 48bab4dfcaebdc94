package auth

import (
	"context"
	"errors"
	"strconv"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

var ErrNoSubject = errors.New("auth: no numeric subject in context")

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserID returns the authenticated user's id. Tokens carry the users.id
// primary key as subject.
func UserID(ctx context.Context) (int64, error) {
	id, err := strconv.ParseInt(SubjectFromContext(ctx), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNoSubject
	}
	return id, nil
}
