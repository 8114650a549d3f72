// Package claims carries the signed-in identity of a request through its
// context.
package claims

import (
	"context"
	"errors"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// ErrMissing is returned by Get when the request carries no identity.
var ErrMissing = errors.New("claims missing from context")

type Claims struct {
	UserID string
	Role   string
}

func (c Claims) Admin() bool { return c.Role == RoleAdmin }

type ctxKey struct{}

func Set(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func Get(ctx context.Context) (Claims, error) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	if !ok || c.UserID == "" {
		return Claims{}, ErrMissing
	}
	return c, nil
}

// UserID returns the signed-in user of the request, if any.
func UserID(ctx context.Context) (string, bool) {
	c, err := Get(ctx)
	if err != nil {
		return "", false
	}
	return c.UserID, true
}

func IsAdmin(ctx context.Context) bool {
	c, err := Get(ctx)
	return err == nil && c.Admin()
}

// IsUser reports whether the request is signed in as ownerID.
func IsUser(ctx context.Context, ownerID string) bool {
	id, ok := UserID(ctx)
	return ok && id == ownerID
}

// CanAccess reports whether the caller owns a resource of ownerID or is an
// admin.
func CanAccess(ctx context.Context, ownerID string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}
	return c.UserID == ownerID || c.Admin()
}
