package claims

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

var (
	ErrUnauthenticated = errors.New("no authenticated user")
	ErrForbidden       = errors.New("forbidden")
)

// Claims is the verified identity of the caller. It is read from the
// request context once, at the edge, and then passed by value into every
// core operation.
type Claims struct {
	UserID string
	Role   string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, ErrUnauthenticated
	}
	return v, nil
}

// Require fails unless the caller holds one of roles.
func (c Claims) Require(roles ...string) error {
	if c.UserID == "" {
		return ErrUnauthenticated
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return fmt.Errorf("role[%s] lacks %v: %w", c.Role, roles, ErrForbidden)
}

// CanAccess reports whether the caller may read or act on a resource
// owned by ownerID.
func (c Claims) CanAccess(ownerID string) bool {
	return c.IsAdmin() || (c.UserID != "" && c.UserID == ownerID)
}

func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
