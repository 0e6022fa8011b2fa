package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleConductor Role = "conductor"
	RoleAdmin     Role = "admin"
)

// ParseRole maps anything unrecognised to the passenger view
func ParseRole(value string) Role {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleDriver, RoleConductor, RoleAdmin:
		return role
	default:
		return RolePassenger
	}
}

type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// DisplayName is the local part of the email address
func (i Identity) DisplayName() string {
	if local, _, found := strings.Cut(i.Email, "@"); found && local != "" {
		return local
	}
	if i.Email != "" {
		return i.Email
	}

	return i.UserID
}

func (i Identity) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}

	return false
}

type Provider interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// RoleCounter is implemented by providers that can enumerate their accounts
type RoleCounter interface {
	CountRoles(ctx context.Context) (map[Role]int, error)
}

func unauthenticated(reason string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrUnauthenticated, reason)
	}

	return fmt.Errorf("%w: %s: %w", ErrUnauthenticated, reason, err)
}

// DevelopmentProvider trusts tokens of the form role:email and must never be used in production
type DevelopmentProvider struct{}

func (DevelopmentProvider) Verify(_ context.Context, token string) (Identity, error) {
	role, email, found := strings.Cut(token, ":")
	if !found || email == "" {
		return Identity{}, unauthenticated("development tokens look like role:email", nil)
	}

	return Identity{
		UserID: email,
		Email:  email,
		Role:   ParseRole(role),
	}, nil
}
