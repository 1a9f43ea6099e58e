package access

import (
	"context"
	"errors"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

// Role gates which ledger and market operations a caller may invoke.
// Only the two pharmacy roles are modeled; any other value satisfies no
// role predicate.
type Role string

const (
	RolePharmacist Role = "pharmacist"
	RoleTechnician Role = "technician"
)

// Valid reports whether the role is one of the modeled pharmacy roles.
func (r Role) Valid() bool {
	return r == RolePharmacist || r == RoleTechnician
}

// User is the role-bearing profile of an authenticated caller, keyed by
// its stable id rather than a display name.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Capability names an operation family the request layer can gate on.
type Capability string

const (
	CapViewStock   Capability = "stock:view"
	CapManageStock Capability = "stock:manage"
	CapLockStock   Capability = "stock:lock"
	CapTrade       Capability = "exchange:trade"
)

// ProfileStore resolves a caller's profile. A missing profile is
// reported as (nil, nil); the policy fails closed on it.
type ProfileStore interface {
	UserByID(ctx context.Context, id string) (*User, error)
}

// Policy resolves a caller's role and decides whether they may invoke an
// operation. The ledger and market trust their caller; the request layer
// consults the policy before invoking them.
type Policy struct {
	profiles ProfileStore
}

func NewPolicy(profiles ProfileStore) *Policy {
	return &Policy{profiles: profiles}
}

// RoleOf resolves the caller's role, failing closed with ErrUnauthorized
// when the caller is unauthenticated or has no profile.
func (p *Policy) RoleOf(ctx context.Context, userID string) (Role, error) {
	if userID == "" {
		return "", ErrUnauthorized
	}
	u, err := p.profiles.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUnauthorized
	}
	return u.Role, nil
}

func (p *Policy) IsPharmacist(ctx context.Context, userID string) bool {
	role, err := p.RoleOf(ctx, userID)
	return err == nil && role == RolePharmacist
}

func (p *Policy) IsTechnician(ctx context.Context, userID string) bool {
	role, err := p.RoleOf(ctx, userID)
	return err == nil && role == RoleTechnician
}

func (p *Policy) IsPharmacistOrTechnician(ctx context.Context, userID string) bool {
	role, err := p.RoleOf(ctx, userID)
	return err == nil && role.Valid()
}

// Authorize fails with ErrUnauthorized unless the caller's role grants
// the capability.
func (p *Policy) Authorize(ctx context.Context, userID string, cap Capability) error {
	role, err := p.RoleOf(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := ResolvePermissions(role)[cap]; !ok {
		return ErrUnauthorized
	}
	return nil
}

// ResolvePermissions maps a role to the set of capabilities it grants.
// Pure function; unknown roles get nothing.
func ResolvePermissions(role Role) map[Capability]struct{} {
	switch role {
	case RolePharmacist:
		return capSet(CapViewStock, CapManageStock, CapLockStock, CapTrade)
	case RoleTechnician:
		return capSet(CapViewStock, CapManageStock, CapLockStock)
	default:
		return map[Capability]struct{}{}
	}
}

func capSet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}
