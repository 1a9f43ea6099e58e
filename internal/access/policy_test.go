package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	users map[string]*User
	err   error
}

func (f *fakeProfiles) UserByID(ctx context.Context, id string) (*User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func newTestPolicy() *Policy {
	return NewPolicy(&fakeProfiles{users: map[string]*User{
		"u-pharm": {ID: "u-pharm", Username: "alice", Role: RolePharmacist, CreatedAt: time.Now()},
		"u-tech":  {ID: "u-tech", Username: "bob", Role: RoleTechnician, CreatedAt: time.Now()},
		"u-other": {ID: "u-other", Username: "eve", Role: "intern", CreatedAt: time.Now()},
	}})
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RolePharmacist.Valid())
	assert.True(t, RoleTechnician.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}

func TestPolicy_RoleOf(t *testing.T) {
	p := newTestPolicy()
	ctx := context.Background()

	role, err := p.RoleOf(ctx, "u-pharm")
	require.NoError(t, err)
	assert.Equal(t, RolePharmacist, role)

	_, err = p.RoleOf(ctx, "unknown")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = p.RoleOf(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPolicy_RoleOf_StoreError(t *testing.T) {
	storeErr := errors.New("store down")
	p := NewPolicy(&fakeProfiles{err: storeErr})

	_, err := p.RoleOf(context.Background(), "u-pharm")
	assert.ErrorIs(t, err, storeErr)
}

func TestPolicy_RolePredicates(t *testing.T) {
	p := newTestPolicy()
	ctx := context.Background()

	assert.True(t, p.IsPharmacist(ctx, "u-pharm"))
	assert.False(t, p.IsPharmacist(ctx, "u-tech"))

	assert.True(t, p.IsTechnician(ctx, "u-tech"))
	assert.False(t, p.IsTechnician(ctx, "u-pharm"))

	assert.True(t, p.IsPharmacistOrTechnician(ctx, "u-pharm"))
	assert.True(t, p.IsPharmacistOrTechnician(ctx, "u-tech"))
	assert.False(t, p.IsPharmacistOrTechnician(ctx, "u-other"))
	assert.False(t, p.IsPharmacistOrTechnician(ctx, "unknown"))
}

func TestPolicy_Authorize(t *testing.T) {
	p := newTestPolicy()
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		cap     Capability
		wantErr bool
	}{
		{"pharmacist views", "u-pharm", CapViewStock, false},
		{"pharmacist manages", "u-pharm", CapManageStock, false},
		{"pharmacist locks", "u-pharm", CapLockStock, false},
		{"pharmacist trades", "u-pharm", CapTrade, false},
		{"technician views", "u-tech", CapViewStock, false},
		{"technician manages", "u-tech", CapManageStock, false},
		{"technician locks", "u-tech", CapLockStock, false},
		{"technician cannot trade", "u-tech", CapTrade, true},
		{"unknown role gets nothing", "u-other", CapViewStock, true},
		{"missing user", "unknown", CapViewStock, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Authorize(ctx, tt.userID, tt.cap)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolvePermissions(t *testing.T) {
	pharm := ResolvePermissions(RolePharmacist)
	assert.Len(t, pharm, 4)
	assert.Contains(t, pharm, CapTrade)

	tech := ResolvePermissions(RoleTechnician)
	assert.Len(t, tech, 3)
	assert.NotContains(t, tech, CapTrade)

	assert.Empty(t, ResolvePermissions(Role("admin")))
	assert.Empty(t, ResolvePermissions(Role("")))
}
