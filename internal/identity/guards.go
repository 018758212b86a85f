package identity

import (
	"context"
	"fmt"

	"github.com/garnizeh/qaforum/pkg/models"
)

func guardSelfDelete(target, actingAdmin string) error {
	if target == actingAdmin {
		return ErrSelfDelete
	}
	return nil
}

func guardSelfDemote(target, role, actingAdmin string) error {
	if target == actingAdmin && role == models.RoleAdmin {
		return ErrSelfDemote
	}
	return nil
}

// guardLastAdmin refuses to take the admin role away from u when u is the
// only admin left. Callers hold p.mu.
func (p *Provider) guardLastAdmin(ctx context.Context, u *models.User) error {
	if !u.HasRole(models.RoleAdmin) {
		return nil
	}
	n, err := p.roles.CountUsersWithRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}
