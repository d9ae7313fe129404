package tenant

import (
	"context"

	"github.com/ignite/mailspool/internal/domain"
)

// Repository defines the data access contract for tenant profiles.
type Repository interface {
	// Profile returns the tenant's profile, or ErrNoProfile.
	Profile(ctx context.Context, tenantID string) (*domain.TenantProfile, error)

	// SaveProfile inserts or updates the profile.
	SaveProfile(ctx context.Context, profile *domain.TenantProfile) error

	// Summary returns the tenant's dashboard counters.
	Summary(ctx context.Context, tenantID string) (*domain.TenantSummary, error)
}
