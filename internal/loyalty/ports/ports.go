// Package ports defines shared interfaces for the loyalty module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication; implementations live under internal/loyalty/store.
package ports

import (
	"context"

	"loyalty/internal/loyalty/models"
)

// Storage is the persistence boundary the engine depends on. Profiles move
// across it as whole snapshots: implementations must persist and return the
// complete profile, never partial fields.
//
// Load-then-save is not atomic here. Concurrent mutations for the same user
// are last-writer-wins unless the implementation serializes per user.
type Storage interface {
	// GetUserProfile returns the stored profile, or nil when the user is
	// unknown. A nil profile is not an error.
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)

	// SaveUserProfile persists the full profile and returns the persisted,
	// possibly normalized, copy.
	SaveUserProfile(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error)

	// GetTiers returns the configured tier table.
	GetTiers(ctx context.Context) ([]models.Tier, error)
}

// TierSeeder is implemented by adapters that can replace the tier table at
// boot. The engine itself never writes tiers.
type TierSeeder interface {
	ReplaceTiers(ctx context.Context, tiers []models.Tier) error
}
