// Package redis persists loyalty profiles as JSON snapshots in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"loyalty/internal/loyalty/models"
)

const (
	profileKeyPrefix = "loyalty:profile:"
	tiersKey         = "loyalty:tiers"
)

// Store implements the storage port on a Redis client. Each profile lives
// under its own key as one JSON document, matching the whole-snapshot
// contract; the tier table is one shared key seeded at boot.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	raw, err := s.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return &profile, nil
}

func (s *Store) SaveUserProfile(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", profile.UserID, err)
	}
	if err := s.client.Set(ctx, profileKeyPrefix+profile.UserID, raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("save profile %s: %w", profile.UserID, err)
	}
	return profile.Clone(), nil
}

func (s *Store) GetTiers(ctx context.Context) ([]models.Tier, error) {
	raw, err := s.client.Get(ctx, tiersKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}

	var tiers []models.Tier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("decode tiers: %w", err)
	}
	return tiers, nil
}

// ReplaceTiers swaps the tier table. Used at boot to seed configuration.
func (s *Store) ReplaceTiers(ctx context.Context, tiers []models.Tier) error {
	raw, err := json.Marshal(tiers)
	if err != nil {
		return fmt.Errorf("encode tiers: %w", err)
	}
	if err := s.client.Set(ctx, tiersKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save tiers: %w", err)
	}
	return nil
}
