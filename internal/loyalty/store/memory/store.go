// Package memory provides an in-memory storage adapter. It backs unit tests
// and single-process deployments where durability is not required.
package memory

import (
	"context"
	"sync"

	"loyalty/internal/loyalty/models"
)

// Store keeps profiles and the tier table in process memory. It favors
// clarity over performance and hands out deep copies so callers never share
// state with the store.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	tiers    []models.Tier
}

func New() *Store {
	return &Store{profiles: make(map[string]*models.UserProfile)}
}

func (s *Store) GetUserProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profile, ok := s.profiles[userID]; ok {
		return profile.Clone(), nil
	}
	return nil, nil
}

func (s *Store) SaveUserProfile(_ context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile.Clone()
	return profile.Clone(), nil
}

func (s *Store) GetTiers(_ context.Context) ([]models.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Tier, len(s.tiers))
	copy(out, s.tiers)
	return out, nil
}

// ReplaceTiers swaps the tier table. Used at boot to seed configuration.
func (s *Store) ReplaceTiers(_ context.Context, tiers []models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = make([]models.Tier, len(tiers))
	copy(s.tiers, tiers)
	return nil
}
