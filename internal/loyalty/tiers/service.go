// Package tiers resolves a user's tier from their point balance and the
// configured tier table, detecting transitions.
package tiers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"loyalty/internal/loyalty/models"
	"loyalty/internal/loyalty/ports"
)

// Result reports a single tier evaluation. Previous and Current are nil when
// the user held or qualifies for no tier.
type Result struct {
	Previous *models.Tier
	Current  *models.Tier
	Changed  bool
}

type Service struct {
	store  ports.Storage
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store ports.Storage, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// EvaluateAndAssign recomputes the user's tier from their current balance.
// The user qualifies for the highest-threshold tier whose MinPoints the
// balance meets; equal thresholds resolve by table order. When the resolved
// tier differs from the stored one the profile is persisted with the new
// assignment. Unknown users get a zero Result and no evaluation.
func (s *Service) EvaluateAndAssign(ctx context.Context, userID string) (Result, error) {
	var (
		profile *models.UserProfile
		all     []models.Tier
	)

	// Profile and tier table come from independent reads; fetch them with
	// shared cancellation.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.store.GetUserProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.store.GetTiers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if profile == nil {
		return Result{}, nil
	}

	sorted := make([]models.Tier, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints > sorted[j].MinPoints
	})

	var previous, current *models.Tier
	for i := range sorted {
		if sorted[i].ID == profile.TierID {
			previous = &sorted[i]
			break
		}
	}
	for i := range sorted {
		if profile.Points >= sorted[i].MinPoints {
			current = &sorted[i]
			break
		}
	}

	changed := tierID(previous) != tierID(current)
	if changed {
		profile.TierID = tierID(current)
		if _, err := s.store.SaveUserProfile(ctx, profile); err != nil {
			return Result{}, err
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "tier changed",
				"user_id", userID,
				"from", tierID(previous),
				"to", tierID(current),
				"points", profile.Points,
			)
		}
	}

	return Result{Previous: previous, Current: current, Changed: changed}, nil
}

func tierID(t *models.Tier) string {
	if t == nil {
		return ""
	}
	return t.ID
}
