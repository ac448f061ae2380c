// Package points owns point balance mutation and the append-only ledger
// history for a user.
package points

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loyalty/internal/loyalty/models"
	"loyalty/internal/loyalty/ports"
	"loyalty/pkg/platform/sentinel"
)

// Service applies balance changes through the storage port. Every mutating
// call performs one profile load and one profile save; history entries are
// only ever appended.
type Service struct {
	store  ports.Storage
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the timestamp source for ledger entries. Tests use this
// to make history deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store ports.Storage, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	svc := &Service{
		store: store,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// GetOrCreate returns the existing profile or creates one with zero points
// and empty history, persisting the new profile before returning.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	created, err := s.store.SaveUserProfile(ctx, &models.UserProfile{
		UserID:  userID,
		History: []models.LedgerEntry{},
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "created loyalty profile", "user_id", userID)
	}
	return created, nil
}

// Add credits amount to the user's balance under the given action label and
// returns the persisted profile. Amounts must be positive.
func (s *Service) Add(ctx context.Context, userID string, amount int64, action string) (*models.UserProfile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("add %d points: %w", amount, sentinel.ErrInvalidAmount)
	}

	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.Points += amount
	profile.History = append(profile.History, models.LedgerEntry{
		Action:       action,
		PointsChange: amount,
		Timestamp:    s.now(),
	})

	return s.store.SaveUserProfile(ctx, profile)
}

// Subtract debits amount from the user's balance. It fails with
// ErrInsufficientBalance when the balance cannot cover the amount, leaving
// the profile untouched.
func (s *Service) Subtract(ctx context.Context, userID string, amount int64, action string) (*models.UserProfile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("subtract %d points: %w", amount, sentinel.ErrInvalidAmount)
	}

	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Points < amount {
		return nil, fmt.Errorf("subtract %d points from balance %d: %w",
			amount, profile.Points, sentinel.ErrInsufficientBalance)
	}

	profile.Points -= amount
	profile.History = append(profile.History, models.LedgerEntry{
		Action:       action,
		PointsChange: -amount,
		Timestamp:    s.now(),
	})

	return s.store.SaveUserProfile(ctx, profile)
}

// Balance returns the user's current balance. Unknown users report zero and
// are not created.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	profile, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, nil
	}
	return profile.Points, nil
}
