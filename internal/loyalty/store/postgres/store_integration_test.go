//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"loyalty/internal/loyalty/models"
	"loyalty/internal/loyalty/store/postgres"
	"loyalty/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pg.DB.ExecContext(ctx, `TRUNCATE loyalty_ledger, loyalty_profiles, loyalty_tiers`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestProfileRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	profile, err := s.store.GetUserProfile(ctx, "u1")
	s.Require().NoError(err)
	s.Nil(profile)

	saved, err := s.store.SaveUserProfile(ctx, &models.UserProfile{
		UserID: "u1",
		Points: 175,
		TierID: "bronze",
		History: []models.LedgerEntry{
			{Action: "welcome_bonus", PointsChange: 100, Timestamp: now},
			{Action: "purchase", PointsChange: 75, Timestamp: now.Add(time.Minute)},
		},
	})
	s.Require().NoError(err)
	s.EqualValues(175, saved.Points)

	loaded, err := s.store.GetUserProfile(ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotNil(loaded)
	s.EqualValues(175, loaded.Points)
	s.Equal("bronze", loaded.TierID)
	s.Require().Len(loaded.History, 2)
	s.Equal("welcome_bonus", loaded.History[0].Action)
	s.EqualValues(75, loaded.History[1].PointsChange)
	s.WithinDuration(now, loaded.History[0].Timestamp, time.Millisecond)
}

func (s *PostgresStoreSuite) TestSaveIsUpsert() {
	ctx := context.Background()

	_, err := s.store.SaveUserProfile(ctx, &models.UserProfile{UserID: "u1", Points: 10})
	s.Require().NoError(err)

	_, err = s.store.SaveUserProfile(ctx, &models.UserProfile{
		UserID: "u1",
		Points: 30,
		History: []models.LedgerEntry{
			{Action: "a", PointsChange: 10, Timestamp: time.Now().UTC()},
			{Action: "b", PointsChange: 20, Timestamp: time.Now().UTC()},
		},
	})
	s.Require().NoError(err)

	loaded, err := s.store.GetUserProfile(ctx, "u1")
	s.Require().NoError(err)
	s.EqualValues(30, loaded.Points)
	s.Len(loaded.History, 2)
}

func (s *PostgresStoreSuite) TestEmptyTierIDReadsBackEmpty() {
	ctx := context.Background()

	_, err := s.store.SaveUserProfile(ctx, &models.UserProfile{UserID: "u1", Points: 5})
	s.Require().NoError(err)

	loaded, err := s.store.GetUserProfile(ctx, "u1")
	s.Require().NoError(err)
	s.Empty(loaded.TierID)
}

func (s *PostgresStoreSuite) TestTiers() {
	ctx := context.Background()

	tiers, err := s.store.GetTiers(ctx)
	s.Require().NoError(err)
	s.Empty(tiers)

	s.Require().NoError(s.store.ReplaceTiers(ctx, []models.Tier{
		{ID: "bronze", Name: "Bronze", MinPoints: 0, Benefits: []string{"basic_support"}},
		{ID: "silver", Name: "Silver", MinPoints: 500, Benefits: []string{"basic_support", "free_shipping"}},
	}))

	tiers, err = s.store.GetTiers(ctx)
	s.Require().NoError(err)
	s.Require().Len(tiers, 2)
	// GetTiers returns descending by threshold.
	s.Equal("silver", tiers[0].ID)
	s.True(tiers[0].HasBenefit("free_shipping"))
	s.Equal("bronze", tiers[1].ID)

	s.Require().NoError(s.store.ReplaceTiers(ctx, []models.Tier{
		{ID: "gold", Name: "Gold", MinPoints: 2000},
	}))
	tiers, err = s.store.GetTiers(ctx)
	s.Require().NoError(err)
	s.Require().Len(tiers, 1)
	s.Equal("gold", tiers[0].ID)
}
