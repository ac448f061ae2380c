package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"loyalty/internal/loyalty/bus"
	"loyalty/internal/loyalty/models"
	"loyalty/internal/loyalty/ports"
	"loyalty/internal/loyalty/rules"
	"loyalty/internal/loyalty/store/memory"
	"loyalty/pkg/platform/sentinel"
)

func amountFrom(payload any) float64 {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0
	}
	amount, _ := m["amount"].(float64)
	return amount
}

// purchaseRule awards floor(amount) points when amount > 50.
func purchaseRule() rules.Rule {
	return rules.On("purchase",
		func(_ context.Context, payload any, _ string) (rules.Award, error) {
			return rules.Award{Points: int64(math.Floor(amountFrom(payload)))}, nil
		},
		rules.When(func(_ context.Context, payload any, _ string) (bool, error) {
			return amountFrom(payload) > 50, nil
		}),
	)
}

type EngineSuite struct {
	suite.Suite
	store *memory.Store
	ctx   context.Context
}

func (s *EngineSuite) SetupTest() {
	s.store = memory.New()
	s.ctx = context.Background()
	s.Require().NoError(s.store.ReplaceTiers(s.ctx, []models.Tier{
		{ID: "bronze", Name: "Bronze", MinPoints: 0},
		{ID: "silver", Name: "Silver", MinPoints: 500},
		{ID: "gold", Name: "Gold", MinPoints: 2000},
	}))
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) newEngine(set *rules.Set) *Engine {
	eng, err := New(s.store, set)
	s.Require().NoError(err)
	return eng
}

func (s *EngineSuite) TestPurchaseFlow() {
	eng := s.newEngine(rules.NewSet(purchaseRule()))

	var pointsEvents []bus.PointsUpdated
	var tierEvents []bus.TierChanged
	eng.OnPointsUpdated(func(ev bus.PointsUpdated) { pointsEvents = append(pointsEvents, ev) })
	eng.OnTierChanged(func(ev bus.TierChanged) { tierEvents = append(tierEvents, ev) })

	s.Run("first purchase credits the floored amount", func() {
		err := eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 75.5})
		s.Require().NoError(err)

		balance, err := eng.Points().Balance(s.ctx, "user-1")
		s.Require().NoError(err)
		s.EqualValues(75, balance)

		s.Require().Len(pointsEvents, 1)
		s.Equal(bus.PointsUpdated{
			UserID:     "user-1",
			Points:     75,
			Action:     "purchase",
			NewBalance: 75,
		}, pointsEvents[0])

		// 75 points lands on bronze; the initial assignment is a change.
		s.Require().Len(tierEvents, 1)
		s.Nil(tierEvents[0].From)
		s.Equal("bronze", tierEvents[0].To.ID)
	})

	s.Run("second purchase accumulates and promotes", func() {
		err := eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 600.0})
		s.Require().NoError(err)

		balance, err := eng.Points().Balance(s.ctx, "user-1")
		s.Require().NoError(err)
		s.EqualValues(675, balance)

		s.Require().Len(pointsEvents, 2)
		s.EqualValues(600, pointsEvents[1].Points)
		s.EqualValues(675, pointsEvents[1].NewBalance)

		s.Require().Len(tierEvents, 2)
		s.Equal("bronze", tierEvents[1].From.ID)
		s.Equal("silver", tierEvents[1].To.ID)

		stored, err := s.store.GetUserProfile(s.ctx, "user-1")
		s.Require().NoError(err)
		s.Equal("silver", stored.TierID)
	})

	s.Run("purchase below the threshold fires nothing", func() {
		err := eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 20.0})
		s.Require().NoError(err)

		s.Len(pointsEvents, 2)
		s.Len(tierEvents, 2)
	})
}

func (s *EngineSuite) TestTierChangeRequiresThresholdCross() {
	eng := s.newEngine(rules.NewSet(purchaseRule()))

	var tierEvents []bus.TierChanged
	eng.OnTierChanged(func(ev bus.TierChanged) { tierEvents = append(tierEvents, ev) })

	s.Require().NoError(eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 60.0}))
	s.Require().Len(tierEvents, 1)

	// More points, same band: no tier_changed.
	s.Require().NoError(eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 60.0}))
	s.Len(tierEvents, 1)
}

func (s *EngineSuite) TestUnknownEventStillEvaluatesTier() {
	eng := s.newEngine(rules.NewSet())

	var tierEvents []bus.TierChanged
	eng.OnTierChanged(func(ev bus.TierChanged) { tierEvents = append(tierEvents, ev) })

	s.Run("no profile, no evaluation", func() {
		s.Require().NoError(eng.Trigger(s.ctx, "nonsense", "ghost", nil))
		s.Empty(tierEvents)

		profile, err := s.store.GetUserProfile(s.ctx, "ghost")
		s.Require().NoError(err)
		s.Nil(profile)
	})

	s.Run("manual credit then a no-op event forces re-evaluation", func() {
		_, err := eng.Points().Add(s.ctx, "user-1", 600, "manual_credit")
		s.Require().NoError(err)
		s.Empty(tierEvents)

		s.Require().NoError(eng.Trigger(s.ctx, "recheck", "user-1", nil))
		s.Require().Len(tierEvents, 1)
		s.Equal("silver", tierEvents[0].To.ID)
	})

	s.Run("repeat trigger is an idempotent no-op", func() {
		s.Require().NoError(eng.Trigger(s.ctx, "recheck", "user-1", nil))
		s.Len(tierEvents, 1)
	})
}

func (s *EngineSuite) TestMultipleRulesSameEvent() {
	calls := []string{}
	set := rules.NewSet(
		rules.On("purchase", func(context.Context, any, string) (rules.Award, error) {
			calls = append(calls, "base")
			return rules.Award{Points: 10}, nil
		}),
		rules.On("purchase", func(context.Context, any, string) (rules.Award, error) {
			calls = append(calls, "bonus")
			return rules.Award{Points: 5, Action: "purchase_bonus"}, nil
		}),
	)
	eng := s.newEngine(set)

	var pointsEvents []bus.PointsUpdated
	eng.OnPointsUpdated(func(ev bus.PointsUpdated) { pointsEvents = append(pointsEvents, ev) })

	s.Require().NoError(eng.Trigger(s.ctx, "purchase", "user-1", nil))

	s.Equal([]string{"base", "bonus"}, calls)

	s.Require().Len(pointsEvents, 2)
	s.Equal("purchase", pointsEvents[0].Action)
	s.EqualValues(10, pointsEvents[0].NewBalance)
	s.Equal("purchase_bonus", pointsEvents[1].Action)
	s.EqualValues(15, pointsEvents[1].NewBalance)

	profile, err := s.store.GetUserProfile(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(profile.History, 2)
	s.Equal("purchase", profile.History[0].Action)
	s.Equal("purchase_bonus", profile.History[1].Action)
}

func (s *EngineSuite) TestFailFastAbortsRemainingRules() {
	secondRan := false
	set := rules.NewSet(
		rules.On("purchase", func(context.Context, any, string) (rules.Award, error) {
			// Non-positive award is a rule-author bug surfaced by the ledger.
			return rules.Award{Points: 0}, nil
		}),
		rules.On("purchase", func(context.Context, any, string) (rules.Award, error) {
			secondRan = true
			return rules.Award{Points: 5}, nil
		}),
	)
	eng := s.newEngine(set)

	var tierEvents []bus.TierChanged
	eng.OnTierChanged(func(ev bus.TierChanged) { tierEvents = append(tierEvents, ev) })

	err := eng.Trigger(s.ctx, "purchase", "user-1", nil)
	s.Require().ErrorIs(err, sentinel.ErrInvalidAmount)
	s.False(secondRan)
	// The error propagates before tier re-evaluation.
	s.Empty(tierEvents)
}

func (s *EngineSuite) TestConditionErrorPropagates() {
	condErr := errors.New("profile lookup failed")
	set := rules.NewSet(
		rules.On("purchase",
			func(context.Context, any, string) (rules.Award, error) {
				return rules.Award{Points: 5}, nil
			},
			rules.When(func(context.Context, any, string) (bool, error) {
				return false, condErr
			}),
		),
	)
	eng := s.newEngine(set)

	err := eng.Trigger(s.ctx, "purchase", "user-1", nil)
	s.Require().ErrorIs(err, condErr)

	balance, berr := eng.Points().Balance(s.ctx, "user-1")
	s.Require().NoError(berr)
	s.Zero(balance)
}

func (s *EngineSuite) TestActionLabelDefaultsToEventName() {
	set := rules.NewSet(
		rules.On("review_posted", func(context.Context, any, string) (rules.Award, error) {
			return rules.Award{Points: 25}, nil
		}),
	)
	eng := s.newEngine(set)

	var got bus.PointsUpdated
	eng.OnPointsUpdated(func(ev bus.PointsUpdated) { got = ev })

	s.Require().NoError(eng.Trigger(s.ctx, "review_posted", "user-1", nil))
	s.Equal("review_posted", got.Action)

	profile, err := s.store.GetUserProfile(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("review_posted", profile.History[0].Action)
}

func (s *EngineSuite) TestHandlersObservePersistedState() {
	eng := s.newEngine(rules.NewSet(purchaseRule()))

	var storedAtEmit int64
	eng.OnPointsUpdated(func(ev bus.PointsUpdated) {
		profile, err := s.store.GetUserProfile(s.ctx, ev.UserID)
		s.Require().NoError(err)
		s.Require().NotNil(profile)
		storedAtEmit = profile.Points
	})

	s.Require().NoError(eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 80.0}))
	s.EqualValues(80, storedAtEmit)
}

func (s *EngineSuite) TestUnsubscribe() {
	eng := s.newEngine(rules.NewSet(purchaseRule()))

	calls := 0
	sub := eng.OnPointsUpdated(func(bus.PointsUpdated) { calls++ })

	s.Require().NoError(eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 60.0}))
	eng.Off(sub)
	s.Require().NoError(eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 60.0}))

	s.Equal(1, calls)
}

// failingStorage wraps a storage port and fails saves after a set number of
// successes.
type failingStorage struct {
	ports.Storage
	savesLeft int
	err       error
}

func (f *failingStorage) SaveUserProfile(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error) {
	if f.savesLeft <= 0 {
		return nil, f.err
	}
	f.savesLeft--
	return f.Storage.SaveUserProfile(ctx, p)
}

func (s *EngineSuite) TestStorageFailurePropagatesUnchanged() {
	storeErr := errors.New("connection reset")
	wrapped := &failingStorage{Storage: s.store, savesLeft: 0, err: storeErr}

	eng, err := New(wrapped, rules.NewSet(purchaseRule()))
	s.Require().NoError(err)

	err = eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 60.0})
	s.Require().ErrorIs(err, storeErr)
}

func (s *EngineSuite) TestEmittedEventsSurviveLaterFailure() {
	storeErr := errors.New("connection reset")
	// Two saves succeed (create + credit); the tier assignment save fails.
	wrapped := &failingStorage{Storage: s.store, savesLeft: 2, err: storeErr}

	eng, err := New(wrapped, rules.NewSet(purchaseRule()))
	s.Require().NoError(err)

	var pointsEvents []bus.PointsUpdated
	eng.OnPointsUpdated(func(ev bus.PointsUpdated) { pointsEvents = append(pointsEvents, ev) })

	err = eng.Trigger(s.ctx, "purchase", "user-1", map[string]any{"amount": 60.0})
	s.Require().ErrorIs(err, storeErr)

	// The points_updated emission is not rolled back: at-least-once.
	s.Len(pointsEvents, 1)
}
