// Package engine ties the rule table, points ledger, tier resolver, and
// notification bus into the event processing pipeline.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"loyalty/internal/loyalty/bus"
	"loyalty/internal/loyalty/metrics"
	"loyalty/internal/loyalty/points"
	"loyalty/internal/loyalty/ports"
	"loyalty/internal/loyalty/rules"
	"loyalty/internal/loyalty/tiers"
)

// Engine processes business events: it evaluates every registered rule for
// the event label in registration order, credits awards through the ledger,
// and re-evaluates tier membership afterward. Processing is a sequential
// pipeline; each stage completes before the next starts, and notifications
// fire only after the corresponding persistence succeeded.
//
// The engine takes no locks. Concurrent triggers for the same user are
// last-writer-wins at the storage boundary unless the storage implementation
// serializes per user.
type Engine struct {
	store   ports.Storage
	rules   *rules.Set
	points  *points.Service
	tiers   *tiers.Service
	bus     *bus.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New wires an engine over the given storage and rule table. The rule table
// is fixed for the engine's lifetime.
func New(store ports.Storage, set *rules.Set, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if set == nil {
		set = rules.NewSet()
	}

	eng := &Engine{
		store: store,
		rules: set,
		bus:   bus.New(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	var err error
	popts := []points.Option{}
	topts := []tiers.Option{}
	if eng.logger != nil {
		popts = append(popts, points.WithLogger(eng.logger))
		topts = append(topts, tiers.WithLogger(eng.logger))
	}
	if eng.points, err = points.New(store, popts...); err != nil {
		return nil, err
	}
	if eng.tiers, err = tiers.New(store, topts...); err != nil {
		return nil, err
	}

	return eng, nil
}

// Trigger submits a business event for rule evaluation.
//
// Every rule registered for the event label runs in registration order; a
// failing condition, action, or ledger credit aborts the remaining rules and
// the tier re-evaluation (fail-fast, no per-rule isolation). Events with no
// matching rules still re-evaluate the tier, so embedders can force
// re-evaluation after manual ledger operations by triggering any label.
//
// points_updated notifications are emitted eagerly per successful credit and
// are not rolled back if a later stage fails: on error they are at-least-once
// with respect to the final persisted state.
func (e *Engine) Trigger(ctx context.Context, event, userID string, payload any) error {
	if e.metrics != nil {
		e.metrics.EventsProcessed.Inc()
	}

	for _, rule := range e.rules.ForEvent(event) {
		ok, err := rule.Condition(ctx, payload, userID)
		if err != nil {
			return fmt.Errorf("rule condition for %q: %w", event, err)
		}
		if !ok {
			continue
		}

		award, err := rule.Action(ctx, payload, userID)
		if err != nil {
			return fmt.Errorf("rule action for %q: %w", event, err)
		}
		action := award.Action
		if action == "" {
			action = event
		}

		profile, err := e.points.Add(ctx, userID, award.Points, action)
		if err != nil {
			return fmt.Errorf("credit %d points for %q: %w", award.Points, event, err)
		}

		if e.metrics != nil {
			e.metrics.RulesFired.Inc()
			e.metrics.PointsAwarded.Add(float64(award.Points))
		}
		if e.logger != nil {
			e.logger.InfoContext(ctx, "points awarded",
				"user_id", userID,
				"event", event,
				"action", action,
				"points", award.Points,
				"balance", profile.Points,
			)
		}

		e.bus.EmitPointsUpdated(bus.PointsUpdated{
			UserID:     userID,
			Points:     award.Points,
			Action:     action,
			NewBalance: profile.Points,
		})
	}

	return e.evaluateTier(ctx, userID)
}

func (e *Engine) evaluateTier(ctx context.Context, userID string) error {
	res, err := e.tiers.EvaluateAndAssign(ctx, userID)
	if err != nil {
		return fmt.Errorf("evaluate tier for %s: %w", userID, err)
	}
	if !res.Changed {
		return nil
	}

	if e.metrics != nil {
		e.metrics.TierChanges.Inc()
	}
	e.bus.EmitTierChanged(bus.TierChanged{
		UserID: userID,
		From:   res.Previous,
		To:     res.Current,
	})
	return nil
}

// OnPointsUpdated subscribes to points_updated notifications.
func (e *Engine) OnPointsUpdated(handler func(bus.PointsUpdated)) bus.Subscription {
	return e.bus.OnPointsUpdated(handler)
}

// OnTierChanged subscribes to tier_changed notifications.
func (e *Engine) OnTierChanged(handler func(bus.TierChanged)) bus.Subscription {
	return e.bus.OnTierChanged(handler)
}

// Off removes a subscription of either kind.
func (e *Engine) Off(sub bus.Subscription) {
	e.bus.Off(sub)
}

// Points exposes the ledger for manual operations. Manual calls bypass rule
// matching and do not re-evaluate tiers; trigger any event afterward to force
// re-evaluation.
func (e *Engine) Points() *points.Service {
	return e.points
}

// Tiers exposes the tier resolver for direct evaluation.
func (e *Engine) Tiers() *tiers.Service {
	return e.tiers
}
