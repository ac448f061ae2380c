// Package bus is the in-process notification channel for loyalty state
// changes. Dispatch is synchronous: handlers run in registration order within
// the call that emitted, after the corresponding persistence completed.
package bus

import (
	"sync"

	"loyalty/internal/loyalty/models"
)

// PointsUpdated is emitted after a rule-driven ledger credit is persisted.
type PointsUpdated struct {
	UserID     string
	Points     int64
	Action     string
	NewBalance int64
}

// TierChanged is emitted after a tier transition is persisted. From and To
// are nil when the user held or qualifies for no tier.
type TierChanged struct {
	UserID string
	From   *models.Tier
	To     *models.Tier
}

// Subscription identifies a registered handler so it can be removed. The
// zero value is never issued.
type Subscription uint64

type entry[T any] struct {
	id      Subscription
	handler func(T)
}

// Bus is a typed observer registry. There is no replay and no persistence;
// an event reaches exactly the handlers registered at emission time.
type Bus struct {
	mu     sync.RWMutex
	nextID Subscription
	points []entry[PointsUpdated]
	tiers  []entry[TierChanged]
}

func New() *Bus {
	return &Bus{}
}

// OnPointsUpdated registers a handler for points_updated notifications.
func (b *Bus) OnPointsUpdated(handler func(PointsUpdated)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.points = append(b.points, entry[PointsUpdated]{id: b.nextID, handler: handler})
	return b.nextID
}

// OnTierChanged registers a handler for tier_changed notifications.
func (b *Bus) OnTierChanged(handler func(TierChanged)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.tiers = append(b.tiers, entry[TierChanged]{id: b.nextID, handler: handler})
	return b.nextID
}

// Off removes a handler by its subscription. Unknown subscriptions are a
// no-op.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = remove(b.points, sub)
	b.tiers = remove(b.tiers, sub)
}

// EmitPointsUpdated dispatches synchronously to current subscribers.
func (b *Bus) EmitPointsUpdated(ev PointsUpdated) {
	for _, e := range snapshot(&b.mu, &b.points) {
		e.handler(ev)
	}
}

// EmitTierChanged dispatches synchronously to current subscribers.
func (b *Bus) EmitTierChanged(ev TierChanged) {
	for _, e := range snapshot(&b.mu, &b.tiers) {
		e.handler(ev)
	}
}

func remove[T any](entries []entry[T], sub Subscription) []entry[T] {
	for i, e := range entries {
		if e.id == sub {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// snapshot copies the subscriber list under the read lock so handlers can
// subscribe or unsubscribe while a dispatch is in flight.
func snapshot[T any](mu *sync.RWMutex, entries *[]entry[T]) []entry[T] {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]entry[T], len(*entries))
	copy(out, *entries)
	return out
}
