// Package rules defines the rule table the engine evaluates: named business
// events mapped to ordered lists of (condition, action) pairs.
package rules

import "context"

// Condition decides whether a rule fires for an event. Conditions may do
// read-only I/O but must not mutate shared state beyond what they return.
type Condition func(ctx context.Context, payload any, userID string) (bool, error)

// Award is what an action produces: a positive point amount and an optional
// ledger label. An empty Action falls back to the event label.
type Award struct {
	Points int64
	Action string
}

// ActionFunc computes the award for a fired rule. Like conditions, actions
// may suspend on I/O but should be pure with respect to shared state.
type ActionFunc func(ctx context.Context, payload any, userID string) (Award, error)

// Rule binds an event label to a condition and an action. Rules are
// registered once at construction and immutable thereafter.
type Rule struct {
	Event     string
	Condition Condition
	Action    ActionFunc
}

// Always is the explicit unconditional condition. The builder installs it
// when no condition is given so rules never carry a nil predicate.
func Always(context.Context, any, string) (bool, error) {
	return true, nil
}

// Option configures a rule at registration time.
type Option func(*Rule)

// When attaches a condition to a rule.
func When(cond Condition) Option {
	return func(r *Rule) {
		r.Condition = cond
	}
}

// On builds a rule for the given event label. Without a When option the rule
// is unconditional.
func On(event string, action ActionFunc, opts ...Option) Rule {
	r := Rule{
		Event:     event,
		Condition: Always,
		Action:    action,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Set is an immutable rule table keyed by event label. Registration order is
// preserved per label: every matching rule is evaluated in the order it was
// registered, independently of the others.
type Set struct {
	byEvent map[string][]Rule
}

// NewSet registers the given rules. Rules sharing an event label keep their
// relative order.
func NewSet(rules ...Rule) *Set {
	byEvent := make(map[string][]Rule, len(rules))
	for _, r := range rules {
		if r.Condition == nil {
			r.Condition = Always
		}
		byEvent[r.Event] = append(byEvent[r.Event], r)
	}
	return &Set{byEvent: byEvent}
}

// ForEvent returns the registered rules for an event label in registration
// order, or nil when none match.
func (s *Set) ForEvent(event string) []Rule {
	return s.byEvent[event]
}

// Len reports the total number of registered rules.
func (s *Set) Len() int {
	n := 0
	for _, rs := range s.byEvent {
		n += len(rs)
	}
	return n
}
