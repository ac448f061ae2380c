// Package models holds the loyalty domain types shared by services, stores,
// and transports. Types here are plain data; behavior lives in the services.
package models

import "time"

// LedgerEntry records one point balance change. Entries are append-only and
// never mutated or removed once written.
type LedgerEntry struct {
	Action       string    `json:"action"`
	PointsChange int64     `json:"points_change"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserProfile is the per-user loyalty state. The storage layer owns it; the
// engine reads and writes whole snapshots, never partial fields.
//
// Points is always the sum of all PointsChange values in History and is never
// negative. TierID is empty until a tier assignment happens.
type UserProfile struct {
	UserID  string        `json:"user_id"`
	Points  int64         `json:"points"`
	TierID  string        `json:"tier_id,omitempty"`
	History []LedgerEntry `json:"history"`
}

// Clone returns a deep copy so stores can hand out snapshots without sharing
// the history slice with callers.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.History = make([]LedgerEntry, len(p.History))
	copy(cp.History, p.History)
	return &cp
}

// Tier is a named threshold band. Tiers are immutable and externally supplied;
// a balance qualifies for the highest tier whose MinPoints it meets.
//
// Tier IDs must be unique. Thresholds should be unique as well: two tiers with
// the same MinPoints resolve by table order, which makes assignment depend on
// configuration ordering rather than on points alone.
type Tier struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	MinPoints int64    `json:"min_points" yaml:"min_points"`
	Benefits  []string `json:"benefits,omitempty" yaml:"benefits,omitempty"`
}

// HasBenefit reports whether the tier grants the given capability label.
func (t *Tier) HasBenefit(label string) bool {
	if t == nil {
		return false
	}
	for _, b := range t.Benefits {
		if b == label {
			return true
		}
	}
	return false
}
