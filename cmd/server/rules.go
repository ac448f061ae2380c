package main

import (
	"context"
	"math"

	"loyalty/internal/loyalty/models"
	"loyalty/internal/loyalty/rules"
)

// defaultRules is the rule table this deployment runs with. Rules for the
// same event evaluate in the order listed here.
func defaultRules() *rules.Set {
	return rules.NewSet(
		rules.On("signup", func(context.Context, any, string) (rules.Award, error) {
			return rules.Award{Points: 100, Action: "welcome_bonus"}, nil
		}),

		// Purchases over 50 earn one point per unit spent, rounded down.
		rules.On("purchase", func(_ context.Context, payload any, _ string) (rules.Award, error) {
			return rules.Award{Points: int64(math.Floor(amountFrom(payload)))}, nil
		}, rules.When(func(_ context.Context, payload any, _ string) (bool, error) {
			return amountFrom(payload) > 50, nil
		})),

		// Big-ticket purchases earn a flat bonus on top of the base award.
		rules.On("purchase", func(context.Context, any, string) (rules.Award, error) {
			return rules.Award{Points: 100, Action: "big_ticket_bonus"}, nil
		}, rules.When(func(_ context.Context, payload any, _ string) (bool, error) {
			return amountFrom(payload) >= 500, nil
		})),

		rules.On("review_posted", func(context.Context, any, string) (rules.Award, error) {
			return rules.Award{Points: 25}, nil
		}),
	)
}

// amountFrom pulls the "amount" field out of a JSON-decoded payload. Missing
// or non-numeric amounts read as zero, which fails the spend conditions.
func amountFrom(payload any) float64 {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0
	}
	amount, ok := m["amount"].(float64)
	if !ok {
		return 0
	}
	return amount
}

func tierName(t *models.Tier) string {
	if t == nil {
		return "none"
	}
	return t.Name
}
