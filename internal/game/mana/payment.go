// Package mana pays generic costs by tapping lands on a battlefield.
package mana

import (
	"fmt"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

// PaymentPlan lists the battlefield positions of the lands to tap.
type PaymentPlan struct {
	Cost  int
	Lands []int
}

// PaymentResult represents the result of a payment attempt.
type PaymentResult struct {
	Success bool
	Plan    *PaymentPlan
	Reason  string
}

// UntappedLands returns the positions of Land-tagged, untapped cards in
// battlefield order.
func UntappedLands(battlefield []*card.Card) []int {
	positions := make([]int, 0, len(battlefield))
	for i, c := range battlefield {
		if c == nil || !c.IsType(card.TypeLand) || tappable.IsTapped(c) {
			continue
		}
		positions = append(positions, i)
	}
	return positions
}

// Available returns the amount of mana the battlefield can produce right now.
func Available(battlefield []*card.Card) int {
	return len(UntappedLands(battlefield))
}

// CalculatePayment picks the first cost untapped lands, in positional order.
// Nothing is tapped.
func CalculatePayment(cost int, battlefield []*card.Card) *PaymentResult {
	if cost <= 0 {
		return &PaymentResult{Success: true, Plan: &PaymentPlan{}}
	}

	lands := UntappedLands(battlefield)
	if len(lands) < cost {
		return &PaymentResult{
			Success: false,
			Reason:  fmt.Sprintf("insufficient mana (need %d, have %d)", cost, len(lands)),
		}
	}

	return &PaymentResult{
		Success: true,
		Plan:    &PaymentPlan{Cost: cost, Lands: lands[:cost]},
	}
}

// ExecutePayment taps the lands named by the plan. It fails without tapping
// anything if a planned land is gone or already tapped.
func ExecutePayment(plan *PaymentPlan, battlefield []*card.Card) bool {
	if plan == nil {
		return true
	}
	for _, pos := range plan.Lands {
		if pos < 0 || pos >= len(battlefield) || tappable.IsTapped(battlefield[pos]) {
			return false
		}
	}
	for _, pos := range plan.Lands {
		tappable.SetTapped(battlefield[pos], true)
	}
	return true
}

// CanPay reports whether cost untapped lands are available.
func CanPay(cost int, battlefield []*card.Card) bool {
	return CalculatePayment(cost, battlefield).Success
}

// Pay taps exactly cost untapped lands in first-available order. It is
// all-or-nothing.
func Pay(cost int, battlefield []*card.Card) bool {
	result := CalculatePayment(cost, battlefield)
	if !result.Success {
		return false
	}
	return ExecutePayment(result.Plan, battlefield)
}
