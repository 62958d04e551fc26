package mana

import (
	"testing"

	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
)

func TestCalculatePayment(t *testing.T) {
	battlefield := []*card.Card{card.Forest(), card.GrizzlyBears(), card.Forest(), card.Forest()}
	tappable.SetTapped(battlefield[0], true)

	result := CalculatePayment(2, battlefield)
	if !result.Success {
		t.Fatalf("Expected successful payment, got: %s", result.Reason)
	}
	if len(result.Plan.Lands) != 2 || result.Plan.Lands[0] != 2 || result.Plan.Lands[1] != 3 {
		t.Errorf("Expected lands [2 3], got %v", result.Plan.Lands)
	}
	if tappable.IsTapped(battlefield[2]) {
		t.Error("CalculatePayment must not tap anything")
	}
}

func TestCalculatePayment_InsufficientMana(t *testing.T) {
	battlefield := []*card.Card{card.Forest()}

	result := CalculatePayment(2, battlefield)
	if result.Success {
		t.Error("Expected payment to fail")
	}
	if result.Reason == "" {
		t.Error("Expected failure reason")
	}
}

func TestPayTapsExactlyCost(t *testing.T) {
	battlefield := []*card.Card{card.Forest(), card.Forest(), card.Forest()}

	if !Pay(2, battlefield) {
		t.Fatal("Expected payment to succeed")
	}
	if !tappable.IsTapped(battlefield[0]) || !tappable.IsTapped(battlefield[1]) {
		t.Error("Expected first two lands tapped")
	}
	if tappable.IsTapped(battlefield[2]) {
		t.Error("Expected third land untapped")
	}
	if Available(battlefield) != 1 {
		t.Errorf("Expected 1 land available, got %d", Available(battlefield))
	}
}

func TestPayIgnoresNonLands(t *testing.T) {
	bears := card.GrizzlyBears()
	battlefield := []*card.Card{bears, card.Forest()}

	if Pay(2, battlefield) {
		t.Fatal("Expected payment to fail with one land")
	}
	if tappable.IsTapped(battlefield[1]) {
		t.Error("Failed payment must not tap lands")
	}
	if tappable.IsTapped(bears) {
		t.Error("Creatures are never tapped for mana")
	}
}

func TestExecutePayment_StalePlan(t *testing.T) {
	battlefield := []*card.Card{card.Forest(), card.Forest()}
	plan := &PaymentPlan{Cost: 2, Lands: []int{0, 5}}

	if ExecutePayment(plan, battlefield) {
		t.Error("Expected stale plan to fail")
	}
	if tappable.IsTapped(battlefield[0]) {
		t.Error("Stale plan must not partially tap")
	}
}

func TestZeroCostAlwaysPayable(t *testing.T) {
	if !CanPay(0, nil) {
		t.Error("Expected zero cost to be payable on an empty battlefield")
	}
}
