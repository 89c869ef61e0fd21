package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"chips-wagering/internal/model"
)

// genLegs draws between 1 and 6 legs with two-decimal odds in [1.01, 10.00].
func genLegs(t *rapid.T) []model.BetLegInput {
	count := rapid.IntRange(1, 6).Draw(t, "legCount")
	legs := make([]model.BetLegInput, count)
	for i := range legs {
		cents := rapid.Int64Range(101, 1000).Draw(t, "oddCents")
		legs[i] = model.BetLegInput{
			OptionID: int64(i + 1),
			OddValue: decimal.New(cents, -2),
		}
	}
	return legs
}

func oddsProduct(legs []model.BetLegInput) decimal.Decimal {
	product := decimal.NewFromInt(1)
	for _, leg := range legs {
		product = product.Mul(leg.OddValue)
	}
	return product
}

func betType(legs []model.BetLegInput) model.BetType {
	if len(legs) == 1 {
		return model.BetTypeSingle
	}
	return model.BetTypeMultiple
}

// A bet whose totals are derived exactly from its legs always validates.
func TestValidateBetInput_ConsistentInputsAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		legs := genLegs(t)
		amount := decimal.NewFromInt(rapid.Int64Range(1, 10000).Draw(t, "amount"))
		odds := oddsProduct(legs)

		in := model.BetInput{
			UserID:          rapid.Int64Range(1, 1<<40).Draw(t, "userID"),
			MatchID:         rapid.Int64Range(1, 1<<40).Draw(t, "matchID"),
			Amount:          amount,
			PotentialPayout: amount.Mul(odds),
			TotalOdds:       odds,
			Type:            betType(legs),
			Legs:            legs,
		}

		if err := validateBetInput(in); err != nil {
			t.Fatalf("consistent input rejected: %v", err)
		}
	})
}

// Skewing the declared total odds past the tolerance is always rejected.
func TestValidateBetInput_SkewedOddsRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		legs := genLegs(t)
		amount := decimal.NewFromInt(rapid.Int64Range(1, 10000).Draw(t, "amount"))
		odds := oddsProduct(legs)

		// Skew by at least 0.02 in either direction
		skewCents := rapid.Int64Range(2, 500).Draw(t, "skewCents")
		skew := decimal.New(skewCents, -2)
		if rapid.Bool().Draw(t, "negate") && odds.GreaterThan(skew) {
			skew = skew.Neg()
		}
		declared := odds.Add(skew)

		in := model.BetInput{
			UserID:          1,
			MatchID:         1,
			Amount:          amount,
			PotentialPayout: amount.Mul(declared),
			TotalOdds:       declared,
			Type:            betType(legs),
			Legs:            legs,
		}

		if err := validateBetInput(in); !errors.Is(err, ErrInvalidBet) {
			t.Fatalf("skewed odds accepted: declared %s, product %s", declared, odds)
		}
	})
}

// Skewing the declared payout past the tolerance is always rejected.
func TestValidateBetInput_SkewedPayoutRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		legs := genLegs(t)
		amount := decimal.NewFromInt(rapid.Int64Range(1, 10000).Draw(t, "amount"))
		odds := oddsProduct(legs)
		payout := amount.Mul(odds)

		skewCents := rapid.Int64Range(2, 10000).Draw(t, "skewCents")
		skew := decimal.New(skewCents, -2)
		if rapid.Bool().Draw(t, "negate") && payout.GreaterThan(skew) {
			skew = skew.Neg()
		}

		in := model.BetInput{
			UserID:          1,
			MatchID:         1,
			Amount:          amount,
			PotentialPayout: payout.Add(skew),
			TotalOdds:       odds,
			Type:            betType(legs),
			Legs:            legs,
		}

		if err := validateBetInput(in); !errors.Is(err, ErrInvalidBet) {
			t.Fatalf("skewed payout accepted: declared %s, expected %s", payout.Add(skew), payout)
		}
	})
}

// The leg-count/type pairing is enforced both ways.
func TestValidateBetInput_TypeMismatchRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		legs := genLegs(t)
		amount := decimal.NewFromInt(rapid.Int64Range(1, 10000).Draw(t, "amount"))
		odds := oddsProduct(legs)

		// Deliberately wrong pairing
		wrongType := model.BetTypeMultiple
		if len(legs) > 1 {
			wrongType = model.BetTypeSingle
		}

		in := model.BetInput{
			UserID:          1,
			MatchID:         1,
			Amount:          amount,
			PotentialPayout: amount.Mul(odds),
			TotalOdds:       odds,
			Type:            wrongType,
			Legs:            legs,
		}

		if err := validateBetInput(in); !errors.Is(err, ErrInvalidBet) {
			t.Fatalf("type %s accepted for %d legs", wrongType, len(legs))
		}
	})
}
