package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetStatus is the lifecycle state of a bet.
// A bet starts as pending and moves to exactly one terminal state.
type BetStatus string

const (
	BetStatusPending   BetStatus = "pending"
	BetStatusWon       BetStatus = "won"
	BetStatusLost      BetStatus = "lost"
	BetStatusCancelled BetStatus = "cancelled"
	BetStatusRefunded  BetStatus = "refunded"
)

// Valid reports whether s is a known bet status.
func (s BetStatus) Valid() bool {
	switch s {
	case BetStatusPending, BetStatusWon, BetStatusLost, BetStatusCancelled, BetStatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether s is a settled state. No transition out of a
// terminal state is legal.
func (s BetStatus) Terminal() bool {
	return s == BetStatusWon || s == BetStatusLost || s == BetStatusCancelled || s == BetStatusRefunded
}

// BetType distinguishes single-leg from multi-leg (accumulator) bets.
type BetType string

const (
	BetTypeSingle   BetType = "single"
	BetTypeMultiple BetType = "multiple"
)

// Valid reports whether t is a known bet type.
func (t BetType) Valid() bool {
	return t == BetTypeSingle || t == BetTypeMultiple
}

// Bet is a wager over one or more betting-option legs on a match.
type Bet struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	MatchID         int64           `db:"match_id"`
	Amount          decimal.Decimal `db:"amount"`
	PotentialPayout decimal.Decimal `db:"potential_payout"`
	TotalOdds       decimal.Decimal `db:"total_odds"`
	Type            BetType         `db:"bet_type"`
	Status          BetStatus       `db:"status"`
	ResultPayout    decimal.Decimal `db:"result_payout"`
	PlacedAt        time.Time       `db:"placed_at"`
	SettledAt       *time.Time      `db:"settled_at"`
	TransactionHash *string         `db:"transaction_hash"`
	Notes           *string         `db:"notes"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// BetDetail is a single leg of a bet. Legs are immutable after creation
// except for the is_winner grading flag, which stays null until graded.
type BetDetail struct {
	ID        int64           `db:"id"`
	BetID     int64           `db:"bet_id"`
	OptionID  int64           `db:"option_id"`
	OddValue  decimal.Decimal `db:"odd_value"`
	IsWinner  *bool           `db:"is_winner"`
	CreatedAt time.Time       `db:"created_at"`
}

// BetHistory is one row of the append-only bet status audit trail.
// OldStatus is nil for the initial pending row, ChangedBy is nil for
// system-initiated transitions.
type BetHistory struct {
	ID        int64      `db:"id"`
	BetID     int64      `db:"bet_id"`
	OldStatus *BetStatus `db:"old_status"`
	NewStatus BetStatus  `db:"new_status"`
	ChangedBy *int64     `db:"changed_by"`
	Reason    *string    `db:"reason"`
	CreatedAt time.Time  `db:"created_at"`
}

// BetLegInput is one requested leg of a new bet.
type BetLegInput struct {
	OptionID int64
	OddValue decimal.Decimal
}

// BetInput is the request to create a new bet.
type BetInput struct {
	UserID          int64
	MatchID         int64
	Amount          decimal.Decimal
	PotentialPayout decimal.Decimal
	TotalOdds       decimal.Decimal
	Type            BetType
	Legs            []BetLegInput
	TransactionHash *string
	Notes           *string
}

// BetWithDetails bundles a bet with its legs for read paths.
type BetWithDetails struct {
	Bet
	Details []BetDetail
}

// BetStats is the aggregate betting view for a single user.
type BetStats struct {
	TotalBets     int64           `db:"total_bets"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	TotalWinnings decimal.Decimal `db:"total_winnings"`
	PendingBets   int64           `db:"pending_bets"`
	WonBets       int64           `db:"won_bets"`
	LostBets      int64           `db:"lost_bets"`
	WinRate       float64         `db:"win_rate"`
}
