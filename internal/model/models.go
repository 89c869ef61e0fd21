// Package model defines the data models for the chips wagering service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChipsBalance is the materialized chips balance for a single user.
// It is created lazily on first access and mutated only through the
// transaction processor, never directly.
type ChipsBalance struct {
	UserID      int64           `db:"user_id"`
	Balance     decimal.Decimal `db:"balance"`
	TotalEarned decimal.Decimal `db:"total_earned"`
	TotalSpent  decimal.Decimal `db:"total_spent"`
	LastUpdated time.Time       `db:"last_updated"`
	CreatedAt   time.Time       `db:"created_at"`
}

// ChipsTransaction is one immutable row of the append-only chips ledger.
// The full sequence of rows for a user sums to that user's current balance.
type ChipsTransaction struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	Amount          decimal.Decimal `db:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	Type            TransactionType `db:"transaction_type"`
	ReferenceID     *int64          `db:"reference_id"`
	ReferenceType   *string         `db:"reference_type"`
	Description     *string         `db:"description"`
	TransactionHash *string         `db:"transaction_hash"`
	CreatedAt       time.Time       `db:"created_at"`
}

// TransactionType categorizes a chips ledger entry.
type TransactionType string

// Transaction types for categorizing balance changes.
const (
	TxTypeStakeReward     TransactionType = "stake_reward"     // Reward from fan token staking
	TxTypeBetPlaced       TransactionType = "bet_placed"       // Chips debited when a bet is placed
	TxTypeBetWon          TransactionType = "bet_won"          // Chips credited for a winning bet
	TxTypeQuestReward     TransactionType = "quest_reward"     // Reward for completing a quest
	TxTypeAdminAdjustment TransactionType = "admin_adjustment" // Manual adjustment by an administrator
	TxTypePurchase        TransactionType = "purchase"         // Purchase paid with chips
	TxTypeTransferIn      TransactionType = "transfer_in"      // Transfer received from another user
	TxTypeTransferOut     TransactionType = "transfer_out"     // Transfer sent to another user
	TxTypeOther           TransactionType = "other"            // Uncategorized, e.g. bet refunds
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TxTypeStakeReward, TxTypeBetPlaced, TxTypeBetWon, TxTypeQuestReward,
		TxTypeAdminAdjustment, TxTypePurchase, TxTypeTransferIn, TxTypeTransferOut, TxTypeOther:
		return true
	}
	return false
}

// IsAdministrative reports whether t may drive a balance negative.
// Only manual admin adjustments bypass the non-negative balance guard.
func (t TransactionType) IsAdministrative() bool {
	return t == TxTypeAdminAdjustment
}

// ReferenceTypeBet marks ledger entries originating from a bet.
const ReferenceTypeBet = "bet"

// Reference ties a ledger entry back to the entity that caused it.
type Reference struct {
	Type string
	ID   int64
}

// ChipsStats is the aggregate ledger view for a single user.
type ChipsStats struct {
	UserID              int64           `db:"user_id"`
	Balance             decimal.Decimal `db:"balance"`
	TotalEarned         decimal.Decimal `db:"total_earned"`
	TotalSpent          decimal.Decimal `db:"total_spent"`
	LastUpdated         time.Time       `db:"last_updated"`
	TransactionCount    int64           `db:"transaction_count"`
	CreditTransactions  int64           `db:"credit_transactions"`
	DebitTransactions   int64           `db:"debit_transactions"`
	LastTransactionDate *time.Time      `db:"last_transaction_date"`
}
