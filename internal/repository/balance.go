package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"chips-wagering/internal/model"
)

// BalanceRepository handles chips balance persistence and aggregate reads.
// Balance rows are created lazily and never deleted; the signed amounts in
// user_chips_transaction always sum to the stored balance.
type BalanceRepository struct {
	db DB
}

// NewBalanceRepository creates a new BalanceRepository instance.
func NewBalanceRepository(db DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BalanceRepository) WithTx(tx pgx.Tx) *BalanceRepository {
	return &BalanceRepository{db: tx}
}

const balanceColumns = `user_id, balance, total_earned, total_spent, last_updated, created_at`

// GetOrCreate retrieves a user's balance row, creating a zero-initialized
// one on first access. Balance lookups never fail with a not-found error.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID int64) (*model.ChipsBalance, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}
	return r.get(ctx, userID)
}

// ensure inserts the zero-initialized balance row if it does not exist yet.
// Safe under concurrent first access.
func (r *BalanceRepository) ensure(ctx context.Context, userID int64) error {
	const query = `
		INSERT INTO user_chips_balance (user_id, balance, total_earned, total_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to create chips balance: %w", err)
	}
	return nil
}

func (r *BalanceRepository) get(ctx context.Context, userID int64) (*model.ChipsBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM user_chips_balance WHERE user_id = $1`

	var b model.ChipsBalance
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&b.UserID,
		&b.Balance,
		&b.TotalEarned,
		&b.TotalSpent,
		&b.LastUpdated,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chips balance: %w", err)
	}

	return &b, nil
}

// lockForUpdate reads the balance row under a FOR UPDATE row lock, creating
// it first if necessary. Must be called inside a transaction; the lock
// serializes all balance mutations for the user until commit.
func (r *BalanceRepository) lockForUpdate(ctx context.Context, userID int64) (*model.ChipsBalance, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}

	query := `SELECT ` + balanceColumns + ` FROM user_chips_balance WHERE user_id = $1 FOR UPDATE`

	var b model.ChipsBalance
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&b.UserID,
		&b.Balance,
		&b.TotalEarned,
		&b.TotalSpent,
		&b.LastUpdated,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock chips balance: %w", err)
	}

	return &b, nil
}

// GetStats returns the aggregate ledger view for a user: current balance,
// lifetime totals and transaction counts.
func (r *BalanceRepository) GetStats(ctx context.Context, userID int64) (*model.ChipsStats, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}

	const query = `
		SELECT
			b.user_id,
			b.balance,
			b.total_earned,
			b.total_spent,
			b.last_updated,
			COUNT(t.id) AS transaction_count,
			COUNT(t.id) FILTER (WHERE t.amount > 0) AS credit_transactions,
			COUNT(t.id) FILTER (WHERE t.amount < 0) AS debit_transactions,
			MAX(t.created_at) AS last_transaction_date
		FROM user_chips_balance b
		LEFT JOIN user_chips_transaction t ON t.user_id = b.user_id
		WHERE b.user_id = $1
		GROUP BY b.user_id, b.balance, b.total_earned, b.total_spent, b.last_updated
	`

	var s model.ChipsStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.Balance,
		&s.TotalEarned,
		&s.TotalSpent,
		&s.LastUpdated,
		&s.TransactionCount,
		&s.CreditTransactions,
		&s.DebitTransactions,
		&s.LastTransactionDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chips stats: %w", err)
	}

	return &s, nil
}

// GetAllStats returns the aggregate ledger view for all users ordered by
// balance, for leaderboard-style listings.
func (r *BalanceRepository) GetAllStats(ctx context.Context, limit, offset int) ([]*model.ChipsStats, error) {
	const query = `
		SELECT
			b.user_id,
			b.balance,
			b.total_earned,
			b.total_spent,
			b.last_updated,
			COUNT(t.id) AS transaction_count,
			COUNT(t.id) FILTER (WHERE t.amount > 0) AS credit_transactions,
			COUNT(t.id) FILTER (WHERE t.amount < 0) AS debit_transactions,
			MAX(t.created_at) AS last_transaction_date
		FROM user_chips_balance b
		LEFT JOIN user_chips_transaction t ON t.user_id = b.user_id
		GROUP BY b.user_id, b.balance, b.total_earned, b.total_spent, b.last_updated
		ORDER BY b.balance DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get chips stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.ChipsStats
	for rows.Next() {
		var s model.ChipsStats
		err := rows.Scan(
			&s.UserID,
			&s.Balance,
			&s.TotalEarned,
			&s.TotalSpent,
			&s.LastUpdated,
			&s.TransactionCount,
			&s.CreditTransactions,
			&s.DebitTransactions,
			&s.LastTransactionDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chips stats: %w", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chips stats: %w", err)
	}

	return stats, nil
}
