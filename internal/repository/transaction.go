package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"chips-wagering/internal/model"
)

// TransactionRepository is the atomic chips transaction processor plus the
// read side of the append-only ledger.
type TransactionRepository struct {
	db DB
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(db DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

const transactionColumns = `id, user_id, amount, balance_before, balance_after,
		transaction_type, reference_id, reference_type, description, transaction_hash, created_at`

// ApplyInput describes a single signed balance mutation.
type ApplyInput struct {
	UserID          int64
	Amount          decimal.Decimal
	Type            model.TransactionType
	Reference       *model.Reference
	Description     *string
	TransactionHash *string
}

// Apply mutates the user's balance and appends exactly one ledger row, as a
// single unit of work. The balance row is read under FOR UPDATE so that two
// concurrent calls for the same user are serialized and balance_after is
// always computed from the latest committed balance_before.
//
// A debit that would drive the balance negative fails with
// ErrInsufficientBalance unless the type is administrative. When the
// repository is bound to a caller's transaction the writes become a
// savepoint inside it and stay invisible until the caller commits.
func (r *TransactionRepository) Apply(ctx context.Context, in ApplyInput) (*model.ChipsTransaction, error) {
	if in.Amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransactionType, in.Type)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balances := &BalanceRepository{db: tx}
	balance, err := balances.lockForUpdate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	before := balance.Balance
	after := before.Add(in.Amount)
	if after.IsNegative() && !in.Type.IsAdministrative() {
		return nil, ErrInsufficientBalance
	}

	earned := decimal.Zero
	spent := decimal.Zero
	if in.Amount.IsPositive() {
		earned = in.Amount
	} else {
		spent = in.Amount.Neg()
	}

	const updateQuery = `
		UPDATE user_chips_balance
		SET balance = $2, total_earned = total_earned + $3, total_spent = total_spent + $4, last_updated = NOW()
		WHERE user_id = $1
	`

	if _, err := tx.Exec(ctx, updateQuery, in.UserID, after, earned, spent); err != nil {
		return nil, fmt.Errorf("failed to update chips balance: %w", err)
	}

	var refID *int64
	var refType *string
	if in.Reference != nil {
		refID = &in.Reference.ID
		refType = &in.Reference.Type
	}

	insertQuery := `
		INSERT INTO user_chips_transaction
			(user_id, amount, balance_before, balance_after, transaction_type,
			 reference_id, reference_type, description, transaction_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING ` + transactionColumns

	var entry model.ChipsTransaction
	err = tx.QueryRow(ctx, insertQuery,
		in.UserID, in.Amount, before, after, in.Type,
		refID, refType, in.Description, in.TransactionHash,
	).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.Type,
		&entry.ReferenceID,
		&entry.ReferenceType,
		&entry.Description,
		&entry.TransactionHash,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append chips transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit chips transaction: %w", err)
	}

	return &entry, nil
}

// GetByID retrieves a single ledger row. Returns ErrTransactionNotFound if
// it does not exist.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.ChipsTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM user_chips_transaction WHERE id = $1`

	var entry model.ChipsTransaction
	err := r.db.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.Type,
		&entry.ReferenceID,
		&entry.ReferenceType,
		&entry.Description,
		&entry.TransactionHash,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &entry, nil
}

// ListByUser retrieves a user's ledger rows ordered newest-first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.ChipsTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM user_chips_transaction
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListByType retrieves ledger rows of one transaction type across all
// users, newest-first.
func (r *TransactionRepository) ListByType(ctx context.Context, txType model.TransactionType, limit, offset int) ([]*model.ChipsTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM user_chips_transaction
		WHERE transaction_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, txType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions by type: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListByReference retrieves the ledger rows that trace back to one
// originating entity, e.g. every chips movement caused by a bet.
func (r *TransactionRepository) ListByReference(ctx context.Context, ref model.Reference) ([]*model.ChipsTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM user_chips_transaction
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions by reference: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]*model.ChipsTransaction, error) {
	var entries []*model.ChipsTransaction
	for rows.Next() {
		var entry model.ChipsTransaction
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.Type,
			&entry.ReferenceID,
			&entry.ReferenceType,
			&entry.Description,
			&entry.TransactionHash,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return entries, nil
}
