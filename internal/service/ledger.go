// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"chips-wagering/internal/model"
	"chips-wagering/internal/pkg/lock"
	"chips-wagering/internal/repository"
)

// Common errors for ledger operations.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrSelfTransfer  = errors.New("cannot transfer chips to self")
)

// defaultPageSize bounds list queries when the caller passes no limit.
const defaultPageSize = 20

// LedgerService exposes the chips ledger: balance reads, the transaction
// log, aggregate stats and the credit/debit entry points.
type LedgerService struct {
	db           repository.DB
	balances     *repository.BalanceRepository
	transactions *repository.TransactionRepository
	locks        *lock.UserLock
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(
	db repository.DB,
	balances *repository.BalanceRepository,
	transactions *repository.TransactionRepository,
	locks *lock.UserLock,
) *LedgerService {
	return &LedgerService{
		db:           db,
		balances:     balances,
		transactions: transactions,
		locks:        locks,
	}
}

// GetBalance retrieves a user's chips balance, creating the zero-initialized
// row on first access.
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (*model.ChipsBalance, error) {
	return s.balances.GetOrCreate(ctx, userID)
}

// GetTransactions retrieves a user's ledger rows, newest-first.
func (s *LedgerService) GetTransactions(ctx context.Context, userID int64, limit, offset int) ([]*model.ChipsTransaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.transactions.ListByUser(ctx, userID, limit, offset)
}

// GetTransaction retrieves a single ledger row by id.
func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (*model.ChipsTransaction, error) {
	return s.transactions.GetByID(ctx, id)
}

// GetTransactionsByType retrieves ledger rows of one type across all users.
func (s *LedgerService) GetTransactionsByType(ctx context.Context, txType model.TransactionType, limit, offset int) ([]*model.ChipsTransaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.transactions.ListByType(ctx, txType, limit, offset)
}

// GetTransactionsByReference retrieves every ledger row caused by one
// originating entity, e.g. all chips movements of a bet.
func (s *LedgerService) GetTransactionsByReference(ctx context.Context, ref model.Reference) ([]*model.ChipsTransaction, error) {
	return s.transactions.ListByReference(ctx, ref)
}

// GetStats returns the aggregate ledger view for a user.
func (s *LedgerService) GetStats(ctx context.Context, userID int64) (*model.ChipsStats, error) {
	return s.balances.GetStats(ctx, userID)
}

// GetAllStats returns aggregate ledger views ordered by balance.
func (s *LedgerService) GetAllStats(ctx context.Context, limit, offset int) ([]*model.ChipsStats, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.balances.GetAllStats(ctx, limit, offset)
}

// AddChips credits a user's balance. The amount must be positive; the sign
// is applied here, callers never pass signed values.
func (s *LedgerService) AddChips(ctx context.Context, userID int64, amount decimal.Decimal, txType model.TransactionType, ref *model.Reference, description *string) (*model.ChipsTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *model.ChipsTransaction
	err := s.locks.WithLock(userID, func() error {
		var err error
		entry, err = s.transactions.Apply(ctx, repository.ApplyInput{
			UserID:      userID,
			Amount:      amount,
			Type:        txType,
			Reference:   ref,
			Description: description,
		})
		return err
	})
	return entry, err
}

// RemoveChips debits a user's balance. The amount must be positive.
func (s *LedgerService) RemoveChips(ctx context.Context, userID int64, amount decimal.Decimal, txType model.TransactionType, ref *model.Reference, description *string) (*model.ChipsTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *model.ChipsTransaction
	err := s.locks.WithLock(userID, func() error {
		var err error
		entry, err = s.transactions.Apply(ctx, repository.ApplyInput{
			UserID:      userID,
			Amount:      amount.Neg(),
			Type:        txType,
			Reference:   ref,
			Description: description,
		})
		return err
	})
	return entry, err
}

// Transfer moves chips between two users as one unit of work: a
// transfer_out debit on the sender and a transfer_in credit on the
// receiver, or neither.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfTransfer
	}

	return s.locks.WithLock(fromID, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transfer: %w", err)
		}
		defer tx.Rollback(ctx)

		transactions := s.transactions.WithTx(tx)

		outDesc := fmt.Sprintf("transfer to user %d", toID)
		if _, err := transactions.Apply(ctx, repository.ApplyInput{
			UserID:      fromID,
			Amount:      amount.Neg(),
			Type:        model.TxTypeTransferOut,
			Description: &outDesc,
		}); err != nil {
			return err
		}

		inDesc := fmt.Sprintf("transfer from user %d", fromID)
		if _, err := transactions.Apply(ctx, repository.ApplyInput{
			UserID:      toID,
			Amount:      amount,
			Type:        model.TxTypeTransferIn,
			Description: &inDesc,
		}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transfer: %w", err)
		}
		return nil
	})
}
