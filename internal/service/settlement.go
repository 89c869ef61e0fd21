package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"chips-wagering/internal/model"
	"chips-wagering/internal/pkg/lock"
	"chips-wagering/internal/repository"
)

// SettlementService composes the bet engine and the transaction processor
// under one unit of work. Placing, cancelling and settling a bet each move
// the bet state machine and the chips ledger together: either both commit
// or neither does.
type SettlementService struct {
	db           repository.DB
	bets         *BetService
	transactions *repository.TransactionRepository
	balances     *repository.BalanceRepository
	locks        *lock.UserLock
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	db repository.DB,
	bets *BetService,
	transactions *repository.TransactionRepository,
	balances *repository.BalanceRepository,
	locks *lock.UserLock,
) *SettlementService {
	return &SettlementService{
		db:           db,
		bets:         bets,
		transactions: transactions,
		balances:     balances,
		locks:        locks,
	}
}

// PlaceBet creates the bet and debits the stake as one unit of work.
// The upfront balance read only fails fast; the debit inside the
// transaction is the actual guard against overdrawing, so two concurrent
// placements can never both spend the same chips.
func (s *SettlementService) PlaceBet(ctx context.Context, in model.BetInput) (*model.Bet, error) {
	balance, err := s.balances.GetOrCreate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if balance.Balance.LessThan(in.Amount) {
		return nil, repository.ErrInsufficientBalance
	}

	var bet *model.Bet
	err = s.locks.WithLock(in.UserID, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin bet placement: %w", err)
		}
		defer tx.Rollback(ctx)

		bet, err = s.bets.WithTx(tx).Create(ctx, in)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("bet #%d", bet.ID)
		if _, err := s.transactions.WithTx(tx).Apply(ctx, repository.ApplyInput{
			UserID:          in.UserID,
			Amount:          in.Amount.Neg(),
			Type:            model.TxTypeBetPlaced,
			Reference:       &model.Reference{Type: model.ReferenceTypeBet, ID: bet.ID},
			Description:     &desc,
			TransactionHash: in.TransactionHash,
		}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit bet placement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("bet_id", bet.ID).
		Int64("user_id", bet.UserID).
		Str("amount", bet.Amount.String()).
		Str("total_odds", bet.TotalOdds.String()).
		Msg("Bet placed")

	return bet, nil
}

// CancelBet cancels a pending bet owned by actorID and refunds the stake,
// as one unit of work. The pending-only precondition of the transition
// guards against refunding a settled bet.
func (s *SettlementService) CancelBet(ctx context.Context, betID, actorID int64, reason *string) (*model.Bet, error) {
	if _, err := s.bets.Get(ctx, betID, &actorID); err != nil {
		return nil, err
	}

	var bet *model.Bet
	err := s.locks.WithLock(actorID, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin bet cancellation: %w", err)
		}
		defer tx.Rollback(ctx)

		bet, err = s.bets.WithTx(tx).Cancel(ctx, betID, &actorID, reason)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("refund for cancelled bet #%d", bet.ID)
		if _, err := s.transactions.WithTx(tx).Apply(ctx, repository.ApplyInput{
			UserID:      bet.UserID,
			Amount:      bet.Amount,
			Type:        model.TxTypeOther,
			Reference:   &model.Reference{Type: model.ReferenceTypeBet, ID: bet.ID},
			Description: &desc,
		}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit bet cancellation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("bet_id", bet.ID).Int64("user_id", bet.UserID).Msg("Bet cancelled")

	return bet, nil
}

// SettleBetWon settles a pending bet as won and credits the payout exactly
// once. resultPayout overrides the bet's potential payout when non-nil.
// A second settlement attempt fails the status transition and therefore
// never produces a second credit.
func (s *SettlementService) SettleBetWon(ctx context.Context, betID int64, resultPayout *decimal.Decimal) (*model.Bet, error) {
	var bet *model.Bet
	err := func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin bet settlement: %w", err)
		}
		defer tx.Rollback(ctx)

		reason := "bet won"
		payout := resultPayout
		bet, err = s.bets.WithTx(tx).transition(ctx, betID, model.BetStatusWon, payout, nil, &reason)
		if err != nil {
			return err
		}

		credit := bet.PotentialPayout
		if resultPayout != nil {
			credit = *resultPayout
		}

		desc := fmt.Sprintf("payout for bet #%d", bet.ID)
		if _, err := s.transactions.WithTx(tx).Apply(ctx, repository.ApplyInput{
			UserID:      bet.UserID,
			Amount:      credit,
			Type:        model.TxTypeBetWon,
			Reference:   &model.Reference{Type: model.ReferenceTypeBet, ID: bet.ID},
			Description: &desc,
		}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit bet settlement: %w", err)
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("bet_id", bet.ID).
		Int64("user_id", bet.UserID).
		Str("result_payout", bet.ResultPayout.String()).
		Msg("Bet settled as won")

	return bet, nil
}

// SettleBetLost settles a pending bet as lost. The stake was already
// debited at placement, so there is no ledger effect.
func (s *SettlementService) SettleBetLost(ctx context.Context, betID int64) (*model.Bet, error) {
	reason := "bet lost"
	bet, err := s.bets.Transition(ctx, betID, model.BetStatusLost, nil, &reason)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("bet_id", bet.ID).Int64("user_id", bet.UserID).Msg("Bet settled as lost")

	return bet, nil
}

// SettleBetRefunded voids a pending bet and returns the original stake, as
// one unit of work.
func (s *SettlementService) SettleBetRefunded(ctx context.Context, betID int64) (*model.Bet, error) {
	var bet *model.Bet
	err := func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin bet refund: %w", err)
		}
		defer tx.Rollback(ctx)

		reason := "bet refunded"
		bet, err = s.bets.WithTx(tx).Transition(ctx, betID, model.BetStatusRefunded, nil, &reason)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("refund for bet #%d", bet.ID)
		if _, err := s.transactions.WithTx(tx).Apply(ctx, repository.ApplyInput{
			UserID:      bet.UserID,
			Amount:      bet.Amount,
			Type:        model.TxTypeOther,
			Reference:   &model.Reference{Type: model.ReferenceTypeBet, ID: bet.ID},
			Description: &desc,
		}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit bet refund: %w", err)
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	log.Info().Int64("bet_id", bet.ID).Int64("user_id", bet.UserID).Msg("Bet refunded")

	return bet, nil
}
