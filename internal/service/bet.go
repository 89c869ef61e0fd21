package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"chips-wagering/internal/model"
	"chips-wagering/internal/repository"
)

// Bet-related errors.
var (
	ErrInvalidBet     = errors.New("invalid bet")
	ErrInactiveOption = errors.New("betting option is not active")
	ErrAccessDenied   = errors.New("bet belongs to a different user")
)

// consistencyTolerance absorbs rounding when comparing the leg odds product
// against total_odds and amount*odds against potential_payout.
var consistencyTolerance = decimal.NewFromFloat(0.01)

// BetService is the bet lifecycle engine: it validates and persists new
// bets and enforces the status state machine. It never touches the chips
// ledger; the settlement coordinator composes both.
type BetService struct {
	bets      *repository.BetRepository
	catalog   *repository.CatalogRepository
	maxLegs   int
	maxAmount decimal.Decimal
}

// NewBetService creates a new BetService instance. maxLegs and maxAmount
// bound bet acceptance; zero disables the respective cap.
func NewBetService(bets *repository.BetRepository, catalog *repository.CatalogRepository, maxLegs int, maxAmount float64) *BetService {
	return &BetService{
		bets:      bets,
		catalog:   catalog,
		maxLegs:   maxLegs,
		maxAmount: decimal.NewFromFloat(maxAmount),
	}
}

// WithTx returns a copy of the service whose writes run inside the given
// transaction, used by the settlement coordinator to bind its unit of work.
func (s *BetService) WithTx(tx pgx.Tx) *BetService {
	return &BetService{bets: s.bets.WithTx(tx), catalog: s.catalog, maxLegs: s.maxLegs, maxAmount: s.maxAmount}
}

// validateBetInput checks the shape of a new bet before anything is
// written: required fields, leg-count/type consistency, the odds-product
// check and the payout check.
func validateBetInput(in model.BetInput) error {
	if in.UserID == 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidBet)
	}
	if in.MatchID == 0 {
		return fmt.Errorf("%w: match id is required", ErrInvalidBet)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidBet)
	}
	if !in.PotentialPayout.IsPositive() {
		return fmt.Errorf("%w: potential payout must be positive", ErrInvalidBet)
	}
	if !in.TotalOdds.IsPositive() {
		return fmt.Errorf("%w: total odds must be positive", ErrInvalidBet)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown bet type %q", ErrInvalidBet, in.Type)
	}
	if len(in.Legs) == 0 {
		return fmt.Errorf("%w: at least one leg is required", ErrInvalidBet)
	}
	if len(in.Legs) == 1 && in.Type != model.BetTypeSingle {
		return fmt.Errorf("%w: one-leg bets must be of type single", ErrInvalidBet)
	}
	if len(in.Legs) > 1 && in.Type != model.BetTypeMultiple {
		return fmt.Errorf("%w: multi-leg bets must be of type multiple", ErrInvalidBet)
	}

	product := decimal.NewFromInt(1)
	for _, leg := range in.Legs {
		if !leg.OddValue.IsPositive() {
			return fmt.Errorf("%w: leg odd value must be positive", ErrInvalidBet)
		}
		product = product.Mul(leg.OddValue)
	}
	if product.Sub(in.TotalOdds).Abs().GreaterThan(consistencyTolerance) {
		return fmt.Errorf("%w: leg odds product %s does not match total odds %s",
			ErrInvalidBet, product, in.TotalOdds)
	}

	expected := in.Amount.Mul(in.TotalOdds)
	if expected.Sub(in.PotentialPayout).Abs().GreaterThan(consistencyTolerance) {
		return fmt.Errorf("%w: potential payout %s does not match amount * odds = %s",
			ErrInvalidBet, in.PotentialPayout, expected)
	}

	return nil
}

// Create validates and persists a new pending bet with its legs and the
// initial history row. Every referenced option must exist and be active,
// and the match must exist; nothing is written on any validation failure.
func (s *BetService) Create(ctx context.Context, in model.BetInput) (*model.Bet, error) {
	if err := validateBetInput(in); err != nil {
		return nil, err
	}
	if s.maxLegs > 0 && len(in.Legs) > s.maxLegs {
		return nil, fmt.Errorf("%w: at most %d legs are allowed", ErrInvalidBet, s.maxLegs)
	}
	if s.maxAmount.IsPositive() && in.Amount.GreaterThan(s.maxAmount) {
		return nil, fmt.Errorf("%w: amount exceeds the maximum of %s", ErrInvalidBet, s.maxAmount)
	}

	if _, err := s.catalog.GetMatch(ctx, in.MatchID); err != nil {
		return nil, err
	}
	for _, leg := range in.Legs {
		option, err := s.catalog.GetOption(ctx, leg.OptionID)
		if err != nil {
			return nil, err
		}
		if !option.IsActive {
			return nil, fmt.Errorf("%w: option %d", ErrInactiveOption, option.ID)
		}
	}

	return s.bets.Create(ctx, in)
}

// Transition moves a bet from pending into a terminal status and appends
// the matching history row. The stored-status check and the write are one
// conditional update, so a bet already settled, cancelled, or even already
// in the requested status is rejected with ErrIllegalTransition.
func (s *BetService) Transition(ctx context.Context, betID int64, newStatus model.BetStatus, actor *int64, reason *string) (*model.Bet, error) {
	return s.transition(ctx, betID, newStatus, nil, actor, reason)
}

func (s *BetService) transition(ctx context.Context, betID int64, newStatus model.BetStatus, resultPayout *decimal.Decimal, actor *int64, reason *string) (*model.Bet, error) {
	if !newStatus.Valid() || !newStatus.Terminal() {
		return nil, fmt.Errorf("%w: cannot transition to %q", repository.ErrIllegalTransition, newStatus)
	}

	return s.bets.UpdateStatus(ctx, betID, newStatus, resultPayout, actor, reason)
}

// Cancel transitions a pending bet to cancelled.
func (s *BetService) Cancel(ctx context.Context, betID int64, actor *int64, reason *string) (*model.Bet, error) {
	if reason == nil {
		r := "bet cancelled"
		reason = &r
	}
	return s.Transition(ctx, betID, model.BetStatusCancelled, actor, reason)
}

// Get retrieves a bet with its legs. When forUser is non-nil the bet must
// belong to that user, otherwise ErrAccessDenied is returned.
func (s *BetService) Get(ctx context.Context, betID int64, forUser *int64) (*model.BetWithDetails, error) {
	bet, err := s.bets.GetByID(ctx, betID)
	if err != nil {
		return nil, err
	}
	if forUser != nil && bet.UserID != *forUser {
		return nil, ErrAccessDenied
	}

	details, err := s.bets.GetDetails(ctx, betID)
	if err != nil {
		return nil, err
	}

	return &model.BetWithDetails{Bet: *bet, Details: details}, nil
}

// GetHistory retrieves the status audit trail of a bet, oldest first.
func (s *BetService) GetHistory(ctx context.Context, betID int64, forUser *int64) ([]*model.BetHistory, error) {
	if _, err := s.Get(ctx, betID, forUser); err != nil {
		return nil, err
	}
	return s.bets.GetHistory(ctx, betID)
}

// ListUserBets retrieves a user's bets with legs, newest-first.
func (s *BetService) ListUserBets(ctx context.Context, userID int64, limit, offset int) ([]*model.BetWithDetails, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.bets.ListByUser(ctx, userID, limit, offset)
}

// ListMatchBets retrieves the bets placed on a match.
func (s *BetService) ListMatchBets(ctx context.Context, matchID int64, limit int) ([]*model.Bet, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.bets.ListByMatch(ctx, matchID, limit)
}

// GetUserStats returns aggregate betting figures for a user.
func (s *BetService) GetUserStats(ctx context.Context, userID int64) (*model.BetStats, error) {
	return s.bets.GetUserStats(ctx, userID)
}

// MarkLegResult records the grading of a single leg. Grading is
// informational; the final payout is decided by the settlement operation
// for the bet as a whole.
func (s *BetService) MarkLegResult(ctx context.Context, betID, optionID int64, isWinner bool) error {
	return s.bets.MarkLegResult(ctx, betID, optionID, isWinner)
}

// Delete removes a bet that is still pending or already cancelled. When
// forUser is non-nil the bet must belong to that user.
func (s *BetService) Delete(ctx context.Context, betID int64, forUser *int64) error {
	if _, err := s.Get(ctx, betID, forUser); err != nil {
		return err
	}
	return s.bets.Delete(ctx, betID)
}
