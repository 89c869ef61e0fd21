package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"chips-wagering/internal/model"
)

// BetRepository handles bet, bet leg and bet history persistence.
// Status changes go through UpdateStatus only, which performs the
// pending-check and the write as one conditional update.
type BetRepository struct {
	db DB
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(db DB) *BetRepository {
	return &BetRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BetRepository) WithTx(tx pgx.Tx) *BetRepository {
	return &BetRepository{db: tx}
}

const betColumns = `id, user_id, match_id, amount, potential_payout, total_odds, bet_type,
		status, result_payout, placed_at, settled_at, transaction_hash, notes, created_at, updated_at`

func scanBet(row pgx.Row) (*model.Bet, error) {
	var b model.Bet
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.MatchID,
		&b.Amount,
		&b.PotentialPayout,
		&b.TotalOdds,
		&b.Type,
		&b.Status,
		&b.ResultPayout,
		&b.PlacedAt,
		&b.SettledAt,
		&b.TransactionHash,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create persists the bet with status pending, all its legs and the initial
// history row (null -> pending), as one unit of work. Input validation is
// the bet engine's job; nothing here is written if any insert fails.
func (r *BetRepository) Create(ctx context.Context, in model.BetInput) (*model.Bet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO betting_bet
			(user_id, match_id, amount, potential_payout, total_odds, bet_type,
			 status, result_payout, placed_at, transaction_hash, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), $8, $9)
		RETURNING ` + betColumns

	bet, err := scanBet(tx.QueryRow(ctx, insertQuery,
		in.UserID, in.MatchID, in.Amount, in.PotentialPayout, in.TotalOdds,
		in.Type, model.BetStatusPending, in.TransactionHash, in.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	const legQuery = `
		INSERT INTO betting_bet_detail (bet_id, option_id, odd_value)
		VALUES ($1, $2, $3)
	`

	for _, leg := range in.Legs {
		if _, err := tx.Exec(ctx, legQuery, bet.ID, leg.OptionID, leg.OddValue); err != nil {
			return nil, fmt.Errorf("failed to create bet leg: %w", err)
		}
	}

	reason := "bet placed"
	if err := insertHistory(ctx, tx, bet.ID, nil, model.BetStatusPending, nil, &reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bet creation: %w", err)
	}

	return bet, nil
}

// GetByID retrieves a bet. Returns ErrBetNotFound if it does not exist.
func (r *BetRepository) GetByID(ctx context.Context, id int64) (*model.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM betting_bet WHERE id = $1`

	bet, err := scanBet(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}

	return bet, nil
}

// UpdateStatus moves a bet out of pending into the given terminal status
// and appends the matching history row, as one unit of work. The pending
// precondition and the write happen as one conditional update, so two
// concurrent settlement calls cannot both succeed. A non-nil resultPayout
// is persisted alongside the status (won settlements).
//
// Returns ErrBetNotFound if the bet does not exist and ErrIllegalTransition
// if the stored status is anything other than pending, including the bet
// already being in the requested status.
func (r *BetRepository) UpdateStatus(ctx context.Context, id int64, newStatus model.BetStatus, resultPayout *decimal.Decimal, changedBy *int64, reason *string) (*model.Bet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE betting_bet
		SET status = $2,
		    result_payout = COALESCE($3, result_payout),
		    settled_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING ` + betColumns

	bet, err := scanBet(tx.QueryRow(ctx, query, id, newStatus, resultPayout, model.BetStatusPending))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update bet status: %w", err)
		}
		// Zero rows matched: distinguish a missing bet from a stale status.
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, newStatus)
	}

	oldStatus := model.BetStatusPending
	if err := insertHistory(ctx, tx, id, &oldStatus, newStatus, changedBy, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bet status update: %w", err)
	}

	return bet, nil
}

func insertHistory(ctx context.Context, db DB, betID int64, oldStatus *model.BetStatus, newStatus model.BetStatus, changedBy *int64, reason *string) error {
	const query = `
		INSERT INTO betting_bet_history (bet_id, old_status, new_status, changed_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := db.Exec(ctx, query, betID, oldStatus, newStatus, changedBy, reason); err != nil {
		return fmt.Errorf("failed to append bet history: %w", err)
	}
	return nil
}

// GetHistory retrieves the audit trail of a bet, oldest row first.
func (r *BetRepository) GetHistory(ctx context.Context, betID int64) ([]*model.BetHistory, error) {
	const query = `
		SELECT id, bet_id, old_status, new_status, changed_by, reason, created_at
		FROM betting_bet_history
		WHERE bet_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet history: %w", err)
	}
	defer rows.Close()

	var history []*model.BetHistory
	for rows.Next() {
		var h model.BetHistory
		err := rows.Scan(&h.ID, &h.BetID, &h.OldStatus, &h.NewStatus, &h.ChangedBy, &h.Reason, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet history: %w", err)
		}
		history = append(history, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bet history: %w", err)
	}

	return history, nil
}

// GetDetails retrieves the legs of a bet in creation order.
func (r *BetRepository) GetDetails(ctx context.Context, betID int64) ([]model.BetDetail, error) {
	const query = `
		SELECT id, bet_id, option_id, odd_value, is_winner, created_at
		FROM betting_bet_detail
		WHERE bet_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet details: %w", err)
	}
	defer rows.Close()

	var details []model.BetDetail
	for rows.Next() {
		var d model.BetDetail
		err := rows.Scan(&d.ID, &d.BetID, &d.OptionID, &d.OddValue, &d.IsWinner, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet detail: %w", err)
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bet details: %w", err)
	}

	return details, nil
}

// MarkLegResult grades a single leg. The grade is recorded for audit but
// does not by itself drive the bet's payout.
func (r *BetRepository) MarkLegResult(ctx context.Context, betID, optionID int64, isWinner bool) error {
	const query = `
		UPDATE betting_bet_detail
		SET is_winner = $3
		WHERE bet_id = $1 AND option_id = $2
	`

	result, err := r.db.Exec(ctx, query, betID, optionID, isWinner)
	if err != nil {
		return fmt.Errorf("failed to mark bet leg result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrBetNotFound
	}
	return nil
}

// ListByUser retrieves a user's bets with their legs, newest-first.
func (r *BetRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.BetWithDetails, error) {
	query := `
		SELECT ` + betColumns + `
		FROM betting_bet
		WHERE user_id = $1
		ORDER BY placed_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}

	var bets []*model.BetWithDetails
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &model.BetWithDetails{Bet: *bet})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	rows.Close()

	for _, bet := range bets {
		details, err := r.GetDetails(ctx, bet.ID)
		if err != nil {
			return nil, err
		}
		bet.Details = details
	}

	return bets, nil
}

// ListByMatch retrieves the bets placed on a match, newest-first.
func (r *BetRepository) ListByMatch(ctx context.Context, matchID int64, limit int) ([]*model.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM betting_bet
		WHERE match_id = $1
		ORDER BY placed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list match bets: %w", err)
	}
	defer rows.Close()

	var bets []*model.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match bets: %w", err)
	}

	return bets, nil
}

// GetUserStats returns aggregate betting figures for a user.
func (r *BetRepository) GetUserStats(ctx context.Context, userID int64) (*model.BetStats, error) {
	const query = `
		SELECT
			COUNT(*) AS total_bets,
			COALESCE(SUM(amount), 0) AS total_amount,
			COALESCE(SUM(result_payout) FILTER (WHERE status = 'won'), 0) AS total_winnings,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_bets,
			COUNT(*) FILTER (WHERE status = 'won') AS won_bets,
			COUNT(*) FILTER (WHERE status = 'lost') AS lost_bets
		FROM betting_bet
		WHERE user_id = $1
	`

	var s model.BetStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.TotalBets,
		&s.TotalAmount,
		&s.TotalWinnings,
		&s.PendingBets,
		&s.WonBets,
		&s.LostBets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet stats: %w", err)
	}

	if settled := s.WonBets + s.LostBets; settled > 0 {
		s.WinRate = float64(s.WonBets) / float64(settled)
	}

	return &s, nil
}

// Delete removes a bet and its legs and history. Permitted only while the
// bet is still pending or already cancelled (data-retention rule); the
// check and the delete are one conditional statement.
func (r *BetRepository) Delete(ctx context.Context, id int64) error {
	const query = `
		DELETE FROM betting_bet
		WHERE id = $1 AND status IN ($2, $3)
	`

	result, err := r.db.Exec(ctx, query, id, model.BetStatusPending, model.BetStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to delete bet: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrBetNotDeletable
	}
	return nil
}
