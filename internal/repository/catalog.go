package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"chips-wagering/internal/model"
)

// CatalogRepository reads the betting option/market catalog and the match
// fixtures. Both are owned by other collaborators; this service only needs
// existence and active-status checks plus basic lookups.
type CatalogRepository struct {
	db DB
}

// NewCatalogRepository creates a new CatalogRepository instance.
func NewCatalogRepository(db DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetOption retrieves a betting option. Returns ErrOptionNotFound if it
// does not exist.
func (r *CatalogRepository) GetOption(ctx context.Context, id int64) (*model.BettingOption, error) {
	const query = `
		SELECT id, market_id, option_key, label, is_active, created_at, updated_at
		FROM betting_option
		WHERE id = $1
	`

	var o model.BettingOption
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.MarketID, &o.OptionKey, &o.Label, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOptionNotFound
		}
		return nil, fmt.Errorf("failed to get betting option: %w", err)
	}

	return &o, nil
}

// GetMarket retrieves the market an option belongs to.
func (r *CatalogRepository) GetMarket(ctx context.Context, id int64) (*model.BettingMarket, error) {
	const query = `
		SELECT id, name, type, is_active, created_at, updated_at
		FROM betting_market
		WHERE id = $1
	`

	var m model.BettingMarket
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Type, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to get betting market: %w", err)
	}

	return &m, nil
}

// GetMatch retrieves a match fixture. Returns ErrMatchNotFound if it does
// not exist.
func (r *CatalogRepository) GetMatch(ctx context.Context, id int64) (*model.Match, error) {
	const query = `
		SELECT id, home_club_name, away_club_name, match_date, status
		FROM game_match
		WHERE id = $1
	`

	var m model.Match
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.HomeClubName, &m.AwayClubName, &m.MatchDate, &m.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return &m, nil
}
