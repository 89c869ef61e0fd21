package model

import "time"

// BettingMarket groups the options offered for a class of outcomes,
// e.g. "match winner" or "total goals over/under".
type BettingMarket struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// BettingOption is a selectable outcome within a market. Bets may only
// reference options that exist and are active.
type BettingOption struct {
	ID        int64     `db:"id"`
	MarketID  int64     `db:"market_id"`
	OptionKey string    `db:"option_key"`
	Label     string    `db:"label"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Match is the fixture a bet references. Owned by the fixture
// collaborator, read-only from this service.
type Match struct {
	ID           int64     `db:"id"`
	HomeClubName string    `db:"home_club_name"`
	AwayClubName string    `db:"away_club_name"`
	MatchDate    time.Time `db:"match_date"`
	Status       string    `db:"status"`
}
