package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations is the database schema, applied idempotently at startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS betting_market (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		type VARCHAR(50) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS betting_option (
		id BIGSERIAL PRIMARY KEY,
		market_id BIGINT NOT NULL REFERENCES betting_market(id),
		option_key VARCHAR(100) NOT NULL,
		label VARCHAR(255) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS game_match (
		id BIGSERIAL PRIMARY KEY,
		home_club_name VARCHAR(255) NOT NULL,
		away_club_name VARCHAR(255) NOT NULL,
		match_date TIMESTAMPTZ NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'scheduled'
	)`,
	`CREATE TABLE IF NOT EXISTS user_chips_balance (
		user_id BIGINT PRIMARY KEY,
		balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		total_earned NUMERIC(18,2) NOT NULL DEFAULT 0,
		total_spent NUMERIC(18,2) NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_chips_transaction (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES user_chips_balance(user_id),
		amount NUMERIC(18,2) NOT NULL,
		balance_before NUMERIC(18,2) NOT NULL,
		balance_after NUMERIC(18,2) NOT NULL,
		transaction_type VARCHAR(50) NOT NULL,
		reference_id BIGINT,
		reference_type VARCHAR(50),
		description TEXT,
		transaction_hash VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chips_transaction_user
		ON user_chips_transaction (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_chips_transaction_reference
		ON user_chips_transaction (reference_type, reference_id)`,
	`CREATE TABLE IF NOT EXISTS betting_bet (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		match_id BIGINT NOT NULL REFERENCES game_match(id),
		amount NUMERIC(18,2) NOT NULL,
		potential_payout NUMERIC(18,2) NOT NULL,
		total_odds NUMERIC(10,2) NOT NULL,
		bet_type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		result_payout NUMERIC(18,2) NOT NULL DEFAULT 0,
		placed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		settled_at TIMESTAMPTZ,
		transaction_hash VARCHAR(255),
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bet_user ON betting_bet (user_id, placed_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_bet_match ON betting_bet (match_id)`,
	`CREATE TABLE IF NOT EXISTS betting_bet_detail (
		id BIGSERIAL PRIMARY KEY,
		bet_id BIGINT NOT NULL REFERENCES betting_bet(id) ON DELETE CASCADE,
		option_id BIGINT NOT NULL REFERENCES betting_option(id),
		odd_value NUMERIC(10,2) NOT NULL,
		is_winner BOOLEAN,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (bet_id, option_id)
	)`,
	`CREATE TABLE IF NOT EXISTS betting_bet_history (
		id BIGSERIAL PRIMARY KEY,
		bet_id BIGINT NOT NULL REFERENCES betting_bet(id) ON DELETE CASCADE,
		old_status VARCHAR(20),
		new_status VARCHAR(20) NOT NULL,
		changed_by BIGINT,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// runMigrations applies the schema statements in order.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("Database migrations applied")
	return nil
}
