// Package service tests run against a PostgreSQL container; pure
// validation and state machine checks run without one.
package service

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"chips-wagering/internal/pkg/lock"
	"chips-wagering/internal/repository"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// testEnv bundles the fully wired services over one database container.
type testEnv struct {
	pool       *pgxpool.Pool
	ledger     *LedgerService
	bets       *BetService
	settlement *SettlementService
}

// setupTestEnv starts a PostgreSQL container, applies the schema and wires
// the full service stack. Skips the test if Docker is not available.
func setupTestEnv(t *testing.T) (*testEnv, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	for _, stmt := range testSchema {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	balances := repository.NewBalanceRepository(pool)
	transactions := repository.NewTransactionRepository(pool)
	bets := repository.NewBetRepository(pool)
	catalog := repository.NewCatalogRepository(pool)
	locks := lock.NewUserLock()

	env := &testEnv{
		pool:   pool,
		ledger: NewLedgerService(pool, balances, transactions, locks),
		bets:   NewBetService(bets, catalog, 20, 0),
	}
	env.settlement = NewSettlementService(pool, env.bets, transactions, balances, locks)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return env, cleanup
}

// testSchema mirrors the startup migrations.
var testSchema = []string{
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

// seedCatalog inserts a market with two options and one match.
func seedCatalog(t *testing.T, pool *pgxpool.Pool) (optionIDs []int64, matchID int64) {
	ctx := context.Background()

	var marketID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO betting_market (name, type) VALUES ('match winner', 'single') RETURNING id`,
	).Scan(&marketID)
	require.NoError(t, err)

	for _, key := range []string{"home_win", "away_win"} {
		var id int64
		err = pool.QueryRow(ctx,
			`INSERT INTO betting_option (market_id, option_key, label) VALUES ($1, $2, $2) RETURNING id`,
			marketID, key,
		).Scan(&id)
		require.NoError(t, err)
		optionIDs = append(optionIDs, id)
	}

	err = pool.QueryRow(ctx,
		`INSERT INTO game_match (home_club_name, away_club_name, match_date) VALUES ('Lions', 'Tigers', NOW() + INTERVAL '1 day') RETURNING id`,
	).Scan(&matchID)
	require.NoError(t, err)

	return optionIDs, matchID
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	expected, err := decimal.NewFromString(want)
	require.NoError(t, err)
	assert.True(t, expected.Equal(got), "expected %s, got %s", want, got)
}

// countRows is a small helper for asserting nothing was written.
func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var count int
	err := pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&count)
	require.NoError(t, err)
	return count
}
