// Package main is the entry point for the chips wagering service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chips-wagering/internal/config"
	"chips-wagering/internal/pkg/db"
	"chips-wagering/internal/pkg/lock"
	"chips-wagering/internal/repository"
	"chips-wagering/internal/service"
)

// app holds the wired service stack that a transport mounts.
type app struct {
	cfg        *config.Config
	db         *db.Pool
	ledger     *service.LedgerService
	bets       *service.BetService
	settlement *service.SettlementService
}

func newApp(cfg *config.Config, dbPool *db.Pool) *app {
	balances := repository.NewBalanceRepository(dbPool.Pool)
	transactions := repository.NewTransactionRepository(dbPool.Pool)
	bets := repository.NewBetRepository(dbPool.Pool)
	catalog := repository.NewCatalogRepository(dbPool.Pool)
	locks := lock.NewUserLock()

	betService := service.NewBetService(bets, catalog, cfg.Betting.MaxLegs, cfg.Betting.MaxAmount)

	return &app{
		cfg:        cfg,
		db:         dbPool,
		ledger:     service.NewLedgerService(dbPool.Pool, balances, transactions, locks),
		bets:       betService,
		settlement: service.NewSettlementService(dbPool.Pool, betService, transactions, balances, locks),
	}
}

// startupCheck verifies database reachability and spot-checks the ledger
// invariant on the largest balances before the service reports ready.
func (a *app) startupCheck(ctx context.Context) error {
	if err := a.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	stats, err := a.ledger.GetAllStats(ctx, 10, 0)
	if err != nil {
		return fmt.Errorf("ledger read failed: %w", err)
	}
	for _, s := range stats {
		if !s.Balance.Equal(s.TotalEarned.Sub(s.TotalSpent)) {
			log.Warn().
				Int64("user_id", s.UserID).
				Str("balance", s.Balance.String()).
				Str("total_earned", s.TotalEarned.String()).
				Str("total_spent", s.TotalSpent.String()).
				Msg("Ledger totals out of sync")
		}
	}

	log.Info().Int("balances_checked", len(stats)).Msg("Startup check passed")
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := runMigrations(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	a := newApp(cfg, dbPool)
	if err := a.startupCheck(ctx); err != nil {
		log.Fatal().Err(err).Msg("Startup check failed")
	}

	log.Info().Msg("Chips wagering core ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}
