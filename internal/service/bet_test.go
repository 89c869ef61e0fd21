package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chips-wagering/internal/model"
	"chips-wagering/internal/repository"
)

func validInput() model.BetInput {
	return model.BetInput{
		UserID:          1,
		MatchID:         1,
		Amount:          decimal.NewFromInt(10),
		PotentialPayout: decimal.NewFromInt(25),
		TotalOdds:       decimal.NewFromFloat(2.5),
		Type:            model.BetTypeSingle,
		Legs:            []model.BetLegInput{{OptionID: 1, OddValue: decimal.NewFromFloat(2.5)}},
	}
}

func TestValidateBetInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.BetInput)
		wantErr bool
	}{
		{name: "valid single", mutate: func(in *model.BetInput) {}},
		{
			name: "valid accumulator",
			mutate: func(in *model.BetInput) {
				in.Type = model.BetTypeMultiple
				in.Legs = []model.BetLegInput{
					{OptionID: 1, OddValue: decimal.NewFromFloat(1.5)},
					{OptionID: 2, OddValue: decimal.NewFromFloat(2.0)},
				}
				in.TotalOdds = decimal.NewFromFloat(3.0)
				in.PotentialPayout = decimal.NewFromInt(30)
			},
		},
		{
			name: "rounding within tolerance",
			mutate: func(in *model.BetInput) {
				in.Type = model.BetTypeMultiple
				in.Legs = []model.BetLegInput{
					{OptionID: 1, OddValue: decimal.NewFromFloat(1.33)},
					{OptionID: 2, OddValue: decimal.NewFromFloat(2.1)},
				}
				// true product is 2.793, stored rounded
				in.TotalOdds = decimal.NewFromFloat(2.79)
				in.PotentialPayout = decimal.NewFromFloat(27.9)
			},
		},
		{name: "missing user", mutate: func(in *model.BetInput) { in.UserID = 0 }, wantErr: true},
		{name: "missing match", mutate: func(in *model.BetInput) { in.MatchID = 0 }, wantErr: true},
		{name: "zero amount", mutate: func(in *model.BetInput) { in.Amount = decimal.Zero }, wantErr: true},
		{name: "negative amount", mutate: func(in *model.BetInput) { in.Amount = decimal.NewFromInt(-5) }, wantErr: true},
		{name: "zero payout", mutate: func(in *model.BetInput) { in.PotentialPayout = decimal.Zero }, wantErr: true},
		{name: "zero odds", mutate: func(in *model.BetInput) { in.TotalOdds = decimal.Zero }, wantErr: true},
		{name: "unknown type", mutate: func(in *model.BetInput) { in.Type = "parlay" }, wantErr: true},
		{name: "no legs", mutate: func(in *model.BetInput) { in.Legs = nil }, wantErr: true},
		{
			name:    "one leg typed multiple",
			mutate:  func(in *model.BetInput) { in.Type = model.BetTypeMultiple },
			wantErr: true,
		},
		{
			name: "two legs typed single",
			mutate: func(in *model.BetInput) {
				in.Legs = append(in.Legs, model.BetLegInput{OptionID: 2, OddValue: decimal.NewFromInt(1)})
				in.TotalOdds = decimal.NewFromFloat(2.5)
			},
			wantErr: true,
		},
		{
			name: "zero leg odd",
			mutate: func(in *model.BetInput) {
				in.Legs[0].OddValue = decimal.Zero
			},
			wantErr: true,
		},
		{
			name: "odds product mismatch",
			mutate: func(in *model.BetInput) {
				in.TotalOdds = decimal.NewFromFloat(3.0)
				in.PotentialPayout = decimal.NewFromInt(30)
			},
			wantErr: true,
		},
		{
			name: "payout mismatch",
			mutate: func(in *model.BetInput) {
				in.PotentialPayout = decimal.NewFromInt(26)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := validateBetInput(in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBet)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBetStatusStateMachine(t *testing.T) {
	terminal := []model.BetStatus{
		model.BetStatusWon, model.BetStatusLost,
		model.BetStatusCancelled, model.BetStatusRefunded,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
		assert.True(t, s.Valid())
	}
	assert.False(t, model.BetStatusPending.Terminal())
	assert.True(t, model.BetStatusPending.Valid())
	assert.False(t, model.BetStatus("settled").Valid())
}

func TestBetService_Create(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	optionIDs, matchID := seedCatalog(t, env.pool)

	in := validInput()
	in.MatchID = matchID
	in.Legs[0].OptionID = optionIDs[0]

	bet, err := env.bets.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, model.BetStatusPending, bet.Status)

	// Unknown match
	bad := in
	bad.MatchID = 999999
	_, err = env.bets.Create(ctx, bad)
	assert.ErrorIs(t, err, repository.ErrMatchNotFound)

	// Unknown option
	bad = in
	bad.Legs = []model.BetLegInput{{OptionID: 999999, OddValue: decimal.NewFromFloat(2.5)}}
	_, err = env.bets.Create(ctx, bad)
	assert.ErrorIs(t, err, repository.ErrOptionNotFound)

	// Inactive option
	_, err = env.pool.Exec(ctx, `UPDATE betting_option SET is_active = FALSE WHERE id = $1`, optionIDs[1])
	require.NoError(t, err)
	bad = in
	bad.Legs = []model.BetLegInput{{OptionID: optionIDs[1], OddValue: decimal.NewFromFloat(2.5)}}
	_, err = env.bets.Create(ctx, bad)
	assert.ErrorIs(t, err, ErrInactiveOption)
}

func TestBetService_CreateCaps(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	optionIDs, matchID := seedCatalog(t, env.pool)

	capped := NewBetService(
		repository.NewBetRepository(env.pool),
		repository.NewCatalogRepository(env.pool),
		1, 50,
	)

	in := validInput()
	in.MatchID = matchID
	in.Legs[0].OptionID = optionIDs[0]

	// Amount over the cap
	over := in
	over.Amount = decimal.NewFromInt(60)
	over.PotentialPayout = decimal.NewFromInt(150)
	_, err := capped.Create(ctx, over)
	assert.ErrorIs(t, err, ErrInvalidBet)

	// Too many legs
	multi := in
	multi.Type = model.BetTypeMultiple
	multi.Legs = []model.BetLegInput{
		{OptionID: optionIDs[0], OddValue: decimal.NewFromFloat(1.25)},
		{OptionID: optionIDs[1], OddValue: decimal.NewFromFloat(2.0)},
	}
	multi.TotalOdds = decimal.NewFromFloat(2.5)
	_, err = capped.Create(ctx, multi)
	assert.ErrorIs(t, err, ErrInvalidBet)

	// Within caps still works
	_, err = capped.Create(ctx, in)
	assert.NoError(t, err)
}

func TestBetService_AccessControl(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	optionIDs, matchID := seedCatalog(t, env.pool)

	in := validInput()
	in.UserID = 10
	in.MatchID = matchID
	in.Legs[0].OptionID = optionIDs[0]

	bet, err := env.bets.Create(ctx, in)
	require.NoError(t, err)

	owner := int64(10)
	stranger := int64(11)

	got, err := env.bets.Get(ctx, bet.ID, &owner)
	require.NoError(t, err)
	assert.Len(t, got.Details, 1)

	_, err = env.bets.Get(ctx, bet.ID, &stranger)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = env.bets.GetHistory(ctx, bet.ID, &stranger)
	assert.ErrorIs(t, err, ErrAccessDenied)

	err = env.bets.Delete(ctx, bet.ID, &stranger)
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Admin-style access with no owner filter
	_, err = env.bets.Get(ctx, bet.ID, nil)
	assert.NoError(t, err)
}

func TestBetService_TransitionValidation(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()
	optionIDs, matchID := seedCatalog(t, env.pool)

	in := validInput()
	in.MatchID = matchID
	in.Legs[0].OptionID = optionIDs[0]

	bet, err := env.bets.Create(ctx, in)
	require.NoError(t, err)

	// pending is not a transition target
	_, err = env.bets.Transition(ctx, bet.ID, model.BetStatusPending, nil, nil)
	assert.ErrorIs(t, err, repository.ErrIllegalTransition)

	// neither is an unknown status
	_, err = env.bets.Transition(ctx, bet.ID, "voided", nil, nil)
	assert.ErrorIs(t, err, repository.ErrIllegalTransition)

	// the bet is untouched by the rejected attempts
	got, err := env.bets.Get(ctx, bet.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BetStatusPending, got.Status)
}
