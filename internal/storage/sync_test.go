package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualbudget/internal/core"
)

func TestUpsertForSync_RoundTripIsNoOp(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()

	a := newAccount("p1", "Checking")
	a.InterestRate = decimal.NewNullDecimal(decimal.RequireFromString("0.015"))
	a.DueDay = 12
	require.NoError(t, repo.Accounts.Create(ctx, a))

	before, err := repo.Accounts.GetForSync(ctx, a.ID)
	require.NoError(t, err)

	clk.advance(24 * time.Hour)
	require.NoError(t, repo.Accounts.UpsertForSync(ctx, before))

	after, err := repo.Accounts.GetForSync(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, repo.Accounts.Same(before, after))
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))

	all, err := repo.Accounts.ListForSync(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertForSync_KeepsCallerState(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	created := time.Date(2023, 1, 2, 3, 4, 5, 600, time.UTC)
	deleted := created.Add(48 * time.Hour)
	remote := core.Transaction{
		Meta: core.Meta{
			ID:        "remote-1",
			ProfileID: "p1",
			CreatedAt: created,
			UpdatedAt: deleted,
			State:     core.Deleted(deleted),
		},
		BudgetType:  core.Business,
		Date:        core.NewDate(2023, 1, 2),
		Amount:      decimal.RequireFromString("-99.99"),
		Description: "Printer ink",
		CategoryID:  "office",
		AccountID:   "card",
		Reconciled:  true,
	}

	require.NoError(t, repo.Transactions.UpsertForSync(ctx, remote))

	got, err := repo.Transactions.GetForSync(ctx, "remote-1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(deleted))
	at, ok := got.State.DeletedAt()
	require.True(t, ok)
	assert.True(t, at.Equal(deleted))
	assert.True(t, repo.Transactions.Same(remote, got))

	_, err = repo.Transactions.Get(ctx, "remote-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Restoring the record on the other device wins over the local deletion.
	restored := got
	restored.State = core.Active()
	restored.UpdatedAt = deleted.Add(time.Hour)
	restored.Description = "Printer ink (restored)"
	require.NoError(t, repo.Transactions.UpsertForSync(ctx, restored))

	active, err := repo.Transactions.Get(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, "Printer ink (restored)", active.Description)
}

func TestUpsertForSync_RequiresID(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.IncomeSources.UpsertForSync(context.Background(), core.IncomeSource{
		Meta: core.Meta{ProfileID: "p1"}, BudgetType: core.Household, Name: "Salary",
	})
	assert.ErrorIs(t, err, errMissingID)
}

func TestGetForSync_Missing(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Projects.GetForSync(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMonthlyBudgets_Upsert(t *testing.T) {
	repo, clk := newTestRepo(t)
	ctx := context.Background()
	june := core.NewMonth(2024, time.June)

	first, err := repo.MonthlyBudgets.Upsert(ctx, "p1", june, "food", decimal.NewFromInt(400))
	require.NoError(t, err)

	clk.advance(time.Hour)
	second, err := repo.MonthlyBudgets.Upsert(ctx, "p1", june, "food", decimal.NewFromInt(520))
	require.NoError(t, err)

	assert.True(t, second.Amount.Equal(decimal.NewFromInt(520)))
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "update in place keeps the original row")
	assert.True(t, second.UpdatedAt.Equal(clk.t))

	all, err := repo.MonthlyBudgets.ListForSync(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "p1-2024-06-food", all[0].Key())

	_, err = repo.MonthlyBudgets.Upsert(ctx, "p1", june.AddMonths(1), "food", decimal.NewFromInt(1))
	require.NoError(t, err)
	ranged, err := repo.MonthlyBudgets.List(ctx, "p1", june, june)
	require.NoError(t, err)
	assert.Len(t, ranged, 1)

	_, err = repo.MonthlyBudgets.Upsert(ctx, "p1", june, "food", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestMonthlyBudgets_UpsertForSync(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	stamp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mb := core.MonthlyBudget{
		ProfileID:  "p1",
		Month:      core.NewMonth(2024, time.March),
		CategoryID: "rent",
		Amount:     decimal.NewFromInt(1200),
		CreatedAt:  stamp,
		UpdatedAt:  stamp,
	}
	require.NoError(t, repo.MonthlyBudgets.UpsertForSync(ctx, mb))
	require.NoError(t, repo.MonthlyBudgets.UpsertForSync(ctx, mb))

	got, err := repo.MonthlyBudgets.Get(ctx, "p1", mb.Month, "rent")
	require.NoError(t, err)
	assert.True(t, repo.MonthlyBudgets.Same(mb, got))

	key, updated := repo.MonthlyBudgets.Identity(got)
	assert.Equal(t, mb.Key(), key)
	assert.True(t, updated.Equal(stamp))
}

func TestUpsertProfileForSync(t *testing.T) {
	src, _ := newTestRepo(t)
	dst, _ := newTestRepo(t)
	ctx := context.Background()

	p, s, err := src.CreateProfile(ctx, "Shop", core.Settings{DefaultBudgetType: core.Business})
	require.NoError(t, err)

	require.NoError(t, dst.UpsertProfileForSync(ctx, p, s))
	require.NoError(t, dst.UpsertProfileForSync(ctx, p, s))

	got, err := dst.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Name)
	settings, err := dst.GetSettings(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Business, settings.DefaultBudgetType)
}
