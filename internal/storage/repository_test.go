package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retromoney/internal/core"
)

func createTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSeed(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	q := repo.Queries()

	salary, err := q.GetSalary(ctx)
	require.NoError(t, err)
	assert.True(t, salary.IsZero())

	categories, err := q.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 4)
	total := decimal.Zero
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		total = total.Add(c.Weight)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Fixed Expenses", "Investments", "Leisure", "Savings"}, names)
	assert.True(t, total.Equal(decimal.NewFromInt(1)), "weights sum to %s", total)

	accounts, err := q.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "Payoneer", accounts[0].Name)
	assert.True(t, accounts[0].FeePercent.Equal(dec("0.03")))
	assert.Equal(t, "Belo", accounts[1].Name)
	assert.Equal(t, core.CurrencyARS, accounts[2].Currency)
	require.NotNil(t, accounts[2].DerivedFrom)
	assert.Equal(t, accounts[1].ID, *accounts[2].DerivedFrom)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(path))
	version, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	categories, err := repo.Queries().ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 4, "seed must not run twice")
}

func TestWithTxRollsBack(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(q *Queries) error {
		require.NoError(t, q.SetSalary(ctx, dec("1000")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	salary, err := repo.Queries().GetSalary(ctx)
	require.NoError(t, err)
	assert.True(t, salary.IsZero())

	err = repo.WithTx(ctx, func(q *Queries) error {
		return q.SetSalary(ctx, dec("1000"))
	})
	require.NoError(t, err)
	salary, err = repo.Queries().GetSalary(ctx)
	require.NoError(t, err)
	assert.True(t, salary.Equal(dec("1000")))
}

func TestExpenseLifecycle(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	q := repo.Queries()

	cat, err := q.GetCategoryByName(ctx, core.CategoryFixedExpenses)
	require.NoError(t, err)

	belo := int64(2)
	created, err := q.CreateExpense(ctx, CreateExpenseParams{
		Date:         core.NewDate(2024, 5, 10),
		Description:  "Rent",
		Amount:       dec("11500"),
		Currency:     core.CurrencyARS,
		CategoryID:   cat.ID,
		AccountID:    &belo,
		AccountDebit: dec("10"),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Fixed Expenses", created.Category)
	assert.Equal(t, core.Month("2024-05"), created.Month())
	require.NotNil(t, created.AccountID)
	assert.True(t, created.AccountDebit.Equal(dec("10")))
	assert.Nil(t, created.InvestmentID)

	created.Description = "Rent May"
	created.AccountID = nil
	require.NoError(t, q.UpdateExpense(ctx, created))
	got, err := q.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent May", got.Description)
	assert.Nil(t, got.AccountID)
	assert.True(t, got.AccountDebit.IsZero())

	list, err := q.ListExpensesByMonth(ctx, "2024-05")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, q.SoftDeleteExpense(ctx, created.ID))
	_, err = q.GetExpense(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, q.SoftDeleteExpense(ctx, created.ID), core.ErrNotFound)

	list, err = q.ListExpensesByMonth(ctx, "2024-05")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAllocations(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	q := repo.Queries()

	_, err := q.GetAllocation(ctx, "2024-05", 1)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, q.UpsertAllocation(ctx, core.Allocation{
		Month: "2024-05", CategoryID: 1, AllocatedAmount: dec("600"), ActualAmount: decimal.Zero,
	}))
	require.NoError(t, q.UpdateAllocationActual(ctx, "2024-05", 1, dec("42.5")))
	require.NoError(t, q.UpdateAllocationAllocated(ctx, "2024-05", 1, dec("700")))

	a, err := q.GetAllocation(ctx, "2024-05", 1)
	require.NoError(t, err)
	assert.True(t, a.AllocatedAmount.Equal(dec("700")))
	assert.True(t, a.ActualAmount.Equal(dec("42.5")))

	all, err := q.ListAllocations(ctx, "2024-05")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccountsAndTransfers(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	q := repo.Queries()

	local, err := q.GetLocalAccount(ctx, core.CurrencyARS)
	require.NoError(t, err)
	assert.Equal(t, "Cuenta ARS", local.Name)

	require.NoError(t, q.UpdateAccountBalance(ctx, 1, dec("500")))
	acc, err := q.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("500")))
	assert.ErrorIs(t, q.UpdateAccountBalance(ctx, 99, dec("1")), core.ErrNotFound)

	tr, err := q.CreateTransfer(ctx, core.Transfer{
		Date:          core.NewDate(2024, 5, 2),
		Amount:        dec("96.03"),
		FromAccountID: 1,
		ToAccountID:   2,
		GrossAmount:   dec("100"),
		TotalFees:     dec("3.97"),
		Rate:          decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.True(t, tr.TotalFees.Equal(dec("3.97")))

	transfers, err := q.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, transfers, 1)

	require.NoError(t, q.DeleteTransfer(ctx, tr.ID))
	_, err = q.GetTransfer(ctx, tr.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInvestments(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	q := repo.Queries()

	inv, err := q.CreateInvestment(ctx, core.Investment{
		Name:          "ACME",
		PurchaseDate:  core.NewDate(2024, 6, 1),
		PurchasePrice: dec("100"),
		Quantity:      dec("2"),
		CurrentPrice:  dec("110"),
		Type:          core.InvestmentStock,
	})
	require.NoError(t, err)
	assert.False(t, inv.LastUpdated.IsZero())

	inv.CurrentPrice = dec("120")
	require.NoError(t, q.UpdateInvestment(ctx, inv))
	got, err := q.GetInvestment(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Gain().Equal(dec("40")))

	require.NoError(t, q.DeleteInvestment(ctx, inv.ID))
	assert.ErrorIs(t, q.DeleteInvestment(ctx, inv.ID), core.ErrNotFound)
}
