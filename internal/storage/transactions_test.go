package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saifuu/internal/core"
)

func categoryByName(t *testing.T, repo *SQLiteRepository, name string) core.Category {
	t.Helper()
	cats, err := repo.ListCategories(context.Background(), core.CategoryFilter{IncludeInactive: true})
	require.NoError(t, err)
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not found", name)
	return core.Category{}
}

func TestCreateAndGetTransaction(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateTransaction(ctx, core.NewTransaction{
		Amount:          1500,
		Type:            core.Expense,
		Description:     ptr("desk"),
		TransactionDate: mustDate(t, "2024-01-15"),
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, int64(1500), created.Amount)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.NotNil(t, created.Tags)
	assert.Empty(t, created.Tags)

	got, err := repo.GetTransaction(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	missing, err := repo.GetTransaction(ctx, created.ID+1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	second, err := repo.CreateTransaction(ctx, core.NewTransaction{
		Amount: 1, Type: core.Income, TransactionDate: mustDate(t, "2024-01-16"), Tags: []string{"a,b", "c"},
	})
	require.NoError(t, err)
	assert.Greater(t, second.ID, created.ID)
	assert.Equal(t, []string{"a,b", "c"}, second.Tags)
}

func TestCreateTransactionCategoryChecks(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	salary := categoryByName(t, repo, "Salary")
	other := categoryByName(t, repo, "Other")
	day := mustDate(t, "2024-01-15")

	tests := []struct {
		name       string
		categoryID int64
		txType     core.TransactionType
		wantErr    bool
	}{
		{name: "matching type", categoryID: salary.ID, txType: core.Income},
		{name: "both accepts expense", categoryID: other.ID, txType: core.Expense},
		{name: "income category on expense", categoryID: salary.ID, txType: core.Expense, wantErr: true},
		{name: "unknown category", categoryID: 9999, txType: core.Expense, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.categoryID
			_, err := repo.CreateTransaction(ctx, core.NewTransaction{Amount: 5, Type: tt.txType, CategoryID: &id, TransactionDate: day})
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			ve, ok := core.AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Contains(t, ve.Fields, "categoryId")
		})
	}

	_, err := repo.CreateTransaction(ctx, core.NewTransaction{Amount: 5, Type: core.Expense, RecurringID: ptr(int64(77)), TransactionDate: day})
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, ve.Fields, "recurringId")
}

func TestUpdateTransaction(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	food := categoryByName(t, repo, "Food")
	salary := categoryByName(t, repo, "Salary")

	tx, err := repo.CreateTransaction(ctx, core.NewTransaction{
		Amount:          900,
		Type:            core.Expense,
		CategoryID:      &food.ID,
		Description:     ptr("lunch"),
		PaymentMethod:   ptr("card"),
		TransactionDate: mustDate(t, "2024-01-15"),
		Tags:            []string{"work"},
	})
	require.NoError(t, err)

	t.Run("untouched fields keep their values", func(t *testing.T) {
		clock.Advance(time.Second)
		u, err := repo.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Amount: ptr(int64(950))})
		require.NoError(t, err)
		assert.Equal(t, int64(950), u.Amount)
		assert.Equal(t, tx.Type, u.Type)
		assert.Equal(t, tx.CategoryID, u.CategoryID)
		assert.Equal(t, tx.Description, u.Description)
		assert.Equal(t, tx.PaymentMethod, u.PaymentMethod)
		assert.Equal(t, tx.Tags, u.Tags)
		assert.True(t, tx.TransactionDate.Equal(u.TransactionDate))
		assert.Equal(t, tx.CreatedAt, u.CreatedAt)
		assert.True(t, u.UpdatedAt.After(tx.UpdatedAt))
	})

	t.Run("clears nullable fields and replaces tags", func(t *testing.T) {
		u, err := repo.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{
			Null: []string{"description", "paymentMethod"},
			Tags: []string{},
		})
		require.NoError(t, err)
		assert.Nil(t, u.Description)
		assert.Nil(t, u.PaymentMethod)
		assert.Equal(t, []string{}, u.Tags)
		assert.Equal(t, &food.ID, u.CategoryID)
	})

	t.Run("type change must stay compatible with the category", func(t *testing.T) {
		_, err := repo.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Type: ptr(core.Income)})
		ve, ok := core.AsValidation(err)
		require.True(t, ok, "got %v", err)
		assert.Contains(t, ve.Fields, "categoryId")

		u, err := repo.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Type: ptr(core.Income), CategoryID: &salary.ID})
		require.NoError(t, err)
		assert.Equal(t, core.Income, u.Type)
		assert.Equal(t, salary.ID, *u.CategoryID)
	})

	t.Run("clearing the category allows any type", func(t *testing.T) {
		u, err := repo.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Type: ptr(core.Expense), Null: []string{"categoryId"}})
		require.NoError(t, err)
		assert.Nil(t, u.CategoryID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.UpdateTransaction(ctx, 9999, core.TransactionPatch{Amount: ptr(int64(1))})
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = repo.UpdateTransaction(ctx, 9999, core.TransactionPatch{Type: ptr(core.Income)})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestDeleteTransaction(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	tx, err := repo.CreateTransaction(ctx, core.NewTransaction{Amount: 42, Type: core.Income, TransactionDate: mustDate(t, "2024-02-01")})
	require.NoError(t, err)

	deleted, err := repo.DeleteTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, deleted)

	_, err = repo.DeleteTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func seedTransactions(t *testing.T, repo *SQLiteRepository, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		typ := core.Expense
		if i%3 == 0 {
			typ = core.Income
		}
		_, err := repo.CreateTransaction(ctx, core.NewTransaction{
			Amount:          int64(i * 100),
			Type:            typ,
			Description:     ptr(fmt.Sprintf("item %02d", i)),
			TransactionDate: core.NewDate(2024, time.January, i),
		})
		require.NoError(t, err)
	}
}

func TestListTransactionsPagination(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedTransactions(t, repo, 12)

	for page := 1; page <= 4; page++ {
		items, total, err := repo.ListTransactions(ctx, core.TransactionQuery{Page: core.Page{Page: page, Limit: 5}})
		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
		assert.LessOrEqual(t, len(items), 5)

		p := core.NewPagination(core.Page{Page: page, Limit: 5}, total)
		assert.Equal(t, 3, p.TotalPages)
		switch page {
		case 1, 2:
			assert.Len(t, items, 5)
		case 3:
			assert.Len(t, items, 2)
		default:
			assert.Empty(t, items)
		}
	}

	// Default order is newest transaction date first.
	items, _, err := repo.ListTransactions(ctx, core.TransactionQuery{Page: core.Page{Page: 1, Limit: 3}})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-12", items[0].TransactionDate.String())
	assert.Equal(t, "2024-01-10", items[2].TransactionDate.String())
}

func TestListTransactionsFilters(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	seedTransactions(t, repo, 12)
	_, err := repo.CreateTransaction(ctx, core.NewTransaction{
		Amount: 1, Type: core.Expense, Description: ptr("100% literal_match"), TransactionDate: mustDate(t, "2024-03-01"),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		filters core.TransactionFilters
		sort    core.Sort
		want    int64
		first   string
	}{
		{name: "type", filters: core.TransactionFilters{Type: ptr(core.Income)}, want: 4},
		{
			name:    "date range",
			filters: core.TransactionFilters{From: ptr(mustDate(t, "2024-01-03")), To: ptr(mustDate(t, "2024-01-05"))},
			sort:    core.Sort{By: "transaction_date", Order: "asc"},
			want:    3,
			first:   "item 03",
		},
		{name: "search", filters: core.TransactionFilters{Search: ptr("item 1")}, want: 3},
		{name: "percent is literal", filters: core.TransactionFilters{Search: ptr("100%")}, want: 1, first: "100% literal_match"},
		{name: "underscore is literal", filters: core.TransactionFilters{Search: ptr("item_")}, want: 0},
		{
			name:    "amount range",
			filters: core.TransactionFilters{MinAmount: ptr(int64(200)), MaxAmount: ptr(int64(400))},
			sort:    core.Sort{By: "amount", Order: "desc"},
			want:    3,
			first:   "item 04",
		},
		{name: "not recurring", filters: core.TransactionFilters{IsRecurring: ptr(false)}, want: 13},
		{name: "recurring", filters: core.TransactionFilters{IsRecurring: ptr(true)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.ListTransactions(ctx, core.TransactionQuery{
				Filters: tt.filters,
				Sort:    tt.sort,
				Page:    core.Page{Page: 1, Limit: 50},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, items, int(tt.want))
			if tt.first != "" {
				require.NotEmpty(t, items)
				assert.Equal(t, tt.first, *items[0].Description)
			}
		})
	}
}

func TestListTransactionsIgnoresUnknownSort(t *testing.T) {
	repo, _ := newTestRepo(t)
	seedTransactions(t, repo, 3)

	items, _, err := repo.ListTransactions(context.Background(), core.TransactionQuery{
		Sort: core.Sort{By: "amount; DROP TABLE transactions", Order: "asc"},
		Page: core.Page{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "2024-01-01", items[0].TransactionDate.String())
}

func TestTransactionStats(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	food := categoryByName(t, repo, "Food")
	salary := categoryByName(t, repo, "Salary")

	for _, in := range []core.NewTransaction{
		{Amount: 300000, Type: core.Income, CategoryID: &salary.ID, TransactionDate: mustDate(t, "2024-01-01")},
		{Amount: 1000, Type: core.Expense, CategoryID: &food.ID, TransactionDate: mustDate(t, "2024-01-05")},
		{Amount: 2001, Type: core.Expense, CategoryID: &food.ID, TransactionDate: mustDate(t, "2024-02-05")},
		{Amount: 500, Type: core.Expense, TransactionDate: mustDate(t, "2024-02-06")},
	} {
		_, err := repo.CreateTransaction(ctx, in)
		require.NoError(t, err)
	}

	t.Run("by month", func(t *testing.T) {
		s, err := repo.TransactionStats(ctx, core.StatsQuery{GroupBy: core.GroupByMonth})
		require.NoError(t, err)
		assert.Equal(t, int64(300000), s.TotalIncome)
		assert.Equal(t, int64(3501), s.TotalExpense)
		assert.Equal(t, int64(296499), s.Balance)
		assert.Equal(t, int64(4), s.Count)
		require.Len(t, s.Groups, 2)
		assert.Equal(t, "2024-01", s.Groups[0].Key)
		assert.Equal(t, int64(1000), s.Groups[0].Expense)
		assert.Equal(t, "2024-02", s.Groups[1].Key)
		assert.Equal(t, "1250.5", s.Groups[1].Average.String())
	})

	t.Run("by category", func(t *testing.T) {
		s, err := repo.TransactionStats(ctx, core.StatsQuery{GroupBy: core.GroupByCategory})
		require.NoError(t, err)
		require.Len(t, s.Groups, 3)
		assert.Equal(t, "Food", s.Groups[0].Label)
		assert.Equal(t, food.ID, *s.Groups[0].CategoryID)
		assert.Equal(t, int64(3001), s.Groups[0].Expense)
		assert.Equal(t, uncategorized, s.Groups[1].Label)
		assert.Nil(t, s.Groups[1].CategoryID)
		assert.Equal(t, "Salary", s.Groups[2].Label)
	})

	t.Run("by type within range", func(t *testing.T) {
		s, err := repo.TransactionStats(ctx, core.StatsQuery{
			GroupBy:   core.GroupByType,
			StartDate: ptr(mustDate(t, "2024-02-01")),
			EndDate:   ptr(mustDate(t, "2024-02-28")),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), s.TotalIncome)
		assert.Equal(t, int64(2501), s.TotalExpense)
		require.Len(t, s.Groups, 1)
		assert.Equal(t, "expense", s.Groups[0].Key)
		assert.Equal(t, int64(2), s.Groups[0].Count)
	})

	t.Run("empty range", func(t *testing.T) {
		s, err := repo.TransactionStats(ctx, core.StatsQuery{GroupBy: core.GroupByMonth, StartDate: ptr(mustDate(t, "2030-01-01"))})
		require.NoError(t, err)
		assert.Equal(t, int64(0), s.Count)
		assert.NotNil(t, s.Groups)
		assert.Empty(t, s.Groups)
	})
}
