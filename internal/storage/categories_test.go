package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saifuu/internal/core"
)

func TestCreateCategory(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Pets", Type: core.CategoryExpense, Color: "#123456", Icon: "paw"})
	require.NoError(t, err)
	assert.Positive(t, c.ID)
	assert.Equal(t, int64(seededCategories), c.DisplayOrder)
	assert.True(t, c.IsActive)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)

	again, err := repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, again)

	explicit, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Kids", Type: core.CategoryBoth, DisplayOrder: ptr(int64(0))})
	require.NoError(t, err)
	assert.Equal(t, int64(0), explicit.DisplayOrder)
	assert.NotEqual(t, c.ID, explicit.ID)

	_, err = repo.CreateCategory(ctx, core.NewCategory{Name: "Pets", Type: core.CategoryIncome})
	assert.ErrorIs(t, err, core.ErrDuplicate)
	assert.ErrorIs(t, err, core.ErrConflict)

	// Names only need to be unique among active categories.
	_, err = repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, core.NewCategory{Name: "Pets", Type: core.CategoryExpense})
	require.NoError(t, err)

	// Reactivating the old one would now clash.
	_, err = repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{IsActive: ptr(true)})
	assert.ErrorIs(t, err, core.ErrDuplicate)
}

func TestUpdateCategoryPartial(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Garden", Type: core.CategoryExpense, Color: "#00ff00", Icon: "leaf"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	u, err := repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{Color: ptr("#ff0000")})
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", u.Color)
	assert.Equal(t, c.Name, u.Name)
	assert.Equal(t, c.Icon, u.Icon)
	assert.Equal(t, c.Type, u.Type)
	assert.Equal(t, c.DisplayOrder, u.DisplayOrder)
	assert.Equal(t, c.CreatedAt, u.CreatedAt)
	assert.Equal(t, c.UpdatedAt.Add(time.Minute), u.UpdatedAt)

	_, err = repo.UpdateCategory(ctx, 9999, core.CategoryPatch{Color: ptr("#000000")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateCategoryTypeChecksTransactions(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Misc", Type: core.CategoryBoth})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, core.NewTransaction{
		Amount: 100, Type: core.Expense, CategoryID: &c.ID, TransactionDate: mustDate(t, "2024-01-02"),
	})
	require.NoError(t, err)

	_, err = repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{Type: ptr(core.CategoryIncome)})
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, ve.Fields, "type")

	_, err = repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{Type: ptr(core.CategoryExpense)})
	require.NoError(t, err)
}

func TestUpdateCategoryTypeChecksSubscriptions(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Streaming", Type: core.CategoryExpense})
	require.NoError(t, err)
	_, err = repo.CreateSubscription(ctx, core.NewSubscription{
		Name: "Music", Amount: 999, CategoryID: &c.ID, Frequency: core.Monthly,
		NextPaymentDate: mustDate(t, "2024-03-05"), AutoGenerate: true, IsActive: true,
	})
	require.NoError(t, err)

	_, err = repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{Type: ptr(core.CategoryIncome)})
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, ve.Fields, "type")

	unchanged, err := repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryExpense, unchanged.Type)

	u, err := repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{Type: ptr(core.CategoryBoth)})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryBoth, u.Type)
}

func TestReorderCategoriesWithNoneActive(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx, core.CategoryFilter{})
	require.NoError(t, err)
	for _, c := range cats {
		_, err := repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{IsActive: ptr(false)})
		require.NoError(t, err)
	}

	reordered, err := repo.ReorderCategories(ctx, []int64{})
	require.NoError(t, err)
	assert.Empty(t, reordered)

	_, err = repo.ReorderCategories(ctx, []int64{cats[0].ID})
	_, ok := core.AsValidation(err)
	assert.True(t, ok, "got %v", err)
}

func TestDeleteCategory(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	day := mustDate(t, "2024-01-10")

	usedByTx, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Used by tx", Type: core.CategoryExpense})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, core.NewTransaction{Amount: 10, Type: core.Expense, CategoryID: &usedByTx.ID, TransactionDate: day})
	require.NoError(t, err)

	usedBySub, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Used by sub", Type: core.CategoryExpense})
	require.NoError(t, err)
	_, err = repo.CreateSubscription(ctx, core.NewSubscription{
		Name: "Gym", Amount: 3000, CategoryID: &usedBySub.ID, Frequency: core.Monthly, NextPaymentDate: day, IsActive: true,
	})
	require.NoError(t, err)

	unused, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Unused", Type: core.CategoryExpense})
	require.NoError(t, err)

	t.Run("referenced by a transaction", func(t *testing.T) {
		_, err := repo.DeleteCategory(ctx, usedByTx.ID)
		assert.ErrorIs(t, err, core.ErrInUse)
		var inUse *core.InUseError
		require.True(t, errors.As(err, &inUse))
		assert.Equal(t, int64(1), inUse.Transactions)
		assert.Equal(t, int64(0), inUse.Subscriptions)

		still, err := repo.GetCategory(ctx, usedByTx.ID)
		require.NoError(t, err)
		assert.NotNil(t, still)
	})

	t.Run("referenced by a subscription", func(t *testing.T) {
		_, err := repo.DeleteCategory(ctx, usedBySub.ID)
		assert.ErrorIs(t, err, core.ErrConflict)
	})

	t.Run("unreferenced", func(t *testing.T) {
		deleted, err := repo.DeleteCategory(ctx, unused.ID)
		require.NoError(t, err)
		assert.Equal(t, unused, deleted)

		gone, err := repo.GetCategory(ctx, unused.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("absent", func(t *testing.T) {
		_, err := repo.DeleteCategory(ctx, unused.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func activeIDs(t *testing.T, repo *SQLiteRepository) []int64 {
	t.Helper()
	cats, err := repo.ListCategories(context.Background(), core.CategoryFilter{})
	require.NoError(t, err)
	ids := make([]int64, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return ids
}

func TestReorderCategories(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// An inactive category is not part of the ordering.
	inactive, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Old", Type: core.CategoryExpense})
	require.NoError(t, err)
	_, err = repo.UpdateCategory(ctx, inactive.ID, core.CategoryPatch{IsActive: ptr(false)})
	require.NoError(t, err)

	original := activeIDs(t, repo)
	reversed := make([]int64, len(original))
	for i, id := range original {
		reversed[len(original)-1-i] = id
	}

	t.Run("permutation", func(t *testing.T) {
		cats, err := repo.ReorderCategories(ctx, reversed)
		require.NoError(t, err)
		require.Len(t, cats, len(reversed))
		for i, c := range cats {
			assert.Equal(t, reversed[i], c.ID)
			assert.Equal(t, int64(i), c.DisplayOrder)
		}
		assert.Equal(t, reversed, activeIDs(t, repo))
	})

	invalid := map[string][]int64{
		"omits an id":       reversed[1:],
		"adds unknown id":   append(append([]int64{}, reversed...), 424242),
		"includes inactive": append(append([]int64{}, reversed...), inactive.ID),
		"duplicates an id":  append(append([]int64{}, reversed...), reversed[0]),
	}
	for name, ids := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := repo.ReorderCategories(ctx, ids)
			ve, ok := core.AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Contains(t, ve.Fields, "categoryIds")
			assert.Equal(t, reversed, activeIDs(t, repo), "order must not change")
		})
	}
}

func TestCheckPermutation(t *testing.T) {
	assert.NoError(t, checkPermutation([]int64{3, 1, 2}, []int64{1, 2, 3}))

	err := checkPermutation([]int64{1, 1, 9}, []int64{1, 2})
	ve, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{
		"duplicate category ids: 1",
		"unknown or inactive category ids: 9",
		"missing active category ids: 2",
	}, ve.Fields["categoryIds"])
}
