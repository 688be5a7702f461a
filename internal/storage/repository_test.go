package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saifuu/internal/core"
)

// seededCategories is the number of rows inserted by the seed migration.
const seededCategories = 11

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRepo(t *testing.T) (*SQLiteRepository, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)}
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "saifuu.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, clock
}

func ptr[T any](v T) *T { return &v }

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saifuu.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	v, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), v)

	require.NoError(t, RollbackMigrations(path, 1))
	v, _, err = MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func TestSeededCategories(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx, core.CategoryFilter{})
	require.NoError(t, err)
	assert.Len(t, cats, seededCategories)
	for i := 1; i < len(cats); i++ {
		assert.LessOrEqual(t, cats[i-1].DisplayOrder, cats[i].DisplayOrder)
	}

	income, err := repo.ListCategories(ctx, core.CategoryFilter{Type: ptr(core.CategoryIncome)})
	require.NoError(t, err)
	for _, c := range income {
		assert.True(t, c.Type == core.CategoryIncome || c.Type == core.CategoryBoth, c.Name)
	}
	assert.Less(t, len(income), seededCategories)
}

func TestUpdatedAtStrictlyIncreasesWithFrozenClock(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Books", Type: core.CategoryExpense})
	require.NoError(t, err)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)

	prev := c.UpdatedAt
	for i := 0; i < 3; i++ {
		c, err = repo.UpdateCategory(ctx, c.ID, core.CategoryPatch{Icon: ptr("book")})
		require.NoError(t, err)
		assert.True(t, c.UpdatedAt.After(prev), "updatedAt %s should be after %s", c.UpdatedAt, prev)
		assert.Equal(t, time.Millisecond, c.UpdatedAt.Sub(prev))
		prev = c.UpdatedAt
	}
}
