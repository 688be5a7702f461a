package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saifuu/internal/core"
	"saifuu/internal/sheets"
)

func entry(id, amount int64) sheets.Entry {
	return sheets.Entry{Transaction: core.Transaction{ID: id, Amount: amount, Type: core.Expense, Tags: []string{}}}
}

func TestStoreUpsertReplacesByID(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, entry(2, 100)))
	require.NoError(t, s.Upsert(ctx, entry(1, 200)))
	require.NoError(t, s.Upsert(ctx, entry(2, 300)))

	e, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, int64(300), e.Transaction.Amount)

	rows := s.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, sheets.Header, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "3.00", rows[2][3])
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, entry(1, 100)))
	require.NoError(t, s.Remove(ctx, 1))
	require.NoError(t, s.Remove(ctx, 1))

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 2, s.Writes())
}
