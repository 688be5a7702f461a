package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saifuu/internal/core"
	"saifuu/internal/sheets"
)

// fakeSheets serves the three values endpoints the client uses against an
// in-memory grid.
type fakeSheets struct {
	mu    sync.Mutex
	rows  [][]any
	reads int
	fail  bool
}

var rangeRow = regexp.MustCompile(`![A-Z]+(\d+)`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		f.reads++
		col := make([][]any, len(f.rows))
		for i, row := range f.rows {
			if len(row) > 0 && row[0] != "" {
				col[i] = []any{row[0]}
			} else {
				col[i] = []any{}
			}
		}
		json.NewEncoder(w).Encode(gsheet.ValueRange{Range: rng, Values: col})

	case strings.HasSuffix(rng, ":clear"):
		f.grow(rowNumber(rng))
		f.rows[rowNumber(rng)-1] = []any{}
		fmt.Fprint(w, `{}`)

	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := rowNumber(rng)
		f.grow(n)
		f.rows[n-1] = vr.Values[0]
		fmt.Fprint(w, `{}`)

	default:
		http.Error(w, "unexpected "+r.Method+" "+rng, http.StatusBadRequest)
	}
}

func (f *fakeSheets) grow(n int) {
	for len(f.rows) < n {
		f.rows = append(f.rows, []any{})
	}
}

func (f *fakeSheets) snapshot() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.rows...)
}

func rowNumber(rng string) int {
	m := rangeRow.FindStringSubmatch(rng)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(ts.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return NewWithService(svc, "sheet-id", "Ledger")
}

func entry(id, amount int64, desc string) sheets.Entry {
	return sheets.Entry{
		Transaction: core.Transaction{
			ID:              id,
			Amount:          amount,
			Type:            core.Expense,
			Description:     &desc,
			TransactionDate: core.NewDate(2024, time.May, 2),
			Tags:            []string{},
		},
		Category: "Food",
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing spreadsheet id", err.Error())
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNewUnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: "/nonexistent/sa.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestUpsertWritesHeaderThenRows(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, entry(7, 1250, "lunch")))
	require.NoError(t, c.Upsert(ctx, entry(9, 300, "coffee")))

	rows := fake.snapshot()
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []any{"7", "2024-05-02", "expense", "12.50", "Food", "lunch", "", "", "0001-01-01T00:00:00.000Z"}, rows[1])
	assert.Equal(t, "9", rows[2][0])
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	fake := &fakeSheets{rows: [][]any{
		{"ID"},
		{"3", "2024-01-01"},
		{"5", "2024-01-02"},
	}}
	c := newTestClient(t, fake)

	require.NoError(t, c.Upsert(context.Background(), entry(3, 999, "updated")))

	rows := fake.snapshot()
	require.Len(t, rows, 3)
	assert.Equal(t, "9.99", rows[1][3])
	assert.Equal(t, "updated", rows[1][5])
	assert.Equal(t, "5", rows[2][0])
}

func TestRemoveClearsRowAndIgnoresMissing(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, entry(1, 100, "a")))
	require.NoError(t, c.Upsert(ctx, entry(2, 200, "b")))
	require.NoError(t, c.Remove(ctx, 1))
	require.NoError(t, c.Remove(ctx, 42))

	rows := fake.snapshot()
	require.Len(t, rows, 3)
	assert.Empty(t, rows[1])
	assert.Equal(t, "2", rows[2][0])

	// a fresh id goes after the last used row, never into the cleared one
	require.NoError(t, c.Upsert(ctx, entry(3, 300, "c")))
	rows = fake.snapshot()
	require.Len(t, rows, 4)
	assert.Equal(t, "3", rows[3][0])
}

func TestIndexIsCachedUntilFailure(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, entry(1, 100, "a")))
	require.NoError(t, c.Upsert(ctx, entry(1, 150, "a")))
	assert.Equal(t, 1, fake.reads)

	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()
	require.Error(t, c.Upsert(ctx, entry(1, 175, "a")))

	fake.mu.Lock()
	fake.fail = false
	fake.mu.Unlock()
	require.NoError(t, c.Upsert(ctx, entry(1, 200, "a")))
	assert.Equal(t, 2, fake.reads)
	assert.Equal(t, "2.00", fake.snapshot()[1][3])
}

func TestParseIDColumn(t *testing.T) {
	index, next := parseIDColumn([][]any{
		{"ID"},
		{"10"},
		{},
		{" 12 "},
		{"not-an-id"},
	})
	assert.Equal(t, map[int64]int{10: 2, 12: 4}, index)
	assert.Equal(t, 6, next)

	index, next = parseIDColumn(nil)
	assert.Empty(t, index)
	assert.Equal(t, 1, next)
}

func TestUninitializedClient(t *testing.T) {
	c := &Client{}
	assert.Error(t, c.Upsert(context.Background(), entry(1, 1, "x")))
	assert.Error(t, c.Remove(context.Background(), 1))
}
