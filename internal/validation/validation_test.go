package validation

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saifuu/internal/core"
)

func fieldErrors(t *testing.T, err error) core.FieldErrors {
	t.Helper()
	ve, ok := core.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	return ve.Fields
}

func TestTransactionCreate(t *testing.T) {
	t.Run("minimal valid body", func(t *testing.T) {
		tx, err := TransactionCreate([]byte(`{"amount":1500,"type":"expense","description":"desk","transactionDate":"2024-01-15"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1500), tx.Amount)
		assert.Equal(t, core.Expense, tx.Type)
		assert.Equal(t, "desk", *tx.Description)
		assert.Equal(t, "2024-01-15", tx.TransactionDate.String())
		assert.NotNil(t, tx.Tags)
		assert.Empty(t, tx.Tags)
	})

	t.Run("server timestamps and unknown keys are ignored", func(t *testing.T) {
		tx, err := TransactionCreate([]byte(`{"amount":1,"type":"income","transactionDate":"2024-01-15",
			"createdAt":"1999-01-01T00:00:00.000Z","updatedAt":"x","bogus":true}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1), tx.Amount)
	})

	t.Run("strings are trimmed and blank optionals dropped", func(t *testing.T) {
		tx, err := TransactionCreate([]byte(`{"amount":5,"type":"income","transactionDate":"2024-01-15",
			"description":"   ","paymentMethod":"  card ","tags":[" a ","b"]}`))
		require.NoError(t, err)
		assert.Nil(t, tx.Description)
		assert.Equal(t, "card", *tx.PaymentMethod)
		assert.Equal(t, []string{"a", "b"}, tx.Tags)
	})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "negative amount", body: `{"amount":-100,"type":"expense","transactionDate":"2024-01-15"}`, field: "amount"},
		{name: "zero amount", body: `{"amount":0,"type":"expense","transactionDate":"2024-01-15"}`, field: "amount"},
		{name: "fractional amount", body: `{"amount":15.5,"type":"expense","transactionDate":"2024-01-15"}`, field: "amount"},
		{name: "string amount", body: `{"amount":"abc","type":"expense","transactionDate":"2024-01-15"}`, field: "amount"},
		{name: "missing amount", body: `{"type":"expense","transactionDate":"2024-01-15"}`, field: "amount"},
		{name: "enum is case sensitive", body: `{"amount":1,"type":"Expense","transactionDate":"2024-01-15"}`, field: "type"},
		{name: "both is not a transaction type", body: `{"amount":1,"type":"both","transactionDate":"2024-01-15"}`, field: "type"},
		{name: "bad date", body: `{"amount":1,"type":"expense","transactionDate":"2024-02-30"}`, field: "transactionDate"},
		{name: "missing date", body: `{"amount":1,"type":"expense"}`, field: "transactionDate"},
		{name: "tags not a list", body: `{"amount":1,"type":"expense","transactionDate":"2024-01-15","tags":"a,b"}`, field: "tags"},
		{name: "bad receipt url", body: `{"amount":1,"type":"expense","transactionDate":"2024-01-15","receiptUrl":"nope"}`, field: "receiptUrl"},
		{name: "array body", body: `[1,2]`, field: core.FormField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TransactionCreate([]byte(tt.body))
			fe := fieldErrors(t, err)
			assert.Contains(t, fe, tt.field)
		})
	}

	t.Run("type mismatch is reported once", func(t *testing.T) {
		_, err := TransactionCreate([]byte(`{"amount":"abc","type":"expense","transactionDate":"2024-01-15"}`))
		fe := fieldErrors(t, err)
		assert.Equal(t, []string{"must be an integer"}, fe["amount"])
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := TransactionCreate([]byte(`{"amount":`))
		assert.ErrorIs(t, err, ErrMalformedJSON)
		_, err = TransactionCreate(nil)
		assert.ErrorIs(t, err, ErrMalformedJSON)
	})
}

func TestTransactionUpdate(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		p, err := TransactionUpdate([]byte(`{"amount":200}`))
		require.NoError(t, err)
		assert.Equal(t, int64(200), *p.Amount)
		assert.Nil(t, p.Type)
		assert.Nil(t, p.Tags)
	})

	t.Run("nulls and blanks clear nullable fields", func(t *testing.T) {
		p, err := TransactionUpdate([]byte(`{"description":null,"paymentMethod":"  ","categoryId":null}`))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"description", "paymentMethod", "categoryId"}, p.Null)
	})

	t.Run("null tags clear the list", func(t *testing.T) {
		p, err := TransactionUpdate([]byte(`{"tags":null}`))
		require.NoError(t, err)
		assert.NotNil(t, p.Tags)
		assert.Empty(t, p.Tags)
	})

	t.Run("null on required field", func(t *testing.T) {
		_, err := TransactionUpdate([]byte(`{"amount":null}`))
		assert.Contains(t, fieldErrors(t, err), "amount")
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := TransactionUpdate([]byte(`{"createdAt":"2024-01-01T00:00:00.000Z"}`))
		assert.Contains(t, fieldErrors(t, err), core.FormField)
	})
}

func TestTransactionList(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		q, err := TransactionList(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, core.Sort{By: "transaction_date", Order: "desc"}, q.Sort)
		assert.Equal(t, core.Page{Page: 1, Limit: core.DefaultPageSize}, q.Page)
		assert.Equal(t, core.TransactionFilters{}, q.Filters)
	})

	t.Run("undefined and null values are dropped", func(t *testing.T) {
		v := url.Values{
			"type":        {"undefined"},
			"category_id": {"null"},
			"search":      {""},
			"from":        {"undefined"},
		}
		q, err := TransactionList(v)
		require.NoError(t, err)
		assert.Equal(t, core.TransactionFilters{}, q.Filters)
	})

	t.Run("coerces numbers", func(t *testing.T) {
		v := url.Values{
			"category_id": {"7"},
			"page":        {"2"},
			"limit":       {"5"},
			"min_amount":  {"100"},
			"sort_by":     {"amount"},
			"sort_order":  {"ASC"},
		}
		q, err := TransactionList(v)
		require.NoError(t, err)
		assert.Equal(t, int64(7), *q.Filters.CategoryID)
		assert.Equal(t, core.Page{Page: 2, Limit: 5}, q.Page)
		assert.Equal(t, int64(100), *q.Filters.MinAmount)
		assert.Equal(t, core.Sort{By: "amount", Order: "asc"}, q.Sort)
	})

	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{name: "sort column not whitelisted", query: url.Values{"sort_by": {"category_id; DROP TABLE"}}, field: "sort_by"},
		{name: "bad sort order", query: url.Values{"sort_order": {"sideways"}}, field: "sort_order"},
		{name: "page zero", query: url.Values{"page": {"0"}}, field: "page"},
		{name: "limit too large", query: url.Values{"limit": {"1000"}}, field: "limit"},
		{name: "non numeric category", query: url.Values{"category_id": {"food"}}, field: "category_id"},
		{name: "inverted range", query: url.Values{"from": {"2024-02-01"}, "to": {"2024-01-01"}}, field: "to"},
		{name: "bad type", query: url.Values{"type": {"transfer"}}, field: "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TransactionList(tt.query)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}
}

func TestTransactionStats(t *testing.T) {
	q, err := TransactionStats(url.Values{"startDate": {"2024-01-01"}, "groupBy": {"category"}})
	require.NoError(t, err)
	assert.Equal(t, core.GroupByCategory, q.GroupBy)
	assert.Equal(t, "2024-01-01", q.StartDate.String())
	assert.Nil(t, q.EndDate)

	_, err = TransactionStats(url.Values{"groupBy": {"week"}})
	assert.Contains(t, fieldErrors(t, err), "groupBy")
}

func TestCategoryBodies(t *testing.T) {
	c, err := CategoryCreate([]byte(`{"name":"  Groceries ","type":"expense","color":"#22c55e","icon":"cart"}`))
	require.NoError(t, err)
	assert.Equal(t, "Groceries", c.Name)
	assert.Nil(t, c.DisplayOrder)

	_, err = CategoryCreate([]byte(`{"name":"   ","type":"expense"}`))
	assert.Contains(t, fieldErrors(t, err), "name")

	_, err = CategoryCreate([]byte(`{"name":"x","type":"transfer"}`))
	assert.Contains(t, fieldErrors(t, err), "type")

	p, err := CategoryUpdate([]byte(`{"isActive":false}`))
	require.NoError(t, err)
	assert.False(t, *p.IsActive)

	_, err = CategoryUpdate([]byte(`{"name":""}`))
	assert.Equal(t, []string{"must not be empty"}, fieldErrors(t, err)["name"])

	_, err = CategoryUpdate([]byte(`{}`))
	assert.Contains(t, fieldErrors(t, err), core.FormField)
}

func TestCategoryReorder(t *testing.T) {
	ids, err := CategoryReorder([]byte(`{"categoryIds":[3,1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	// Whether an empty list matches the active set is for storage to decide.
	ids, err = CategoryReorder([]byte(`{"categoryIds":[]}`))
	require.NoError(t, err)
	assert.Empty(t, ids)

	for name, body := range map[string]string{
		"missing":    `{}`,
		"null":       `{"categoryIds":null}`,
		"duplicates": `{"categoryIds":[1,1]}`,
		"non ids":    `{"categoryIds":["a"]}`,
		"negative":   `{"categoryIds":[-1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CategoryReorder([]byte(body))
			fe := fieldErrors(t, err)
			assert.NotEmpty(t, fe)
		})
	}
}

func TestCategoryList(t *testing.T) {
	f, err := CategoryList(url.Values{"type": {"income"}, "includeInactive": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryIncome, *f.Type)
	assert.True(t, f.IncludeInactive)

	_, err = CategoryList(url.Values{"includeInactive": {"maybe"}})
	assert.Contains(t, fieldErrors(t, err), "includeInactive")
}

func TestSubscriptionBodies(t *testing.T) {
	s, err := SubscriptionCreate([]byte(`{"name":"Netflix","amount":1599,"frequency":"monthly","nextPaymentDate":"2024-01-31"}`))
	require.NoError(t, err)
	assert.True(t, s.AutoGenerate)
	assert.True(t, s.IsActive)
	assert.Equal(t, core.Monthly, s.Frequency)

	_, err = SubscriptionCreate([]byte(`{"name":"x","amount":1,"frequency":"fortnightly","nextPaymentDate":"2024-01-31"}`))
	assert.Contains(t, fieldErrors(t, err), "frequency")

	p, err := SubscriptionUpdate([]byte(`{"autoGenerate":false,"description":null}`))
	require.NoError(t, err)
	assert.False(t, *p.AutoGenerate)
	assert.Equal(t, []string{"description"}, p.Null)
}

func TestSubscriptionQueries(t *testing.T) {
	q, err := SubscriptionList(url.Values{"isActive": {"false"}, "frequency": {"yearly"}})
	require.NoError(t, err)
	assert.False(t, *q.Filters.IsActive)
	assert.Equal(t, core.Sort{By: "next_payment_date", Order: "asc"}, q.Sort)

	today := core.NewDate(2024, 3, 1)
	d, err := SubscriptionsDue(url.Values{}, today)
	require.NoError(t, err)
	assert.True(t, d.Equal(today))

	d, err = SubscriptionsDue(url.Values{"date": {"2024-04-01"}}, today)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", d.String())

	_, err = SubscriptionsDue(url.Values{"date": {"tomorrow"}}, today)
	assert.Contains(t, fieldErrors(t, err), "date")
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, s := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := ParseID(s)
		assert.Contains(t, fieldErrors(t, err), "id", s)
	}
}
