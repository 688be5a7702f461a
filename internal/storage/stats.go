package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"saifuu/internal/core"
)

const uncategorized = "Uncategorized"

// TransactionStats totals income and expense over an optional date range
// and breaks the result down by month, category or type.
func (r *SQLiteRepository) TransactionStats(ctx context.Context, q core.StatsQuery) (*core.TransactionStats, error) {
	w := transactionWhere(core.TransactionFilters{From: q.StartDate, To: q.EndDate}, "t.")

	stats := &core.TransactionStats{GroupBy: q.GroupBy, Groups: []core.StatsGroup{}}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount END), 0),
		       COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount END), 0),
		       COUNT(*)
		FROM transactions t`+w.String(), w.args...).Scan(&stats.TotalIncome, &stats.TotalExpense, &stats.Count)
	if err != nil {
		return nil, fmt.Errorf("transaction totals: %w", err)
	}
	stats.Balance = stats.TotalIncome - stats.TotalExpense

	var keyExpr, labelExpr, groupExpr, order string
	switch q.GroupBy {
	case core.GroupByCategory:
		keyExpr = "COALESCE(CAST(t.category_id AS TEXT), 'uncategorized')"
		labelExpr = "COALESCE(c.name, '" + uncategorized + "')"
		groupExpr = "t.category_id"
		order = "expense_total DESC, income_total DESC, group_key"
	case core.GroupByType:
		keyExpr, labelExpr, groupExpr, order = "t.type", "t.type", "t.type", "group_key"
	default:
		keyExpr = "substr(t.transaction_date, 1, 7)"
		labelExpr, groupExpr, order = keyExpr, keyExpr, "group_key"
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+keyExpr+` AS group_key, `+labelExpr+` AS group_label, MAX(t.category_id),
		       COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount END), 0) AS income_total,
		       COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount END), 0) AS expense_total,
		       COUNT(*), SUM(t.amount)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id`+w.String()+`
		GROUP BY `+groupExpr+`
		ORDER BY `+order, w.args...)
	if err != nil {
		return nil, fmt.Errorf("transaction stats by %s: %w", q.GroupBy, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g     core.StatsGroup
			total int64
		)
		if err := rows.Scan(&g.Key, &g.Label, &g.CategoryID, &g.Income, &g.Expense, &g.Count, &total); err != nil {
			return nil, fmt.Errorf("scan stats group: %w", err)
		}
		if q.GroupBy != core.GroupByCategory {
			g.CategoryID = nil
		}
		g.Average = average(total, g.Count)
		stats.Groups = append(stats.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	return stats, nil
}

// average is total/count in minor units, rounded to two decimal places.
func average(total, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).DivRound(decimal.NewFromInt(count), 2)
}
