package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"saifuu/internal/core"
)

const transactionColumns = `id, amount, type, category_id, description, transaction_date, payment_method, ` +
	`tags, receipt_url, is_recurring, recurring_id, created_at, updated_at`

var transactionSortColumns = map[string]string{
	"transaction_date": "transaction_date",
	"amount":           "amount",
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"description":      "description",
	"id":               "id",
}

var defaultTransactionSort = core.Sort{By: "transaction_date", Order: "desc"}

// nullable transaction fields by JSON name
var transactionNullColumns = map[string]string{
	"categoryId":    "category_id",
	"description":   "description",
	"paymentMethod": "payment_method",
	"receiptUrl":    "receipt_url",
}

func scanTransaction(s rowScanner) (*core.Transaction, error) {
	var (
		t                core.Transaction
		date, tags       string
		created, updated string
	)
	err := s.Scan(&t.ID, &t.Amount, &t.Type, &t.CategoryID, &t.Description, &date, &t.PaymentMethod,
		&tags, &t.ReceiptURL, &t.IsRecurring, &t.RecurringID, &created, &updated)
	if err != nil {
		return nil, err
	}
	if t.TransactionDate, err = core.ParseDate(date); err != nil {
		return nil, fmt.Errorf("transaction %d: date %q: %w", t.ID, date, err)
	}
	if err := parseTimestamps(created, updated, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Tags = core.DecodeTags(tags)
	return &t, nil
}

func getTransaction(ctx context.Context, q querier, id int64) (*core.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// GetTransaction returns nil, nil when no transaction has the given id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	t, err := getTransaction(ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func transactionWhere(f core.TransactionFilters, alias string) whereBuilder {
	var w whereBuilder
	if f.Type != nil {
		w.add(alias+"type = ?", string(*f.Type))
	}
	if f.CategoryID != nil {
		w.add(alias+"category_id = ?", *f.CategoryID)
	}
	if f.From != nil {
		w.add(alias+"transaction_date >= ?", f.From.String())
	}
	if f.To != nil {
		w.add(alias+"transaction_date <= ?", f.To.String())
	}
	if f.Search != nil {
		w.add(alias+`description LIKE ? ESCAPE '\'`, escapeLike(*f.Search))
	}
	if f.MinAmount != nil {
		w.add(alias+"amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		w.add(alias+"amount <= ?", *f.MaxAmount)
	}
	if f.IsRecurring != nil {
		w.add(alias+"is_recurring = ?", boolInt(*f.IsRecurring))
	}
	return w
}

// ListTransactions returns one page of matching transactions and the total
// number of matches.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, int64, error) {
	w := transactionWhere(q.Filters, "")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	page := q.Page
	if page.Limit < 1 {
		page.Limit = core.DefaultPageSize
	}
	query := "SELECT " + transactionColumns + " FROM transactions" + w.String() +
		orderBy(transactionSortColumns, q.Sort, defaultTransactionSort) + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(w.args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, total, nil
}

func insertTransaction(ctx context.Context, q querier, in core.NewTransaction, now string) (*core.Transaction, error) {
	return scanTransaction(q.QueryRowContext(ctx, `
		INSERT INTO transactions (amount, type, category_id, description, transaction_date, payment_method,
		                          tags, receipt_url, is_recurring, recurring_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+transactionColumns,
		in.Amount, string(in.Type), in.CategoryID, in.Description, in.TransactionDate.String(), in.PaymentMethod,
		core.EncodeTags(in.Tags), in.ReceiptURL, boolInt(in.IsRecurring), in.RecurringID, now, now))
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, in core.NewTransaction) (*core.Transaction, error) {
	var created *core.Transaction
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if in.CategoryID != nil {
			if err := checkCategoryFor(ctx, tx, *in.CategoryID, in.Type, true); err != nil {
				return err
			}
		}
		if in.RecurringID != nil {
			if err := checkSubscriptionExists(ctx, tx, *in.RecurringID); err != nil {
				return err
			}
		}

		var err error
		created, err = insertTransaction(ctx, tx, in, r.timestamp())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"type", created.Type,
		"amount", created.Amount,
		"date", created.TransactionDate.String())
	return created, nil
}

// UpdateTransaction applies the supplied fields atomically. When the type or
// category changes, their compatibility is re-checked in the same database
// transaction as the write.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (*core.Transaction, error) {
	var b setBuilder
	if p.Amount != nil {
		b.set("amount", *p.Amount)
	}
	if p.Type != nil {
		b.set("type", string(*p.Type))
	}
	if p.CategoryID != nil {
		b.set("category_id", *p.CategoryID)
	}
	if p.Description != nil {
		b.set("description", *p.Description)
	}
	if p.TransactionDate != nil {
		b.set("transaction_date", p.TransactionDate.String())
	}
	if p.PaymentMethod != nil {
		b.set("payment_method", *p.PaymentMethod)
	}
	if p.Tags != nil {
		b.set("tags", core.EncodeTags(p.Tags))
	}
	if p.ReceiptURL != nil {
		b.set("receipt_url", *p.ReceiptURL)
	}
	for _, field := range p.Null {
		if col, ok := transactionNullColumns[field]; ok {
			b.null(col)
		}
	}
	b.touch(r.timestamp())

	var updated *core.Transaction
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if p.Type != nil || p.CategoryID != nil {
			if err := checkTransactionPatch(ctx, tx, id, p); err != nil {
				return err
			}
		}

		var err error
		updated, err = scanTransaction(tx.QueryRowContext(ctx,
			"UPDATE transactions SET "+b.String()+" WHERE id = ? RETURNING "+transactionColumns,
			append(b.args, id)...))
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id)
	return updated, nil
}

func checkTransactionPatch(ctx context.Context, q querier, id int64, p core.TransactionPatch) error {
	var (
		curType     core.TransactionType
		curCategory *int64
	)
	err := q.QueryRowContext(ctx, "SELECT type, category_id FROM transactions WHERE id = ?", id).Scan(&curType, &curCategory)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}

	effType := curType
	if p.Type != nil {
		effType = *p.Type
	}
	switch {
	case p.CategoryID != nil:
		return checkCategoryFor(ctx, q, *p.CategoryID, effType, true)
	case slices.Contains(p.Null, "categoryId") || curCategory == nil:
		return nil
	default:
		return checkCategoryFor(ctx, q, *curCategory, effType, false)
	}
}

// DeleteTransaction removes a transaction and returns the removed row.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	deleted, err := scanTransaction(r.db.QueryRowContext(ctx,
		"DELETE FROM transactions WHERE id = ? RETURNING "+transactionColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "amount", deleted.Amount)
	return deleted, nil
}
