package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"saifuu/internal/core"
)

const subscriptionColumns = `id, name, amount, category_id, frequency, next_payment_date, description, ` +
	`auto_generate, is_active, created_at, updated_at`

var subscriptionSortColumns = map[string]string{
	"next_payment_date": "next_payment_date",
	"name":              "name",
	"amount":            "amount",
	"created_at":        "created_at",
}

var defaultSubscriptionSort = core.Sort{By: "next_payment_date", Order: "asc"}

var subscriptionNullColumns = map[string]string{
	"categoryId":  "category_id",
	"description": "description",
}

func scanSubscription(s rowScanner) (*core.Subscription, error) {
	var (
		sub              core.Subscription
		next             string
		created, updated string
	)
	err := s.Scan(&sub.ID, &sub.Name, &sub.Amount, &sub.CategoryID, &sub.Frequency, &next, &sub.Description,
		&sub.AutoGenerate, &sub.IsActive, &created, &updated)
	if err != nil {
		return nil, err
	}
	if sub.NextPaymentDate, err = core.ParseDate(next); err != nil {
		return nil, fmt.Errorf("subscription %d: date %q: %w", sub.ID, next, err)
	}
	if err := parseTimestamps(created, updated, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, fmt.Errorf("subscription %d: %w", sub.ID, err)
	}
	return &sub, nil
}

func querySubscriptions(ctx context.Context, q querier, query string, args ...any) ([]core.Subscription, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func getSubscription(ctx context.Context, q querier, id int64) (*core.Subscription, error) {
	s, err := scanSubscription(q.QueryRowContext(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetSubscription returns nil, nil when no subscription has the given id.
func (r *SQLiteRepository) GetSubscription(ctx context.Context, id int64) (*core.Subscription, error) {
	s, err := getSubscription(ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("get subscription %d: %w", id, err)
	}
	return s, nil
}

func checkSubscriptionExists(ctx context.Context, q querier, id int64) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("check subscription %d: %w", id, err)
	}
	if n == 0 {
		return core.NewValidationError("recurringId", "subscription does not exist")
	}
	return nil
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, q core.SubscriptionQuery) ([]core.Subscription, int64, error) {
	var w whereBuilder
	if q.Filters.IsActive != nil {
		w.add("is_active = ?", boolInt(*q.Filters.IsActive))
	}
	if q.Filters.CategoryID != nil {
		w.add("category_id = ?", *q.Filters.CategoryID)
	}
	if q.Filters.Frequency != nil {
		w.add("frequency = ?", string(*q.Filters.Frequency))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	page := q.Page
	if page.Limit < 1 {
		page.Limit = core.DefaultPageSize
	}
	items, err := querySubscriptions(ctx, r.db,
		"SELECT "+subscriptionColumns+" FROM subscriptions"+w.String()+
			orderBy(subscriptionSortColumns, q.Sort, defaultSubscriptionSort)+" LIMIT ? OFFSET ?",
		append(w.args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}
	return items, total, nil
}

// Generated transactions are expenses, so a subscription's category must
// accept them.
func checkSubscriptionCategory(ctx context.Context, q querier, categoryID int64) error {
	return checkCategoryFor(ctx, q, categoryID, core.Expense, true)
}

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, in core.NewSubscription) (*core.Subscription, error) {
	var created *core.Subscription
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if in.CategoryID != nil {
			if err := checkSubscriptionCategory(ctx, tx, *in.CategoryID); err != nil {
				return err
			}
		}

		now := r.timestamp()
		var err error
		created, err = scanSubscription(tx.QueryRowContext(ctx, `
			INSERT INTO subscriptions (name, amount, category_id, frequency, next_payment_date, description,
			                           auto_generate, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+subscriptionColumns,
			in.Name, in.Amount, in.CategoryID, string(in.Frequency), in.NextPaymentDate.String(), in.Description,
			boolInt(in.AutoGenerate), boolInt(in.IsActive), now, now))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription created",
		"id", created.ID,
		"name", created.Name,
		"frequency", created.Frequency,
		"next_payment_date", created.NextPaymentDate.String())
	return created, nil
}

func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, id int64, p core.SubscriptionPatch) (*core.Subscription, error) {
	var b setBuilder
	if p.Name != nil {
		b.set("name", *p.Name)
	}
	if p.Amount != nil {
		b.set("amount", *p.Amount)
	}
	if p.CategoryID != nil {
		b.set("category_id", *p.CategoryID)
	}
	if p.Frequency != nil {
		b.set("frequency", string(*p.Frequency))
	}
	if p.NextPaymentDate != nil {
		b.set("next_payment_date", p.NextPaymentDate.String())
	}
	if p.Description != nil {
		b.set("description", *p.Description)
	}
	if p.AutoGenerate != nil {
		b.set("auto_generate", boolInt(*p.AutoGenerate))
	}
	if p.IsActive != nil {
		b.set("is_active", boolInt(*p.IsActive))
	}
	for _, field := range p.Null {
		if col, ok := subscriptionNullColumns[field]; ok {
			b.null(col)
		}
	}
	b.touch(r.timestamp())

	var updated *core.Subscription
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if p.CategoryID != nil {
			if err := checkSubscriptionCategory(ctx, tx, *p.CategoryID); err != nil {
				return err
			}
		}

		var err error
		updated, err = scanSubscription(tx.QueryRowContext(ctx,
			"UPDATE subscriptions SET "+b.String()+" WHERE id = ? RETURNING "+subscriptionColumns,
			append(b.args, id)...))
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update subscription %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Subscription updated", "id", id)
	return updated, nil
}

// DeleteSubscription removes a subscription and returns the removed row.
// Transactions generated from it keep their data; their recurring_id is
// cleared by the foreign key.
func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, id int64) (*core.Subscription, error) {
	deleted, err := scanSubscription(r.db.QueryRowContext(ctx,
		"DELETE FROM subscriptions WHERE id = ? RETURNING "+subscriptionColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete subscription %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete subscription %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Subscription deleted", "id", id, "name", deleted.Name)
	return deleted, nil
}

// SetSubscriptionActive moves a subscription to the requested state. changed
// is false when it was already there.
func (r *SQLiteRepository) SetSubscriptionActive(ctx context.Context, id int64, active bool) (*core.Subscription, bool, error) {
	now := r.timestamp()
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		"UPDATE subscriptions SET is_active = ?, "+touchUpdatedAt+" WHERE id = ? AND is_active != ? RETURNING "+subscriptionColumns,
		boolInt(active), now, now, id, boolInt(active)))
	if err == nil {
		slog.InfoContext(ctx, "Subscription state changed", "id", id, "active", active)
		return sub, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("set subscription %d active=%t: %w", id, active, err)
	}

	sub, err = r.GetSubscription(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if sub == nil {
		return nil, false, fmt.Errorf("set subscription %d active=%t: %w", id, active, core.ErrNotFound)
	}
	return sub, false, nil
}

// GetSubscriptionsDue returns active subscriptions whose next payment date is
// on or before asOf, earliest first.
func (r *SQLiteRepository) GetSubscriptionsDue(ctx context.Context, asOf core.Date) ([]core.Subscription, error) {
	subs, err := querySubscriptions(ctx, r.db,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE is_active = 1 AND next_payment_date <= ? "+
			"ORDER BY next_payment_date, id", asOf.String())
	if err != nil {
		return nil, fmt.Errorf("get subscriptions due %s: %w", asOf, err)
	}
	return subs, nil
}

// RecordSubscriptionPayment generates the transaction for one occurrence of
// sub and advances its next payment date from occurrence to next, in one
// database transaction. ErrConflict means another run already advanced it.
func (r *SQLiteRepository) RecordSubscriptionPayment(ctx context.Context, sub core.Subscription, occurrence, next core.Date) (*core.Transaction, error) {
	var created *core.Transaction
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		now := r.timestamp()
		res, err := tx.ExecContext(ctx,
			"UPDATE subscriptions SET next_payment_date = ?, "+touchUpdatedAt+
				" WHERE id = ? AND next_payment_date = ? AND is_active = 1",
			next.String(), now, now, sub.ID, occurrence.String())
		if err != nil {
			return fmt.Errorf("advance next payment date: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("subscription %d no longer due on %s: %w", sub.ID, occurrence, core.ErrConflict)
		}

		name := sub.Name
		created, err = insertTransaction(ctx, tx, core.NewTransaction{
			Amount:          sub.Amount,
			Type:            core.Expense,
			CategoryID:      sub.CategoryID,
			Description:     &name,
			TransactionDate: occurrence,
			Tags:            []string{},
			IsRecurring:     true,
			RecurringID:     &sub.ID,
		}, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record payment for subscription %d: %w", sub.ID, err)
	}

	slog.InfoContext(ctx, "Subscription payment recorded",
		"subscription_id", sub.ID,
		"transaction_id", created.ID,
		"occurrence", occurrence.String(),
		"next_payment_date", next.String())
	return created, nil
}
