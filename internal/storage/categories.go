package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"saifuu/internal/core"
)

const categoryColumns = `id, name, type, color, icon, display_order, is_active, created_at, updated_at`

func scanCategory(s rowScanner) (*core.Category, error) {
	var (
		c                core.Category
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Type, &c.Color, &c.Icon, &c.DisplayOrder, &c.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	if err := parseTimestamps(created, updated, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("category %d: %w", c.ID, err)
	}
	return &c, nil
}

func queryCategories(ctx context.Context, q querier, query string, args ...any) ([]core.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListCategories returns categories in display order. Inactive categories are
// only included on request. A type filter also matches "both" categories.
func (r *SQLiteRepository) ListCategories(ctx context.Context, f core.CategoryFilter) ([]core.Category, error) {
	var w whereBuilder
	if !f.IncludeInactive {
		w.add("is_active = 1")
	}
	if f.Type != nil && *f.Type != core.CategoryBoth {
		w.add("type IN (?, 'both')", string(*f.Type))
	}

	cats, err := queryCategories(ctx, r.db,
		"SELECT "+categoryColumns+" FROM categories"+w.String()+" ORDER BY display_order, id", w.args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// GetCategory returns nil, nil when no category has the given id.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	c, err := getCategory(ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func getCategory(ctx context.Context, q querier, id int64) (*core.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func activeNameTaken(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE name = ? AND is_active = 1", name).Scan(&n)
	return n > 0, err
}

// checkTypeChange rejects a new category type that existing transactions or
// subscriptions referencing the category would no longer match. Subscriptions
// always bill as expenses.
func checkTypeChange(ctx context.Context, q querier, id int64, t core.CategoryType) error {
	if t == core.CategoryBoth {
		return nil
	}
	var n int64
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE category_id = ? AND type != ?", id, string(t)).Scan(&n)
	if err != nil {
		return fmt.Errorf("check category type change: %w", err)
	}
	if n > 0 {
		return core.NewValidationError("type",
			fmt.Sprintf("%d transactions of another type use this category", n))
	}

	if t.Accepts(core.Expense) {
		return nil
	}
	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE category_id = ?", id).Scan(&n)
	if err != nil {
		return fmt.Errorf("check category type change: %w", err)
	}
	if n > 0 {
		return core.NewValidationError("type",
			fmt.Sprintf("%d subscriptions use this category and bill as expenses", n))
	}
	return nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, in core.NewCategory) (*core.Category, error) {
	var created *core.Category
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		taken, err := activeNameTaken(ctx, tx, in.Name)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("category %q: %w", in.Name, core.ErrDuplicate)
		}

		now := r.timestamp()
		created, err = scanCategory(tx.QueryRowContext(ctx, `
			INSERT INTO categories (name, type, color, icon, display_order, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, COALESCE(?, (SELECT MAX(display_order) + 1 FROM categories), 0), 1, ?, ?)
			RETURNING `+categoryColumns,
			in.Name, string(in.Type), in.Color, in.Icon, in.DisplayOrder, now, now))
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", in.Name, core.ErrDuplicate)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", created.ID, "name", created.Name, "type", created.Type)
	return created, nil
}

// UpdateCategory applies the supplied fields in a single statement. Name
// clashes with another active category surface as ErrDuplicate through the
// partial unique index.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (*core.Category, error) {
	var b setBuilder
	if p.Name != nil {
		b.set("name", *p.Name)
	}
	if p.Type != nil {
		b.set("type", string(*p.Type))
	}
	if p.Color != nil {
		b.set("color", *p.Color)
	}
	if p.Icon != nil {
		b.set("icon", *p.Icon)
	}
	if p.DisplayOrder != nil {
		b.set("display_order", *p.DisplayOrder)
	}
	if p.IsActive != nil {
		b.set("is_active", boolInt(*p.IsActive))
	}
	b.touch(r.timestamp())

	var updated *core.Category
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if p.Type != nil {
			if err := checkTypeChange(ctx, tx, id, *p.Type); err != nil {
				return err
			}
		}

		var err error
		updated, err = scanCategory(tx.QueryRowContext(ctx,
			"UPDATE categories SET "+b.String()+" WHERE id = ? RETURNING "+categoryColumns,
			append(b.args, id)...))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return core.ErrNotFound
		case isUniqueViolation(err):
			return fmt.Errorf("category name: %w", core.ErrDuplicate)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update category %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Category updated", "id", id)
	return updated, nil
}

// DeleteCategory removes an unreferenced category and returns the removed
// row. Referenced categories are left untouched and an *core.InUseError is
// returned.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) (*core.Category, error) {
	var deleted *core.Category
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return core.ErrNotFound
		}

		inUse := &core.InUseError{Entity: "category", ID: id}
		err = tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM transactions WHERE category_id = ?),
			       (SELECT COUNT(*) FROM subscriptions WHERE category_id = ?)`,
			id, id).Scan(&inUse.Transactions, &inUse.Subscriptions)
		if err != nil {
			return fmt.Errorf("count category usage: %w", err)
		}
		if inUse.Transactions > 0 || inUse.Subscriptions > 0 {
			return inUse
		}

		deleted, err = scanCategory(tx.QueryRowContext(ctx,
			"DELETE FROM categories WHERE id = ? RETURNING "+categoryColumns, id))
		if isForeignKeyViolation(err) {
			return &core.InUseError{Entity: "category", ID: id}
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete category %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Category deleted", "id", id, "name", deleted.Name)
	return deleted, nil
}

// ReorderCategories assigns display_order 0..n-1 following ids. ids must be
// exactly the set of active category ids; otherwise nothing is written.
func (r *SQLiteRepository) ReorderCategories(ctx context.Context, ids []int64) ([]core.Category, error) {
	var reordered []core.Category
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		active, err := activeCategoryIDs(ctx, tx)
		if err != nil {
			return err
		}
		if err := checkPermutation(ids, active); err != nil {
			return err
		}

		now := r.timestamp()
		stmt, err := tx.PrepareContext(ctx,
			"UPDATE categories SET display_order = ?, "+touchUpdatedAt+" WHERE id = ? AND display_order != ?")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for pos, id := range ids {
			if _, err := stmt.ExecContext(ctx, pos, now, now, id, pos); err != nil {
				return fmt.Errorf("set order of category %d: %w", id, err)
			}
		}

		reordered, err = queryCategories(ctx, tx,
			"SELECT "+categoryColumns+" FROM categories WHERE is_active = 1 ORDER BY display_order, id")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reorder categories: %w", err)
	}

	slog.InfoContext(ctx, "Categories reordered", "count", len(ids))
	return reordered, nil
}

func activeCategoryIDs(ctx context.Context, q querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM categories WHERE is_active = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// checkPermutation reports how ids differs from the active id set.
func checkPermutation(ids, active []int64) error {
	fe := core.FieldErrors{}
	activeSet := make(map[int64]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}

	seen := make(map[int64]bool, len(ids))
	var unknown, dup []int64
	for _, id := range ids {
		if seen[id] {
			dup = append(dup, id)
			continue
		}
		seen[id] = true
		if !activeSet[id] {
			unknown = append(unknown, id)
		}
	}
	var missing []int64
	for _, id := range active {
		if !seen[id] {
			missing = append(missing, id)
		}
	}

	if len(dup) > 0 {
		fe.Add("categoryIds", "duplicate category ids: "+joinIDs(dup))
	}
	if len(unknown) > 0 {
		fe.Add("categoryIds", "unknown or inactive category ids: "+joinIDs(unknown))
	}
	if len(missing) > 0 {
		fe.Add("categoryIds", "missing active category ids: "+joinIDs(missing))
	}
	return fe.Err()
}

func joinIDs(ids []int64) string {
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// checkCategoryFor verifies that categoryID names an existing category
// compatible with a transaction of type t. Newly assigned categories must
// also be active.
func checkCategoryFor(ctx context.Context, q querier, categoryID int64, t core.TransactionType, requireActive bool) error {
	var (
		ct     core.CategoryType
		active bool
	)
	err := q.QueryRowContext(ctx, "SELECT type, is_active FROM categories WHERE id = ?", categoryID).Scan(&ct, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewValidationError("categoryId", "category does not exist")
	}
	if err != nil {
		return fmt.Errorf("check category %d: %w", categoryID, err)
	}
	if requireActive && !active {
		return core.NewValidationError("categoryId", "category is inactive")
	}
	if !ct.Accepts(t) {
		return core.NewValidationError("categoryId",
			fmt.Sprintf("a %s category cannot be used for %s transactions", ct, t))
	}
	return nil
}
