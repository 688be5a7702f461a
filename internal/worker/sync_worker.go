// Package worker applies transaction events to the spreadsheet ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"saifuu/internal/amqp"
	"saifuu/internal/cache"
	"saifuu/internal/core"
	"saifuu/internal/sheets"
)

// Store is the read side the worker needs. The event only carries an id, so
// every sync re-reads the current row. Missing rows come back as nil.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	GetCategory(ctx context.Context, id int64) (*core.Category, error)
	ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, int64, error)
}

// Category renames reach the ledger once the cached name expires.
const (
	categoryCacheSize = 256
	categoryCacheTTL  = 10 * time.Minute
)

type SyncWorker struct {
	store      Store
	ledger     sheets.LedgerWriter
	categories *cache.LRU[int64, string]
}

func NewSyncWorker(store Store, ledger sheets.LedgerWriter) *SyncWorker {
	return &SyncWorker{
		store:      store,
		ledger:     ledger,
		categories: cache.NewLRU[int64, string](categoryCacheSize, categoryCacheTTL),
	}
}

// Handle applies one event. Created and updated events upsert the current
// state of the transaction; if it has since been deleted the row is removed
// instead. A returned error asks the consumer to redeliver.
func (w *SyncWorker) Handle(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"message_id", ev.MessageID,
		"event", ev.Event,
		"transaction_id", ev.TransactionID)

	switch ev.Event {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		tx, err := w.store.GetTransaction(ctx, ev.TransactionID)
		if tx == nil && (err == nil || errors.Is(err, core.ErrNotFound)) {
			slog.InfoContext(ctx, "Transaction no longer exists, removing ledger row",
				"transaction_id", ev.TransactionID)
			return w.remove(ctx, ev.TransactionID)
		}
		if err != nil {
			return fmt.Errorf("get transaction %d: %w", ev.TransactionID, err)
		}
		return w.upsert(ctx, *tx)

	case amqp.TransactionDeleted:
		return w.remove(ctx, ev.TransactionID)
	}
	return fmt.Errorf("unknown event %q", ev.Event)
}

// Resync upserts every stored transaction, a backstop for events lost while
// the worker was down. It returns how many rows were written.
func (w *SyncWorker) Resync(ctx context.Context) (int, error) {
	written := 0
	q := core.TransactionQuery{
		Sort: core.Sort{By: "id", Order: "asc"},
		Page: core.Page{Page: 1, Limit: core.MaxPageSize},
	}

	for {
		txs, total, err := w.store.ListTransactions(ctx, q)
		if err != nil {
			return written, fmt.Errorf("list transactions page %d: %w", q.Page.Page, err)
		}
		for _, tx := range txs {
			if err := w.upsert(ctx, tx); err != nil {
				return written, err
			}
			written++
		}
		if len(txs) == 0 || int64(q.Page.Offset()+len(txs)) >= total {
			break
		}
		q.Page.Page++
	}

	slog.InfoContext(ctx, "Ledger resync completed", "rows", written)
	return written, nil
}

func (w *SyncWorker) upsert(ctx context.Context, tx core.Transaction) error {
	category, err := w.categoryName(ctx, tx.CategoryID)
	if err != nil {
		return err
	}
	if err := w.ledger.Upsert(ctx, sheets.Entry{Transaction: tx, Category: category}); err != nil {
		return fmt.Errorf("upsert ledger row %d: %w", tx.ID, err)
	}
	slog.InfoContext(ctx, "Ledger row synced", "transaction_id", tx.ID)
	return nil
}

func (w *SyncWorker) remove(ctx context.Context, id int64) error {
	if err := w.ledger.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove ledger row %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Ledger row removed", "transaction_id", id)
	return nil
}

func (w *SyncWorker) categoryName(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	if name, ok := w.categories.Get(*id); ok {
		return name, nil
	}
	cat, err := w.store.GetCategory(ctx, *id)
	switch {
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return "", fmt.Errorf("get category %d: %w", *id, err)
	case cat == nil:
		return "", nil
	}
	w.categories.Set(*id, cat.Name)
	return cat.Name, nil
}
