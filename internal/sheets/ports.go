// Package sheets mirrors the transaction ledger into a spreadsheet.
package sheets

import (
	"context"

	"saifuu/internal/core"
)

// Entry is one ledger row: a transaction plus the display name of its
// category, empty when uncategorized.
type Entry struct {
	Transaction core.Transaction
	Category    string
}

// LedgerWriter keeps one row per transaction, keyed by transaction id.
type LedgerWriter interface {
	// Upsert writes e, replacing the row of the same transaction if present.
	Upsert(ctx context.Context, e Entry) error
	// Remove drops the row of transaction id. Removing a missing row is not
	// an error.
	Remove(ctx context.Context, id int64) error
}
