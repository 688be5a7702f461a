package sheets

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"saifuu/internal/core"
)

// Header is the first row of the ledger sheet. Column A holds the id every
// other operation keys on.
var Header = []any{"ID", "Date", "Type", "Amount", "Category", "Description", "Payment method", "Tags", "Updated at"}

// Row renders e in Header order. Amounts are stored in minor units and
// written as fixed two-decimal values so the sheet can sum them.
func Row(e Entry) []any {
	tx := e.Transaction
	return []any{
		strconv.FormatInt(tx.ID, 10),
		tx.TransactionDate.String(),
		string(tx.Type),
		FormatAmount(tx.Amount),
		e.Category,
		deref(tx.Description),
		deref(tx.PaymentMethod),
		strings.Join(tx.Tags, ", "),
		core.FormatTimestamp(tx.UpdatedAt),
	}
}

// FormatAmount renders minor units as a major-unit decimal, 1299 -> "12.99".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
