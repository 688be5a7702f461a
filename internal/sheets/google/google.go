// Package google mirrors the ledger into a Google Sheets spreadsheet, one
// row per transaction keyed by the id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saifuu/internal/sheets"
)

var _ sheets.LedgerWriter = (*Client)(nil)

const (
	DefaultSheetName = "Transactions"
	lastColumn       = "I"

	defaultCacheValidDuration = 5 * time.Minute
)

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes writers so a lookup and the write that follows it see
	// the same row layout. The id -> row index is cached between calls.
	mu                 sync.Mutex
	rowIndex           map[int64]int
	nextRow            int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// New authenticates with a service account and returns a client for the
// configured sheet.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test
// endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(spreadsheetID),
		sheetName:          sheetName,
		cacheValidDuration: defaultCacheValidDuration,
	}
}

// newSheetsService prefers inline JSON, then a credentials file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.ServiceAccountJSON))
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.DebugContext(ctx, "Using inline service account credentials")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
		slog.DebugContext(ctx, "Read service account credentials", "path", file)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) Upsert(ctx context.Context, e sheets.Entry) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}

	values := &gsheet.ValueRange{Values: [][]any{sheets.Row(e)}}
	id := e.Transaction.ID

	if row, ok := c.rowIndex[id]; ok {
		rng := c.rowRange(row)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			c.invalidate()
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Ledger row updated", "transaction_id", id, "row", row)
		return nil
	}

	if c.nextRow == 1 {
		if err := c.write(ctx, 1, sheets.Header); err != nil {
			return err
		}
		c.nextRow = 2
	}
	row := c.nextRow
	if err := c.write(ctx, row, sheets.Row(e)); err != nil {
		return err
	}
	c.rowIndex[id] = row
	c.nextRow++
	slog.DebugContext(ctx, "Ledger row appended", "transaction_id", id, "row", row)
	return nil
}

// Remove blanks the row of transaction id. Rows are cleared rather than
// deleted so the indices of later rows stay valid.
func (c *Client) Remove(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadIndex(ctx); err != nil {
		return err
	}
	row, ok := c.rowIndex[id]
	if !ok {
		return nil
	}

	rng := c.rowRange(row)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		c.invalidate()
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	delete(c.rowIndex, id)
	slog.DebugContext(ctx, "Ledger row cleared", "transaction_id", id, "row", row)
	return nil
}

func (c *Client) write(ctx context.Context, row int, values []any) error {
	rng := c.rowRange(row)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{values}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.invalidate()
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

// loadIndex reads column A into rowIndex unless the cached copy is fresh.
// Callers hold c.mu.
func (c *Client) loadIndex(ctx context.Context) error {
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	index, next := parseIDColumn(resp.Values)
	c.rowIndex = index
	c.nextRow = next
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) invalidate() {
	c.rowIndex = nil
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
}

// parseIDColumn maps transaction ids to 1-based row numbers and returns the
// first row after the last non-empty one. Cells that are not ids, such as
// the header, are skipped.
func parseIDColumn(values [][]any) (map[int64]int, int) {
	index := make(map[int64]int, len(values))
	next := 1
	for i, cells := range values {
		if len(cells) == 0 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(cells[0]))
		if cell == "" {
			continue
		}
		next = i + 2
		if id, err := strconv.ParseInt(cell, 10, 64); err == nil && id > 0 {
			index[id] = i + 1
		}
	}
	return index, next
}
