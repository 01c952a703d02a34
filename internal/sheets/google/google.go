package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"purchasing/internal/analytics"
	"purchasing/internal/cache"
	"purchasing/internal/core"
	"purchasing/internal/log"
	ports "purchasing/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	valueInput    = "USER_ENTERED"
	renderFormula = "FORMULA"
	stampRange    = "B1:D1"
	maxCachedTabs = 32
)

// Config names the spreadsheet and its tabs.
type Config struct {
	SpreadsheetID  string
	ReceivedSheet  string
	PendingSheet   string
	HistorySheet   string
	SummarySheet   string
	TrendSheet     string
	CredentialJSON string
	CredentialFile string
	OAuth          OAuthCredentials
	CacheTTL       time.Duration
	Classifier     analytics.ExceptionClassifier
	OnDrop         ports.DropHook
	Logger         *log.Logger
}

// Client reads and writes the purchasing workbook through the Sheets API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	received      string
	pending       string
	history       string
	summary       string
	trend         string
	classify      analytics.ExceptionClassifier
	onDrop        ports.DropHook
	logger        *log.Logger

	// Range reads keyed by A1 range; writes invalidate the touched tab.
	rows *cache.LRUCache[[][]any]
	now  func() time.Time
}

// Ensure interface conformance
var (
	_ ports.Source         = (*Client)(nil)
	_ ports.Sink           = (*Client)(nil)
	_ ports.Ledger         = (*Client)(nil)
	_ ports.DeliveryWriter = (*Client)(nil)
)

// New creates a Sheets client authenticated with a user OAuth token when one
// is configured, otherwise with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	c := &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		received:      orDefault(cfg.ReceivedSheet, "CAME IN"),
		pending:       orDefault(cfg.PendingSheet, "WAITING ON"),
		history:       orDefault(cfg.HistorySheet, "LATEST 2 YEARS"),
		summary:       orDefault(cfg.SummarySheet, "ITEM SUMMARY"),
		trend:         orDefault(cfg.TrendSheet, "TREND GRAPH"),
		classify:      cfg.Classifier,
		onDrop:        cfg.OnDrop,
		logger:        logger.WithComponent(log.ComponentSheets),
		now:           time.Now,
	}
	if cfg.CacheTTL > 0 {
		c.rows = cache.NewLRUCache[[][]any](maxCachedTabs, cfg.CacheTTL)
	}
	return c
}

// newSheetsService initializes a Sheets Service. Service account credentials
// come from the configured JSON or file, then GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if cfg.OAuth.Configured() {
		ts, err := oauthTokenSource(ctx, cfg.OAuth)
		if err != nil {
			return nil, err
		}
		service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	}

	serviceAccountJSON := strings.TrimSpace(cfg.CredentialJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ListReceipts(ctx context.Context) ([]core.Event, error) {
	values, err := c.read(ctx, c.received, len(ports.ReceiptHeader))
	if err != nil {
		return nil, err
	}
	out := make([]core.Event, 0, len(values))
	dropped := 0
	for i, row := range values {
		e, err := ports.ParseReceiptRow(row)
		if err != nil {
			if !errors.Is(err, ports.ErrBlankRow) {
				dropped++
				c.logger.DebugContext(ctx, "Skipping receipt row", "row", ports.FirstDataRow+i, "error", err)
			}
			continue
		}
		out = append(out, e)
	}
	c.reportDrops(ctx, ports.SourceReceipts, dropped)
	return out, nil
}

func (c *Client) ListPending(ctx context.Context) ([]core.Event, error) {
	values, err := c.read(ctx, c.pending, len(ports.PendingHeader))
	if err != nil {
		return nil, err
	}
	out := make([]core.Event, 0, len(values))
	dropped := 0
	for i, row := range values {
		e, err := ports.ParsePendingRow(row)
		if err != nil {
			if !errors.Is(err, ports.ErrBlankRow) {
				dropped++
				c.logger.DebugContext(ctx, "Skipping pending row", "row", ports.FirstDataRow+i, "error", err)
			}
			continue
		}
		out = append(out, e)
	}
	c.reportDrops(ctx, ports.SourcePending, dropped)
	return out, nil
}

func (c *Client) ListCostHistory(ctx context.Context) ([]core.CostEntry, error) {
	values, err := c.read(ctx, c.history, len(ports.HistoryHeader))
	if err != nil {
		return nil, err
	}
	out := make([]core.CostEntry, 0, len(values))
	dropped := 0
	for i, row := range values {
		entry, err := ports.ParseHistoryRow(row, c.classify)
		if err != nil {
			if !errors.Is(err, ports.ErrBlankRow) {
				dropped++
				c.logger.DebugContext(ctx, "Skipping history row", "row", ports.FirstDataRow+i, "error", err)
			}
			continue
		}
		out = append(out, entry)
	}
	c.reportDrops(ctx, ports.SourceHistory, dropped)
	return out, nil
}

// WriteSummary clears the ITEM SUMMARY output block and rewrites it from B10.
func (c *Client) WriteSummary(ctx context.Context, rows []core.SummaryRow, stamp time.Time) error {
	return c.replaceBlock(ctx, c.summary, len(analytics.SummaryHeader), ports.SummaryValues(rows), stamp)
}

// WriteTrend clears the TREND GRAPH output block and rewrites it from B10.
func (c *Client) WriteTrend(ctx context.Context, table core.TrendTable, stamp time.Time) error {
	return c.replaceBlock(ctx, c.trend, len(analytics.TrendHeader), ports.TrendValues(table), stamp)
}

// AppendReceipts writes receipt lines whose PO, item and order date are not on
// the CAME IN tab yet.
func (c *Client) AppendReceipts(ctx context.Context, events []core.Event) (int, error) {
	existing, err := c.ListReceipts(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[ports.ReceiptKey(e)] = struct{}{}
	}
	var fresh []core.Event
	for _, e := range events {
		key := ports.ReceiptKey(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := c.appendRows(ctx, c.received, len(ports.ReceiptHeader), ports.ReceiptValues(fresh)); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// ReplacePending swaps the WAITING ON block. Median delivery cells start as
// "NA" until WriteDelivery fills them.
func (c *Client) ReplacePending(ctx context.Context, events []core.Event) error {
	values := append([][]any{ports.StringsToRow(ports.PendingHeader)}, ports.PendingValues(events, nil)...)
	return c.replaceBlock(ctx, c.pending, len(ports.PendingHeader), values, c.now())
}

func (c *Client) AppendCostHistory(ctx context.Context, entries []core.CostEntry) (int, error) {
	existing, err := c.ListCostHistory(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[ports.HistoryKey(e)] = struct{}{}
	}
	var fresh []core.CostEntry
	for _, e := range entries {
		key := ports.HistoryKey(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := c.appendRows(ctx, c.history, len(ports.HistoryHeader), ports.HistoryValues(fresh)); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// WriteDelivery fills the "Median Delivery (Days)" column of WAITING ON, one
// cell per sheet row keyed by that row's own item id. Rows without an item id
// are sent as null, which the Sheets API leaves untouched.
func (c *Client) WriteDelivery(ctx context.Context, index map[string]string) error {
	rows, err := c.read(ctx, c.pending, len(ports.PendingHeader))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	col := make([][]any, len(rows))
	for i, row := range rows {
		id := ports.PendingItemID(row)
		if id == "" {
			col[i] = []any{nil}
			continue
		}
		med, ok := index[id]
		if !ok {
			med = ports.NoDelivery
		}
		col[i] = []any{med}
	}
	letter := ports.ColumnLetter(1 + len(ports.PendingHeader))
	rng := fmt.Sprintf("%s!%s%d:%s%d", c.pending, letter, ports.FirstDataRow, letter, ports.FirstDataRow+len(col)-1)
	if err := c.update(ctx, rng, col); err != nil {
		return err
	}
	c.invalidate(c.pending)
	return nil
}

func (c *Client) read(ctx context.Context, sheet string, width int) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := ports.DataRange(sheet, ports.FirstDataRow, width)
	if c.rows != nil {
		if v, ok := c.rows.Get(rng); ok {
			return v, nil
		}
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption(renderFormula).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	values := make([][]any, len(resp.Values))
	for i, row := range resp.Values {
		values[i] = []any(row)
	}
	if c.rows != nil {
		c.rows.Set(rng, values)
	}
	return values, nil
}

func (c *Client) replaceBlock(ctx context.Context, sheet string, width int, values [][]any, stamp time.Time) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	clearRng := ports.DataRange(sheet, ports.HeaderRow, width)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}
	if len(values) > 0 {
		rng := fmt.Sprintf("%s!%s%d", sheet, ports.FirstColumn, ports.HeaderRow)
		if err := c.update(ctx, rng, values); err != nil {
			return err
		}
	}
	if err := c.update(ctx, fmt.Sprintf("%s!%s", sheet, stampRange), [][]any{ports.StampValues(stamp)}); err != nil {
		return err
	}
	c.invalidate(sheet)
	c.logger.InfoContext(ctx, "Sheet block replaced", "sheet", sheet, "rows", len(values))
	return nil
}

func (c *Client) appendRows(ctx context.Context, sheet string, width int, values [][]any) error {
	current, err := c.read(ctx, sheet, width)
	if err != nil {
		return err
	}
	next := ports.FirstDataRow + len(current)
	rng := fmt.Sprintf("%s!%s%d", sheet, ports.FirstColumn, next)
	if err := c.update(ctx, rng, values); err != nil {
		return err
	}
	c.invalidate(sheet)
	c.logger.InfoContext(ctx, "Rows appended", "sheet", sheet, "first_row", next, "rows", len(values))
	return nil
}

func (c *Client) update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInput).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// invalidate drops every cached read of sheet.
func (c *Client) invalidate(sheet string) {
	if c.rows == nil {
		return
	}
	c.rows.DeletePrefix(sheet + "!")
}

// Cache exposes the range cache so a cache.Manager can sweep it.
func (c *Client) Cache() cache.Cleaner {
	if c.rows == nil {
		return nil
	}
	return c.rows
}

func (c *Client) reportDrops(ctx context.Context, source string, n int) {
	if n == 0 {
		return
	}
	c.logger.WarnContext(ctx, "Rows dropped while reading sheet", "source", source, "count", n)
	if c.onDrop != nil {
		c.onDrop(source, n)
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
