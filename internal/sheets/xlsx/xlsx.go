// Package xlsx stores the purchasing tabs in local Excel workbooks. Input tabs
// are read from (and imported rows appended to) one workbook; report tabs are
// written to an output workbook, which may be the same file.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"purchasing/internal/analytics"
	"purchasing/internal/core"
	"purchasing/internal/log"
	ports "purchasing/internal/sheets"
)

const defaultSheet = "Sheet1"

// Config names the workbooks and their tabs.
type Config struct {
	InputPath     string
	OutputPath    string
	ReceivedSheet string
	PendingSheet  string
	HistorySheet  string
	SummarySheet  string
	TrendSheet    string
	Classifier    analytics.ExceptionClassifier
	OnDrop        ports.DropHook
	Logger        *log.Logger
}

// Workbook implements the sheet ports over .xlsx files.
type Workbook struct {
	mu       sync.Mutex
	input    string
	output   string
	received string
	pending  string
	history  string
	summary  string
	trend    string
	classify analytics.ExceptionClassifier
	onDrop   ports.DropHook
	logger   *log.Logger
	now      func() time.Time
}

var (
	_ ports.Source         = (*Workbook)(nil)
	_ ports.Sink           = (*Workbook)(nil)
	_ ports.Ledger         = (*Workbook)(nil)
	_ ports.DeliveryWriter = (*Workbook)(nil)
)

// New validates cfg and returns a Workbook. The input file need not exist
// yet when the workbook is only used as an import target.
func New(cfg Config) (*Workbook, error) {
	if strings.TrimSpace(cfg.InputPath) == "" {
		return nil, errors.New("missing XLSX_PATH")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = cfg.InputPath
	}
	return &Workbook{
		input:    cfg.InputPath,
		output:   out,
		received: orDefault(cfg.ReceivedSheet, "CAME IN"),
		pending:  orDefault(cfg.PendingSheet, "WAITING ON"),
		history:  orDefault(cfg.HistorySheet, "LATEST 2 YEARS"),
		summary:  orDefault(cfg.SummarySheet, "ITEM SUMMARY"),
		trend:    orDefault(cfg.TrendSheet, "TREND GRAPH"),
		classify: cfg.Classifier,
		onDrop:   cfg.OnDrop,
		logger:   logger.WithComponent(log.ComponentXLSX),
		now:      time.Now,
	}, nil
}

func (w *Workbook) ListReceipts(ctx context.Context) ([]core.Event, error) {
	rows, err := w.readTab(w.received, len(ports.ReceiptHeader), 0, 4)
	if err != nil {
		return nil, err
	}
	out := make([]core.Event, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		e, err := ports.ParseReceiptRow(row)
		if err != nil {
			if !errors.Is(err, ports.ErrBlankRow) {
				dropped++
			}
			continue
		}
		out = append(out, e)
	}
	w.reportDrops(ctx, ports.SourceReceipts, dropped)
	return out, nil
}

func (w *Workbook) ListPending(ctx context.Context) ([]core.Event, error) {
	rows, err := w.readTab(w.pending, len(ports.PendingHeader), 0, 2)
	if err != nil {
		return nil, err
	}
	out := make([]core.Event, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		e, err := ports.ParsePendingRow(row)
		if err != nil {
			if !errors.Is(err, ports.ErrBlankRow) {
				dropped++
			}
			continue
		}
		out = append(out, e)
	}
	w.reportDrops(ctx, ports.SourcePending, dropped)
	return out, nil
}

func (w *Workbook) ListCostHistory(ctx context.Context) ([]core.CostEntry, error) {
	rows, err := w.readTab(w.history, len(ports.HistoryHeader), 0)
	if err != nil {
		return nil, err
	}
	out := make([]core.CostEntry, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		c, err := ports.ParseHistoryRow(row, w.classify)
		if err != nil {
			if !errors.Is(err, ports.ErrBlankRow) {
				dropped++
			}
			continue
		}
		out = append(out, c)
	}
	w.reportDrops(ctx, ports.SourceHistory, dropped)
	return out, nil
}

func (w *Workbook) WriteSummary(ctx context.Context, rows []core.SummaryRow, stamp time.Time) error {
	return w.replaceBlock(ctx, w.output, w.summary, len(analytics.SummaryHeader), ports.SummaryValues(rows), stamp)
}

func (w *Workbook) WriteTrend(ctx context.Context, table core.TrendTable, stamp time.Time) error {
	return w.replaceBlock(ctx, w.output, w.trend, len(analytics.TrendHeader), ports.TrendValues(table), stamp)
}

func (w *Workbook) AppendReceipts(ctx context.Context, events []core.Event) (int, error) {
	existing, err := w.ListReceipts(ctx)
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
	if err := w.appendRows(w.received, ports.ReceiptHeader, ports.ReceiptValues(fresh)); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (w *Workbook) ReplacePending(ctx context.Context, events []core.Event) error {
	values := append([][]any{ports.StringsToRow(ports.PendingHeader)}, ports.PendingValues(events, nil)...)
	return w.replaceBlock(ctx, w.input, w.pending, len(ports.PendingHeader), values, w.now())
}

func (w *Workbook) AppendCostHistory(ctx context.Context, entries []core.CostEntry) (int, error) {
	existing, err := w.ListCostHistory(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[ports.HistoryKey(c)] = struct{}{}
	}
	var fresh []core.CostEntry
	for _, c := range entries {
		key := ports.HistoryKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := w.appendRows(w.history, ports.HistoryHeader, ports.HistoryValues(fresh)); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// WriteDelivery fills the median delivery column of the pending tab.
func (w *Workbook) WriteDelivery(ctx context.Context, index map[string]string) error {
	pending, err := w.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := excelize.OpenFile(w.input)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.input, err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.pending, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("read %s: %w", w.pending, err)
	}
	col := 1 + len(ports.PendingHeader)
	itemCol := 1 + 2
	for r := ports.FirstDataRow; r <= len(rows); r++ {
		row := rows[r-1]
		if len(row) < itemCol {
			continue
		}
		id := strings.TrimSpace(row[itemCol-1])
		if id == "" {
			continue
		}
		med, ok := index[id]
		if !ok {
			med = ports.NoDelivery
		}
		cell, _ := excelize.CoordinatesToCellName(col, r)
		if err := f.SetCellValue(w.pending, cell, med); err != nil {
			return fmt.Errorf("write %s!%s: %w", w.pending, cell, err)
		}
	}
	return f.Save()
}

// readTab returns the data rows of sheet as width cells starting at column B.
// Cells in linkCols carrying a hyperlink come back as =HYPERLINK formulas.
// A missing workbook or tab reads as empty.
func (w *Workbook) readTab(sheet string, width int, linkCols ...int) ([][]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", w.input, err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}

	links := make(map[int]bool, len(linkCols))
	for _, c := range linkCols {
		links[c] = true
	}
	var out [][]any
	for r := ports.FirstDataRow - 1; r < len(rows); r++ {
		cells := make([]any, width)
		for c := 0; c < width; c++ {
			idx := c + 1
			v := ""
			if idx < len(rows[r]) {
				v = rows[r][idx]
			}
			if links[c] && v != "" {
				name, _ := excelize.CoordinatesToCellName(idx+1, r+1)
				if ok, target, err := f.GetCellHyperLink(sheet, name); err == nil && ok && target != "" {
					v = ports.Hyperlink(target, v)
				}
			}
			cells[c] = v
		}
		out = append(out, cells)
	}
	return out, nil
}

func (w *Workbook) replaceBlock(ctx context.Context, path, sheet string, width int, values [][]any, stamp time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := openOrCreate(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureSheet(f, sheet); err != nil {
		return err
	}
	existing, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}
	for r := ports.HeaderRow; r <= len(existing); r++ {
		for c := 0; c < width; c++ {
			name, _ := excelize.CoordinatesToCellName(c+2, r)
			if err := f.SetCellValue(sheet, name, nil); err != nil {
				return fmt.Errorf("clear %s!%s: %w", sheet, name, err)
			}
		}
	}
	if err := writeRows(f, sheet, ports.HeaderRow, values); err != nil {
		return err
	}
	if err := writeRows(f, sheet, 1, [][]any{ports.StampValues(stamp)}); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	w.logger.InfoContext(ctx, "Workbook tab replaced", "path", path, "sheet", sheet, "rows", len(values))
	return nil
}

func (w *Workbook) appendRows(sheet string, header []string, values [][]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := openOrCreate(w.input)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureSheet(f, sheet); err != nil {
		return err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}
	next := len(rows) + 1
	if next <= ports.HeaderRow {
		if err := writeRows(f, sheet, ports.HeaderRow, [][]any{ports.StringsToRow(header)}); err != nil {
			return err
		}
		next = ports.FirstDataRow
	}
	if err := writeRows(f, sheet, next, values); err != nil {
		return err
	}
	if err := f.SaveAs(w.input); err != nil {
		return fmt.Errorf("save %s: %w", w.input, err)
	}
	return nil
}

// writeRows writes values starting at column B of row. Hyperlink formulas
// become a text cell with an external link.
func writeRows(f *excelize.File, sheet string, row int, values [][]any) error {
	for i, cells := range values {
		for j, v := range cells {
			name, err := excelize.CoordinatesToCellName(j+2, row+i)
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok {
				if url, text, isLink := ports.ParseHyperlink(s); isLink {
					if err := f.SetCellValue(sheet, name, text); err != nil {
						return err
					}
					if err := f.SetCellHyperLink(sheet, name, url, "External"); err != nil {
						return err
					}
					continue
				}
			}
			if err := f.SetCellValue(sheet, name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func openOrCreate(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return excelize.NewFile(), nil
}

// ensureSheet creates sheet if missing, renaming the default blank sheet of
// a new workbook instead of adding next to it.
func ensureSheet(f *excelize.File, sheet string) error {
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		return nil
	}
	if list := f.GetSheetList(); len(list) == 1 && list[0] == defaultSheet {
		if rows, _ := f.GetRows(defaultSheet); len(rows) == 0 {
			return f.SetSheetName(defaultSheet, sheet)
		}
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return nil
}

func (w *Workbook) reportDrops(ctx context.Context, source string, n int) {
	if n == 0 {
		return
	}
	w.logger.WarnContext(ctx, "Rows dropped while reading workbook", "source", source, "count", n)
	if w.onDrop != nil {
		w.onDrop(source, n)
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
