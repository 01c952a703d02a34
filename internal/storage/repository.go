// Package storage keeps the purchasing ledgers and the report run log in a
// local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"purchasing/internal/core"
	"purchasing/internal/log"
	ports "purchasing/internal/sheets"

	_ "modernc.org/sqlite"
)

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run id is not in the run log.
var ErrRunNotFound = core.ErrRunNotFound

type SQLiteRepository struct {
	db      *sql.DB
	logger  *log.Logger
	version uint
}

var (
	_ ports.Source         = (*SQLiteRepository)(nil)
	_ ports.Sink           = (*SQLiteRepository)(nil)
	_ ports.Ledger         = (*SQLiteRepository)(nil)
	_ ports.DeliveryWriter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		logger:  logger.WithComponent(log.ComponentStorage),
		version: version,
	}
	repo.logger.Debug("SQLite ledger ready", log.FieldPath, dbPath, "schema_version", version)
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion reports the migration version applied at open.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]core.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT po_number, po_url, item_id, reference, description, order_date,
		       quantity, unit_price, delivery_days
		FROM receipts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		var (
			e        core.Event
			date     string
			price    sql.NullString
			delivery sql.NullInt64
		)
		if err := rows.Scan(&e.PONumber, &e.POURL, &e.ItemID, &e.Reference, &e.Description,
			&date, &e.Quantity, &price, &delivery); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		e.Date = parseStoredDate(date)
		if price.Valid {
			if p, err := decimal.NewFromString(price.String); err == nil {
				e.UnitPrice = &p
			}
		}
		if delivery.Valid {
			n := int(delivery.Int64)
			e.DeliveryDays = &n
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]core.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT po_number, po_url, item_id, reference, description, order_date, quantity
		FROM pending_lines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query pending lines: %w", err)
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		var (
			e    core.Event
			date string
		)
		if err := rows.Scan(&e.PONumber, &e.POURL, &e.ItemID, &e.Reference, &e.Description, &date, &e.Quantity); err != nil {
			return nil, fmt.Errorf("scan pending line: %w", err)
		}
		e.Date = parseStoredDate(date)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListCostHistory(ctx context.Context) ([]core.CostEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reference, url, title, entry_date, cost, exception
		FROM cost_history ORDER BY entry_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query cost history: %w", err)
	}
	defer rows.Close()

	var out []core.CostEntry
	for rows.Next() {
		var (
			c    core.CostEntry
			date string
			cost string
		)
		if err := rows.Scan(&c.Reference, &c.URL, &c.Title, &date, &cost, &c.Exception); err != nil {
			return nil, fmt.Errorf("scan cost entry: %w", err)
		}
		c.Date = parseStoredDate(date)
		amount, err := decimal.NewFromString(cost)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping cost entry with unreadable total", "reference", c.Reference, log.FieldError, err)
			continue
		}
		c.Cost = amount
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendReceipts inserts receipts, ignoring lines whose PO, item and order
// date are already recorded.
func (r *SQLiteRepository) AppendReceipts(ctx context.Context, events []core.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	added := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO receipts
				(po_number, po_url, item_id, reference, description, order_date, quantity, unit_price, delivery_days)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare receipt insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			var price, delivery any
			if e.UnitPrice != nil {
				price = e.UnitPrice.String()
			}
			if e.DeliveryDays != nil {
				delivery = *e.DeliveryDays
			}
			res, err := stmt.ExecContext(ctx, e.PONumber, e.POURL, e.ItemID, e.Reference, e.Description,
				e.Date.String(), e.Quantity, price, delivery)
			if err != nil {
				return fmt.Errorf("insert receipt %s/%s: %w", e.PONumber, e.ItemID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.InfoContext(ctx, "Receipts appended", log.FieldOperation, log.OpAppend, log.FieldRows, added, "offered", len(events))
	return added, nil
}

// ReplacePending swaps the outstanding-order snapshot. Lines without an item
// id or order date cannot be joined and are skipped.
func (r *SQLiteRepository) ReplacePending(ctx context.Context, events []core.Event) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_lines`); err != nil {
			return fmt.Errorf("clear pending lines: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pending_lines (po_number, po_url, item_id, reference, description, order_date, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare pending insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			if e.Validate() != nil {
				continue
			}
			if _, err := stmt.ExecContext(ctx, e.PONumber, e.POURL, e.ItemID, e.Reference, e.Description,
				e.Date.String(), e.Quantity); err != nil {
				return fmt.Errorf("insert pending line %s/%s: %w", e.PONumber, e.ItemID, err)
			}
		}
		return nil
	})
}

// AppendCostHistory inserts requisition totals not yet recorded for their
// reference and date.
func (r *SQLiteRepository) AppendCostHistory(ctx context.Context, entries []core.CostEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	added := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO cost_history (reference, url, title, entry_date, cost, exception)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare history insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range entries {
			if c.Validate() != nil {
				continue
			}
			res, err := stmt.ExecContext(ctx, c.Reference, c.URL, c.Title, c.Date.String(), c.Cost.String(), c.Exception)
			if err != nil {
				return fmt.Errorf("insert cost entry %s: %w", c.Reference, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// WriteDelivery stores the median delivery days for every pending line,
// "NA" where the item has none.
func (r *SQLiteRepository) WriteDelivery(ctx context.Context, index map[string]string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE pending_lines SET median_delivery = ?`, ports.NoDelivery); err != nil {
			return fmt.Errorf("reset median delivery: %w", err)
		}
		for id, days := range index {
			if _, err := tx.ExecContext(ctx, `UPDATE pending_lines SET median_delivery = ? WHERE item_id = ?`, days, id); err != nil {
				return fmt.Errorf("set median delivery for %s: %w", id, err)
			}
		}
		return nil
	})
}

// PendingDelivery returns the median delivery column in pending line order.
func (r *SQLiteRepository) PendingDelivery(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT median_delivery FROM pending_lines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query median delivery: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan median delivery: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) WriteSummary(ctx context.Context, summary []core.SummaryRow, stamp time.Time) error {
	written := stamp.UTC().Format(timeLayout)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM summary_rows`); err != nil {
			return fmt.Errorf("clear summary: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO summary_rows
				(position, item_id, reference, name, delivery_days, qty_per_order, cadence, span_months,
				 avg_qty, total_qty, event_count, unit_price, monthly_cost, recurring, last_ordered, written_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare summary insert: %w", err)
		}
		defer stmt.Close()

		for i, s := range summary {
			if _, err := stmt.ExecContext(ctx, i, s.ItemID, s.Reference, s.Name, s.DeliveryDays, s.QuantityPerOrder,
				s.Cadence, s.SpanMonths, s.AvgQtyPerMonth, s.TotalQuantity, s.EventCount,
				s.UnitPrice.String(), s.MonthlyCost.String(), s.Recurring, s.LastOrdered, written); err != nil {
				return fmt.Errorf("insert summary row %s: %w", s.ItemID, err)
			}
		}
		return nil
	})
}

// ReadSummary returns the last written summary in rank order.
func (r *SQLiteRepository) ReadSummary(ctx context.Context) ([]core.SummaryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, reference, name, delivery_days, qty_per_order, cadence, span_months,
		       avg_qty, total_qty, event_count, unit_price, monthly_cost, recurring, last_ordered
		FROM summary_rows ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []core.SummaryRow
	for rows.Next() {
		var (
			s            core.SummaryRow
			price, month string
		)
		if err := rows.Scan(&s.ItemID, &s.Reference, &s.Name, &s.DeliveryDays, &s.QuantityPerOrder, &s.Cadence,
			&s.SpanMonths, &s.AvgQtyPerMonth, &s.TotalQuantity, &s.EventCount, &price, &month,
			&s.Recurring, &s.LastOrdered); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		s.UnitPrice, _ = decimal.NewFromString(price)
		s.MonthlyCost, _ = decimal.NewFromString(month)
		out = append(out, s)
	}
	return out, rows.Err()
}

// WriteTrend stores the trend matrix. Rows must follow the
// label, W1..W5, Exception column order.
func (r *SQLiteRepository) WriteTrend(ctx context.Context, table core.TrendTable, stamp time.Time) error {
	written := stamp.UTC().Format(timeLayout)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trend_rows`); err != nil {
			return fmt.Errorf("clear trend: %w", err)
		}
		for i, row := range table.Rows {
			cells := make([]any, 7)
			for j := range cells {
				cells[j] = ""
				if j < len(row) {
					cells[j] = row[j]
				}
			}
			args := append([]any{i}, cells...)
			args = append(args, written)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO trend_rows (position, label, w1, w2, w3, w4, w5, exception, written_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
				return fmt.Errorf("insert trend row %d: %w", i, err)
			}
		}
		return nil
	})
}

// ReadTrend returns the last written trend rows with the standard header.
func (r *SQLiteRepository) ReadTrend(ctx context.Context, header []string) (core.TrendTable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT label, w1, w2, w3, w4, w5, exception FROM trend_rows ORDER BY position`)
	if err != nil {
		return core.TrendTable{}, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()

	table := core.TrendTable{Header: header}
	for rows.Next() {
		row := make([]string, 7)
		if err := rows.Scan(&row[0], &row[1], &row[2], &row[3], &row[4], &row[5], &row[6]); err != nil {
			return core.TrendTable{}, fmt.Errorf("scan trend row: %w", err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, rows.Err()
}

// RecordRun upserts a run into the run log.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run core.ReportRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO report_runs (id, kind, status, today, started_at, finished_at, summary_rows, trend_rows, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			summary_rows = excluded.summary_rows,
			trend_rows = excluded.trend_rows,
			error = excluded.error`,
		run.ID, string(run.Kind), run.Status, run.Today.String(),
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.SummaryRows, run.TrendRows, run.Error)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]core.ReportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, status, today, started_at, finished_at, summary_rows, trend_rows, error
		FROM report_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []core.ReportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun looks up one run by id.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (core.ReportRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, status, today, started_at, finished_at, summary_rows, trend_rows, error
		FROM report_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ReportRun{}, ErrRunNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (core.ReportRun, error) {
	var (
		run               core.ReportRun
		kind, today       string
		started, finished string
	)
	if err := s.Scan(&run.ID, &kind, &run.Status, &today, &started, &finished,
		&run.SummaryRows, &run.TrendRows, &run.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.Kind = core.ReportKind(kind)
	run.Today = parseStoredDate(today)
	run.StartedAt, _ = time.Parse(timeLayout, started)
	run.FinishedAt, _ = time.Parse(timeLayout, finished)
	return run, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func parseStoredDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseISODate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}
