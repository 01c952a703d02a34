// Package sheets defines the ports between the report engine and the
// spreadsheet-shaped stores it reads and writes, plus the row codecs shared by
// every tabular adapter (Google Sheets, XLSX).
//
// Every tab keeps its header on row 10 and data from row 11, starting at
// column B:
//
//	CAME IN          B PO#, C Order Date, D Received Date, E Arrived In,
//	                 F Item ID, G Description, H Qty, I Price Per Unit
//	WAITING ON       B PO#, C Order Date, D Item ID, E Description,
//	                 F Qty Remaining, G Median Delivery (Days)
//	LATEST 2 YEARS   B Request #, C Date, D Total, E Exception
package sheets

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"purchasing/internal/analytics"
	"purchasing/internal/core"
)

const (
	HeaderRow    = 10
	FirstDataRow = 11
	FirstColumn  = "B"
	StampLabel   = "Last Updated:"
	NoDelivery   = "NA"
)

var (
	ErrBlankRow    = errors.New("blank row")
	ErrNoIdentity  = errors.New("row has neither item id nor description")
	ErrNoItemID    = errors.New("row has no item id")
	ErrRowDate     = errors.New("row date is not parseable")
	ErrRowAmount   = errors.New("row amount is not parseable")
	hyperlinkRegex = regexp.MustCompile(`(?i)^\s*=HYPERLINK\(\s*"([^"]*)"\s*[,;]\s*"([^"]*)"\s*\)\s*$`)
)

var (
	ReceiptHeader = []string{"PO #", "Order Date", "Received Date", "Arrived In", "Item ID", "Description", "Qty", "Price Per Unit"}
	PendingHeader = []string{"PO #", "Order Date", "Item ID", "Description", "Quantity in reorder", "Median Delivery (Days)"}
	HistoryHeader = []string{"Request #", "Date", "Total", "Exception"}
)

// ParseHyperlink splits a =HYPERLINK("url","text") formula.
func ParseHyperlink(cell string) (url, text string, ok bool) {
	m := hyperlinkRegex.FindStringSubmatch(cell)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Hyperlink builds a =HYPERLINK formula, or returns text alone when url is empty.
func Hyperlink(url, text string) string {
	if url == "" {
		return text
	}
	esc := strings.NewReplacer(`"`, `""`)
	return `=HYPERLINK("` + esc.Replace(url) + `","` + esc.Replace(text) + `")`
}

// linkCell reads a cell that is either a hyperlink formula or plain text.
func linkCell(v any) (url, text string) {
	s := strings.TrimSpace(CellText(v))
	if u, t, ok := ParseHyperlink(s); ok {
		return u, strings.TrimSpace(t)
	}
	return "", s
}

// CellText renders a raw cell value as text. Integral floats lose their ".0".
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func cell(cells []any, i int) any {
	if i < 0 || i >= len(cells) {
		return nil
	}
	return cells[i]
}

func blank(cells []any) bool {
	for _, c := range cells {
		if strings.TrimSpace(CellText(c)) != "" {
			return false
		}
	}
	return true
}

// ParseReceiptRow decodes one CAME IN row (columns B..I). Unparseable
// quantity, price, date or delivery cells degrade to their zero values; only
// rows without any identity are rejected.
func ParseReceiptRow(cells []any) (core.Event, error) {
	if blank(cells) {
		return core.Event{}, ErrBlankRow
	}
	poURL, po := linkCell(cell(cells, 0))
	itemURL, itemID := linkCell(cell(cells, 4))
	e := core.Event{
		ItemID:      itemID,
		Reference:   itemURL,
		PONumber:    po,
		POURL:       poURL,
		Description: strings.TrimSpace(CellText(cell(cells, 5))),
	}
	if e.ItemID == "" && e.Description == "" {
		return core.Event{}, ErrNoIdentity
	}
	if d, err := core.ParseSheetDate(cell(cells, 1)); err == nil {
		e.Date = d
	}
	if n, ok := core.ParseDeliveryDays(CellText(cell(cells, 3))); ok {
		e.DeliveryDays = &n
	}
	if q, err := core.ParseQuantity(CellText(cell(cells, 6))); err == nil {
		e.Quantity = q
	}
	if p, err := core.ParseAmount(CellText(cell(cells, 7))); err == nil {
		e.UnitPrice = &p
	}
	return e, nil
}

// ParsePendingRow decodes one WAITING ON row (columns B..G). Rows without an
// item id or a readable order date cannot join onto a receipt and are rejected.
func ParsePendingRow(cells []any) (core.Event, error) {
	if blank(cells) {
		return core.Event{}, ErrBlankRow
	}
	poURL, po := linkCell(cell(cells, 0))
	itemURL, itemID := linkCell(cell(cells, 2))
	if itemID == "" {
		return core.Event{}, ErrNoItemID
	}
	d, err := core.ParseSheetDate(cell(cells, 1))
	if err != nil {
		return core.Event{}, ErrRowDate
	}
	e := core.Event{
		ItemID:      itemID,
		Reference:   itemURL,
		PONumber:    po,
		POURL:       poURL,
		Description: strings.TrimSpace(CellText(cell(cells, 3))),
		Date:        d,
	}
	if q, err := core.ParseQuantity(CellText(cell(cells, 4))); err == nil {
		e.Quantity = q
	}
	return e, nil
}

// PendingItemID returns the item id cell of a raw WAITING ON row, without
// its hyperlink. It is empty for rows with no item id.
func PendingItemID(cells []any) string {
	_, id := linkCell(cell(cells, 2))
	return id
}

// ParseHistoryRow decodes one LATEST 2 YEARS row (columns B..E). Rows with
// an unreadable date or total are rejected. A blank exception cell defers to
// classify, which judges the request title.
func ParseHistoryRow(cells []any, classify analytics.ExceptionClassifier) (core.CostEntry, error) {
	if blank(cells) {
		return core.CostEntry{}, ErrBlankRow
	}
	url, title := linkCell(cell(cells, 0))
	d, err := core.ParseSheetDate(cell(cells, 1))
	if err != nil {
		return core.CostEntry{}, ErrRowDate
	}
	amount, err := core.ParseAmount(CellText(cell(cells, 2)))
	if err != nil {
		return core.CostEntry{}, ErrRowAmount
	}
	flag := CellText(cell(cells, 3))
	return core.CostEntry{
		Reference: title,
		URL:       url,
		Title:     title,
		Date:      d,
		Cost:      amount,
		Exception: analytics.IsException(flag, title, classify),
	}, nil
}

// ReceiptValues renders events in CAME IN column order.
func ReceiptValues(events []core.Event) [][]any {
	out := make([][]any, 0, len(events))
	for _, e := range events {
		arrived := ""
		if e.DeliveryDays != nil {
			arrived = fmt.Sprintf("%d days", *e.DeliveryDays)
		}
		price := ""
		if e.UnitPrice != nil {
			price = e.UnitPrice.String()
		}
		out = append(out, []any{
			Hyperlink(e.POURL, e.PONumber),
			sheetDate(e.Date),
			sheetDate(e.ReceivedDate()),
			arrived,
			Hyperlink(e.Reference, e.ItemID),
			e.Description,
			e.Quantity,
			price,
		})
	}
	return out
}

// PendingValues renders events in WAITING ON column order. delivery maps
// item ids to their median delivery days.
func PendingValues(events []core.Event, delivery map[string]string) [][]any {
	out := make([][]any, 0, len(events))
	for _, e := range events {
		med, ok := delivery[e.ItemID]
		if !ok {
			med = NoDelivery
		}
		out = append(out, []any{
			Hyperlink(e.POURL, e.PONumber),
			sheetDate(e.Date),
			Hyperlink(e.Reference, e.ItemID),
			e.Description,
			e.Quantity,
			med,
		})
	}
	return out
}

// HistoryValues renders cost entries in LATEST 2 YEARS column order.
func HistoryValues(entries []core.CostEntry) [][]any {
	out := make([][]any, 0, len(entries))
	for _, c := range entries {
		flag := "—"
		if c.Exception {
			flag = analytics.Badge
		}
		out = append(out, []any{
			Hyperlink(c.URL, c.Reference),
			sheetDate(c.Date),
			c.Cost.StringFixed(2),
			flag,
		})
	}
	return out
}

// SummaryValues renders the header and summary rows with linked item ids.
func SummaryValues(rows []core.SummaryRow) [][]any {
	header, table := analytics.RowsToTable(rows)
	out := make([][]any, 0, len(table)+1)
	out = append(out, StringsToRow(header))
	for i, r := range table {
		r[0] = Hyperlink(rows[i].Reference, rows[i].ItemID)
		out = append(out, StringsToRow(r))
	}
	return out
}

// TrendValues renders the trend header and rows.
func TrendValues(table core.TrendTable) [][]any {
	out := make([][]any, 0, len(table.Rows)+1)
	out = append(out, StringsToRow(table.Header))
	for _, r := range table.Rows {
		out = append(out, StringsToRow(r))
	}
	return out
}

// StampValues is the "Last Updated:" row written to B1:D1.
func StampValues(t time.Time) []any {
	return []any{StampLabel, t.Format("2006-01-02"), t.Format("15:04")}
}

func sheetDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("01/02/2006")
}

// StringsToRow converts a string row to sheet cell values.
func StringsToRow(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// ColumnLetter converts a 1-based column index to its letter name.
func ColumnLetter(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}

// DataRange returns the A1 range covering width columns from column B,
// starting at row.
func DataRange(sheet string, row, width int) string {
	last := ColumnLetter(1 + width)
	return fmt.Sprintf("%s!%s%d:%s", sheet, FirstColumn, row, last)
}

// ReceiptKey identifies a receipt line for de-duplication on ingest.
func ReceiptKey(e core.Event) string {
	return e.PONumber + "|" + e.ItemID + "|" + e.Date.String()
}

// HistoryKey identifies a requisition total for de-duplication on ingest.
func HistoryKey(c core.CostEntry) string {
	return c.Reference + "|" + c.Date.String()
}
