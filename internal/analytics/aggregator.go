package analytics

import (
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"purchasing/internal/core"
	"purchasing/internal/naming"
)

// Namer resolves a raw description to a display name.
type Namer interface {
	Normalize(raw, itemID string) string
}

// Aggregator folds receipt and pending events into ranked per-item rows.
// An Aggregator is immutable; every Aggregate call owns its accumulators.
type Aggregator struct {
	namer  Namer
	policy RecurrencePolicy
	today  core.Date
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPolicy replaces the recurring-order policy.
func WithPolicy(p RecurrencePolicy) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.policy = p
		}
	}
}

// WithToday pins the reference date used for "days ago" labels.
func WithToday(d core.Date) Option {
	return func(a *Aggregator) {
		if !d.IsZero() {
			a.today = d
		}
	}
}

// NewAggregator creates an aggregator. A nil namer falls back to plain
// description truncation.
func NewAggregator(namer Namer, opts ...Option) *Aggregator {
	if namer == nil {
		namer = naming.NewNormalizer(nil, nil)
	}
	a := &Aggregator{
		namer:  namer,
		policy: DefaultRecurrencePolicy,
		today:  core.Today(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// itemRecord accumulates one item's observations within a single pass.
type itemRecord struct {
	itemID     string
	reference  string
	name       string
	events     int
	quantities []int
	deliveries []int
	prices     []decimal.Decimal
	total      int
	dates      map[core.Date]struct{}
	dateList   []core.Date
	months     map[int]struct{}
	first      core.Date
	last       core.Date
}

func (r *itemRecord) addDate(d core.Date) bool {
	if d.IsZero() {
		return false
	}
	if _, seen := r.dates[d]; seen {
		return false
	}
	r.dates[d] = struct{}{}
	r.dateList = append(r.dateList, d)
	r.months[d.MonthIndex()] = struct{}{}
	if r.first.IsZero() || d.Before(r.first.Time) {
		r.first = d
	}
	if d.After(r.last.Time) {
		r.last = d
	}
	return true
}

func (r *itemRecord) spanMonths() int {
	if r.first.IsZero() {
		return 1
	}
	return r.last.MonthIndex() - r.first.MonthIndex() + 1
}

// receiptKey identifies the record a receipt folds into. Receipts without an
// item code are grouped by their canonical display name.
func receiptKey(e core.Event, name string) string {
	if e.ItemID != "" {
		return e.ItemID
	}
	return "name:" + naming.Canonicalize(name)
}

// Aggregate runs both passes and returns rows ranked badged-first, then by
// monthly cost descending. Ties keep encounter order.
func (a *Aggregator) Aggregate(receipts, pending []core.Event) []core.SummaryRow {
	records := make(map[string]*itemRecord)
	var order []*itemRecord

	for _, e := range receipts {
		key := e.ItemID
		var name string
		if key == "" {
			name = a.namer.Normalize(e.Description, "")
			key = receiptKey(e, name)
		}
		rec, ok := records[key]
		if !ok {
			if name == "" {
				name = a.namer.Normalize(e.Description, e.ItemID)
			}
			rec = &itemRecord{
				itemID: e.ItemID,
				name:   name,
				dates:  make(map[core.Date]struct{}),
				months: make(map[int]struct{}),
			}
			records[key] = rec
			order = append(order, rec)
		}
		if rec.reference == "" {
			rec.reference = e.Reference
		}
		rec.events++
		rec.quantities = append(rec.quantities, e.Quantity)
		rec.total += e.Quantity
		if e.DeliveryDays != nil {
			rec.deliveries = append(rec.deliveries, *e.DeliveryDays)
		}
		if e.UnitPrice != nil {
			rec.prices = append(rec.prices, *e.UnitPrice)
		}
		rec.addDate(e.Date)
	}

	for _, e := range pending {
		if e.ItemID == "" {
			continue
		}
		rec, ok := records[e.ItemID]
		if !ok {
			continue
		}
		rec.addDate(e.Date)
	}

	rows := make([]core.SummaryRow, 0, len(order))
	for _, rec := range order {
		rows = append(rows, a.summarize(rec))
	}
	SortRows(rows)
	return rows
}

func (a *Aggregator) summarize(rec *itemRecord) core.SummaryRow {
	row := core.SummaryRow{
		ItemID:        rec.itemID,
		Reference:     rec.reference,
		Name:          rec.name,
		SpanMonths:    rec.spanMonths(),
		TotalQuantity: rec.total,
		EventCount:    rec.events,
		LastOrdered:   LastOrderDate(rec.dateList),
	}

	if m, ok := medianInts(rec.deliveries); ok {
		row.DeliveryDays = strconv.Itoa(int(math.RoundToEven(m)))
	}
	if m, ok := medianInts(rec.quantities); ok {
		row.QuantityPerOrder = int(m)
	}
	row.AvgQtyPerMonth = int(math.Ceil(float64(rec.total) / float64(row.SpanMonths)))
	row.UnitPrice = medianDecimals(rec.prices)
	row.MonthlyCost = row.UnitPrice.Mul(decimal.NewFromInt(int64(row.AvgQtyPerMonth)))

	stats := RecurrenceStats{
		EventCount:     rec.events,
		SpanMonths:     row.SpanMonths,
		DistinctMonths: len(rec.months),
	}
	stats.MedianGapDays, stats.HasGap = MedianGap(rec.dateList)
	row.Recurring = eligibleForBadge(stats) && a.policy.IsRecurring(stats)
	row.Cadence = FrequencyLabel(rec.dateList, row.Recurring, a.today)
	return row
}

// SortRows orders rows badged-first, then by monthly cost descending.
// The sort is stable.
func SortRows(rows []core.SummaryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Recurring != rows[j].Recurring {
			return rows[i].Recurring
		}
		return rows[i].MonthlyCost.GreaterThan(rows[j].MonthlyCost)
	})
}
