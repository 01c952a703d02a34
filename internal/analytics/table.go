package analytics

import (
	"strconv"

	"purchasing/internal/core"
)

// Badge marks a recurring item in rendered tables.
const Badge = "✅"

// SummaryHeader is the column header of a rendered summary table.
var SummaryHeader = []string{
	"Item ID",
	"Description",
	"Delivery Days",
	"Qty Per Order",
	"Lasts For",
	"Avg Qty Monthly",
	"Monthly Cost",
	"Ordered Often?",
	"Last Ordered",
}

// RowsToTable renders summary rows as strings in SummaryHeader order.
func RowsToTable(rows []core.SummaryRow) (header []string, table [][]string) {
	header = append([]string(nil), SummaryHeader...)
	table = make([][]string, 0, len(rows))
	for _, r := range rows {
		badge := ""
		if r.Recurring {
			badge = Badge
		}
		table = append(table, []string{
			r.ItemID,
			r.Name,
			r.DeliveryDays,
			strconv.Itoa(r.QuantityPerOrder),
			r.Cadence,
			strconv.Itoa(r.AvgQtyPerMonth),
			r.MonthlyCost.StringFixed(2),
			badge,
			r.LastOrdered,
		})
	}
	return header, table
}

// DeliveryIndex maps item codes to their median delivery days. Items without
// delivery samples are left out.
func DeliveryIndex(rows []core.SummaryRow) map[string]string {
	idx := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.ItemID == "" || r.DeliveryDays == "" {
			continue
		}
		idx[r.ItemID] = r.DeliveryDays
	}
	return idx
}
