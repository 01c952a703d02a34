package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/analytics"
	"purchasing/internal/core"
)

func TestParseHyperlink(t *testing.T) {
	url, text, ok := ParseHyperlink(`=HYPERLINK("https://portal.test/item/1","CR-0870-J")`)
	require.True(t, ok)
	assert.Equal(t, "https://portal.test/item/1", url)
	assert.Equal(t, "CR-0870-J", text)

	_, _, ok = ParseHyperlink("plain text")
	assert.False(t, ok)

	_, text, ok = ParseHyperlink(`=hyperlink( "u" ; "t" )`)
	assert.True(t, ok)
	assert.Equal(t, "t", text)
}

func TestHyperlink(t *testing.T) {
	assert.Equal(t, "ID-1", Hyperlink("", "ID-1"))
	assert.Equal(t, `=HYPERLINK("https://x.test","ID-1")`, Hyperlink("https://x.test", "ID-1"))
}

func TestParseReceiptRow(t *testing.T) {
	cells := []any{
		`=HYPERLINK("https://po.test/1","PO-1")`,
		45296.0,
		"01/10/2024",
		"5 days",
		`=HYPERLINK("https://item.test/a","A-1")`,
		"Gloves, Nitrile (Box of 100)",
		"3.0",
		"$12.50",
	}
	e, err := ParseReceiptRow(cells)
	require.NoError(t, err)
	assert.Equal(t, "PO-1", e.PONumber)
	assert.Equal(t, "https://po.test/1", e.POURL)
	assert.Equal(t, "A-1", e.ItemID)
	assert.Equal(t, "https://item.test/a", e.Reference)
	assert.Equal(t, core.NewDate(2024, 1, 5), e.Date)
	assert.Equal(t, 3, e.Quantity)
	require.NotNil(t, e.DeliveryDays)
	assert.Equal(t, 5, *e.DeliveryDays)
	require.NotNil(t, e.UnitPrice)
	assert.Equal(t, "12.5", e.UnitPrice.String())
}

func TestParseReceiptRow_Degrades(t *testing.T) {
	e, err := ParseReceiptRow([]any{"PO-9", "someday", "", "", "B-2", "Mop", "lots", "n/a"})
	require.NoError(t, err)
	assert.True(t, e.Date.IsZero())
	assert.Equal(t, 0, e.Quantity)
	assert.Nil(t, e.UnitPrice)
	assert.Nil(t, e.DeliveryDays)

	e, err = ParseReceiptRow([]any{"PO-9", "01/02/2024", "", "", "", "Mop Head"})
	require.NoError(t, err)
	assert.Equal(t, "", e.ItemID)
	assert.Equal(t, "Mop Head", e.Description)

	_, err = ParseReceiptRow([]any{"", "", ""})
	assert.ErrorIs(t, err, ErrBlankRow)

	_, err = ParseReceiptRow([]any{"PO-9", "01/02/2024", "", "", "", ""})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestParsePendingRow(t *testing.T) {
	e, err := ParsePendingRow([]any{"PO-2", "2024-02-01", `=HYPERLINK("u","A-1")`, "Gloves", "4", "NA"})
	require.NoError(t, err)
	assert.Equal(t, "A-1", e.ItemID)
	assert.Equal(t, core.NewDate(2024, 2, 1), e.Date)
	assert.Equal(t, 4, e.Quantity)

	_, err = ParsePendingRow([]any{"PO-2", "2024-02-01", "", "Gloves"})
	assert.ErrorIs(t, err, ErrNoItemID)

	_, err = ParsePendingRow([]any{"PO-2", "soon", "A-1"})
	assert.ErrorIs(t, err, ErrRowDate)
}

func TestPendingItemID(t *testing.T) {
	assert.Equal(t, "A-1", PendingItemID([]any{"PO-2", "soon", `=HYPERLINK("u","A-1")`}))
	assert.Equal(t, "B-2", PendingItemID([]any{"PO-2", "", " B-2 "}))
	assert.Equal(t, "", PendingItemID([]any{"PO-2", "2024-02-01"}))
	assert.Equal(t, "", PendingItemID(nil))
}

func TestParseHistoryRow(t *testing.T) {
	classify := analytics.StandardLocations("Main Club")

	c, err := ParseHistoryRow([]any{`=HYPERLINK("https://req.test/7","Pop-up REQ-7")`, "01/20/2025", "30", ""}, classify)
	require.NoError(t, err)
	assert.True(t, c.Exception)
	assert.Equal(t, "Pop-up REQ-7", c.Reference)
	assert.Equal(t, "https://req.test/7", c.URL)
	assert.True(t, c.Cost.Equal(decimal.NewFromInt(30)))

	c, err = ParseHistoryRow([]any{"REQ-8", "01/03/2025", "1,234.50", "—"}, classify)
	require.NoError(t, err)
	assert.False(t, c.Exception)
	assert.Equal(t, "1234.5", c.Cost.String())

	_, err = ParseHistoryRow([]any{"REQ-9", "bad", "10"}, classify)
	assert.ErrorIs(t, err, ErrRowDate)
	_, err = ParseHistoryRow([]any{"REQ-9", "01/03/2025", "ten"}, classify)
	assert.ErrorIs(t, err, ErrRowAmount)
}

func TestValuesRoundTripThroughParsers(t *testing.T) {
	days := 4
	price := decimal.RequireFromString("2.25")
	in := core.Event{
		ItemID: "A-1", Reference: "https://item.test/a", PONumber: "PO-1", POURL: "https://po.test/1",
		Description: "Gloves", Date: core.NewDate(2024, 3, 9), Quantity: 6, UnitPrice: &price, DeliveryDays: &days,
	}
	rows := ReceiptValues([]core.Event{in})
	require.Len(t, rows, 1)
	assert.Equal(t, "03/13/2024", rows[0][2])

	out, err := ParseReceiptRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, in.ItemID, out.ItemID)
	assert.Equal(t, in.Reference, out.Reference)
	assert.Equal(t, in.Date, out.Date)
	assert.Equal(t, in.Quantity, out.Quantity)
	assert.Equal(t, *in.DeliveryDays, *out.DeliveryDays)
	assert.True(t, in.UnitPrice.Equal(*out.UnitPrice))

	pending := PendingValues([]core.Event{in, {ItemID: "B-2"}}, map[string]string{"A-1": "4"})
	assert.Equal(t, "4", pending[0][5])
	assert.Equal(t, NoDelivery, pending[1][5])
}

func TestSummaryValues(t *testing.T) {
	values := SummaryValues([]core.SummaryRow{
		{ItemID: "A-1", Reference: "https://item.test/a", Name: "Gloves", QuantityPerOrder: 2, MonthlyCost: decimal.NewFromInt(5)},
		{ItemID: "B-2", Name: "Mop"},
	})
	require.Len(t, values, 3)
	assert.Equal(t, "Item ID", values[0][0])
	assert.Equal(t, `=HYPERLINK("https://item.test/a","A-1")`, values[1][0])
	assert.Equal(t, "B-2", values[2][0])
	assert.Equal(t, "5.00", values[1][6])
}

func TestStampValues(t *testing.T) {
	got := StampValues(time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC))
	assert.Equal(t, []any{StampLabel, "2024-06-01", "09:05"}, got)
}

func TestDataRange(t *testing.T) {
	assert.Equal(t, "CAME IN!B11:I", DataRange("CAME IN", FirstDataRow, len(ReceiptHeader)))
	assert.Equal(t, "AA", ColumnLetter(27))
}
