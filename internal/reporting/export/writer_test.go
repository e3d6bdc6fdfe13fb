package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/freightdesk/internal/reporting"
)

func testLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(reporting.DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func testFilter(loc *time.Location) reporting.ReportFilter {
	return reporting.ReportFilter{
		Start:     time.Date(2026, 5, 1, 0, 0, 0, 0, loc),
		End:       time.Date(2026, 5, 31, 0, 0, 0, 0, loc),
		Frequency: reporting.FreqMonthly,
		DateBasis: reporting.BasisCreated,
		Currency:  "PHP",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

func testDataset(loc *time.Location) reporting.Dataset {
	created := time.Date(2026, 5, 10, 9, 0, 0, 0, loc)
	mk := func(id string, delivered *time.Time) reporting.Booking {
		return reporting.Booking{
			BookingID:     id,
			ClientID:      7,
			CompanyID:     1,
			Mode:          reporting.ModeAir,
			Status:        reporting.StatusDelivered,
			CreatedAt:     created,
			DeliveredAt:   delivered,
			RevenueAmount: dec("1000"),
			ExpenseAmount: dec("400"),
			Currency:      "PHP",
		}
	}
	return reporting.Dataset{
		Bookings: []reporting.Booking{
			mk("BK-3", nil),
			mk("BK-1", timePtr(created.AddDate(0, 0, 5))),
			mk("BK-2", timePtr(created.AddDate(0, 0, 2))),
			mk("BK-0", nil),
		},
		Entries: []reporting.Entry{
			{EntryID: "EN-2", Type: reporting.EntryRevenue, Amount: dec("1000"), Currency: "PHP", CompanyID: 1, BookingID: strPtr("BK-1"), Category: "Freight", EntryDate: created.AddDate(0, 0, 1)},
			{EntryID: "EN-1", Type: reporting.EntryExpense, Amount: dec("400"), Currency: "PHP", CompanyID: 1, Category: "Fuel", EntryDate: created.AddDate(0, 0, 1)},
			{EntryID: "EN-3", Type: reporting.EntryExpense, Amount: dec("50"), Currency: "PHP", CompanyID: 1, Category: "Handling", EntryDate: created},
		},
		Clients:   []reporting.Client{{ClientID: 7, Name: "Acme Forwarding"}},
		Companies: []reporting.Company{{CompanyID: 1, Name: "FreightDesk PH"}},
	}
}

func csvLines(t *testing.T, data []byte) []string {
	t.Helper()
	text := string(data)
	require.True(t, strings.HasSuffix(text, "\r\n"), "export must be CRLF terminated")
	return strings.Split(strings.TrimSuffix(text, "\r\n"), "\r\n")
}

func TestBookingsExportColumnsAndSort(t *testing.T) {
	loc := testLoc(t)
	w := &Writer{Prefix: "freightdesk", Location: loc}
	files, err := w.Bookings(testDataset(loc), testFilter(loc))
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "freightdesk_bookings_20260501_20260531_created_monthly.csv", files[0].Name)

	lines := csvLines(t, files[0].Data)
	assert.Equal(t, strings.Join(bookingColumns, ","), lines[0])

	// delivered_at ascending with nulls last, booking_id breaking ties.
	var order []string
	for _, line := range lines[1:] {
		order = append(order, strings.SplitN(line, ",", 2)[0])
	}
	assert.Equal(t, []string{"BK-2", "BK-1", "BK-0", "BK-3"}, order)
}

func TestEntriesExportColumnsAndSort(t *testing.T) {
	loc := testLoc(t)
	w := &Writer{Prefix: "freightdesk", Location: loc}
	files, err := w.Entries(testDataset(loc), testFilter(loc))
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "freightdesk_entries_20260501_20260531_monthly.csv", files[0].Name)

	lines := csvLines(t, files[0].Data)
	assert.Equal(t, strings.Join(entryColumns, ","), lines[0])

	var order []string
	for _, line := range lines[1:] {
		order = append(order, strings.SplitN(line, ",", 2)[0])
	}
	assert.Equal(t, []string{"EN-3", "EN-1", "EN-2"}, order)

	// Unlinked entry carries an empty booking_id cell, not a placeholder.
	fields := strings.Split(lines[2], ",")
	assert.Equal(t, "EN-1", fields[0])
	assert.Equal(t, "", fields[7])
}

func TestExportIsReproducible(t *testing.T) {
	loc := testLoc(t)
	w := &Writer{Prefix: "freightdesk", Location: loc}
	ds := testDataset(loc)
	f := testFilter(loc)

	first, err := w.Bookings(ds, f)
	require.NoError(t, err)
	second, err := w.Bookings(ds, f)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first[0].Data, second[0].Data), "repeated export differs")

	bundle1, err := w.Bundle(ds, f)
	require.NoError(t, err)
	bundle2, err := w.Bundle(ds, f)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(bundle1.Data, bundle2.Data), "repeated bundle differs")
}

func TestChunking(t *testing.T) {
	loc := testLoc(t)
	created := time.Date(2026, 5, 10, 0, 0, 0, 0, loc)
	ds := reporting.Dataset{Companies: []reporting.Company{{CompanyID: 1, Name: "FreightDesk PH"}}}
	for i := 0; i < 5; i++ {
		ds.Entries = append(ds.Entries, reporting.Entry{
			EntryID:   fmt.Sprintf("EN-%03d", i),
			Type:      reporting.EntryExpense,
			Amount:    dec("10"),
			Currency:  "PHP",
			CompanyID: 1,
			Category:  "Fuel",
			EntryDate: created,
		})
	}

	w := &Writer{Prefix: "freightdesk", ChunkRows: 2, Location: loc}
	files, err := w.Entries(ds, testFilter(loc))
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "freightdesk_entries_20260501_20260531_monthly_part01.csv", files[0].Name)
	assert.Equal(t, "freightdesk_entries_20260501_20260531_monthly_part02.csv", files[1].Name)
	assert.Equal(t, "freightdesk_entries_20260501_20260531_monthly_part03.csv", files[2].Name)

	// Every part repeats the header; the split is positional in sort order.
	for i, file := range files {
		lines := csvLines(t, file.Data)
		assert.Equal(t, strings.Join(entryColumns, ","), lines[0], "part %d header", i+1)
	}
	assert.Equal(t, 3, len(csvLines(t, files[0].Data)))
	assert.Equal(t, 3, len(csvLines(t, files[1].Data)))
	assert.Equal(t, 2, len(csvLines(t, files[2].Data)))

	// A row count at the ceiling stays in one unsuffixed file.
	w.ChunkRows = 5
	files, err = w.Entries(ds, testFilter(loc))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "freightdesk_entries_20260501_20260531_monthly.csv", files[0].Name)
}

func TestChunkingDisabledRejectsLargeExports(t *testing.T) {
	loc := testLoc(t)
	ds := testDataset(loc)
	w := &Writer{Prefix: "freightdesk", ChunkRows: 2, ChunkingDisabled: true, Location: loc}
	_, err := w.Bookings(ds, testFilter(loc))
	assert.ErrorIs(t, err, ErrExportTooLarge)
}

func TestBundleContainsManifestAndParts(t *testing.T) {
	loc := testLoc(t)
	w := &Writer{Prefix: "freightdesk", Location: loc}
	ds := testDataset(loc)
	f := testFilter(loc)

	bundle, err := w.Bundle(ds, f)
	require.NoError(t, err)
	assert.Equal(t, "freightdesk_raw_20260501_20260531_monthly.zip", bundle.Name)

	zr, err := zip.NewReader(bytes.NewReader(bundle.Data), int64(len(bundle.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	assert.Equal(t, "MANIFEST.txt", zr.File[0].Name)
	assert.Equal(t, "freightdesk_bookings_20260501_20260531_created_monthly.csv", zr.File[1].Name)
	assert.Equal(t, "freightdesk_entries_20260501_20260531_monthly.csv", zr.File[2].Name)
	for _, zf := range zr.File {
		assert.Equal(t, 1980, zf.Modified.Year(), "%s carries a wall-clock timestamp", zf.Name)
	}

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	var manifestBuf bytes.Buffer
	_, err = manifestBuf.ReadFrom(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	manifestText := manifestBuf.String()
	assert.Contains(t, manifestText, "Range: 2026-05-01 to 2026-05-31")
	assert.Contains(t, manifestText, "Date basis: created")
	assert.Contains(t, manifestText, "booking_id: stable unique shipment reference")
	assert.Contains(t, manifestText, "Booking rows: 4")
	assert.Contains(t, manifestText, "Entry rows: 3")
}

func TestAggregatesExport(t *testing.T) {
	loc := testLoc(t)
	f := testFilter(loc)
	rep := reporting.Report{
		Filter: f,
		KPIs: reporting.KPISet{
			Bookings:        3,
			Delivered:       2,
			DeliveryRatePct: 66.66666666666667,
			Revenue:         dec("1800"),
			Expenses:        dec("500"),
			NetProfit:       dec("1300"),
			MarginPct:       72.22222222222223,
		},
		Series: []reporting.SeriesPoint{
			{Period: "2026-05", Revenue: dec("1800"), Expenses: dec("500"), NetProfit: dec("1300")},
		},
		ByCategory: []reporting.CategorySlice{
			{Category: "Fuel", Amount: dec("400"), Pct: 80},
			{Category: "Handling", Amount: dec("100"), Pct: 20},
		},
		TopClients: []reporting.ClientRank{
			{ClientID: 7, ClientName: "Acme Forwarding", Bookings: 3, Revenue: dec("1800"), MarginPct: 72.22222222222223},
		},
	}

	w := &Writer{Prefix: "freightdesk", Location: loc}
	file, err := w.Aggregates(rep)
	require.NoError(t, err)
	assert.Equal(t, "freightdesk_summary_20260501_20260531_monthly.csv", file.Name)

	lines := csvLines(t, file.Data)
	assert.True(t, strings.HasPrefix(lines[0], "# Report: 2026-05-01 to 2026-05-31"))
	assert.Contains(t, lines[1], "Companies: All")

	text := string(file.Data)
	assert.Contains(t, text, "Delivery Rate %,66.67\r\n")
	assert.Contains(t, text, "Net Profit,1300.00\r\n")
	assert.Contains(t, text, "2026-05,1800.00,500.00,1300.00\r\n")
	assert.Contains(t, text, "Fuel,400.00,80.00\r\n")
	assert.Contains(t, text, "Acme Forwarding,3,1800.00,72.22\r\n")
}
