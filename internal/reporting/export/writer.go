package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/freightdesk/freightdesk/internal/reporting"
)

// Kind selects what an export request targets.
type Kind string

const (
	KindAggregates Kind = "aggregates"
	KindBookings   Kind = "raw-bookings"
	KindEntries    Kind = "raw-entries"
	KindBundle     Kind = "raw-bundle"
)

// Format selects the output container.
type Format string

const (
	FormatCSV Format = "csv"
	FormatZip Format = "zip"
)

// DefaultChunkRows is the row ceiling per raw export file.
const DefaultChunkRows = 200_000

// ErrExportTooLarge occurs when chunking is disabled by configuration and the
// row count still exceeds the ceiling.
var ErrExportTooLarge = errors.New("export: row count exceeds limit and chunking is disabled")

// zip entries carry a fixed timestamp so repeated exports of the same input
// stay byte-identical for audit diffing.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

var bookingColumns = []string{
	"booking_id", "client_id", "client_name", "company_id", "company_name",
	"mode", "status", "created_at", "dispatched_at", "delivered_at",
	"revenue_amount", "expense_amount", "currency",
}

var entryColumns = []string{
	"entry_id", "type", "amount", "currency", "entry_date",
	"company_id", "company_name", "booking_id", "category",
}

// File is one generated export artifact.
type File struct {
	Name string
	Data []byte
}

// Writer serialises filtered record sets into column-stable files.
type Writer struct {
	Prefix           string
	ChunkRows        int
	ChunkingDisabled bool
	Location         *time.Location
}

func (w *Writer) chunkRows() int {
	if w.ChunkRows > 0 {
		return w.ChunkRows
	}
	return DefaultChunkRows
}

func (w *Writer) location() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return time.UTC
}

func (w *Writer) prefix() string {
	if w.Prefix != "" {
		return w.Prefix
	}
	return "freightdesk"
}

// ExportPrefix returns the effective filename prefix.
func (w *Writer) ExportPrefix() string {
	return w.prefix()
}

// Archive packs the files into a zip with fixed entry timestamps, so two
// archives of the same files are byte-identical.
func Archive(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range files {
		header := &zip.FileHeader{Name: file.Name, Method: zip.Deflate, Modified: zipEpoch}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return nil, err
		}
		if _, err := fw.Write(file.Data); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Bookings writes the raw booking export, chunked when the row count exceeds
// the ceiling. Repeated calls over the same dataset yield identical bytes.
func (w *Writer) Bookings(ds reporting.Dataset, f reporting.ReportFilter) ([]File, error) {
	rows := w.bookingRows(ds)
	return w.chunkedFiles(w.bookingsFilename(f), bookingColumns, rows)
}

// Entries writes the raw ledger entry export.
func (w *Writer) Entries(ds reporting.Dataset, f reporting.ReportFilter) ([]File, error) {
	rows := w.entryRows(ds)
	return w.chunkedFiles(w.entriesFilename(f), entryColumns, rows)
}

// Aggregates writes the computed report summary as a single CSV file.
func (w *Writer) Aggregates(rep reporting.Report) (File, error) {
	var buf bytes.Buffer
	if err := writeAggregatesCSV(&buf, rep); err != nil {
		return File{}, err
	}
	name := fmt.Sprintf("%s_summary_%s_%s_%s.csv",
		w.prefix(), datestamp(rep.Filter.Start), datestamp(rep.Filter.End), rep.Filter.Frequency)
	return File{Name: name, Data: buf.Bytes()}, nil
}

// Bundle zips the booking and entry exports together with a manifest
// describing every column and the date basis, so an offline reviewer never
// needs the live system to interpret a historical export.
func (w *Writer) Bundle(ds reporting.Dataset, f reporting.ReportFilter) (File, error) {
	bookingFiles, err := w.Bookings(ds, f)
	if err != nil {
		return File{}, err
	}
	entryFiles, err := w.Entries(ds, f)
	if err != nil {
		return File{}, err
	}

	contents := make([]File, 0, 1+len(bookingFiles)+len(entryFiles))
	contents = append(contents, File{Name: "MANIFEST.txt", Data: manifest(f, len(ds.Bookings), len(ds.Entries))})
	contents = append(contents, bookingFiles...)
	contents = append(contents, entryFiles...)

	data, err := Archive(contents)
	if err != nil {
		return File{}, err
	}

	name := fmt.Sprintf("%s_raw_%s_%s_%s.zip",
		w.prefix(), datestamp(f.Start), datestamp(f.End), f.Frequency)
	return File{Name: name, Data: data}, nil
}

// bookingRows sorts a copy of the filtered bookings (delivered_at ascending
// with nulls last, booking_id tiebreak) and renders the column-stable rows.
func (w *Writer) bookingRows(ds reporting.Dataset) [][]string {
	loc := w.location()
	bookings := append([]reporting.Booking(nil), ds.Bookings...)
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i].DeliveredAt, bookings[j].DeliveredAt
		switch {
		case a == nil && b == nil:
			return bookings[i].BookingID < bookings[j].BookingID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return bookings[i].BookingID < bookings[j].BookingID
		}
	})

	clientNames := make(map[int64]string, len(ds.Clients))
	for _, c := range ds.Clients {
		clientNames[c.ClientID] = c.Name
	}
	companyNames := make(map[int64]string, len(ds.Companies))
	for _, c := range ds.Companies {
		companyNames[c.CompanyID] = c.Name
	}

	rows := make([][]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, []string{
			b.BookingID,
			fmt.Sprintf("%d", b.ClientID),
			clientNames[b.ClientID],
			fmt.Sprintf("%d", b.CompanyID),
			companyNames[b.CompanyID],
			string(b.Mode),
			string(b.Status),
			formatTime(&b.CreatedAt, loc),
			formatTime(b.DispatchedAt, loc),
			formatTime(b.DeliveredAt, loc),
			b.RevenueAmount.StringFixed(2),
			b.ExpenseAmount.StringFixed(2),
			b.Currency,
		})
	}
	return rows
}

// entryRows sorts a copy of the filtered entries (entry_date ascending,
// entry_id tiebreak) and renders the column-stable rows.
func (w *Writer) entryRows(ds reporting.Dataset) [][]string {
	loc := w.location()
	entries := append([]reporting.Entry(nil), ds.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].EntryDate.Equal(entries[j].EntryDate) {
			return entries[i].EntryDate.Before(entries[j].EntryDate)
		}
		return entries[i].EntryID < entries[j].EntryID
	})

	companyNames := make(map[int64]string, len(ds.Companies))
	for _, c := range ds.Companies {
		companyNames[c.CompanyID] = c.Name
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		bookingID := ""
		if e.BookingID != nil {
			bookingID = *e.BookingID
		}
		rows = append(rows, []string{
			e.EntryID,
			string(e.Type),
			e.Amount.StringFixed(2),
			e.Currency,
			e.EntryDate.In(loc).Format("2006-01-02"),
			fmt.Sprintf("%d", e.CompanyID),
			companyNames[e.CompanyID],
			bookingID,
			e.Category,
		})
	}
	return rows
}

// chunkedFiles splits the sorted rows into files under the row ceiling. The
// cut is purely positional, suffixed _part01, _part02, ... in row order.
func (w *Writer) chunkedFiles(baseName string, columns []string, rows [][]string) ([]File, error) {
	limit := w.chunkRows()
	if len(rows) > limit && w.ChunkingDisabled {
		return nil, fmt.Errorf("%w: %d rows over %d", ErrExportTooLarge, len(rows), limit)
	}
	if len(rows) <= limit {
		data, err := renderCSV(columns, rows)
		if err != nil {
			return nil, err
		}
		return []File{{Name: baseName, Data: data}}, nil
	}

	parts := (len(rows) + limit - 1) / limit
	files := make([]File, 0, parts)
	for part := 0; part < parts; part++ {
		lo := part * limit
		hi := lo + limit
		if hi > len(rows) {
			hi = len(rows)
		}
		data, err := renderCSV(columns, rows[lo:hi])
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: partName(baseName, part+1), Data: data})
	}
	return files, nil
}

func renderCSV(columns []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	streamer := newCSVStreamer(&buf)
	if err := streamer.writeRow(columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := streamer.writeRow(row); err != nil {
			return nil, err
		}
	}
	if err := streamer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) bookingsFilename(f reporting.ReportFilter) string {
	return fmt.Sprintf("%s_bookings_%s_%s_%s_%s.csv",
		w.prefix(), datestamp(f.Start), datestamp(f.End), f.DateBasis, f.Frequency)
}

func (w *Writer) entriesFilename(f reporting.ReportFilter) string {
	return fmt.Sprintf("%s_entries_%s_%s_%s.csv",
		w.prefix(), datestamp(f.Start), datestamp(f.End), f.Frequency)
}

func partName(baseName string, part int) string {
	ext := ".csv"
	stem := baseName[:len(baseName)-len(ext)]
	return fmt.Sprintf("%s_part%02d%s", stem, part, ext)
}

func datestamp(t time.Time) string {
	return t.Format("20060102")
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}

func manifest(f reporting.ReportFilter, bookingRows, entryRows int) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Freightdesk raw data export\n")
	fmt.Fprintf(&buf, "Range: %s to %s (inclusive)\n", f.Start.Format("2006-01-02"), f.End.Format("2006-01-02"))
	fmt.Fprintf(&buf, "Frequency: %s\n", f.Frequency)
	fmt.Fprintf(&buf, "Date basis: %s (booking inclusion is tested against this timestamp; entries always use entry_date)\n", f.DateBasis)
	fmt.Fprintf(&buf, "Currency: %s\n", f.Currency)
	fmt.Fprintf(&buf, "Booking rows: %d\nEntry rows: %d\n", bookingRows, entryRows)
	buf.WriteString("\nBooking columns:\n")
	bookingDescriptions := []string{
		"booking_id: stable unique shipment reference",
		"client_id: numeric client reference",
		"client_name: resolved client display name",
		"company_id: owning company reference",
		"company_name: resolved company display name",
		"mode: transport mode (AIR, SEA, TRUCK, DOMESTIC)",
		"status: booking lifecycle status; DELIVERED is terminal",
		"created_at: booking creation timestamp (RFC3339, report timezone)",
		"dispatched_at: dispatch timestamp, empty when not dispatched",
		"delivered_at: delivery timestamp, empty when not delivered",
		"revenue_amount: booking-level revenue, two decimal places",
		"expense_amount: booking-level expense, two decimal places",
		"currency: ISO 4217 currency code",
	}
	for _, d := range bookingDescriptions {
		fmt.Fprintf(&buf, "  %s\n", d)
	}
	buf.WriteString("\nEntry columns:\n")
	entryDescriptions := []string{
		"entry_id: stable unique ledger line reference",
		"type: revenue or expense; sign is carried by type, amounts are non-negative",
		"amount: entry amount, two decimal places",
		"currency: ISO 4217 currency code",
		"entry_date: ledger date (report timezone)",
		"company_id: owning company reference",
		"company_name: resolved company display name",
		"booking_id: linked booking reference, empty when unlinked",
		"category: free-form expense/revenue category label",
	}
	for _, d := range entryDescriptions {
		fmt.Fprintf(&buf, "  %s\n", d)
	}
	buf.WriteString("\nSort order: bookings by delivered_at ascending (nulls last) then booking_id;\n")
	buf.WriteString("entries by entry_date ascending then entry_id. Files over the row ceiling are\n")
	buf.WriteString("split into _partNN files in row order.\n")
	return buf.Bytes()
}
