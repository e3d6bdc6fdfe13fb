package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/freightdesk/freightdesk/internal/reporting"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// csvStreamer writes CRLF-terminated CSV through a buffered writer so that
// large exports flush in bounded chunks. The CRLF dialect keeps the files
// openable in spreadsheet tools without an import wizard.
type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

// writeAggregatesCSV emits the computed report as a sectioned CSV: KPIs, the
// bucketed series, the expense breakdown and the client ranking, prefixed with
// the filter metadata an offline reviewer needs.
func writeAggregatesCSV(w io.Writer, rep reporting.Report) error {
	streamer := newCSVStreamer(w)
	if err := writeFilterComments(streamer, rep.Filter); err != nil {
		return err
	}

	if err := streamer.writeRow([]string{"Metric", "Value"}); err != nil {
		return err
	}
	kpiRows := [][]string{
		{"Bookings", strconv.Itoa(rep.KPIs.Bookings)},
		{"Delivered", strconv.Itoa(rep.KPIs.Delivered)},
		{"Delivery Rate %", formatPct(rep.KPIs.DeliveryRatePct)},
		{"Revenue", rep.KPIs.Revenue.StringFixed(2)},
		{"Expenses", rep.KPIs.Expenses.StringFixed(2)},
		{"Net Profit", rep.KPIs.NetProfit.StringFixed(2)},
		{"Margin %", formatPct(rep.KPIs.MarginPct)},
	}
	for _, row := range kpiRows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}

	if err := streamer.writeRow([]string{""}); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Period", "Revenue", "Expenses", "Net Profit"}); err != nil {
		return err
	}
	for _, point := range rep.Series {
		if err := streamer.writeRow([]string{
			point.Period,
			point.Revenue.StringFixed(2),
			point.Expenses.StringFixed(2),
			point.NetProfit.StringFixed(2),
		}); err != nil {
			return err
		}
	}

	if err := streamer.writeRow([]string{""}); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Category", "Amount", "Pct"}); err != nil {
		return err
	}
	for _, slice := range rep.ByCategory {
		if err := streamer.writeRow([]string{
			slice.Category,
			slice.Amount.StringFixed(2),
			formatPct(slice.Pct),
		}); err != nil {
			return err
		}
	}

	if err := streamer.writeRow([]string{""}); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Client", "Bookings", "Revenue", "Margin %"}); err != nil {
		return err
	}
	for _, rank := range rep.TopClients {
		if err := streamer.writeRow([]string{
			rank.ClientName,
			strconv.Itoa(rank.Bookings),
			rank.Revenue.StringFixed(2),
			formatPct(rank.MarginPct),
		}); err != nil {
			return err
		}
	}

	return streamer.Close()
}

func writeFilterComments(streamer *csvStreamer, f reporting.ReportFilter) error {
	if err := streamer.writeComment(fmt.Sprintf("# Report: %s to %s | Frequency: %s | Basis: %s | Currency: %s",
		f.Start.Format("2006-01-02"), f.End.Format("2006-01-02"), f.Frequency, f.DateBasis, f.Currency)); err != nil {
		return err
	}
	return streamer.writeComment(fmt.Sprintf("# Companies: %s | Clients: %s | Modes: %s | Statuses: %s",
		int64Set(f.CompanyIDs), int64Set(f.ClientIDs), modeSet(f.Modes), statusSet(f.Statuses)))
}

func int64Set(set []int64) string {
	if len(set) == 0 {
		return "All"
	}
	parts := make([]string, len(set))
	for i, v := range set {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func modeSet(set []reporting.Mode) string {
	if len(set) == 0 {
		return "All"
	}
	parts := make([]string, len(set))
	for i, v := range set {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

func statusSet(set []reporting.Status) string {
	if len(set) == 0 {
		return "All"
	}
	parts := make([]string, len(set))
	for i, v := range set {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
