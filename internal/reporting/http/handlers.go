package reportinghttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/freightdesk/freightdesk/internal/observability"
	"github.com/freightdesk/freightdesk/internal/platform/httpx"
	"github.com/freightdesk/freightdesk/internal/reporting"
	"github.com/freightdesk/freightdesk/internal/reporting/export"
)

const requestTimeout = 30 * time.Second

// ReportService defines the engine contract used by the handler.
type ReportService interface {
	Report(ctx context.Context, f reporting.ReportFilter) (reporting.Report, error)
	FilteredDataset(ctx context.Context, f reporting.ReportFilter) (reporting.Dataset, error)
	Location() *time.Location
}

// Handler serves the report and export endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	writer   *export.Writer
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler wires the reporting HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService, writer *export.Writer, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if writer == nil {
		writer = &export.Writer{}
	}
	return &Handler{
		logger:   logger,
		service:  service,
		writer:   writer,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// reportQuery carries the raw query string values prior to filter construction.
type reportQuery struct {
	Start      string `validate:"required,datetime=2006-01-02"`
	End        string `validate:"required,datetime=2006-01-02"`
	Frequency  string `validate:"omitempty"`
	DateBasis  string `validate:"omitempty"`
	Currency   string `validate:"required,len=3"`
	CompanyIDs string
	ClientIDs  string
	Modes      string
	Statuses   string
	TopClients string `validate:"omitempty,number"`
}

func (h *Handler) parseFilter(r *http.Request) (reporting.ReportFilter, error) {
	q := r.URL.Query()
	raw := reportQuery{
		Start:      q.Get("start"),
		End:        q.Get("end"),
		Frequency:  q.Get("frequency"),
		DateBasis:  q.Get("date_basis"),
		Currency:   q.Get("currency"),
		CompanyIDs: q.Get("company_ids"),
		ClientIDs:  q.Get("client_ids"),
		Modes:      q.Get("modes"),
		Statuses:   q.Get("statuses"),
		TopClients: q.Get("top_clients"),
	}
	if err := h.validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				if ve.Field() == "Currency" {
					return reporting.ReportFilter{}, &reporting.UnsupportedOptionError{Field: "currency", Value: raw.Currency}
				}
			}
		}
		return reporting.ReportFilter{}, fmt.Errorf("%w: %v", reporting.ErrInvalidFilter, err)
	}

	loc := h.service.Location()
	start, err := time.ParseInLocation("2006-01-02", raw.Start, loc)
	if err != nil {
		return reporting.ReportFilter{}, fmt.Errorf("%w: start: %v", reporting.ErrInvalidFilter, err)
	}
	end, err := time.ParseInLocation("2006-01-02", raw.End, loc)
	if err != nil {
		return reporting.ReportFilter{}, fmt.Errorf("%w: end: %v", reporting.ErrInvalidFilter, err)
	}

	f := reporting.ReportFilter{
		Start:     start,
		End:       end,
		Frequency: reporting.FreqMonthly,
		DateBasis: reporting.BasisCreated,
		Currency:  strings.ToUpper(raw.Currency),
	}
	if raw.Frequency != "" {
		f.Frequency = reporting.Frequency(raw.Frequency)
	}
	if raw.DateBasis != "" {
		f.DateBasis = reporting.DateBasis(raw.DateBasis)
	}
	if f.CompanyIDs, err = parseInt64List(raw.CompanyIDs); err != nil {
		return reporting.ReportFilter{}, &reporting.UnsupportedOptionError{Field: "company_ids", Value: raw.CompanyIDs}
	}
	if f.ClientIDs, err = parseInt64List(raw.ClientIDs); err != nil {
		return reporting.ReportFilter{}, &reporting.UnsupportedOptionError{Field: "client_ids", Value: raw.ClientIDs}
	}
	for _, m := range splitList(raw.Modes) {
		f.Modes = append(f.Modes, reporting.Mode(strings.ToUpper(m)))
	}
	for _, s := range splitList(raw.Statuses) {
		f.Statuses = append(f.Statuses, reporting.Status(strings.ToUpper(s)))
	}
	if raw.TopClients != "" {
		if f.TopClients, err = strconv.Atoi(raw.TopClients); err != nil || f.TopClients < 0 {
			return reporting.ReportFilter{}, &reporting.UnsupportedOptionError{Field: "top_clients", Value: raw.TopClients}
		}
	}
	return f, nil
}

// GetReport computes and returns the full report for the request filter.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	report, err := h.service.Report(ctx, f)
	h.metrics.ObserveReport(err)
	if err != nil {
		h.logger.Error("generate report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// Export streams the requested export files. Multi-part raw exports and
// bundles are delivered as a zip archive; single files stream directly.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind := export.Kind(r.URL.Query().Get("kind"))
	format, err := parseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	exportID := uuid.NewString()
	logger := h.logger.With(slog.String("export_id", exportID), slog.String("kind", string(kind)))

	files, rows, err := h.buildExport(ctx, kind, f)
	h.metrics.ObserveExport(string(kind), rows, err)
	if err != nil {
		logger.Error("build export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	logger.Info("export generated", slog.Int("files", len(files)), slog.Int("rows", rows))

	w.Header().Set("X-Export-ID", exportID)
	if len(files) == 1 && (format != export.FormatZip || strings.HasSuffix(files[0].Name, ".zip")) {
		serveFile(w, files[0])
		return
	}
	serveZip(w, h.zipName(kind, f), files)
}

// parseFormat resolves the requested output container; empty defaults to CSV.
func parseFormat(raw string) (export.Format, error) {
	switch export.Format(raw) {
	case "":
		return export.FormatCSV, nil
	case export.FormatCSV:
		return export.FormatCSV, nil
	case export.FormatZip:
		return export.FormatZip, nil
	default:
		return "", &reporting.UnsupportedOptionError{Field: "format", Value: raw}
	}
}

func (h *Handler) buildExport(ctx context.Context, kind export.Kind, f reporting.ReportFilter) ([]export.File, int, error) {
	switch kind {
	case export.KindAggregates:
		report, err := h.service.Report(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		file, err := h.writer.Aggregates(report)
		if err != nil {
			return nil, 0, err
		}
		return []export.File{file}, len(report.Series), nil
	case export.KindBookings:
		ds, err := h.service.FilteredDataset(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		files, err := h.writer.Bookings(ds, f)
		return files, len(ds.Bookings), err
	case export.KindEntries:
		ds, err := h.service.FilteredDataset(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		files, err := h.writer.Entries(ds, f)
		return files, len(ds.Entries), err
	case export.KindBundle:
		ds, err := h.service.FilteredDataset(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		file, err := h.writer.Bundle(ds, f)
		if err != nil {
			return nil, 0, err
		}
		return []export.File{file}, len(ds.Bookings) + len(ds.Entries), nil
	default:
		return nil, 0, &reporting.UnsupportedOptionError{Field: "kind", Value: string(kind)}
	}
}

func (h *Handler) zipName(kind export.Kind, f reporting.ReportFilter) string {
	token := "raw"
	switch kind {
	case export.KindAggregates:
		token = "summary"
	case export.KindBookings:
		token = "bookings"
	case export.KindEntries:
		token = "entries"
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s.zip", h.writer.ExportPrefix(), token,
		f.Start.Format("20060102"), f.End.Format("20060102"), f.Frequency)
}

func serveFile(w http.ResponseWriter, file export.File) {
	contentType := "text/csv; charset=utf-8"
	if strings.HasSuffix(file.Name, ".zip") {
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	_, _ = w.Write(file.Data)
}

func serveZip(w http.ResponseWriter, name string, files []export.File) {
	data, err := export.Archive(files)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	serveFile(w, export.File{Name: name, Data: data})
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64List(raw string) ([]int64, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
