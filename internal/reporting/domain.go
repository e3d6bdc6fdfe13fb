package reporting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Mode enumerates shipment transport modes.
type Mode string

const (
	ModeAir      Mode = "AIR"
	ModeSea      Mode = "SEA"
	ModeTruck    Mode = "TRUCK"
	ModeDomestic Mode = "DOMESTIC"
)

// Status enumerates the booking lifecycle. Delivered is terminal.
type Status string

const (
	StatusBooked      Status = "BOOKED"
	StatusDispatched  Status = "DISPATCHED"
	StatusForDelivery Status = "FOR_DELIVERY"
	StatusDelivered   Status = "DELIVERED"
	StatusCancelled   Status = "CANCELLED"
)

// EntryType carries the sign of a ledger entry; amounts themselves are never negative.
type EntryType string

const (
	EntryRevenue EntryType = "revenue"
	EntryExpense EntryType = "expense"
)

// Frequency selects the bucket width for report time series.
type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
)

// DateBasis selects which booking timestamp anchors date-range membership.
// Entries always use their entry date.
type DateBasis string

const (
	BasisCreated    DateBasis = "created"
	BasisDispatched DateBasis = "dispatched"
	BasisDelivered  DateBasis = "delivered"
)

// Booking is a read-only snapshot of a shipment record. Ownership stays with
// the booking subsystem; the engine never writes these back.
type Booking struct {
	BookingID     string          `json:"booking_id"`
	ClientID      int64           `json:"client_id"`
	CompanyID     int64           `json:"company_id"`
	Mode          Mode            `json:"mode"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	DispatchedAt  *time.Time      `json:"dispatched_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	RevenueAmount decimal.Decimal `json:"revenue_amount"`
	ExpenseAmount decimal.Decimal `json:"expense_amount"`
	Currency      string          `json:"currency"`
}

// Entry is a ledger line item snapshot. A nil BookingID marks the entry as
// unlinked to any booking.
type Entry struct {
	EntryID   string          `json:"entry_id"`
	Type      EntryType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CompanyID int64           `json:"company_id"`
	BookingID *string         `json:"booking_id,omitempty"`
	Category  string          `json:"category"`
	EntryDate time.Time       `json:"entry_date"`
}

// Client resolves display names and groups the top-clients ranking.
type Client struct {
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
}

// Company is the owning entity of bookings and entries.
type Company struct {
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
}

// ReportFilter is the immutable description of one report request. Empty
// slices mean "all" for their dimension. Start and End are inclusive dates.
type ReportFilter struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Frequency  Frequency `json:"frequency"`
	CompanyIDs []int64   `json:"company_ids,omitempty"`
	ClientIDs  []int64   `json:"client_ids,omitempty"`
	Modes      []Mode    `json:"modes,omitempty"`
	Statuses   []Status  `json:"statuses,omitempty"`
	DateBasis  DateBasis `json:"date_basis"`
	Currency   string    `json:"currency"`
	// TopClients limits the client ranking; zero means unbounded.
	TopClients int `json:"top_clients,omitempty"`
}

// KPISet holds the headline figures for the filtered period.
type KPISet struct {
	Bookings        int             `json:"bookings"`
	Delivered       int             `json:"delivered"`
	DeliveryRatePct float64         `json:"delivery_rate_pct"`
	Revenue         decimal.Decimal `json:"revenue"`
	Expenses        decimal.Decimal `json:"expenses"`
	NetProfit       decimal.Decimal `json:"net_profit"`
	MarginPct       float64         `json:"margin_pct"`
}

// SeriesPoint is one bucket row of the report time series. Buckets with no
// matching records still appear with zero values.
type SeriesPoint struct {
	Period    string          `json:"period"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetProfit decimal.Decimal `json:"net_profit"`
}

// CategorySlice is one row of the expense breakdown.
type CategorySlice struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Pct      float64         `json:"pct"`
}

// ClientRank is one row of the top-clients ranking.
type ClientRank struct {
	ClientID   int64           `json:"client_id"`
	ClientName string          `json:"client_name"`
	Bookings   int             `json:"bookings"`
	Revenue    decimal.Decimal `json:"revenue"`
	MarginPct  float64         `json:"margin_pct"`
}

// NegativeBooking flags a booking whose own denormalised amounts net below zero.
type NegativeBooking struct {
	BookingID string          `json:"booking_id"`
	Client    string          `json:"client"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expense   decimal.Decimal `json:"expense"`
	Net       decimal.Decimal `json:"net"`
	CompanyID int64           `json:"company_id"`
}

// UnlinkedExpense flags an expense entry with no booking linkage.
type UnlinkedExpense struct {
	EntryID   string          `json:"entry_id"`
	Date      time.Time       `json:"date"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	CompanyID int64           `json:"company_id"`
}

// UnbilledDelivered flags a delivered booking with no revenue entry referencing it.
type UnbilledDelivered struct {
	BookingID     string    `json:"booking_id"`
	Client        string    `json:"client"`
	DeliveredDate time.Time `json:"delivered_date"`
	CompanyID     int64     `json:"company_id"`
}

// Aggregates bundles the computed figures produced by Aggregate.
type Aggregates struct {
	KPIs       KPISet          `json:"kpis"`
	Series     []SeriesPoint   `json:"series"`
	ByCategory []CategorySlice `json:"by_category"`
	TopClients []ClientRank    `json:"top_clients"`
}

// Exceptions bundles the three data-hygiene lists produced by Scan.
type Exceptions struct {
	NegativeBookings  []NegativeBooking   `json:"negative_bookings"`
	UnlinkedExpenses  []UnlinkedExpense   `json:"unlinked_expenses"`
	UnbilledDelivered []UnbilledDelivered `json:"unbilled_delivered"`
}

// Report is the immutable response for one ReportFilter. A new filter
// produces a new Report; nothing here mutates after assembly.
type Report struct {
	Filter            ReportFilter        `json:"filter"`
	KPIs              KPISet              `json:"kpis"`
	Series            []SeriesPoint       `json:"series"`
	ByCategory        []CategorySlice     `json:"by_category"`
	TopClients        []ClientRank        `json:"top_clients"`
	NegativeBookings  []NegativeBooking   `json:"negative_bookings"`
	UnlinkedExpenses  []UnlinkedExpense   `json:"unlinked_expenses"`
	UnbilledDelivered []UnbilledDelivered `json:"unbilled_delivered"`
}

var (
	// ErrInvalidFilter occurs when the requested date range is inverted.
	ErrInvalidFilter = errors.New("reporting: end date before start date")
	// ErrSourceUnavailable occurs when the snapshot source keeps failing after retries.
	ErrSourceUnavailable = errors.New("reporting: source unavailable")
)

// UnsupportedOptionError names the request field carrying an unknown or
// unsupported value.
type UnsupportedOptionError struct {
	Field string
	Value string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("reporting: unsupported %s %q", e.Field, e.Value)
}

func validMode(m Mode) bool {
	switch m {
	case ModeAir, ModeSea, ModeTruck, ModeDomestic:
		return true
	}
	return false
}

func validStatus(s Status) bool {
	switch s {
	case StatusBooked, StatusDispatched, StatusForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func validFrequency(f Frequency) bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqQuarterly:
		return true
	}
	return false
}

func validBasis(b DateBasis) bool {
	switch b {
	case BasisCreated, BasisDispatched, BasisDelivered:
		return true
	}
	return false
}

// Validate checks the request-level invariants. The inverted date range is the
// only InvalidFilter condition; every other malformed value is reported as an
// UnsupportedOptionError naming the field.
func (f ReportFilter) Validate() error {
	if f.End.Before(f.Start) {
		return ErrInvalidFilter
	}
	if !validFrequency(f.Frequency) {
		return &UnsupportedOptionError{Field: "frequency", Value: string(f.Frequency)}
	}
	if !validBasis(f.DateBasis) {
		return &UnsupportedOptionError{Field: "date_basis", Value: string(f.DateBasis)}
	}
	for _, m := range f.Modes {
		if !validMode(m) {
			return &UnsupportedOptionError{Field: "mode", Value: string(m)}
		}
	}
	for _, s := range f.Statuses {
		if !validStatus(s) {
			return &UnsupportedOptionError{Field: "status", Value: string(s)}
		}
	}
	return nil
}
