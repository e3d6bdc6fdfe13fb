package reporting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func datePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

func baseBooking(loc *time.Location) Booking {
	created := time.Date(2026, 5, 10, 9, 0, 0, 0, loc)
	return Booking{
		BookingID:     "BK-1001",
		ClientID:      7,
		CompanyID:     1,
		Mode:          ModeAir,
		Status:        StatusDelivered,
		CreatedAt:     created,
		DispatchedAt:  datePtr(created.AddDate(0, 0, 1)),
		DeliveredAt:   datePtr(created.AddDate(0, 0, 3)),
		RevenueAmount: decimal.RequireFromString("1000"),
		ExpenseAmount: decimal.RequireFromString("400"),
		Currency:      "PHP",
	}
}

func mayFilter(loc *time.Location) ReportFilter {
	return ReportFilter{
		Start:     time.Date(2026, 5, 1, 0, 0, 0, 0, loc),
		End:       time.Date(2026, 5, 31, 0, 0, 0, 0, loc),
		Frequency: FreqMonthly,
		DateBasis: BasisCreated,
		Currency:  "PHP",
	}
}

func TestMatchBookingNullBasisExcludes(t *testing.T) {
	loc := mustLoc(t)
	b := baseBooking(loc)
	b.DispatchedAt = nil
	f := mayFilter(loc)
	f.DateBasis = BasisDispatched
	if MatchBooking(b, f, loc) {
		t.Error("booking with nil dispatched_at matched a dispatched-basis filter")
	}
}

func TestMatchBookingRangeIsInclusive(t *testing.T) {
	loc := mustLoc(t)
	f := mayFilter(loc)

	b := baseBooking(loc)
	b.CreatedAt = time.Date(2026, 5, 31, 23, 30, 0, 0, loc)
	if !MatchBooking(b, f, loc) {
		t.Error("booking on the end date excluded; range must be closed")
	}
	b.CreatedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, loc)
	if MatchBooking(b, f, loc) {
		t.Error("booking the day after the end date matched")
	}
}

func TestMatchBookingSetSemantics(t *testing.T) {
	loc := mustLoc(t)
	b := baseBooking(loc)
	f := mayFilter(loc)

	// OR within a dimension.
	f.Modes = []Mode{ModeSea, ModeAir}
	if !MatchBooking(b, f, loc) {
		t.Error("booking excluded despite its mode being in the set")
	}

	// AND across dimensions.
	f.Statuses = []Status{StatusCancelled}
	if MatchBooking(b, f, loc) {
		t.Error("booking matched with one dimension failing")
	}

	// Empty set passes everything.
	f.Modes = nil
	f.Statuses = nil
	f.CompanyIDs = nil
	if !MatchBooking(b, f, loc) {
		t.Error("booking excluded by empty sets")
	}
}

func TestMatchEntryClientScoping(t *testing.T) {
	loc := mustLoc(t)
	f := mayFilter(loc)
	f.ClientIDs = []int64{7}
	bookingClient := map[string]int64{"BK-1001": 7, "BK-2002": 9}

	linked := Entry{
		EntryID:   "EN-1",
		Type:      EntryRevenue,
		Amount:    decimal.RequireFromString("500"),
		Currency:  "PHP",
		CompanyID: 1,
		BookingID: strPtr("BK-1001"),
		Category:  "Freight",
		EntryDate: time.Date(2026, 5, 12, 0, 0, 0, 0, loc),
	}
	if !MatchEntry(linked, f, bookingClient, loc) {
		t.Error("entry linked to an in-set client excluded")
	}

	other := linked
	other.BookingID = strPtr("BK-2002")
	if MatchEntry(other, f, bookingClient, loc) {
		t.Error("entry linked to an out-of-set client matched")
	}

	unlinked := linked
	unlinked.BookingID = nil
	if MatchEntry(unlinked, f, bookingClient, loc) {
		t.Error("unlinked entry matched a client-scoped filter")
	}

	// Without a client filter the unlinked entry passes on date and company.
	f.ClientIDs = nil
	if !MatchEntry(unlinked, f, bookingClient, loc) {
		t.Error("unlinked entry excluded without a client filter")
	}
}

func TestValidate(t *testing.T) {
	loc := mustLoc(t)
	f := mayFilter(loc)
	if err := f.Validate(); err != nil {
		t.Fatalf("valid filter rejected: %v", err)
	}

	inverted := f
	inverted.Start, inverted.End = f.End, f.Start.AddDate(0, 0, -1)
	if err := inverted.Validate(); err != ErrInvalidFilter {
		t.Errorf("inverted range error = %v, want ErrInvalidFilter", err)
	}

	badMode := f
	badMode.Modes = []Mode{"RAIL"}
	if uo, ok := badMode.Validate().(*UnsupportedOptionError); !ok || uo.Field != "mode" {
		t.Errorf("unknown mode not reported on the mode field")
	}

	badFreq := f
	badFreq.Frequency = "hourly"
	if uo, ok := badFreq.Validate().(*UnsupportedOptionError); !ok || uo.Field != "frequency" {
		t.Errorf("unknown frequency not reported on the frequency field")
	}
}
