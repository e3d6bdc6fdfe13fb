package reporting

import "time"

// basisDate selects the booking timestamp named by the filter's date basis.
// A nil result excludes the booking from the report, never includes it.
func basisDate(b Booking, basis DateBasis) *time.Time {
	switch basis {
	case BasisDispatched:
		return b.DispatchedAt
	case BasisDelivered:
		return b.DeliveredAt
	default:
		t := b.CreatedAt
		return &t
	}
}

// inRange tests calendar-date membership of t in the closed [start, end]
// interval, evaluated in loc so that machine-local zones never shift the
// boundary.
func inRange(t, start, end time.Time, loc *time.Location) bool {
	d := t.In(loc)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return !day.Before(s) && !day.After(e)
}

// MatchBooking reports whether a booking belongs to the filtered subset.
// Set dimensions are OR-within and AND-across; an empty set passes everything.
// Pure: same inputs always produce the same answer, so evaluation order and
// parallelism never change the result.
func MatchBooking(b Booking, f ReportFilter, loc *time.Location) bool {
	anchor := basisDate(b, f.DateBasis)
	if anchor == nil {
		return false
	}
	if !inRange(*anchor, f.Start, f.End, loc) {
		return false
	}
	if len(f.CompanyIDs) > 0 && !containsInt64(f.CompanyIDs, b.CompanyID) {
		return false
	}
	if len(f.ClientIDs) > 0 && !containsInt64(f.ClientIDs, b.ClientID) {
		return false
	}
	if len(f.Modes) > 0 && !containsMode(f.Modes, b.Mode) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, b.Status) {
		return false
	}
	return true
}

// MatchEntry reports whether a ledger entry belongs to the filtered subset.
// Entries always anchor on their entry date; mode and status dimensions do
// not apply to ledger lines. Client scoping follows the booking linkage when
// present: an entry linked to a booking outside the client set is excluded.
func MatchEntry(e Entry, f ReportFilter, bookingClient map[string]int64, loc *time.Location) bool {
	if !inRange(e.EntryDate, f.Start, f.End, loc) {
		return false
	}
	if len(f.CompanyIDs) > 0 && !containsInt64(f.CompanyIDs, e.CompanyID) {
		return false
	}
	if len(f.ClientIDs) > 0 {
		if e.BookingID == nil {
			return false
		}
		clientID, ok := bookingClient[*e.BookingID]
		if !ok || !containsInt64(f.ClientIDs, clientID) {
			return false
		}
	}
	return true
}

func containsInt64(set []int64, v int64) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsMode(set []Mode, v Mode) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(set []Status, v Status) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
