package reporting

import "sort"

// Scan flags the three data-hygiene conditions over the filtered subset:
// bookings whose own amounts net below zero, expense entries with no booking
// linkage, and delivered bookings no revenue entry references. Detection only;
// nothing here mutates source records or infers corrective action.
func Scan(bookings []Booking, entries []Entry, clients []Client) Exceptions {
	names := clientNames(clients)

	billed := make(map[string]bool)
	for _, e := range entries {
		if e.Type == EntryRevenue && e.BookingID != nil {
			billed[*e.BookingID] = true
		}
	}

	var ex Exceptions
	for _, b := range bookings {
		// Booking-level sanity check on the denormalised amounts, independent
		// of ledger posting state.
		net := b.RevenueAmount.Sub(b.ExpenseAmount)
		if net.Sign() < 0 {
			ex.NegativeBookings = append(ex.NegativeBookings, NegativeBooking{
				BookingID: b.BookingID,
				Client:    names[b.ClientID],
				Revenue:   b.RevenueAmount,
				Expense:   b.ExpenseAmount,
				Net:       net,
				CompanyID: b.CompanyID,
			})
		}
		if b.Status == StatusDelivered && !billed[b.BookingID] {
			row := UnbilledDelivered{
				BookingID: b.BookingID,
				Client:    names[b.ClientID],
				CompanyID: b.CompanyID,
			}
			if b.DeliveredAt != nil {
				row.DeliveredDate = *b.DeliveredAt
			}
			ex.UnbilledDelivered = append(ex.UnbilledDelivered, row)
		}
	}

	for _, e := range entries {
		if e.Type == EntryExpense && e.BookingID == nil {
			ex.UnlinkedExpenses = append(ex.UnlinkedExpenses, UnlinkedExpense{
				EntryID:   e.EntryID,
				Date:      e.EntryDate,
				Category:  e.Category,
				Amount:    e.Amount,
				CompanyID: e.CompanyID,
			})
		}
	}

	// Primary identifier ascending for reproducibility.
	sort.Slice(ex.NegativeBookings, func(i, j int) bool {
		return ex.NegativeBookings[i].BookingID < ex.NegativeBookings[j].BookingID
	})
	sort.Slice(ex.UnlinkedExpenses, func(i, j int) bool {
		return ex.UnlinkedExpenses[i].EntryID < ex.UnlinkedExpenses[j].EntryID
	})
	sort.Slice(ex.UnbilledDelivered, func(i, j int) bool {
		return ex.UnbilledDelivered[i].BookingID < ex.UnbilledDelivered[j].BookingID
	})
	return ex
}
