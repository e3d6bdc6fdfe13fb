package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregate folds the filtered subset into KPIs, a zero-gap time series, the
// expense category breakdown and the top-clients ranking. Entries are the
// authoritative revenue and expense source; booking amounts only back the
// exception scanner. Inputs are treated as immutable snapshots.
func Aggregate(bookings []Booking, entries []Entry, clients []Client, f ReportFilter, loc *time.Location) Aggregates {
	names := clientNames(clients)

	kpis := KPISet{
		Revenue:  decimal.Zero,
		Expenses: decimal.Zero,
	}
	for _, b := range bookings {
		kpis.Bookings++
		if b.Status == StatusDelivered {
			kpis.Delivered++
		}
	}
	kpis.DeliveryRatePct = ratioPct(float64(kpis.Delivered), float64(kpis.Bookings))

	series := buildSeries(entries, f, loc)
	for _, e := range entries {
		switch e.Type {
		case EntryRevenue:
			kpis.Revenue = kpis.Revenue.Add(e.Amount)
		case EntryExpense:
			kpis.Expenses = kpis.Expenses.Add(e.Amount)
		}
	}
	kpis.NetProfit = kpis.Revenue.Sub(kpis.Expenses)
	kpis.MarginPct = marginPct(kpis.NetProfit, kpis.Revenue)

	return Aggregates{
		KPIs:       kpis,
		Series:     series,
		ByCategory: buildCategories(entries),
		TopClients: buildTopClients(bookings, entries, names, f.TopClients),
	}
}

// ratioPct is the shared zero-denominator policy: 0, never NaN or an error.
func ratioPct(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}

func marginPct(net, revenue decimal.Decimal) float64 {
	if revenue.Sign() <= 0 {
		return 0
	}
	return net.InexactFloat64() / revenue.InexactFloat64() * 100
}

// buildSeries emits one row per bucket across the whole filter range so that
// consumers can render contiguous axes without patching holes.
func buildSeries(entries []Entry, f ReportFilter, loc *time.Location) []SeriesPoint {
	buckets := BucketRange(f.Start, f.End, f.Frequency, loc)
	revenue := make(map[time.Time]decimal.Decimal, len(buckets))
	expenses := make(map[time.Time]decimal.Decimal, len(buckets))
	for _, e := range entries {
		key := BucketKey(e.EntryDate, f.Frequency, loc)
		switch e.Type {
		case EntryRevenue:
			revenue[key] = revenue[key].Add(e.Amount)
		case EntryExpense:
			expenses[key] = expenses[key].Add(e.Amount)
		}
	}
	points := make([]SeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		rev := revenue[b]
		exp := expenses[b]
		points = append(points, SeriesPoint{
			Period:    FormatBucket(b, f.Frequency),
			Revenue:   rev,
			Expenses:  exp,
			NetProfit: rev.Sub(exp),
		})
	}
	return points
}

func buildCategories(entries []Entry) []CategorySlice {
	totals := make(map[string]decimal.Decimal)
	grand := decimal.Zero
	for _, e := range entries {
		if e.Type != EntryExpense {
			continue
		}
		totals[e.Category] = totals[e.Category].Add(e.Amount)
		grand = grand.Add(e.Amount)
	}
	slices := make([]CategorySlice, 0, len(totals))
	for category, amount := range totals {
		pct := 0.0
		if grand.Sign() > 0 {
			pct = amount.InexactFloat64() / grand.InexactFloat64() * 100
		}
		slices = append(slices, CategorySlice{Category: category, Amount: amount, Pct: pct})
	}
	// Amount descending, category name ascending on ties: the ordering must be
	// deterministic for reproducible exports.
	sort.Slice(slices, func(i, j int) bool {
		if cmp := slices[i].Amount.Cmp(slices[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return slices[i].Category < slices[j].Category
	})
	return slices
}

func buildTopClients(bookings []Booking, entries []Entry, names map[int64]string, limit int) []ClientRank {
	type clientAgg struct {
		bookings int
		revenue  decimal.Decimal
		expenses decimal.Decimal
	}
	bookingClient := make(map[string]int64, len(bookings))
	agg := make(map[int64]*clientAgg)
	for _, b := range bookings {
		bookingClient[b.BookingID] = b.ClientID
		a := agg[b.ClientID]
		if a == nil {
			a = &clientAgg{}
			agg[b.ClientID] = a
		}
		a.bookings++
	}
	for _, e := range entries {
		if e.BookingID == nil {
			continue
		}
		clientID, ok := bookingClient[*e.BookingID]
		if !ok {
			continue
		}
		a := agg[clientID]
		switch e.Type {
		case EntryRevenue:
			a.revenue = a.revenue.Add(e.Amount)
		case EntryExpense:
			a.expenses = a.expenses.Add(e.Amount)
		}
	}

	ranks := make([]ClientRank, 0, len(agg))
	for clientID, a := range agg {
		ranks = append(ranks, ClientRank{
			ClientID:   clientID,
			ClientName: names[clientID],
			Bookings:   a.bookings,
			Revenue:    a.revenue,
			MarginPct:  marginPct(a.revenue.Sub(a.expenses), a.revenue),
		})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if cmp := ranks[i].Revenue.Cmp(ranks[j].Revenue); cmp != 0 {
			return cmp > 0
		}
		if ranks[i].Bookings != ranks[j].Bookings {
			return ranks[i].Bookings > ranks[j].Bookings
		}
		return ranks[i].ClientName < ranks[j].ClientName
	})
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks
}

func clientNames(clients []Client) map[int64]string {
	names := make(map[int64]string, len(clients))
	for _, c := range clients {
		names[c.ClientID] = c.Name
	}
	return names
}
