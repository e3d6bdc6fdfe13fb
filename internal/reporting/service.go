package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/currency"
)

const (
	defaultFetchAttempts = 3
	defaultFetchBackoff  = 200 * time.Millisecond
)

// ServiceConfig tunes the assembler. Zero values fall back to defaults.
type ServiceConfig struct {
	Location      *time.Location
	FetchAttempts int
	FetchBackoff  time.Duration
}

// Service assembles reports: it validates the filter, fetches the raw
// snapshots, filters once, and fans out to the aggregator and the exception
// scanner. Stateless across requests; a ReportFilter fully determines a Report.
type Service struct {
	source   Source
	cache    *Cache
	logger   *slog.Logger
	loc      *time.Location
	attempts int
	backoff  time.Duration
}

// NewService wires a snapshot Source with the optional Cache.
func NewService(source Source, cache *Cache, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	attempts := cfg.FetchAttempts
	if attempts <= 0 {
		attempts = defaultFetchAttempts
	}
	backoff := cfg.FetchBackoff
	if backoff <= 0 {
		backoff = defaultFetchBackoff
	}
	return &Service{
		source:   source,
		cache:    cache,
		logger:   logger,
		loc:      loc,
		attempts: attempts,
		backoff:  backoff,
	}
}

// Location exposes the engine's fixed report timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Cache exposes the cache helper for invalidation hooks.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Report computes (or serves from cache) the full report for one filter.
func (s *Service) Report(ctx context.Context, f ReportFilter) (Report, error) {
	if err := s.validate(f); err != nil {
		return Report{}, err
	}

	loader := func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx, f)
	}
	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return Report{}, err
		}
		return value.(Report), nil
	}

	key, err := s.cache.BuildKey(ctx, FilterKey(f))
	if err != nil {
		return Report{}, err
	}
	var report Report
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return Report{}, err
	}
	return report, nil
}

// Dataset holds the filtered subset plus the reference lists an export needs
// to resolve display names.
type Dataset struct {
	Bookings  []Booking
	Entries   []Entry
	Clients   []Client
	Companies []Company
}

// FilteredDataset fetches the snapshots and applies the filter once, for the
// export path. Exports bypass the report cache: files must reflect the store
// as fetched, not a cached aggregate.
func (s *Service) FilteredDataset(ctx context.Context, f ReportFilter) (Dataset, error) {
	if err := s.validate(f); err != nil {
		return Dataset{}, err
	}
	snap, err := s.fetchSnapshots(ctx)
	if err != nil {
		return Dataset{}, err
	}
	bookings, entries, err := s.filterSnapshot(snap, f)
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{Bookings: bookings, Entries: entries, Clients: snap.clients, Companies: snap.companies}, nil
}

func (s *Service) validate(f ReportFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if _, err := currency.ParseISO(f.Currency); err != nil {
		return &UnsupportedOptionError{Field: "currency", Value: f.Currency}
	}
	return nil
}

func (s *Service) compute(ctx context.Context, f ReportFilter) (Report, error) {
	snap, err := s.fetchSnapshots(ctx)
	if err != nil {
		return Report{}, err
	}
	bookings, entries, err := s.filterSnapshot(snap, f)
	if err != nil {
		return Report{}, err
	}

	// Aggregator and exception scanner only read the filtered slices and
	// write to their own outputs, so they run concurrently with a plain join.
	var agg Aggregates
	var ex Exceptions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		agg = Aggregate(bookings, entries, snap.clients, f, s.loc)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		ex = Scan(bookings, entries, snap.clients)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	return Report{
		Filter:            f,
		KPIs:              agg.KPIs,
		Series:            agg.Series,
		ByCategory:        agg.ByCategory,
		TopClients:        agg.TopClients,
		NegativeBookings:  ex.NegativeBookings,
		UnlinkedExpenses:  ex.UnlinkedExpenses,
		UnbilledDelivered: ex.UnbilledDelivered,
	}, nil
}

type snapshot struct {
	bookings  []Booking
	entries   []Entry
	clients   []Client
	companies []Company
}

// fetchSnapshots loads the four collections in parallel. A failed attempt is
// discarded entirely; nothing partial ever feeds a report. Transient failures
// retry with bounded backoff before surfacing as ErrSourceUnavailable.
func (s *Service) fetchSnapshots(ctx context.Context) (snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(s.backoff, attempt-1)
			s.logger.Warn("retrying snapshot fetch",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr))
			select {
			case <-ctx.Done():
				return snapshot{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		var snap snapshot
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			snap.bookings, err = s.source.Bookings(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			snap.entries, err = s.source.Entries(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			snap.clients, err = s.source.Clients(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			snap.companies, err = s.source.Companies(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			lastErr = err
			if transientFetchError(err) && ctx.Err() == nil {
				continue
			}
			return snapshot{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return snap, nil
	}
	return snapshot{}, fmt.Errorf("%w after %d attempts: %v", ErrSourceUnavailable, s.attempts, lastErr)
}

// filterSnapshot applies the filter once over both collections and enforces
// the single-currency policy: the engine never sums mismatched units.
func (s *Service) filterSnapshot(snap snapshot, f ReportFilter) ([]Booking, []Entry, error) {
	bookingClient := make(map[string]int64, len(snap.bookings))
	for _, b := range snap.bookings {
		bookingClient[b.BookingID] = b.ClientID
	}

	bookings := make([]Booking, 0, len(snap.bookings))
	for _, b := range snap.bookings {
		if !MatchBooking(b, f, s.loc) {
			continue
		}
		if b.Currency != f.Currency {
			return nil, nil, &UnsupportedOptionError{Field: "currency", Value: b.Currency}
		}
		bookings = append(bookings, b)
	}

	entries := make([]Entry, 0, len(snap.entries))
	for _, e := range snap.entries {
		if !MatchEntry(e, f, bookingClient, s.loc) {
			continue
		}
		if e.Currency != f.Currency {
			return nil, nil, &UnsupportedOptionError{Field: "currency", Value: e.Currency}
		}
		entries = append(entries, e)
	}
	return bookings, entries, nil
}

// IsUnsupportedOption reports whether err is an UnsupportedOptionError and
// returns it for field inspection.
func IsUnsupportedOption(err error) (*UnsupportedOptionError, bool) {
	var uerr *UnsupportedOptionError
	if errors.As(err, &uerr) {
		return uerr, true
	}
	return nil, false
}
