package reporting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Source supplies full snapshots of the raw collections. The engine filters
// client-side, so implementations never need server-side filtering. A failed
// fetch must return an error instead of a partial slice.
type Source interface {
	Bookings(ctx context.Context) ([]Booking, error)
	Entries(ctx context.Context) ([]Entry, error)
	Clients(ctx context.Context) ([]Client, error)
	Companies(ctx context.Context) ([]Company, error)
}

// Repository reads snapshots from the operations store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository over a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Bookings loads every booking snapshot.
func (r *Repository) Bookings(ctx context.Context) ([]Booking, error) {
	const query = `
		SELECT booking_id, client_id, company_id, mode, status,
		       created_at, dispatched_at, delivered_at,
		       revenue_amount::text, expense_amount::text, currency
		FROM bookings
		ORDER BY booking_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reporting: load bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]Booking, 0)
	for rows.Next() {
		var b Booking
		var revenue, expense string
		if err := rows.Scan(&b.BookingID, &b.ClientID, &b.CompanyID, &b.Mode, &b.Status,
			&b.CreatedAt, &b.DispatchedAt, &b.DeliveredAt, &revenue, &expense, &b.Currency); err != nil {
			return nil, fmt.Errorf("reporting: scan booking: %w", err)
		}
		if b.RevenueAmount, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("reporting: booking %s revenue: %w", b.BookingID, err)
		}
		if b.ExpenseAmount, err = decimal.NewFromString(expense); err != nil {
			return nil, fmt.Errorf("reporting: booking %s expense: %w", b.BookingID, err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: load bookings: %w", err)
	}
	return bookings, nil
}

// Entries loads every ledger entry snapshot.
func (r *Repository) Entries(ctx context.Context) ([]Entry, error) {
	const query = `
		SELECT entry_id, entry_type, amount::text, currency, company_id,
		       booking_id, category, entry_date
		FROM ledger_entries
		ORDER BY entry_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reporting: load entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var amount string
		if err := rows.Scan(&e.EntryID, &e.Type, &amount, &e.Currency, &e.CompanyID,
			&e.BookingID, &e.Category, &e.EntryDate); err != nil {
			return nil, fmt.Errorf("reporting: scan entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("reporting: entry %s amount: %w", e.EntryID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: load entries: %w", err)
	}
	return entries, nil
}

// Clients loads the client reference list.
func (r *Repository) Clients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT client_id, name FROM clients ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("reporting: load clients: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0)
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ClientID, &c.Name); err != nil {
			return nil, fmt.Errorf("reporting: scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: load clients: %w", err)
	}
	return clients, nil
}

// Companies loads the company reference list.
func (r *Repository) Companies(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT company_id, name FROM companies ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("reporting: load companies: %w", err)
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.CompanyID, &c.Name); err != nil {
			return nil, fmt.Errorf("reporting: scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: load companies: %w", err)
	}
	return companies, nil
}

// transientFetchError classifies failures worth retrying with backoff:
// connection-class and shutdown-class Postgres errors, timeouts, and plain
// network failures. Anything else surfaces immediately.
func transientFetchError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 {
			switch pgErr.Code[:2] {
			case "08", "53", "57":
				return true
			}
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// backoffDelay returns the bounded exponential delay before attempt n (0-based).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 5*time.Second {
			return 5 * time.Second
		}
	}
	return d
}
