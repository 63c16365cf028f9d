package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// BookingRepo creates bookings and reads them back for confirmation and
// lookup screens.  Bookings and their booking_seats rows are written in the
// same transaction that reserves the seats.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateWithSeats is the atomic reservation step.  Inside one transaction
// it flips every seat in seats from available to reserved with a single
// conditional UPDATE, inserts the booking row and inserts one booking_seats
// row per seat.  b.TotalPrice must already equal the sum of seat prices.
//
// If fewer rows change than seats were requested, or the UPDATE hits a
// deadlock or lock wait timeout, nothing is kept and a *SeatConflictError
// naming the taken seats is returned.  A duplicate (concert, phone) among
// confirmed bookings yields ErrDuplicateBooking.
func (r *BookingRepo) CreateWithSeats(ctx context.Context, b *model.Booking, seats []model.Seat) error {
	if len(seats) == 0 {
		return errors.New("create booking: no seats")
	}
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	done := false // committed or rolled back
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()
	rollback := func() {
		_ = tx.Rollback()
		done = true
	}

	affected, err := reserveTx(ctx, tx, b.ConcertID, ids)
	switch {
	case err != nil && isLockContention(err):
		rollback()
		return r.conflict(ctx, b.ConcertID, ids)
	case err != nil:
		return fmt.Errorf("reserve seats: %w", err)
	case affected != int64(len(ids)):
		rollback()
		return r.conflict(ctx, b.ConcertID, ids)
	}

	if err := r.createTx(ctx, tx, b); err != nil {
		if isDuplicateKey(err, "uq_bookings_phone_concert") {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	links := make([]model.BookingSeat, len(seats))
	for i, s := range seats {
		links[i] = model.BookingSeat{BookingID: b.ID, SeatID: s.ID, Price: s.Price}
	}
	if err := createSeatsBulkTx(ctx, tx, links); err != nil {
		if isDuplicateKey(err, "uq_booking_seats_seat") {
			rollback()
			return r.conflict(ctx, b.ConcertID, ids)
		}
		return fmt.Errorf("insert booking seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	done = true
	return nil
}

// conflict builds the SeatConflictError after the transaction is gone.  The
// status read is advisory; when it cannot name a seat every requested id is
// reported.
func (r *BookingRepo) conflict(ctx context.Context, concertID string, ids []string) error {
	taken, err := unavailableIDs(ctx, r.db, concertID, ids)
	if err != nil || len(taken) == 0 {
		taken = append([]string(nil), ids...)
	}
	return &SeatConflictError{SeatIDs: taken}
}

func (r *BookingRepo) createTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, concert_id, user_name, user_phone, password_hash, total_price, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, b.ID, b.ConcertID, b.UserName, b.UserPhone, b.PasswordHash, b.TotalPrice, string(b.Status), b.CreatedAt.UTC())
	return err
}

func createSeatsBulkTx(ctx context.Context, tx *sql.Tx, links []model.BookingSeat) error {
	if len(links) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, seat_id, price) VALUES `
	args := make([]interface{}, 0, len(links)*3)
	for i, l := range links {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, l.BookingID, l.SeatID, l.Price)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

const bookingDetailSelect = `
SELECT b.id, b.concert_id, c.title, c.artist, c.date, c.venue,
       b.user_name, b.user_phone, b.total_price, b.status, b.created_at
FROM bookings b
JOIN concerts c ON c.id = b.concert_id`

func scanBookingDetail(row interface{ Scan(...any) error }) (model.BookingDetail, error) {
	var d model.BookingDetail
	err := row.Scan(&d.BookingID, &d.ConcertID, &d.ConcertTitle, &d.ConcertArtist, &d.ConcertDate, &d.ConcertVenue,
		&d.UserName, &d.UserPhone, &d.TotalPrice, &d.Status, &d.CreatedAt)
	return d, err
}

// GetDetail returns one booking with concert info and seats.  Seats carry
// the price recorded at booking time.
func (r *BookingRepo) GetDetail(ctx context.Context, id string) (*model.BookingDetail, error) {
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx, bookingDetailSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	details := []model.BookingDetail{d}
	if err := r.attachSeats(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Credential is the minimum needed to verify a lookup password.
type Credential struct {
	BookingID    string
	PasswordHash string
	CreatedAt    time.Time
}

// ListCredentialsByPhone returns the confirmed bookings of a phone, oldest
// first, with their password hashes.
func (r *BookingRepo) ListCredentialsByPhone(ctx context.Context, phone string) ([]Credential, error) {
	const q = `SELECT id, password_hash, created_at FROM bookings WHERE user_phone = ? AND status = 'confirmed' ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, phone)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()
	var out []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.BookingID, &c.PasswordHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDetailsByPhone returns the confirmed bookings of a phone, newest
// first, each with its seats.
func (r *BookingRepo) ListDetailsByPhone(ctx context.Context, phone string) ([]model.BookingDetail, error) {
	q := bookingDetailSelect + ` WHERE b.user_phone = ? AND b.status = 'confirmed' ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, phone)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	var out []model.BookingDetail
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := r.attachSeats(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSeats loads the seats of all details with one query and places
// them using an index map.
func (r *BookingRepo) attachSeats(ctx context.Context, details []model.BookingDetail) error {
	if len(details) == 0 {
		return nil
	}
	idx := make(map[string]int, len(details))
	ids := make([]string, len(details))
	for i, d := range details {
		idx[d.BookingID] = i
		ids[i] = d.BookingID
		details[i].Seats = []model.BookedSeat{}
	}
	q := `
SELECT bs.booking_id, s.id, s.section, s.seat_row, s.seat_number, s.grade, bs.price
FROM booking_seats bs
JOIN seats s ON s.id = bs.seat_id
WHERE bs.booking_id IN (` + placeholders(len(ids)) + `)
ORDER BY s.section, s.seat_row, s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, stringArgs(nil, ids)...)
	if err != nil {
		return fmt.Errorf("booking seats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bookingID string
			s         model.BookedSeat
		)
		if err := rows.Scan(&bookingID, &s.SeatID, &s.Section, &s.Row, &s.Number, &s.Grade, &s.Price); err != nil {
			return fmt.Errorf("scan booking seat: %w", err)
		}
		if i, ok := idx[bookingID]; ok {
			details[i].Seats = append(details[i].Seats, s)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range details {
		details[i].FormatSeats()
	}
	return nil
}
