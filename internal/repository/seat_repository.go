package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// SeatRepo is the seat inventory.  It is the only authority on seat status;
// reads here are advisory and the reservation itself happens in
// BookingRepo.CreateWithSeats.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to db.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `id, concert_id, section, seat_row, seat_number, grade, price, status, updated_at`

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ConcertID, &s.Section, &s.Row, &s.Number, &s.Grade, &s.Price, &s.Status, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByConcert returns every seat of a concert ordered by section, row and
// number.
func (r *SeatRepo) ListByConcert(ctx context.Context, concertID string) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE concert_id = ? ORDER BY section, seat_row, seat_number`
	rows, err := r.db.QueryContext(ctx, q, concertID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return scanSeats(rows)
}

// FindByIDs returns the seats among ids that belong to concertID.  Ids that
// do not exist, or belong to another concert, are silently absent; callers
// compare lengths.
func (r *SeatRepo) FindByIDs(ctx context.Context, concertID string, ids []string) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + seatColumns + ` FROM seats WHERE concert_id = ? AND id IN (` + placeholders(len(ids)) + `) ORDER BY section, seat_row, seat_number`
	rows, err := r.db.QueryContext(ctx, q, stringArgs([]interface{}{concertID}, ids)...)
	if err != nil {
		return nil, fmt.Errorf("find seats: %w", err)
	}
	return scanSeats(rows)
}

// UnavailableIDs returns the ids among ids whose status is not available.
func (r *SeatRepo) UnavailableIDs(ctx context.Context, concertID string, ids []string) ([]string, error) {
	return unavailableIDs(ctx, r.db, concertID, ids)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func unavailableIDs(ctx context.Context, q queryer, concertID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id FROM seats WHERE concert_id = ? AND status <> 'available' AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := q.QueryContext(ctx, query, stringArgs([]interface{}{concertID}, ids)...)
	if err != nil {
		return nil, fmt.Errorf("unavailable seats: %w", err)
	}
	defer rows.Close()
	taken := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		taken[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// keep request order
	out := make([]string, 0, len(taken))
	for _, id := range ids {
		if taken[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// reserveTx flips the given seats from available to reserved in a single
// conditional UPDATE and returns the number of rows that changed.  A seat
// that is already reserved is not matched, so a count below len(ids) means
// the batch lost a race.
func reserveTx(ctx context.Context, tx *sql.Tx, concertID string, ids []string) (int64, error) {
	q := `UPDATE seats SET status = 'reserved' WHERE concert_id = ? AND status = 'available' AND id IN (` + placeholders(len(ids)) + `)`
	res, err := tx.ExecContext(ctx, q, stringArgs([]interface{}{concertID}, ids)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateBulkTx inserts seats in one statement.  Used by the seed tool.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (id, concert_id, section, seat_row, seat_number, grade, price, status) VALUES `
	args := make([]interface{}, 0, len(seats)*8)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, s.ID, s.ConcertID, string(s.Section), s.Row, s.Number, string(s.Grade), s.Price, string(s.Status))
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
