package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// ConcertRepo reads concerts and their aggregated seat counts.
type ConcertRepo struct {
	db *sql.DB
}

// NewConcertRepo returns a new ConcertRepo bound to db.
func NewConcertRepo(db *sql.DB) *ConcertRepo { return &ConcertRepo{db: db} }

const concertColumns = `id, title, artist, venue, date, poster_image, description, created_at`

func scanConcert(row interface{ Scan(...any) error }) (*model.Concert, error) {
	var (
		c           model.Concert
		poster, dsc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Artist, &c.Venue, &c.Date, &poster, &dsc, &c.CreatedAt); err != nil {
		return nil, err
	}
	if poster.Valid && poster.String != "" {
		c.PosterImage = &poster.String
	}
	if dsc.Valid {
		c.Description = &dsc.String
	}
	return &c, nil
}

// GetByID returns ErrConcertNotFound when no row matches.
func (r *ConcertRepo) GetByID(ctx context.Context, id string) (*model.Concert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+concertColumns+` FROM concerts WHERE id = ?`, id)
	c, err := scanConcert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConcertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get concert: %w", err)
	}
	return c, nil
}

// Exists reports whether a concert row is present.
func (r *ConcertRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM concerts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("concert exists: %w", err)
	}
	return true, nil
}

// ConcertCounts is a concert row plus its seat totals.
type ConcertCounts struct {
	Concert        model.Concert
	TotalSeats     int
	AvailableSeats int
}

// ListUpcoming returns concerts dated at or after now, soonest first, with
// total and available seat counts.
func (r *ConcertRepo) ListUpcoming(ctx context.Context, now time.Time) ([]ConcertCounts, error) {
	const q = `
SELECT c.id, c.title, c.artist, c.venue, c.date, c.poster_image, c.description, c.created_at,
       COUNT(s.id) AS total_seats,
       COALESCE(SUM(s.status = 'available'), 0) AS available_seats
FROM concerts c
LEFT JOIN seats s ON s.concert_id = c.id
WHERE c.date >= ?
GROUP BY c.id, c.title, c.artist, c.venue, c.date, c.poster_image, c.description, c.created_at
ORDER BY c.date ASC`
	rows, err := r.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list concerts: %w", err)
	}
	defer rows.Close()

	var out []ConcertCounts
	for rows.Next() {
		var (
			cc          ConcertCounts
			poster, dsc sql.NullString
		)
		c := &cc.Concert
		if err := rows.Scan(&c.ID, &c.Title, &c.Artist, &c.Venue, &c.Date, &poster, &dsc, &c.CreatedAt,
			&cc.TotalSeats, &cc.AvailableSeats); err != nil {
			return nil, fmt.Errorf("scan concert: %w", err)
		}
		if poster.Valid && poster.String != "" {
			c.PosterImage = &poster.String
		}
		if dsc.Valid {
			c.Description = &dsc.String
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// GradeBreakdown aggregates seat counts per grade for one concert.  Grades
// with no seats are absent; order follows model.Grades.
func (r *ConcertRepo) GradeBreakdown(ctx context.Context, concertID string) ([]model.GradeAvailability, error) {
	const q = `
SELECT grade, MAX(price), COUNT(*), COALESCE(SUM(status = 'available'), 0)
FROM seats
WHERE concert_id = ?
GROUP BY grade`
	rows, err := r.db.QueryContext(ctx, q, concertID)
	if err != nil {
		return nil, fmt.Errorf("grade breakdown: %w", err)
	}
	defer rows.Close()

	byGrade := make(map[model.Grade]model.GradeAvailability, len(model.Grades))
	for rows.Next() {
		var g model.GradeAvailability
		if err := rows.Scan(&g.Grade, &g.Price, &g.TotalSeats, &g.AvailableSeats); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		g.AvailabilityRate = model.AvailabilityRate(g.AvailableSeats, g.TotalSeats)
		byGrade[g.Grade] = g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.GradeAvailability, 0, len(byGrade))
	for _, g := range model.Grades {
		if v, ok := byGrade[g]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// CreateTx inserts a concert inside tx.  Used by the seed tool.
func (r *ConcertRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Concert) error {
	const q = `INSERT INTO concerts (id, title, artist, venue, date, poster_image, description) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, c.ID, c.Title, c.Artist, c.Venue, c.Date.UTC(), c.PosterImage, c.Description)
	return err
}
