package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/queue"
	"github.com/iliyamo/concert-seat-booking/internal/repository"
)

// memStore is an in-memory inventory whose CreateWithSeats is atomic under
// a mutex, standing in for the conditional UPDATE inside a transaction.
type memStore struct {
	mu       sync.Mutex
	concerts map[string]model.Concert
	seats    map[string]model.Seat
	bookings []storedBooking
	err      error // returned by every call when set
}

type storedBooking struct {
	booking model.Booking
	seats   []model.Seat
}

func newMemStore() *memStore {
	return &memStore{concerts: map[string]model.Concert{}, seats: map[string]model.Seat{}}
}

func (m *memStore) addConcert(title string, date time.Time) model.Concert {
	c := model.Concert{ID: uuid.NewString(), Title: title, Artist: "Artist", Venue: "Hall", Date: date}
	m.concerts[c.ID] = c
	return c
}

func (m *memStore) addSeat(concertID string, sec model.Section, row, num int, price int64) model.Seat {
	g, _ := model.GradeForRow(row)
	s := model.Seat{ID: uuid.NewString(), ConcertID: concertID, Section: sec, Row: row, Number: num, Grade: g, Price: price, Status: model.SeatAvailable}
	m.seats[s.ID] = s
	return s
}

func (m *memStore) seat(id string) model.Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seats[id]
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Concert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.concerts[id]
	if !ok {
		return nil, repository.ErrConcertNotFound
	}
	return &c, nil
}

func (m *memStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.concerts[id]
	return ok, nil
}

func (m *memStore) ListUpcoming(_ context.Context, now time.Time) ([]repository.ConcertCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.ConcertCounts
	for _, c := range m.concerts {
		if c.Date.Before(now) {
			continue
		}
		cc := repository.ConcertCounts{Concert: c}
		for _, s := range m.seats {
			if s.ConcertID == c.ID {
				cc.TotalSeats++
				if s.Available() {
					cc.AvailableSeats++
				}
			}
		}
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Concert.Date.Before(out[j].Concert.Date) })
	return out, nil
}

func (m *memStore) GradeBreakdown(_ context.Context, concertID string) ([]model.GradeAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by := map[model.Grade]*model.GradeAvailability{}
	for _, s := range m.seats {
		if s.ConcertID != concertID {
			continue
		}
		g := by[s.Grade]
		if g == nil {
			g = &model.GradeAvailability{Grade: s.Grade, Price: s.Price}
			by[s.Grade] = g
		}
		g.TotalSeats++
		if s.Available() {
			g.AvailableSeats++
		}
	}
	var out []model.GradeAvailability
	for _, grade := range model.Grades {
		if g := by[grade]; g != nil {
			g.AvailabilityRate = model.AvailabilityRate(g.AvailableSeats, g.TotalSeats)
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memStore) ListByConcert(_ context.Context, concertID string) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Seat
	for _, s := range m.seats {
		if s.ConcertID == concertID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) FindByIDs(_ context.Context, concertID string, ids []string) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	seen := map[string]bool{}
	var out []model.Seat
	for _, id := range ids {
		if s, ok := m.seats[id]; ok && s.ConcertID == concertID && !seen[id] {
			seen[id] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CreateWithSeats(_ context.Context, b *model.Booking, seats []model.Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	var taken []string
	for _, s := range seats {
		if !m.seats[s.ID].Available() {
			taken = append(taken, s.ID)
		}
	}
	if len(taken) > 0 {
		return &repository.SeatConflictError{SeatIDs: taken}
	}
	for _, sb := range m.bookings {
		if sb.booking.ConcertID == b.ConcertID && sb.booking.UserPhone == b.UserPhone && sb.booking.Status == model.BookingConfirmed {
			return repository.ErrDuplicateBooking
		}
	}
	for _, s := range seats {
		cur := m.seats[s.ID]
		cur.Status = model.SeatReserved
		m.seats[s.ID] = cur
	}
	m.bookings = append(m.bookings, storedBooking{booking: *b, seats: append([]model.Seat(nil), seats...)})
	return nil
}

func (m *memStore) detail(sb storedBooking) model.BookingDetail {
	c := m.concerts[sb.booking.ConcertID]
	d := model.BookingDetail{
		BookingID: sb.booking.ID, ConcertID: c.ID, ConcertTitle: c.Title, ConcertArtist: c.Artist,
		ConcertDate: c.Date, ConcertVenue: c.Venue, UserName: sb.booking.UserName, UserPhone: sb.booking.UserPhone,
		TotalPrice: sb.booking.TotalPrice, Status: sb.booking.Status, CreatedAt: sb.booking.CreatedAt,
	}
	for _, s := range sb.seats {
		d.Seats = append(d.Seats, model.BookedSeat{SeatID: s.ID, Section: s.Section, Row: s.Row, Number: s.Number, Grade: s.Grade, Price: s.Price})
	}
	d.FormatSeats()
	return d
}

func (m *memStore) GetDetail(_ context.Context, id string) (*model.BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sb := range m.bookings {
		if sb.booking.ID == id {
			d := m.detail(sb)
			return &d, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (m *memStore) ListCredentialsByPhone(_ context.Context, phone string) ([]repository.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []repository.Credential
	for _, sb := range m.bookings {
		if sb.booking.UserPhone == phone && sb.booking.Status == model.BookingConfirmed {
			out = append(out, repository.Credential{BookingID: sb.booking.ID, PasswordHash: sb.booking.PasswordHash, CreatedAt: sb.booking.CreatedAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListDetailsByPhone(_ context.Context, phone string) ([]model.BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BookingDetail
	for _, sb := range m.bookings {
		if sb.booking.UserPhone == phone && sb.booking.Status == model.BookingConfirmed {
			out = append(out, m.detail(sb))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}
