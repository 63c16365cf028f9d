// Package transfer hands data between the steps of a booking flow: the
// selection goes from the seat map to checkout, the confirmation from
// checkout to the result page.  Entries live for a fixed TTL and are
// sealed as signed tokens, so a stale or tampered entry reads as absent.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/utils"
)

// Slot names.
const (
	KeySelectedSeats       = "selected_seats"
	KeyBookingConfirmation = "booking_confirmation"
)

// DefaultTTL is how long an entry stays readable after it is written.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned for a missing, expired or unreadable entry.
var ErrNotFound = errors.New("transfer: entry not found")

// Store keeps sealed entries.  TTL is advisory; Buffer enforces expiry
// itself when reading.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Selection is what checkout needs from the seat map.
type Selection struct {
	ConcertID string       `json:"concertId"`
	Seats     []model.Seat `json:"seats"`
	Total     int64        `json:"total"`
}

// SeatIDs returns the selected ids in selection order.
func (s Selection) SeatIDs() []string {
	ids := make([]string, len(s.Seats))
	for i, st := range s.Seats {
		ids[i] = st.ID
	}
	return ids
}

// Buffer reads and writes the two slots of one session.
type Buffer struct {
	store     Store
	secret    []byte
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

// Option configures a Buffer.
type Option func(*Buffer)

func WithTTL(d time.Duration) Option { return func(b *Buffer) { b.ttl = d } }

func WithClock(now func() time.Time) Option { return func(b *Buffer) { b.now = now } }

// WithNamespace keeps sessions sharing one store apart.
func WithNamespace(ns string) Option { return func(b *Buffer) { b.namespace = ns } }

func New(store Store, secret []byte, opts ...Option) *Buffer {
	b := &Buffer{store: store, secret: secret, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Buffer) storeKey(key string) string {
	if b.namespace == "" {
		return key
	}
	return b.namespace + ":" + key
}

// Put seals v under key, replacing any previous entry.
func (b *Buffer) Put(ctx context.Context, key string, v any) error {
	tok, err := utils.SealPayload(b.secret, key, v, b.now(), b.ttl)
	if err != nil {
		return fmt.Errorf("transfer: seal %s: %w", key, err)
	}
	if err := b.store.Set(ctx, b.storeKey(key), tok, b.ttl); err != nil {
		return fmt.Errorf("transfer: write %s: %w", key, err)
	}
	return nil
}

// Get decodes the entry under key into out.  An expired or invalid entry
// is deleted and reported as ErrNotFound.
func (b *Buffer) Get(ctx context.Context, key string, out any) error {
	sk := b.storeKey(key)
	tok, ok, err := b.store.Get(ctx, sk)
	if err != nil {
		return fmt.Errorf("transfer: read %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := utils.OpenPayload(b.secret, key, tok, b.now(), out); err != nil {
		_ = b.store.Delete(ctx, sk)
		return ErrNotFound
	}
	return nil
}

// Delete removes key.  Deleting an absent entry is not an error.
func (b *Buffer) Delete(ctx context.Context, key string) error {
	return b.store.Delete(ctx, b.storeKey(key))
}

func (b *Buffer) PutSelection(ctx context.Context, s Selection) error {
	return b.Put(ctx, KeySelectedSeats, s)
}

func (b *Buffer) Selection(ctx context.Context) (Selection, error) {
	var s Selection
	err := b.Get(ctx, KeySelectedSeats, &s)
	return s, err
}

// PutConfirmation stores the booking result and drops the selection it was
// made from.
func (b *Buffer) PutConfirmation(ctx context.Context, d model.BookingDetail) error {
	if err := b.Put(ctx, KeyBookingConfirmation, d); err != nil {
		return err
	}
	return b.Delete(ctx, KeySelectedSeats)
}

func (b *Buffer) Confirmation(ctx context.Context) (model.BookingDetail, error) {
	var d model.BookingDetail
	err := b.Get(ctx, KeyBookingConfirmation, &d)
	return d, err
}
