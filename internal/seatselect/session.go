package seatselect

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/apiclient"
	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/transfer"
)

const (
	confirmTimeout   = 5 * time.Second
	maxProceedChecks = 3
)

// API is the part of the server a session talks to.  *apiclient.Client
// implements it.
type API interface {
	Seats(ctx context.Context, concertID string) ([]model.Seat, error)
	Concert(ctx context.Context, id string) (*model.ConcertDetail, error)
	CheckAvailability(ctx context.Context, concertID string, seatIDs []string) (*apiclient.Availability, error)
	CreateBooking(ctx context.Context, req apiclient.BookingRequest) (*model.BookingDetail, error)
}

var _ API = (*apiclient.Client)(nil)

// Holder identifies who a booking is for.
type Holder struct {
	Name     string
	Phone    string
	Password string
}

// Session drives one user's seat selection on one concert.
//
// Every action is applied to the state synchronously under the session
// lock before any confirmation starts, so one user's actions on a seat are
// never reordered.  Confirmations run in their own goroutines and only
// apply while the attempt that started them is still the selected one.
// After Close nothing reaches the state any more.
type Session struct {
	api      API
	buf      *transfer.Buffer
	log      *logger.Logger
	now      func() time.Time
	polls    PollIntervals
	onChange func(State)

	mu              sync.Mutex
	state           State
	attempt         uint64
	gen             uint64
	closed          bool
	handedOff       bool
	lastInteraction time.Time
	poller          *Poller

	ctx      context.Context
	cancel   context.CancelFunc
	confirms sync.WaitGroup
	pollDone chan struct{}
}

// Option configures a Session.
type Option func(*Session)

func WithMaxSeats(n int) Option { return func(s *Session) { s.state.MaxSeats = n } }

// WithTransfer sets where Proceed leaves the selection and Book leaves
// the confirmation.
func WithTransfer(b *transfer.Buffer) Option { return func(s *Session) { s.buf = b } }

func WithLogger(l *logger.Logger) Option { return func(s *Session) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithPollIntervals(p PollIntervals) Option { return func(s *Session) { s.polls = p } }

// WithOnChange registers a callback that receives every new state.  It may
// be called from several goroutines.
func WithOnChange(fn func(State)) Option { return func(s *Session) { s.onChange = fn } }

func NewSession(api API, concertID string, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:    api,
		log:    logger.Nop(),
		now:    time.Now,
		polls:  DefaultPollIntervals,
		state:  NewState(concertID, DefaultMaxSeats),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state.MaxSeats < 1 {
		s.state.MaxSeats = DefaultMaxSeats
	}
	s.lastInteraction = s.now()
	s.log = s.log.WithFields(map[string]any{"concert_id": concertID})
	return s
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandedOff reports whether Proceed has succeeded.
func (s *Session) HandedOff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handedOff
}

func (s *Session) notify(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}

func (s *Session) dispatch(actions ...Action) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.applyLocked(actions...)
}

// dispatchGen applies actions only if the session has not been closed
// since gen was taken.
func (s *Session) dispatchGen(gen uint64, actions ...Action) {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.applyLocked(actions...)
}

// applyLocked must be entered with s.mu held; it releases it.
func (s *Session) applyLocked(actions ...Action) {
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

func (s *Session) touchLocked() {
	s.lastInteraction = s.now()
	if s.poller != nil {
		s.poller.Kick()
	}
}

func (s *Session) lastInteractionAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInteraction
}

// Load fetches the seat map.  A concert the server does not know is
// reported as INVALID_CONCERT, any other failure as a retryable NETWORK
// error.
func (s *Session) Load(ctx context.Context) error {
	s.dispatch(LoadRequest{})
	seats, err := s.api.Seats(ctx, s.State().ConcertID)
	if err != nil {
		es := networkError("failed to load seats")
		if apiclient.HasCode(err, "SEAT_INVALID_CONCERT") {
			es = invalidConcertError()
		}
		s.log.Warn("seat load failed", "error", err)
		s.dispatch(LoadFailure{Err: es})
		return es
	}
	s.dispatch(LoadSuccess{Seats: seats, At: s.now()})
	return nil
}

// LoadConcert fetches the header data.  Failure leaves the state as is.
func (s *Session) LoadConcert(ctx context.Context) error {
	id := s.State().ConcertID
	d, err := s.api.Concert(ctx, id)
	if err != nil {
		s.log.Warn("concert load failed", "error", err)
		return err
	}
	s.dispatch(SetConcert{ConcertID: id, Info: &ConcertInfo{
		Title:  d.Title,
		Artist: d.Artist,
		Venue:  d.Venue,
		Date:   d.Date,
	}})
	return nil
}

// Refresh merges the server's current seat map.  Failures are returned
// but leave the error slot alone, and a sync that returns after Close is
// dropped.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen, concertID := s.gen, s.state.ConcertID
	s.mu.Unlock()
	seats, err := s.api.Seats(ctx, concertID)
	if err != nil {
		return err
	}
	s.dispatchGen(gen, Sync{Seats: seats, At: s.now()})
	return nil
}

// Select adds a seat optimistically and starts its confirmation.  It
// returns false when the reducer refused the seat; in that case no request
// is made.
func (s *Session) Select(seatID string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.touchLocked()
	s.attempt++
	att := s.attempt
	s.state = Reduce(s.state, Select{SeatID: seatID, At: s.now(), Attempt: att})
	st := s.state
	applied := st.Pending[seatID] == att
	gen := s.gen
	if applied {
		s.confirms.Add(1)
	}
	s.mu.Unlock()
	s.notify(st)

	if applied {
		go s.confirm(gen, st.ConcertID, seatID, att)
	}
	return applied
}

func (s *Session) confirm(gen uint64, concertID, seatID string, att uint64) {
	defer s.confirms.Done()
	ctx, cancel := context.WithTimeout(s.ctx, confirmTimeout)
	defer cancel()

	res, err := s.api.CheckAvailability(ctx, concertID, []string{seatID})
	switch {
	case err != nil:
		s.log.Warn("seat confirmation failed", "seat_id", seatID, "error", err)
		s.dispatchGen(gen, Reject{SeatID: seatID, Attempt: att, Err: networkError("failed to verify the seat")})
	case !res.Available:
		s.dispatchGen(gen, Reject{
			SeatID:       seatID,
			Attempt:      att,
			Err:          alreadyReservedError("the selected seat has just been reserved"),
			MarkReserved: true,
		})
	default:
		s.dispatchGen(gen, Confirm{SeatID: seatID, Attempt: att})
	}
}

func (s *Session) Deselect(seatID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.touchLocked()
	s.applyLocked(Deselect{SeatID: seatID})
}

// Toggle deselects a selected seat and selects any other.
func (s *Session) Toggle(seatID string) {
	if s.State().IsSelected(seatID) {
		s.Deselect(seatID)
		return
	}
	s.Select(seatID)
}

func (s *Session) Clear() { s.dispatch(ClearSelection{}) }

func (s *Session) Hover(seatID string) { s.dispatch(SetHover{SeatID: seatID}) }

func (s *Session) ClearError() { s.dispatch(ClearError{}) }

// Wait blocks until every confirmation started so far has finished.
func (s *Session) Wait() { s.confirms.Wait() }

// Proceed re-checks the whole selection and, when every seat is still
// free, writes it to the transfer buffer and marks the session handed off.
// Seats that were taken in the meantime are dropped from the selection and
// the seat map is refreshed.  If the selection changes while a check is in
// flight the new selection is checked again; what is handed off is always
// the selection the session holds when Proceed returns.
func (s *Session) Proceed(ctx context.Context) (transfer.Selection, error) {
	for round := 0; round < maxProceedChecks; round++ {
		st, err := s.proceedState()
		if err != nil {
			return transfer.Selection{}, err
		}
		ids := st.SelectedIDs()

		res, err := s.api.CheckAvailability(ctx, st.ConcertID, ids)
		if err != nil {
			s.log.Warn("selection check failed", "error", err)
			es := networkError("failed to verify the selection")
			s.dispatch(SetError{Err: es})
			return transfer.Selection{}, es
		}
		if !res.Available {
			es := alreadyReservedError("some of the selected seats have already been reserved")
			s.dropTaken(res.UnavailableSeats, es)
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn("resync after conflict failed", "error", err)
			}
			return transfer.Selection{}, es
		}

		st, changed, err := s.selectionSince(ids)
		if err != nil {
			return transfer.Selection{}, err
		}
		if changed {
			continue
		}

		sel := handoffFrom(st)
		if s.buf != nil {
			if err := s.buf.PutSelection(ctx, sel); err != nil {
				return transfer.Selection{}, fmt.Errorf("seatselect: hand off selection: %w", err)
			}
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return transfer.Selection{}, sessionExpiredError()
		}
		if !slices.Equal(s.state.SelectedIDs(), ids) {
			s.mu.Unlock()
			if s.buf != nil {
				_ = s.buf.Delete(ctx, transfer.KeySelectedSeats)
			}
			continue
		}
		s.handedOff = true
		s.mu.Unlock()
		return sel, nil
	}

	es := notReadyError("the selection kept changing, try again")
	s.dispatch(SetError{Err: es})
	return transfer.Selection{}, es
}

// proceedState returns the state Proceed starts a round from, or the
// error that stops it.
func (s *Session) proceedState() (State, error) {
	s.mu.Lock()
	closed := s.closed
	st := s.state
	s.mu.Unlock()
	switch {
	case closed:
		return st, sessionExpiredError()
	case len(st.Selected) == 0:
		es := noSelectionError()
		s.dispatch(SetError{Err: es})
		return st, es
	case !st.IsReserveEnabled():
		return st, notReadyError("seats are still loading")
	}
	return st, nil
}

// selectionSince returns the current state and whether its selection
// differs from ids.
func (s *Session) selectionSince(ids []string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.state, false, sessionExpiredError()
	}
	return s.state, !slices.Equal(s.state.SelectedIDs(), ids), nil
}

func handoffFrom(st State) transfer.Selection {
	sel := transfer.Selection{ConcertID: st.ConcertID, Total: st.Total, Seats: make([]model.Seat, 0, len(st.Selected))}
	for _, ss := range st.Selected {
		seat, ok := st.SeatByID(ss.SeatID)
		if !ok {
			seat = model.Seat{ID: ss.SeatID, ConcertID: st.ConcertID, Section: ss.Section, Row: ss.Row, Number: ss.Number, Grade: ss.Grade, Price: ss.Price}
		}
		sel.Seats = append(sel.Seats, seat)
	}
	return sel
}

func (s *Session) dropTaken(ids []string, es *ErrorState) {
	updates := make(map[string]model.SeatStatus, len(ids))
	actions := make([]Action, 0, len(ids)+2)
	for _, id := range ids {
		updates[id] = model.SeatReserved
		actions = append(actions, Deselect{SeatID: id})
	}
	actions = append(actions, BatchUpdateSeats{Updates: updates, At: s.now()}, SetError{Err: es})
	s.dispatch(actions...)
}

// Book turns the handed-off selection into a booking and stores the
// confirmation.  A selection that is no longer in the buffer yields
// SESSION_EXPIRED.  Other refusals from the server are put in the error
// slot as REJECTED and returned as the *apiclient.Error.
func (s *Session) Book(ctx context.Context, h Holder) (*model.BookingDetail, error) {
	if s.buf == nil {
		return nil, errors.New("seatselect: no transfer buffer configured")
	}
	sel, err := s.buf.Selection(ctx)
	if errors.Is(err, transfer.ErrNotFound) {
		es := sessionExpiredError()
		s.dispatch(SetError{Err: es})
		return nil, es
	}
	if err != nil {
		return nil, err
	}

	d, err := s.api.CreateBooking(ctx, apiclient.BookingRequest{
		ConcertID: sel.ConcertID,
		SeatIDs:   sel.SeatIDs(),
		UserName:  h.Name,
		UserPhone: h.Phone,
		Password:  h.Password,
	})
	if err != nil {
		var ae *apiclient.Error
		if !errors.As(err, &ae) {
			es := networkError("failed to submit the booking")
			s.dispatch(SetError{Err: es})
			return nil, es
		}
		if ae.Code == "SEAT_ALREADY_RESERVED" {
			es := alreadyReservedError("some of the selected seats have already been reserved")
			s.dropTaken(ae.UnavailableSeats(), es)
			_ = s.buf.Delete(ctx, transfer.KeySelectedSeats)
			s.mu.Lock()
			s.handedOff = false
			s.mu.Unlock()
			return nil, es
		}
		s.dispatch(SetError{Err: serverError(ae)})
		return nil, err
	}

	if err := s.buf.PutConfirmation(ctx, *d); err != nil {
		return d, fmt.Errorf("seatselect: store confirmation: %w", err)
	}
	s.dispatch(ClearSelection{})
	return d, nil
}

// StartPolling refreshes the seat map in the background on the adaptive
// schedule until Close.
func (s *Session) StartPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.poller != nil {
		return
	}
	s.poller = NewPoller(s.polls, func(ctx context.Context) {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.log.Debug("poll failed", "error", err)
		}
	}, s.lastInteractionAt)
	s.poller.now = s.now
	s.pollDone = make(chan struct{})
	go func(p *Poller, done chan struct{}) {
		defer close(done)
		p.Run(s.ctx)
	}(s.poller, s.pollDone)
}

// Close stops polling and cancels in-flight confirmations.  Results that
// arrive afterwards are dropped.  Close waits for the poller but not for
// confirmations; use Wait for those.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	done := s.pollDone
	s.mu.Unlock()

	s.cancel()
	if done != nil {
		<-done
	}
}
