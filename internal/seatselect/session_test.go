package seatselect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/apiclient"
	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/transfer"
)

// fakeAPI serves a seat map held in memory.  Seats can be taken behind the
// session's back with reserve.
type fakeAPI struct {
	mu        sync.Mutex
	seats     []model.Seat
	checks    int
	seatLoads int
	checkErr  error
	seatsErr  error
	gate      chan struct{}
	booked    []apiclient.BookingRequest

	// seatsGate holds Seats until closed; seatsEntered is signalled when a
	// call starts waiting on it.
	seatsGate    chan struct{}
	seatsEntered chan struct{}
	checkEntered chan struct{}
	bookErr      error
}

func newFakeAPI(rows int) *fakeAPI { return &fakeAPI{seats: grid(rows)} }

func (f *fakeAPI) reserve(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		for i := range f.seats {
			if f.seats[i].ID == id {
				f.seats[i].Status = model.SeatReserved
			}
		}
	}
}

func (f *fakeAPI) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func (f *fakeAPI) Seats(ctx context.Context, concertID string) ([]model.Seat, error) {
	f.mu.Lock()
	gate, entered := f.seatsGate, f.seatsEntered
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seatLoads++
	if f.seatsErr != nil {
		return nil, f.seatsErr
	}
	return append([]model.Seat(nil), f.seats...), nil
}

func (f *fakeAPI) Concert(ctx context.Context, id string) (*model.ConcertDetail, error) {
	return &model.ConcertDetail{ConcertSummary: model.ConcertSummary{ID: id, Title: "Autumn Live", Artist: "Band"}}, nil
}

func (f *fakeAPI) CheckAvailability(ctx context.Context, concertID string, ids []string) (*apiclient.Availability, error) {
	if f.gate != nil {
		if f.checkEntered != nil {
			select {
			case f.checkEntered <- struct{}{}:
			default:
			}
		}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	res := &apiclient.Availability{Available: true}
	for _, id := range ids {
		for _, st := range f.seats {
			if st.ID == id && st.Status != model.SeatAvailable {
				res.Available = false
				res.UnavailableSeats = append(res.UnavailableSeats, id)
			}
		}
	}
	return res, nil
}

func (f *fakeAPI) CreateBooking(ctx context.Context, req apiclient.BookingRequest) (*model.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	var taken []any
	var total int64
	for _, id := range req.SeatIDs {
		for _, st := range f.seats {
			if st.ID == id {
				if st.Status != model.SeatAvailable {
					taken = append(taken, id)
				}
				total += st.Price
			}
		}
	}
	if len(taken) > 0 {
		return nil, &apiclient.Error{Status: 409, Code: "SEAT_ALREADY_RESERVED", Details: map[string]any{"unavailableSeats": taken}}
	}
	for _, id := range req.SeatIDs {
		for i := range f.seats {
			if f.seats[i].ID == id {
				f.seats[i].Status = model.SeatReserved
			}
		}
	}
	f.booked = append(f.booked, req)
	return &model.BookingDetail{BookingID: "b1", ConcertID: req.ConcertID, TotalPrice: total, Status: model.BookingConfirmed}, nil
}

func newLoadedSession(t *testing.T, api *fakeAPI, opts ...Option) *Session {
	t.Helper()
	s := NewSession(api, "c1", opts...)
	t.Cleanup(s.Close)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFifthSeatRejectedWithoutNetworkCall(t *testing.T) {
	api := newFakeAPI(2)
	s := newLoadedSession(t, api)

	for _, id := range []string{"A-1-1", "A-1-2", "A-1-3", "A-1-4"} {
		if !s.Select(id) {
			t.Fatalf("select %s refused", id)
		}
	}
	s.Wait()
	if api.checkCount() != 4 {
		t.Fatalf("checks = %d", api.checkCount())
	}

	if s.Select("A-2-1") {
		t.Fatal("fifth seat accepted")
	}
	s.Wait()
	if api.checkCount() != 4 {
		t.Fatal("fifth seat reached the network")
	}
	st := s.State()
	if st.Err == nil || st.Err.Kind != KindMaxSeats || st.SelectedCount() != 4 {
		t.Fatalf("state = %+v", st.Err)
	}
}

func TestSelectRollsBackWhenSeatWasTaken(t *testing.T) {
	api := newFakeAPI(1)
	s := newLoadedSession(t, api)
	api.reserve("A-1-3")

	if !s.Select("A-1-3") {
		t.Fatal("locally available seat refused")
	}
	s.Wait()

	st := s.State()
	if st.IsSelected("A-1-3") || st.Total != 0 {
		t.Fatal("taken seat stayed selected")
	}
	if st.Err == nil || st.Err.Kind != KindAlreadyReserved || st.Err.Retryable {
		t.Fatalf("err = %+v", st.Err)
	}
	if seat, _ := st.SeatByID("A-1-3"); seat.Status != model.SeatReserved {
		t.Fatal("seat not shown reserved")
	}
}

func TestSelectRollsBackOnNetworkFailure(t *testing.T) {
	api := newFakeAPI(1)
	s := newLoadedSession(t, api)
	api.checkErr = errors.New("connection reset")

	s.Select("A-1-1")
	s.Wait()

	st := s.State()
	if st.IsSelected("A-1-1") || st.Err == nil || st.Err.Kind != KindNetwork || !st.Err.Retryable {
		t.Fatalf("state = selected %v err %+v", st.IsSelected("A-1-1"), st.Err)
	}
	if seat, _ := st.SeatByID("A-1-1"); !seat.Available() {
		t.Fatal("network failure marked the seat reserved")
	}
}

func TestLateConfirmationAfterCloseIsDropped(t *testing.T) {
	api := newFakeAPI(1)
	api.gate = make(chan struct{})
	s := NewSession(api, "c1")
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	api.reserve("A-1-1")

	s.Select("A-1-1")
	s.Close()
	close(api.gate)
	s.Wait()

	st := s.State()
	if !st.IsSelected("A-1-1") || !st.IsPending("A-1-1") || st.Err != nil {
		t.Fatal("result applied after Close")
	}
	if s.Select("A-1-2") {
		t.Fatal("select accepted after Close")
	}
}

func TestLoadReportsInvalidConcert(t *testing.T) {
	api := newFakeAPI(1)
	api.seatsErr = &apiclient.Error{Status: 404, Code: "SEAT_INVALID_CONCERT", Message: "concert not found"}
	s := NewSession(api, "c1")
	defer s.Close()

	err := s.Load(context.Background())
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindInvalidConcert {
		t.Fatalf("err = %v", err)
	}
	if st := s.State(); st.Loading || st.Err.Kind != KindInvalidConcert {
		t.Fatalf("state = %+v", st)
	}

	api.seatsErr = errors.New("dial tcp: refused")
	if err := s.Load(context.Background()); !errors.As(err, &es) || es.Kind != KindNetwork || !es.Retryable {
		t.Fatalf("err = %v", err)
	}
}

func TestProceedWithoutSelection(t *testing.T) {
	s := newLoadedSession(t, newFakeAPI(1))
	_, err := s.Proceed(context.Background())
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindNoSelection {
		t.Fatalf("err = %v", err)
	}
}

func TestSelectionScenario(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(4)
	buf := transfer.New(transfer.NewMemoryStore(), []byte("k"))
	s := newLoadedSession(t, api, WithTransfer(buf))
	if err := s.LoadConcert(ctx); err != nil {
		t.Fatal(err)
	}
	if s.State().Concert.Title != "Autumn Live" {
		t.Fatal("concert info missing")
	}

	// pick three seats, one of which was sold a moment ago
	api.reserve("A-2-2")
	for _, id := range []string{"A-1-1", "A-2-2", "A-4-1"} {
		s.Select(id)
	}
	s.Wait()
	st := s.State()
	if st.SelectedCount() != 2 || st.Total != 250000+190000 || len(st.Pending) != 0 {
		t.Fatalf("after confirmations: %d seats, total %d, pending %v", st.SelectedCount(), st.Total, st.Pending)
	}

	// A-4-1 goes while the user fills in the form
	loadsBefore := api.seatLoads
	api.reserve("A-4-1")
	_, err := s.Proceed(ctx)
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindAlreadyReserved {
		t.Fatalf("proceed err = %v", err)
	}
	if api.seatLoads != loadsBefore+1 {
		t.Fatal("conflict did not trigger a resync")
	}
	st = s.State()
	if st.IsSelected("A-4-1") || st.Total != 250000 || s.HandedOff() {
		t.Fatalf("after conflict: total %d handed off %v", st.Total, s.HandedOff())
	}

	s.ClearError()
	s.Select("A-3-4")
	s.Wait()
	sel, err := s.Proceed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !s.HandedOff() || sel.Total != 500000 || len(sel.Seats) != 2 {
		t.Fatalf("selection = %+v", sel)
	}
	stored, err := buf.Selection(ctx)
	if err != nil || stored.Total != 500000 || stored.SeatIDs()[1] != "A-3-4" {
		t.Fatalf("stored = %+v, %v", stored, err)
	}

	d, err := s.Book(ctx, Holder{Name: "Lee", Phone: "01012345678", Password: "1234"})
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalPrice != 500000 || len(api.booked) != 1 {
		t.Fatalf("booking = %+v", d)
	}
	if _, err := buf.Selection(ctx); !errors.Is(err, transfer.ErrNotFound) {
		t.Fatal("selection still in buffer after booking")
	}
	if conf, err := buf.Confirmation(ctx); err != nil || conf.BookingID != "b1" {
		t.Fatalf("confirmation = %+v, %v", conf, err)
	}
	if s.State().SelectedCount() != 0 {
		t.Fatal("selection not cleared after booking")
	}
}

func TestBookAfterSelectionExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC)
	buf := transfer.New(transfer.NewMemoryStore(), []byte("k"), transfer.WithClock(func() time.Time { return now }))
	api := newFakeAPI(1)
	s := newLoadedSession(t, api, WithTransfer(buf))

	s.Select("A-1-1")
	s.Wait()
	if _, err := s.Proceed(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(31 * time.Minute)

	_, err := s.Book(ctx, Holder{Name: "Lee", Phone: "01012345678", Password: "1234"})
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindSessionExpired {
		t.Fatalf("err = %v", err)
	}
	if len(api.booked) != 0 {
		t.Fatal("expired selection was booked")
	}
}

func TestBookConflictDropsTakenSeats(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(1)
	buf := transfer.New(transfer.NewMemoryStore(), []byte("k"))
	s := newLoadedSession(t, api, WithTransfer(buf))

	s.Select("A-1-1")
	s.Select("A-1-2")
	s.Wait()
	if _, err := s.Proceed(ctx); err != nil {
		t.Fatal(err)
	}
	api.reserve("A-1-2")

	_, err := s.Book(ctx, Holder{Name: "Lee", Phone: "01012345678", Password: "1234"})
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindAlreadyReserved {
		t.Fatalf("err = %v", err)
	}
	st := s.State()
	if st.IsSelected("A-1-2") || !st.IsSelected("A-1-1") || s.HandedOff() {
		t.Fatal("conflict not reflected in the session")
	}
	if _, err := buf.Selection(ctx); !errors.Is(err, transfer.ErrNotFound) {
		t.Fatal("stale selection left in buffer")
	}
}

func TestProceedHandsOffSelectionChangedDuringCheck(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(1)
	buf := transfer.New(transfer.NewMemoryStore(), []byte("k"))
	s := newLoadedSession(t, api, WithTransfer(buf))

	s.Select("A-1-1")
	s.Select("A-1-2")
	s.Wait()
	api.gate = make(chan struct{})
	api.checkEntered = make(chan struct{}, 1)

	type result struct {
		sel transfer.Selection
		err error
	}
	done := make(chan result, 1)
	go func() {
		sel, err := s.Proceed(ctx)
		done <- result{sel, err}
	}()

	// the check for both seats is in flight
	<-api.checkEntered
	s.Deselect("A-1-2")
	close(api.gate)
	r := <-done
	if r.err != nil {
		t.Fatal(r.err)
	}

	st := s.State()
	if st.SelectedCount() != 1 || st.Total != 250000 {
		t.Fatalf("state: %v total %d", st.SelectedIDs(), st.Total)
	}
	if len(r.sel.Seats) != 1 || r.sel.Total != st.Total || r.sel.Seats[0].ID != "A-1-1" {
		t.Fatalf("handed off %v total %d", r.sel.SeatIDs(), r.sel.Total)
	}
	stored, err := buf.Selection(ctx)
	if err != nil || len(stored.Seats) != 1 || stored.Total != 250000 {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
	if !s.HandedOff() {
		t.Fatal("session not handed off")
	}
}

func TestProceedNetworkFailureKeepsSelection(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(1)
	buf := transfer.New(transfer.NewMemoryStore(), []byte("k"))
	s := newLoadedSession(t, api, WithTransfer(buf))

	s.Select("A-1-1")
	s.Select("A-1-2")
	s.Wait()
	api.checkErr = errors.New("connection reset")

	_, err := s.Proceed(ctx)
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindNetwork || !es.Retryable {
		t.Fatalf("err = %v", err)
	}
	st := s.State()
	if st.SelectedCount() != 2 || st.Total != 500000 || st.Err == nil || st.Err.Kind != KindNetwork {
		t.Fatalf("state: %v total %d err %+v", st.SelectedIDs(), st.Total, st.Err)
	}
	if s.HandedOff() {
		t.Fatal("handed off after a failed check")
	}
	if _, err := buf.Selection(ctx); !errors.Is(err, transfer.ErrNotFound) {
		t.Fatal("selection written after a failed check")
	}

	api.checkErr = nil
	if _, err := s.Proceed(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestProceedWhileLoadingIsNotReady(t *testing.T) {
	s := newLoadedSession(t, newFakeAPI(1))
	s.Select("A-1-1")
	s.Wait()
	s.dispatch(LoadRequest{})

	_, err := s.Proceed(context.Background())
	var es *ErrorState
	if !errors.As(err, &es) || es.Kind != KindNotReady || !es.Retryable {
		t.Fatalf("err = %v", err)
	}
}

func TestBookRefusalReachesErrorSlot(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(1)
	buf := transfer.New(transfer.NewMemoryStore(), []byte("k"))
	s := newLoadedSession(t, api, WithTransfer(buf))

	s.Select("A-1-1")
	s.Wait()
	if _, err := s.Proceed(ctx); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		err       *apiclient.Error
		retryable bool
	}{
		{&apiclient.Error{Status: 409, Code: "DUPLICATE_BOOKING", Message: "a booking already exists for this phone"}, false},
		{&apiclient.Error{Status: 400, Code: "CONCERT_EXPIRED"}, false},
		{&apiclient.Error{Status: 429, Code: "TOO_MANY_REQUESTS", Message: "slow down", RetryAfter: 3}, true},
	}
	for _, tc := range cases {
		s.ClearError()
		api.bookErr = tc.err
		_, err := s.Book(ctx, Holder{Name: "Lee", Phone: "01012345678", Password: "1234"})
		if !apiclient.HasCode(err, tc.err.Code) {
			t.Fatalf("%s: err = %v", tc.err.Code, err)
		}
		st := s.State()
		if st.Err == nil || st.Err.Kind != KindRejected || st.Err.Retryable != tc.retryable {
			t.Fatalf("%s: slot = %+v", tc.err.Code, st.Err)
		}
		if tc.err.Message == "" && st.Err.Message != tc.err.Code {
			t.Fatalf("%s: message = %q", tc.err.Code, st.Err.Message)
		}
		if st.SelectedCount() != 1 || !s.HandedOff() {
			t.Fatalf("%s: refusal changed the selection", tc.err.Code)
		}
	}
}
