// loadtest races simulated clients through the seat selection flow against
// one concert: load the map, pick seats, hand off, book.  At the end it
// reports how many attempts were lost at each step and whether any seat
// was sold twice.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/iliyamo/concert-seat-booking/internal/apiclient"
	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/seatselect"
	"github.com/iliyamo/concert-seat-booking/internal/transfer"
	"github.com/iliyamo/concert-seat-booking/internal/utils"
)

type options struct {
	host      string
	concertID string
	clients   int
	attempts  int
	maxSeats  int
	redisAddr string
	timeout   time.Duration
	logLevel  string
	poolSize  int
	seed      int64
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var o options
	fs := pflag.NewFlagSet("loadtest", pflag.ContinueOnError)
	fs.StringVar(&o.host, "host", envOr("API_HOST", "http://localhost:8080"), "server base URL")
	fs.StringVarP(&o.concertID, "concert", "c", "", "concert id to book (required)")
	fs.IntVarP(&o.clients, "clients", "n", 50, "number of concurrent simulated clients")
	fs.IntVar(&o.attempts, "attempts", 5, "booking attempts per client")
	fs.IntVar(&o.maxSeats, "seats", seatselect.DefaultMaxSeats, "maximum seats each attempt picks")
	fs.StringVar(&o.redisAddr, "redis", "", "keep transfer buffers in this redis instead of memory")
	fs.DurationVar(&o.timeout, "timeout", 5*time.Minute, "overall deadline")
	fs.StringVar(&o.logLevel, "log-level", "warn", "client log level")
	fs.IntVar(&o.poolSize, "pool", 100, "idle HTTP connections per host")
	fs.Int64Var(&o.seed, "seed", time.Now().UnixNano(), "random seed")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if o.concertID == "" {
		return errors.New("--concert is required")
	}
	if o.clients < 1 || o.attempts < 1 || o.maxSeats < 1 {
		return errors.New("--clients, --attempts and --seats must be positive")
	}

	log := logger.New("dev", o.logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var store transfer.Store = transfer.NewMemoryStore()
	if o.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: o.redisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		store = transfer.NewRedisStore(rdb, "loadtest")
	}
	secret, err := utils.RandomSecret(32)
	if err != nil {
		return err
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = o.poolSize
	tr.MaxIdleConnsPerHost = o.poolSize
	api := apiclient.New(o.host, apiclient.WithHTTPClient(&http.Client{Transport: tr, Timeout: 30 * time.Second}))

	m := newMetrics()
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < o.clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := &client{
				id:       id,
				api:      api,
				buf:      transfer.New(store, []byte(secret), transfer.WithNamespace(fmt.Sprintf("client-%d", id))),
				log:      log,
				rng:      rand.New(rand.NewSource(o.seed + int64(id))),
				concert:  o.concertID,
				maxSeats: o.maxSeats,
				m:        m,
			}
			c.run(ctx, o.attempts)
		}(i)
	}
	wg.Wait()

	m.report(os.Stdout, time.Since(start))
	if n := m.duplicateSeat.Load(); n > 0 {
		return fmt.Errorf("%d seats were sold twice", n)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// client is one simulated user.  Each attempt uses a fresh session.
type client struct {
	id       int
	api      seatselect.API
	buf      *transfer.Buffer
	log      *logger.Logger
	rng      *rand.Rand
	concert  string
	maxSeats int
	m        *metrics
}

func (c *client) run(ctx context.Context, attempts int) {
	for i := 0; i < attempts && ctx.Err() == nil; i++ {
		soldOut := c.attempt(ctx, i)
		if soldOut {
			return
		}
	}
}

// attempt walks one booking through select, proceed and book.  It reports
// whether the concert had no free seats left.
func (c *client) attempt(ctx context.Context, n int) (soldOut bool) {
	s := seatselect.NewSession(c.api, c.concert,
		seatselect.WithTransfer(c.buf),
		seatselect.WithMaxSeats(c.maxSeats),
		seatselect.WithLogger(c.log))
	defer s.Close()

	if err := s.Load(ctx); err != nil {
		c.m.errors.Add(1)
		c.log.Warn("load failed", "client", c.id, "error", err)
		return isKind(err, seatselect.KindInvalidConcert)
	}
	st := s.State()
	free := make([]string, 0, len(st.Seats))
	for _, seat := range st.Seats {
		if seat.Available() {
			free = append(free, seat.ID)
		}
	}
	if len(free) == 0 {
		return true
	}
	c.m.attempts.Add(1)

	c.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	want := 1 + c.rng.Intn(c.maxSeats)
	if want > len(free) {
		want = len(free)
	}
	for _, id := range free[:want] {
		s.Select(id)
	}
	s.Wait()
	if s.State().SelectedCount() == 0 {
		c.m.selectLost.Add(1)
		return false
	}

	started := time.Now()
	if _, err := s.Proceed(ctx); err != nil {
		c.count(err, &c.m.proceedLost)
		return false
	}
	d, err := s.Book(ctx, c.holder(n))
	if err != nil {
		c.count(err, &c.m.bookLost)
		return false
	}
	ids := make([]string, len(d.Seats))
	for i, seat := range d.Seats {
		ids[i] = seat.SeatID
	}
	c.m.recordBooking(d.BookingID, ids, time.Since(started))
	return false
}

func (c *client) count(err error, lost interface{ Add(int64) int64 }) {
	if isKind(err, seatselect.KindAlreadyReserved) {
		lost.Add(1)
		return
	}
	c.m.errors.Add(1)
	c.log.Warn("attempt failed", "client", c.id, "error", err)
}

// holder gives every attempt its own phone so lookups stay unambiguous.
func (c *client) holder(n int) seatselect.Holder {
	return seatselect.Holder{
		Name:     fmt.Sprintf("Load Client %d", c.id),
		Phone:    fmt.Sprintf("010%04d%04d", c.id%10000, n%10000),
		Password: fmt.Sprintf("%04d", c.rng.Intn(10000)),
	}
}

func isKind(err error, kind seatselect.ErrorKind) bool {
	var es *seatselect.ErrorState
	return errors.As(err, &es) && es.Kind == kind
}
