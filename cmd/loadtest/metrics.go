package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// metrics is shared by every simulated client.
type metrics struct {
	attempts      atomic.Int64
	booked        atomic.Int64
	bookedSeats   atomic.Int64
	selectLost    atomic.Int64
	proceedLost   atomic.Int64
	bookLost      atomic.Int64
	errors        atomic.Int64
	duplicateSeat atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	seats     map[string]string // seat id -> booking id
}

func newMetrics() *metrics {
	return &metrics{seats: make(map[string]string)}
}

// recordBooking notes every seat of a booking.  A seat that already belongs
// to another booking is a double sale.
func (m *metrics) recordBooking(bookingID string, seatIDs []string, took time.Duration) {
	m.booked.Add(1)
	m.bookedSeats.Add(int64(len(seatIDs)))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, took)
	for _, id := range seatIDs {
		if prev, ok := m.seats[id]; ok && prev != bookingID {
			m.duplicateSeat.Add(1)
			continue
		}
		m.seats[id] = bookingID
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func (m *metrics) report(w io.Writer, elapsed time.Duration) {
	m.mu.Lock()
	lat := append([]time.Duration(nil), m.latencies...)
	m.mu.Unlock()
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

	fmt.Fprintf(w, "elapsed            %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "attempts           %d\n", m.attempts.Load())
	fmt.Fprintf(w, "bookings           %d (%d seats)\n", m.booked.Load(), m.bookedSeats.Load())
	fmt.Fprintf(w, "lost at select     %d\n", m.selectLost.Load())
	fmt.Fprintf(w, "lost at proceed    %d\n", m.proceedLost.Load())
	fmt.Fprintf(w, "lost at booking    %d\n", m.bookLost.Load())
	fmt.Fprintf(w, "errors             %d\n", m.errors.Load())
	fmt.Fprintf(w, "double-sold seats  %d\n", m.duplicateSeat.Load())
	if len(lat) > 0 {
		fmt.Fprintf(w, "booking latency    p50 %s  p95 %s  p99 %s  max %s\n",
			percentile(lat, 0.50).Round(time.Millisecond),
			percentile(lat, 0.95).Round(time.Millisecond),
			percentile(lat, 0.99).Round(time.Millisecond),
			lat[len(lat)-1].Round(time.Millisecond))
	}
}
