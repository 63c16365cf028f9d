// Package apiclient is a typed HTTP client for the booking API.  Every
// response is decoded from the {success, data | error} envelope; error
// envelopes come back as *Error.  Transport failures are returned as plain
// wrapped errors so callers can tell "the server said no" from "the server
// could not be reached".
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

const maxResponseBytes = 4 << 20

// Error is an error envelope returned by the server.
type Error struct {
	Status     int
	Code       string
	Message    string
	Details    map[string]any
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// UnavailableSeats returns details.unavailableSeats of a conflict.
func (e *Error) UnavailableSeats() []string {
	raw, _ := e.Details["unavailableSeats"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

// Availability is the check-availability result.
type Availability struct {
	Available        bool     `json:"available"`
	UnavailableSeats []string `json:"unavailableSeats,omitempty"`
}

// BookingRequest is the body of POST /api/bookings.
type BookingRequest struct {
	ConcertID string   `json:"concertId"`
	SeatIDs   []string `json:"seatIds"`
	UserName  string   `json:"userName"`
	UserPhone string   `json:"userPhone"`
	Password  string   `json:"password"`
}

type Client struct {
	base string
	http *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// New returns a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("apiclient: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("apiclient: read %s %s: %w", method, path, err)
	}

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: "response is not an envelope"}
	}
	if !env.Success || resp.StatusCode >= 400 {
		e := &Error{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Message = env.Error.Message
			e.Details = env.Error.Details
			e.RetryAfter = env.Error.RetryAfter
		}
		return e
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: "unexpected data: " + err.Error()}
	}
	return nil
}

func (c *Client) ListConcerts(ctx context.Context) ([]model.ConcertSummary, error) {
	var out struct {
		Concerts []model.ConcertSummary `json:"concerts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/concerts", nil, &out); err != nil {
		return nil, err
	}
	return out.Concerts, nil
}

func (c *Client) Concert(ctx context.Context, id string) (*model.ConcertDetail, error) {
	var out model.ConcertDetail
	if err := c.do(ctx, http.MethodGet, "/api/concerts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Seats returns the seat map of a concert.
func (c *Client) Seats(ctx context.Context, concertID string) ([]model.Seat, error) {
	var out struct {
		Seats []model.Seat `json:"seats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/concerts/"+url.PathEscape(concertID)+"/seats", nil, &out); err != nil {
		return nil, err
	}
	return out.Seats, nil
}

func (c *Client) CheckAvailability(ctx context.Context, concertID string, seatIDs []string) (*Availability, error) {
	body := map[string]any{"concertId": concertID, "seatIds": seatIDs}
	var out Availability
	if err := c.do(ctx, http.MethodPost, "/api/seats/check-availability", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*model.BookingDetail, error) {
	var out model.BookingDetail
	if err := c.do(ctx, http.MethodPost, "/api/bookings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Booking(ctx context.Context, id string) (*model.BookingDetail, error) {
	var out model.BookingDetail
	if err := c.do(ctx, http.MethodGet, "/api/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchBookings looks bookings up by phone and password.  Too many wrong
// passwords yield an *Error with code TOO_MANY_ATTEMPTS and RetryAfter set.
func (c *Client) SearchBookings(ctx context.Context, phone, password string) ([]model.BookingDetail, error) {
	body := map[string]string{"userPhone": phone, "password": password}
	var out struct {
		Bookings []model.BookingDetail `json:"bookings"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/bookings/search", body, &out); err != nil {
		return nil, err
	}
	return out.Bookings, nil
}
