// Package ticket renders the QR code shown at the venue gate.
//
// The code carries only public identifiers.  The gate resolves the booking
// through GET /api/bookings/:id, so nothing personal is embedded.
package ticket

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// Standard sizes in pixels.
const (
	SizeSmall    = 150
	SizeStandard = 300
	SizeLarge    = 500
)

// payloadVersion prefixes every payload so scanners can reject foreign codes.
const payloadVersion = "CSB1"

// Payload is the text encoded for a booking:
// CSB1|<booking id>|<concert id>|<seat labels comma separated>.
func Payload(d model.BookingDetail) string {
	labels := make([]string, len(d.Seats))
	for i, s := range d.Seats {
		labels[i] = s.Formatted
		if labels[i] == "" {
			labels[i] = model.SeatLabel(s.Section, s.Row, s.Number)
		}
	}
	return strings.Join([]string{payloadVersion, d.BookingID, d.ConcertID, strings.Join(labels, ",")}, "|")
}

// PNG encodes the booking payload as a PNG with medium error correction.
// Sizes outside [SizeSmall, SizeLarge] fall back to SizeStandard.
func PNG(d model.BookingDetail, size int) ([]byte, error) {
	if size < SizeSmall || size > SizeLarge {
		size = SizeStandard
	}
	qr, err := qrcode.New(Payload(d), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("ticket: build qr: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("ticket: encode png: %w", err)
	}
	return png, nil
}
