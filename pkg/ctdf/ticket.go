package ctdf

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

const (
	TicketCodeMin = 10000
	TicketCodeMax = 99999
)

var ticketCodePattern = regexp.MustCompile(`^\d{5}$`)

type Ticket struct {
	Code string `groups:"basic"`

	PassengerID string `groups:"detailed"`
	VehicleID   string `groups:"basic"`

	PickupStop string `groups:"basic"`
	DropStop   string `groups:"basic"`

	IssuedAt time.Time `groups:"basic"`
}

func ValidateTicketCode(code string) error {
	if !ticketCodePattern.MatchString(code) {
		return NewValidationError(fmt.Sprintf("ticket code %q must be exactly 5 digits", code))
	}

	return nil
}

type ticketQRPayload struct {
	BusCode   string `json:"busCode"`
	User      string `json:"user"`
	BusNumber string `json:"busNumber"`
	Pickup    string `json:"pickup"`
	Drop      string `json:"drop"`
	Timestamp string `json:"ts"`
}

// QRPayload is the JSON document encoded into the boarding QR code
func (t *Ticket) QRPayload(passengerName string) string {
	busNumber := t.VehicleID
	if busNumber == "" {
		busNumber = UnknownDimension
	}

	payload, _ := json.Marshal(ticketQRPayload{
		BusCode:   t.Code,
		User:      passengerName,
		BusNumber: busNumber,
		Pickup:    t.PickupStop,
		Drop:      t.DropStop,
		Timestamp: t.IssuedAt.UTC().Format(time.RFC3339),
	})

	return string(payload)
}

// RecordID identifies the booking, a code is only unique on its vehicle while it is live
func (t *Ticket) RecordID() string {
	return fmt.Sprintf("%s/%s/%d", t.VehicleID, t.Code, t.IssuedAt.UnixMilli())
}

func (t *Ticket) Event() Event {
	return Event{
		Type:         EventTypeBooking,
		DimensionKey: t.VehicleID,
		OccurredAt:   t.IssuedAt,
		RecordID:     t.RecordID(),
		Fields: map[string]string{
			"code":      t.Code,
			"passenger": t.PassengerID,
			"pickup":    t.PickupStop,
			"drop":      t.DropStop,
		},
	}
}
