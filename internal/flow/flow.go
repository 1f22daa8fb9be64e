// Package flow contains the pure state transitions of the booking
// conversation. Everything here is side-effect free so the dialogue
// logic can be tested without Telegram, redis, or the extractor.
package flow

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"funktaxi/internal/ai"
	"funktaxi/internal/domain"
)

var homePickup = regexp.MustCompile(`(?i)^(zu hause|zuhause|von zu hause|von zuhause)$`)
var homeDest = regexp.MustCompile(`(?i)^(zu hause|zuhause|nach hause)$`)

// IsHomePickup reports whether a pickup value is a "from home" placeholder
func IsHomePickup(v string) bool {
	return homePickup.MatchString(strings.TrimSpace(v))
}

// IsHomeDestination reports whether a destination is a "home" placeholder
func IsHomeDestination(v string) bool {
	return homeDest.MatchString(strings.TrimSpace(v))
}

// skipCRMWords let an operator bypass the directory lookup
var skipCRMWords = regexp.MustCompile(`(?i)^(neu|new|skip|ohne)$`)

// IsSkipCRM reports whether an operator declined the directory lookup
func IsSkipCRM(text string) bool {
	return skipCRMWords.MatchString(strings.TrimSpace(text))
}

// FromExtract converts an extraction result into a booking
func FromExtract(e *ai.Extract) *domain.Booking {
	return &domain.Booking{
		Intent:      e.Intent,
		Datetime:    e.Datetime,
		Pickup:      e.Pickup,
		Destination: e.Destination,
		Passengers:  e.Passengers,
		Name:        e.Name,
		Phone:       e.Phone,
		Notes:       sanitizeNotes(e.Notes),
		ForCustomer: e.ForCustomer,
		Missing:     e.Missing,
		Question:    e.Question,
		Summary:     e.Summary,
	}
}

func sanitizeNotes(notes string) string {
	if notes == "null" {
		return ""
	}
	return notes
}

// ClampYear corrects extraction results that land in the wrong year.
// Anything outside the current or next year is pulled back to the
// current one.
func ClampYear(datetime string, now time.Time) string {
	if len(datetime) < 4 {
		return datetime
	}
	year, err := strconv.Atoi(datetime[:4])
	if err != nil {
		return datetime
	}
	current := now.Year()
	if year < current || year > current+1 {
		return strconv.Itoa(current) + datetime[4:]
	}
	return datetime
}

// SyncMissing makes the missing list consistent with the fields
// actually present. The extractor sometimes forgets entries.
func SyncMissing(b *domain.Booking) {
	if b.Pickup == "" && !b.HasMissing(domain.FieldPickup) {
		b.Missing = append(b.Missing, domain.FieldPickup)
	}
	if b.Destination == "" && !b.HasMissing(domain.FieldDestination) {
		b.Missing = append(b.Missing, domain.FieldDestination)
	}
	if b.Datetime == "" && !b.HasMissing(domain.FieldDatetime) {
		b.Missing = append(b.Missing, domain.FieldDatetime)
	}
	if b.Pickup != "" {
		b.DropMissing(domain.FieldPickup)
	}
	if b.Destination != "" {
		b.DropMissing(domain.FieldDestination)
	}
	if b.Datetime != "" {
		b.DropMissing(domain.FieldDatetime)
	}
}

// MergeFollowUp carries operator bookkeeping from the previous partial
// into the freshly extracted booking.
func MergeFollowUp(b, prev *domain.Booking, chatID int64) {
	if prev == nil || !prev.AdminBooked {
		return
	}
	b.AdminBooked = true
	b.AdminChatID = prev.AdminChatID
	if b.AdminChatID == 0 {
		b.AdminChatID = chatID
	}
	if b.ForCustomerName == "" {
		b.ForCustomerName = b.ForCustomer
	}
	if b.ForCustomerName == "" {
		b.ForCustomerName = prev.ForCustomerName
	}
	b.CustomerAddress = prev.CustomerAddress
	b.CRMCustomerID = prev.CRMCustomerID
	// Operators never provide the caller's phone
	b.DropMissing(domain.FieldPhone)
}

// ApplyCustomer fills a booking from a confirmed directory match:
// name and phone come from the directory, home placeholders resolve to
// the stored addresses.
func ApplyCustomer(b *domain.Booking, c domain.CustomerRef, chatID int64) {
	b.Name = c.Name
	if c.Phone != "" {
		b.Phone = c.Phone
		b.DropMissing(domain.FieldPhone)
	}
	b.CustomerAddress = c.Address
	b.ForCustomerName = c.Name
	b.CRMCustomerID = c.CustomerID
	b.AdminBooked = true
	b.AdminChatID = chatID

	pickupDefault := c.DefaultPickup
	if pickupDefault == "" {
		pickupDefault = c.Address
	}
	if pickupDefault != "" {
		if b.Pickup == "" || IsHomePickup(b.Pickup) {
			b.Pickup = pickupDefault
			b.DropMissing(domain.FieldPickup)
		}
		if c.Address != "" && IsHomeDestination(b.Destination) {
			b.Destination = c.Address
			b.DropMissing(domain.FieldDestination)
		}
	}
}

// ClearField resets one booking field so the conversation re-collects it
func ClearField(b *domain.Booking, field string) {
	switch field {
	case domain.FieldDatetime:
		b.Datetime = ""
	case domain.FieldPickup:
		b.Pickup = ""
		b.PickupLat = 0
		b.PickupLon = 0
	case domain.FieldDestination:
		b.Destination = ""
		b.DestLat = 0
		b.DestLon = 0
	}
	b.Missing = []string{field}
	b.Question = ""
}

// ShiftToSlot moves the booking's pickup time to the given clock time
// on the same day.
func ShiftToSlot(b *domain.Booking, hour, minute int, loc *time.Location) bool {
	base := b.PickupTime(loc)
	if base.IsZero() {
		base = time.Now().In(loc)
	}
	shifted := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, loc)
	b.Datetime = shifted.Format(domain.PickupTimeLayout)
	return true
}

// SlotOffsets are the alternative pickup times offered next to the
// confirm button, in minutes relative to the requested time.
var SlotOffsets = []int{-60, -30, 30, 60}

// NeedsPassengerPrompt reports whether the passenger-count keyboard
// must be shown before confirmation.
func NeedsPassengerPrompt(b *domain.Booking) bool {
	return !b.PassengersExplicit && b.Passengers <= 1
}

// IsPreBooking reports whether a pickup time is far enough out to be
// stored as a pre-order rather than an immediate ride.
func IsPreBooking(pickup, now time.Time, preBookWindow time.Duration) bool {
	return pickup.Sub(now) > preBookWindow
}

// FallbackQuestion is asked when the extractor did not supply one
func FallbackQuestion(field string) string {
	switch field {
	case domain.FieldDatetime:
		return "Für wann soll ich das Taxi bestellen? Bitte mit Datum und Uhrzeit."
	case domain.FieldPickup:
		return "Von welcher Adresse holen wir ab?"
	case domain.FieldDestination:
		return "Wohin geht die Fahrt?"
	case domain.FieldPhone:
		return "Welche Telefonnummer hat der Kunde?"
	default:
		return "Können Sie mir noch mehr Details geben?"
	}
}
