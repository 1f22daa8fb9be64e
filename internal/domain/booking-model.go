package domain

import (
	"time"
)

// Ride statuses and sources
const (
	RideStatusOpen      = "open"
	RideStatusPreBooked = "vorbestellt"
	RideStatusDeleted   = "deleted"
	RideSourceTelegram  = "telegram-bot"
	RideSourceAdmin     = "telegram-admin"
)

// Booking fields filled by the extraction service. A booking is ready
// for confirmation once datetime, pickup and destination are known.
const (
	FieldDatetime    = "datetime"
	FieldPickup      = "pickup"
	FieldDestination = "destination"
	FieldPhone       = "phone"
)

// Intents returned by the extraction service
const (
	IntentBooking = "buchung"
	IntentOther   = "sonstiges"
)

// PickupTimeLayout is the wire format for pickup times ("2025-03-14T08:00")
const PickupTimeLayout = "2006-01-02T15:04"

// Booking holds the fields collected during a conversation
type Booking struct {
	Intent      string `json:"intent,omitempty"`
	Datetime    string `json:"datetime,omitempty"` // "2006-01-02T15:04", local time
	Pickup      string `json:"pickup,omitempty"`
	Destination string `json:"destination,omitempty"`
	Passengers  int    `json:"passengers,omitempty"`
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
	ForCustomer string `json:"forCustomer,omitempty"`

	Missing  []string `json:"missing,omitempty"`
	Question string   `json:"question,omitempty"`
	Summary  string   `json:"summary,omitempty"`

	PickupLat float64 `json:"pickupLat,omitempty"`
	PickupLon float64 `json:"pickupLon,omitempty"`
	DestLat   float64 `json:"destLat,omitempty"`
	DestLon   float64 `json:"destLon,omitempty"`

	// Operator bookkeeping, never shown to the passenger
	AdminBooked        bool   `json:"adminBooked,omitempty"`
	AdminChatID        int64  `json:"adminChatId,omitempty"`
	ForCustomerName    string `json:"forCustomerName,omitempty"`
	CustomerAddress    string `json:"customerAddress,omitempty"`
	CRMCustomerID      string `json:"crmCustomerId,omitempty"`
	PassengersExplicit bool   `json:"passengersExplicit,omitempty"`
}

// PickupTime parses the booking's datetime in the given location.
// Returns the zero time if the field is absent or malformed.
func (b *Booking) PickupTime(loc *time.Location) time.Time {
	if b.Datetime == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(PickupTimeLayout, b.Datetime, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasMissing reports whether a field is still listed as missing
func (b *Booking) HasMissing(field string) bool {
	for _, f := range b.Missing {
		if f == field {
			return true
		}
	}
	return false
}

// DropMissing removes a field from the missing list
func (b *Booking) DropMissing(field string) {
	out := b.Missing[:0]
	for _, f := range b.Missing {
		if f != field {
			out = append(out, f)
		}
	}
	b.Missing = out
}

// HasCoords reports whether both endpoints are geocoded
func (b *Booking) HasCoords() bool {
	return b.PickupLat != 0 && b.DestLat != 0
}

// Place is a resolved location with display name and coordinates
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// RouteEstimate is a driving route summary between two places
type RouteEstimate struct {
	DistanceKm float64 `json:"distance_km"` // rounded to one decimal
	Minutes    int     `json:"minutes"`
}

// RoutePrice is a route estimate with the computed fare attached
type RoutePrice struct {
	DistanceKm float64  `json:"distanceKm"`
	Minutes    int      `json:"minutes"`
	Price      float64  `json:"price"`
	Surcharges []string `json:"surcharges,omitempty"`
}

// CustomerRef is a directory match snapshot carried through the
// confirmation keyboards.
type CustomerRef struct {
	CustomerID    string `json:"customerId,omitempty"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	DefaultPickup string `json:"defaultPickup,omitempty"`
}

// Pending is the per-chat conversation state. Partial holds a booking
// still being collected; Booking is set once it reaches the
// confirmation keyboard and BookingID is assigned.
type Pending struct {
	Partial    *Booking    `json:"partial,omitempty"`
	Booking    *Booking    `json:"booking,omitempty"`
	BookingID  string      `json:"bookingId,omitempty"`
	RoutePrice *RoutePrice `json:"routePrice,omitempty"`
	CreatedAt  int64       `json:"createdAt"` // unix ms

	OriginalText string `json:"originalText,omitempty"`
	UserName     string `json:"userName,omitempty"`
	LastQuestion string `json:"lastQuestion,omitempty"`
	SearchName   string `json:"searchName,omitempty"`

	// Operator choice: original message parked while the operator
	// decides whether the ride is for a customer or for themselves
	TaxiChoice *TaxiChoice `json:"taxiChoice,omitempty"`

	AwaitingCustomerName    bool `json:"awaitingCustomerName,omitempty"`
	AwaitingPassengers      bool `json:"awaitingPassengers,omitempty"`
	AwaitingAdminCrmConfirm bool `json:"awaitingAdminCrmConfirm,omitempty"`
	PendingDestValidation   bool `json:"pendingDestValidation,omitempty"`
	PrevalidatedSlot        bool `json:"prevalidatedSlot,omitempty"`

	// Customer directory confirmation flows
	CrmConfirm     *CrmConfirm     `json:"crmConfirm,omitempty"`
	CrmMultiSelect *CrmMultiSelect `json:"crmMultiSelect,omitempty"`

	// Address disambiguation candidates, indexed by callback data
	NominatimResults []Place `json:"nominatimResults,omitempty"`
}

// ActiveBooking returns whichever booking the pending state carries
func (p *Pending) ActiveBooking() *Booking {
	if p.Booking != nil {
		return p.Booking
	}
	return p.Partial
}

// Expired reports whether the pending state is older than ttl
func (p *Pending) Expired(ttl time.Duration, now time.Time) bool {
	if p.CreatedAt == 0 {
		return false
	}
	created := time.UnixMilli(p.CreatedAt)
	return now.Sub(created) > ttl
}

// TaxiChoice parks an operator's original message until they pick who
// the ride is for
type TaxiChoice struct {
	Text     string `json:"text"`
	UserName string `json:"userName"`
}

// CrmConfirm carries a single directory match awaiting yes/no
type CrmConfirm struct {
	Found     CustomerRef `json:"found"`
	ConfirmID string      `json:"confirmId"`
}

// CrmMultiSelect carries several directory matches awaiting a pick
type CrmMultiSelect struct {
	Matches   []CustomerRef `json:"matches"`
	ConfirmID string        `json:"confirmId"`
}

// CRMDraft is the state of a "save this customer?" offer made after a
// booking for an unknown person. Stored separately from Pending so the
// offer survives the booking conversation ending.
type CRMDraft struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	PickupAddress string `json:"pickupAddress,omitempty"`
	RideID        string `json:"rideId,omitempty"`
	CreatedAt     int64  `json:"createdAt"` // unix ms
}
