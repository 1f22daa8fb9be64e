package flow

import (
	"testing"
	"time"

	"funktaxi/internal/domain"
)

func TestClampYear(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)

	tests := []struct {
		in   string
		want string
	}{
		{"2025-06-02T10:00", "2025-06-02T10:00"},
		{"2026-01-05T08:00", "2026-01-05T08:00"},
		{"2024-06-02T10:00", "2025-06-02T10:00"},
		{"2031-06-02T10:00", "2025-06-02T10:00"},
		{"", ""},
		{"abc", "abc"},
	}

	for _, tt := range tests {
		if got := ClampYear(tt.in, now); got != tt.want {
			t.Errorf("ClampYear(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSyncMissing(t *testing.T) {
	b := &domain.Booking{Pickup: "Bahnhof Heringsdorf"}
	SyncMissing(b)

	if b.HasMissing(domain.FieldPickup) {
		t.Error("pickup present but still listed missing")
	}
	if !b.HasMissing(domain.FieldDestination) {
		t.Error("destination absent but not listed missing")
	}
	if !b.HasMissing(domain.FieldDatetime) {
		t.Error("datetime absent but not listed missing")
	}

	// Stale missing entries for filled fields get dropped
	b2 := &domain.Booking{
		Pickup:      "Bahnhof",
		Destination: "Ahlbeck",
		Datetime:    "2025-06-02T10:00",
		Missing:     []string{domain.FieldPickup, domain.FieldDatetime},
	}
	SyncMissing(b2)
	if len(b2.Missing) != 0 {
		t.Errorf("Missing = %v, want empty", b2.Missing)
	}
}

func TestMergeFollowUpCarriesOperatorState(t *testing.T) {
	prev := &domain.Booking{
		AdminBooked:     true,
		AdminChatID:     42,
		ForCustomerName: "Hans Müller",
		CustomerAddress: "Strandstraße 12",
		CRMCustomerID:   "c1",
	}
	b := &domain.Booking{Missing: []string{domain.FieldPhone, domain.FieldDatetime}}
	MergeFollowUp(b, prev, 99)

	if !b.AdminBooked || b.AdminChatID != 42 {
		t.Errorf("operator flags not carried: %+v", b)
	}
	if b.ForCustomerName != "Hans Müller" || b.CRMCustomerID != "c1" {
		t.Errorf("customer linkage not carried: %+v", b)
	}
	if b.HasMissing(domain.FieldPhone) {
		t.Error("phone must not stay missing on operator bookings")
	}
	if !b.HasMissing(domain.FieldDatetime) {
		t.Error("unrelated missing entries must survive")
	}
}

func TestMergeFollowUpNonOperator(t *testing.T) {
	b := &domain.Booking{Missing: []string{domain.FieldPhone}}
	MergeFollowUp(b, &domain.Booking{}, 99)

	if b.AdminBooked {
		t.Error("non-operator previous state must not mark the booking")
	}
	if !b.HasMissing(domain.FieldPhone) {
		t.Error("phone stays required for passengers")
	}
}

func TestApplyCustomerFillsHomePlaceholders(t *testing.T) {
	c := domain.CustomerRef{
		CustomerID:    "c1",
		Name:          "Hans Müller",
		Phone:         "+491712345678",
		Address:       "Strandstraße 12, Heringsdorf",
		DefaultPickup: "Dünenweg 3",
	}

	b := &domain.Booking{
		Pickup:      "zu Hause",
		Destination: "nach Hause",
		Missing:     []string{domain.FieldPhone},
	}
	ApplyCustomer(b, c, 42)

	if b.Pickup != "Dünenweg 3" {
		t.Errorf("Pickup = %q, want default pickup", b.Pickup)
	}
	if b.Destination != "Strandstraße 12, Heringsdorf" {
		t.Errorf("Destination = %q, want home address", b.Destination)
	}
	if b.Phone != "+491712345678" || b.HasMissing(domain.FieldPhone) {
		t.Errorf("phone not applied: %+v", b)
	}
	if !b.AdminBooked || b.CRMCustomerID != "c1" {
		t.Errorf("operator linkage missing: %+v", b)
	}
}

func TestApplyCustomerKeepsExplicitAddresses(t *testing.T) {
	c := domain.CustomerRef{Name: "Hans Müller", Address: "Strandstraße 12"}
	b := &domain.Booking{Pickup: "Bahnhof Heringsdorf", Destination: "Ahlbeck"}
	ApplyCustomer(b, c, 42)

	if b.Pickup != "Bahnhof Heringsdorf" || b.Destination != "Ahlbeck" {
		t.Errorf("explicit addresses overwritten: %+v", b)
	}
}

func TestClearField(t *testing.T) {
	b := &domain.Booking{
		Datetime:    "2025-06-02T10:00",
		Pickup:      "Bahnhof",
		PickupLat:   53.95,
		PickupLon:   14.16,
		Destination: "Ahlbeck",
	}
	ClearField(b, domain.FieldPickup)

	if b.Pickup != "" || b.PickupLat != 0 || b.PickupLon != 0 {
		t.Errorf("pickup not cleared: %+v", b)
	}
	if len(b.Missing) != 1 || b.Missing[0] != domain.FieldPickup {
		t.Errorf("Missing = %v, want [pickup]", b.Missing)
	}
	if b.Datetime == "" || b.Destination == "" {
		t.Error("other fields must survive")
	}
}

func TestShiftToSlot(t *testing.T) {
	b := &domain.Booking{Datetime: "2025-06-02T10:00"}
	ShiftToSlot(b, 9, 30, time.Local)

	if b.Datetime != "2025-06-02T09:30" {
		t.Errorf("Datetime = %q, want same day 09:30", b.Datetime)
	}
}

func TestIsHomePlaceholders(t *testing.T) {
	for _, v := range []string{"zu Hause", "zuhause", "von zu Hause", " von zuhause "} {
		if !IsHomePickup(v) {
			t.Errorf("IsHomePickup(%q) = false", v)
		}
	}
	if IsHomePickup("Strandstraße 12") {
		t.Error("real address flagged as home placeholder")
	}
	if !IsHomeDestination("nach Hause") {
		t.Error("IsHomeDestination(nach Hause) = false")
	}
}

func TestIsSkipCRM(t *testing.T) {
	for _, v := range []string{"neu", "NEW", "skip", "ohne"} {
		if !IsSkipCRM(v) {
			t.Errorf("IsSkipCRM(%q) = false", v)
		}
	}
	if IsSkipCRM("Hans Müller") {
		t.Error("customer name flagged as skip word")
	}
}

func TestNeedsPassengerPrompt(t *testing.T) {
	if !NeedsPassengerPrompt(&domain.Booking{Passengers: 1}) {
		t.Error("single implicit passenger should prompt")
	}
	if NeedsPassengerPrompt(&domain.Booking{Passengers: 3}) {
		t.Error("explicit group size should not prompt")
	}
	if NeedsPassengerPrompt(&domain.Booking{Passengers: 1, PassengersExplicit: true}) {
		t.Error("explicit single passenger should not prompt")
	}
}

func TestIsPreBooking(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	window := 30 * time.Minute

	if IsPreBooking(now.Add(20*time.Minute), now, window) {
		t.Error("20 minutes out is an immediate ride")
	}
	if !IsPreBooking(now.Add(45*time.Minute), now, window) {
		t.Error("45 minutes out is a pre-order")
	}
}

func TestPendingExpiry(t *testing.T) {
	now := time.Now()
	p := &domain.Pending{CreatedAt: now.Add(-31 * time.Minute).UnixMilli()}
	if !p.Expired(30*time.Minute, now) {
		t.Error("31 minute old state should be expired")
	}
	fresh := &domain.Pending{CreatedAt: now.Add(-10 * time.Minute).UnixMilli()}
	if fresh.Expired(30*time.Minute, now) {
		t.Error("10 minute old state should not be expired")
	}
	legacy := &domain.Pending{}
	if legacy.Expired(30*time.Minute, now) {
		t.Error("state without timestamp never expires")
	}
}
