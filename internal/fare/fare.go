// Package fare implements the Usedom taxi tariff.
package fare

import (
	"math"
	"time"
)

// Tariff rates in EUR. Night rates apply between 22:00 and 06:00,
// on Sundays, and on public holidays.
const (
	dayBase    = 4.00
	dayKm12    = 3.30
	dayKm34    = 2.80
	dayKmFrom5 = 2.20

	nightBase    = 5.50
	nightKm12    = 3.30
	nightKm34    = 2.80
	nightKmFrom5 = 2.40

	// MaxDistanceKm is the longest route we quote a price for
	MaxDistanceKm = 500.0
)

// holidays as month-day keys, night tariff applies all day
var holidays = map[string]bool{
	"01-01": true,
	"05-01": true,
	"10-03": true,
	"12-24": true,
	"12-25": true,
	"12-26": true,
	"12-31": true,
}

// Quote is a computed fare estimate
type Quote struct {
	Total      float64 // rounded to 0.10 EUR
	Base       float64 // unrounded base + distance price
	DistanceKm float64
	Night      bool
	Surcharges []string // human-readable tariff notes, German
}

// IsHoliday reports whether t falls on a public holiday
func IsHoliday(t time.Time) bool {
	return holidays[t.Format("01-02")]
}

// IsNight reports whether the night tariff applies at t
func IsNight(t time.Time) bool {
	h := t.Hour()
	return h >= 22 || h < 6 || t.Weekday() == time.Sunday || IsHoliday(t)
}

// Estimate computes the fare for a trip of distanceKm starting at the
// given time. The second return value is false when no price can be
// quoted (negative or out-of-range distance).
func Estimate(distanceKm float64, at time.Time) (Quote, bool) {
	if distanceKm < 0 || distanceKm > MaxDistanceKm {
		return Quote{}, false
	}

	night := IsNight(at)

	base := dayBase
	km12 := dayKm12
	km34 := dayKm34
	kmFrom5 := dayKmFrom5
	if night {
		base = nightBase
		km12 = nightKm12
		km34 = nightKm34
		kmFrom5 = nightKmFrom5
	}

	var kmPrice float64
	switch {
	case distanceKm <= 2:
		kmPrice = distanceKm * km12
	case distanceKm <= 4:
		kmPrice = 2*km12 + (distanceKm-2)*km34
	default:
		kmPrice = 2*km12 + 2*km34 + (distanceKm-4)*kmFrom5
	}

	raw := base + kmPrice

	var surcharges []string
	switch {
	case IsHoliday(at):
		surcharges = append(surcharges, "Feiertag (Nachttarif)")
	case at.Weekday() == time.Sunday:
		surcharges = append(surcharges, "Sonntag (Nachttarif)")
	case night:
		surcharges = append(surcharges, "Nachttarif")
	}

	return Quote{
		Total:      math.Round(raw/0.1) * 0.1,
		Base:       raw,
		DistanceKm: distanceKm,
		Night:      night,
		Surcharges: surcharges,
	}, true
}
