package fare

import (
	"math"
	"testing"
	"time"
)

func TestEstimate(t *testing.T) {
	// Tuesday 14:30, day tariff
	dayTime := time.Date(2025, 3, 11, 14, 30, 0, 0, time.Local)

	// Tuesday 23:15, night tariff
	nightTime := time.Date(2025, 3, 11, 23, 15, 0, 0, time.Local)

	// Sunday noon, night tariff all day
	sundayNoon := time.Date(2025, 3, 9, 12, 0, 0, 0, time.Local)

	// Christmas Eve noon, holiday tariff
	holidayNoon := time.Date(2025, 12, 24, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name      string
		distance  float64
		at        time.Time
		wantTotal float64
		wantNight bool
	}{
		{
			name:     "zero distance daytime is base fare",
			distance: 0,
			at:       dayTime,
			// 4.00 base
			wantTotal: 4.00,
		},
		{
			name:     "short trip within first tier",
			distance: 1.5,
			at:       dayTime,
			// 4.00 + 1.5*3.30 = 8.95 -> 9.00
			wantTotal: 9.00,
		},
		{
			name:     "3.4 km daytime crosses into second tier",
			distance: 3.4,
			at:       dayTime,
			// 4.00 + 2*3.30 + 1.4*2.80 = 14.52 -> 14.50
			wantTotal: 14.50,
		},
		{
			name:     "long trip uses third tier",
			distance: 10,
			at:       dayTime,
			// 4.00 + 6.60 + 5.60 + 6*2.20 = 29.40
			wantTotal: 29.40,
		},
		{
			name:     "night base fare",
			distance: 0,
			at:       nightTime,
			// 5.50 base
			wantTotal: 5.50,
			wantNight: true,
		},
		{
			name:     "night long trip uses higher third tier",
			distance: 10,
			at:       nightTime,
			// 5.50 + 6.60 + 5.60 + 6*2.40 = 32.10
			wantTotal: 32.10,
			wantNight: true,
		},
		{
			name:      "sunday noon is night tariff",
			distance:  0,
			at:        sundayNoon,
			wantTotal: 5.50,
			wantNight: true,
		},
		{
			name:      "holiday noon is night tariff",
			distance:  0,
			at:        holidayNoon,
			wantTotal: 5.50,
			wantNight: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := Estimate(tt.distance, tt.at)
			if !ok {
				t.Fatalf("Estimate(%v) unavailable", tt.distance)
			}
			if math.Abs(q.Total-tt.wantTotal) > 0.001 {
				t.Errorf("Total = %.2f, want %.2f", q.Total, tt.wantTotal)
			}
			if q.Night != tt.wantNight {
				t.Errorf("Night = %v, want %v", q.Night, tt.wantNight)
			}
		})
	}
}

func TestEstimateUnavailable(t *testing.T) {
	at := time.Date(2025, 3, 11, 14, 30, 0, 0, time.Local)

	if _, ok := Estimate(-1, at); ok {
		t.Error("negative distance should not produce a quote")
	}
	if _, ok := Estimate(501, at); ok {
		t.Error("distance above 500 km should not produce a quote")
	}
	if _, ok := Estimate(500, at); !ok {
		t.Error("distance of exactly 500 km should produce a quote")
	}
}

func TestEstimateMonotonic(t *testing.T) {
	at := time.Date(2025, 3, 11, 14, 30, 0, 0, time.Local)

	prev := -1.0
	for km := 0.0; km <= 20; km += 0.5 {
		q, ok := Estimate(km, at)
		if !ok {
			t.Fatalf("Estimate(%v) unavailable", km)
		}
		if q.Total < prev {
			t.Fatalf("fare decreased at %v km: %.2f < %.2f", km, q.Total, prev)
		}
		prev = q.Total
	}
}

func TestNightAtLeastDay(t *testing.T) {
	day := time.Date(2025, 3, 11, 14, 30, 0, 0, time.Local)
	night := time.Date(2025, 3, 11, 23, 15, 0, 0, time.Local)

	for km := 0.0; km <= 20; km += 1.3 {
		dq, _ := Estimate(km, day)
		nq, _ := Estimate(km, night)
		if nq.Total < dq.Total {
			t.Fatalf("night fare below day fare at %v km: %.2f < %.2f", km, nq.Total, dq.Total)
		}
	}
}

func TestSurchargeText(t *testing.T) {
	holiday := time.Date(2025, 12, 25, 23, 0, 0, 0, time.Local)
	q, _ := Estimate(5, holiday)
	if len(q.Surcharges) != 1 || q.Surcharges[0] != "Feiertag (Nachttarif)" {
		t.Errorf("Surcharges = %v, want holiday note only", q.Surcharges)
	}

	sunday := time.Date(2025, 3, 9, 12, 0, 0, 0, time.Local)
	q, _ = Estimate(5, sunday)
	if len(q.Surcharges) != 1 || q.Surcharges[0] != "Sonntag (Nachttarif)" {
		t.Errorf("Surcharges = %v, want sunday note only", q.Surcharges)
	}
}
