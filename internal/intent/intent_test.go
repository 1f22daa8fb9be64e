package intent

import "testing"

func TestIsStatusQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Habe ich schon eine Fahrt gebucht?", true},
		{"Wann ist meine Fahrt?", true},
		{"Zeig mir meine Buchungen", true},
		{"Welche Fahrten habe ich?", true},
		{"Zu wann war das nochmal?", true},
		{"Ich brauche ein Taxi nach Ahlbeck", false},
		{"Hallo", false},
	}

	for _, tt := range tests {
		if got := IsStatusQuery(tt.text); got != tt.want {
			t.Errorf("IsStatusQuery(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsDeleteQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"stornieren", true},
		{"Löschen", true},
		{"Bitte die Buchung löschen", true},
		{"Storno der Fahrt von morgen", true},
		{"Termin bitte absagen", true},
		{"Ich brauche ein Taxi", false},
		{"Fahrt nach Bansin", false},
	}

	for _, tt := range tests {
		if got := IsDeleteQuery(tt.text); got != tt.want {
			t.Errorf("IsDeleteQuery(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsModifyQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"ändern", true},
		{"umbuchen", true},
		{"Die Uhrzeit bitte verschieben", true},
		{"Neue Uhrzeit für die Buchung", true},
		{"Taxi für morgen früh", false},
	}

	for _, tt := range tests {
		if got := IsModifyQuery(tt.text); got != tt.want {
			t.Errorf("IsModifyQuery(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestClassificationPrecedence(t *testing.T) {
	// A message matching both status and delete patterns must be
	// treated as a status query first; the listing offers delete
	// buttons anyway.
	text := "Meine Buchung stornieren"
	if !IsStatusQuery(text) {
		t.Fatal("expected status match")
	}
	if !IsDeleteQuery(text) {
		t.Fatal("expected delete match")
	}
}

func TestIsObviousBooking(t *testing.T) {
	if !IsObviousBooking("Ich brauche ein Taxi") {
		t.Error("taxi keyword should match")
	}
	if !IsObviousBooking("Können Sie mich abholen?") {
		t.Error("abholen keyword should match")
	}
	if IsObviousBooking("Guten Tag") {
		t.Error("greeting should not match")
	}
}
