package ai

import (
	"strings"
	"testing"
	"time"
)

func fixedExtractor() *GeminiExtractor {
	return &GeminiExtractor{
		now: func() time.Time {
			return time.Date(2025, 3, 13, 9, 30, 0, 0, time.Local)
		},
	}
}

func TestAnalyzePromptDates(t *testing.T) {
	g := fixedExtractor()
	prompt := g.analyzePrompt(AnalyzeRequest{Text: "Taxi morgen 10 Uhr", UserName: "Max", PhoneRequired: true})

	if !strings.Contains(prompt, "Heute: 2025-03-13 (Donnerstag), Uhrzeit: 09:30 Uhr") {
		t.Error("prompt missing current date line")
	}
	if !strings.Contains(prompt, "2025-03-14T10:00") {
		t.Error("prompt missing tomorrow example")
	}
	if !strings.Contains(prompt, "Pflicht: datetime, pickup, destination, phone") {
		t.Error("prompt should require phone for unknown callers")
	}
}

func TestAnalyzePromptKnownCustomer(t *testing.T) {
	g := fixedExtractor()
	prompt := g.analyzePrompt(AnalyzeRequest{
		Text:        "Taxi bitte",
		KnownName:   "Hans Müller",
		KnownPhone:  "+491712345678",
		HomeAddress: "Strandstraße 12, Heringsdorf",
	})

	if !strings.Contains(prompt, "BEKANNTER KUNDE: Hans Müller | Tel: +491712345678") {
		t.Error("prompt missing known customer line")
	}
	if !strings.Contains(prompt, "HEIMADRESSE:") {
		t.Error("prompt missing home address hint")
	}
	if !strings.Contains(prompt, "phone ist gespeichert") {
		t.Error("prompt should not require a stored phone again")
	}
}

func TestAnalyzePromptOperatorMode(t *testing.T) {
	g := fixedExtractor()
	prompt := g.analyzePrompt(AnalyzeRequest{Text: "Taxi für Müller", Operator: true})

	if !strings.Contains(prompt, "DISPONENTEN-MODUS") {
		t.Error("prompt missing dispatcher section")
	}
	if !strings.Contains(prompt, `"name": "Admin"`) {
		t.Error("operator bookings default the name to Admin")
	}
}

func TestFollowUpPromptState(t *testing.T) {
	g := fixedExtractor()
	prompt := g.followUpPrompt(FollowUpRequest{
		Text:         "Um 14 Uhr bitte",
		UserName:     "Max",
		Pickup:       "Strandstraße 12",
		Destination:  "Bahnhof Heringsdorf",
		Missing:      []string{"datetime"},
		LastQuestion: "Für wann soll ich das Taxi bestellen?",
	})

	if !strings.Contains(prompt, "• datetime:    — fehlt") {
		t.Error("prompt should mark datetime as missing")
	}
	if !strings.Contains(prompt, "NOCH FEHLEND: datetime") {
		t.Error("prompt missing the missing-fields line")
	}
	if !strings.Contains(prompt, `"pickup": "Strandstraße 12"`) {
		t.Error("prompt should carry existing pickup into the JSON template")
	}
	if !strings.Contains(prompt, `erste fehlende Feld ("datetime")`) {
		t.Error("prompt should name the first missing field")
	}
}

func TestCleanJSONString(t *testing.T) {
	in := "```json\n{\"intent\":\"buchung\"}\n```"
	if got := cleanJSONString(in); got != `{"intent":"buchung"}` {
		t.Errorf("cleanJSONString = %q", got)
	}
	plain := `{"a":1}`
	if got := cleanJSONString(plain); got != plain {
		t.Errorf("cleanJSONString(%q) = %q", plain, got)
	}
}
