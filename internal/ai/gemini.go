package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var germanDayNames = []string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}

// GeminiExtractor implements Extractor using Google's Gemini models.
type GeminiExtractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
	now    func() time.Time
}

// NewGeminiExtractor initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiExtractor(ctx context.Context, apiKey, modelName string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	return &GeminiExtractor{
		client: client,
		model:  model,
		now:    time.Now,
	}, nil
}

// Close cleans up the Gemini client resources.
func (g *GeminiExtractor) Close() {
	g.client.Close()
}

func (g *GeminiExtractor) generate(ctx context.Context, prompt string) (*Extract, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	cleanJSON := cleanJSONString(responseText.String())

	var result Extract
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleanJSON)
	}
	return &result, nil
}

// Analyze extracts booking fields from a fresh passenger message.
func (g *GeminiExtractor) Analyze(ctx context.Context, req AnalyzeRequest) (*Extract, error) {
	return g.generate(ctx, g.analyzePrompt(req))
}

// FollowUp merges a reply into an ongoing booking conversation.
func (g *GeminiExtractor) FollowUp(ctx context.Context, req FollowUpRequest) (*Extract, error) {
	return g.generate(ctx, g.followUpPrompt(req))
}

func (g *GeminiExtractor) analyzePrompt(req AnalyzeRequest) string {
	now := g.now()
	today := now.Format("2006-01-02")
	tomorrow := now.Add(24 * time.Hour).Format("2006-01-02")
	dayName := germanDayNames[now.Weekday()]
	timeStr := now.Format("15:04")

	var b strings.Builder
	b.WriteString(`Du bist die Telefonzentrale von "Funk Taxi Heringsdorf" auf Usedom.
Ein Fahrgast schreibt per Telegram. Deine Aufgabe: Buchungsdaten extrahieren und fehlende Infos freundlich erfragen.

`)
	fmt.Fprintf(&b, "FAHRGAST-NACHRICHT: %q\n", req.Text)
	if req.KnownName != "" {
		fmt.Fprintf(&b, "BEKANNTER KUNDE: %s", req.KnownName)
		if req.KnownPhone != "" {
			fmt.Fprintf(&b, " | Tel: %s", req.KnownPhone)
		}
		b.WriteString("\n")
	}
	if req.HomeAddress != "" {
		fmt.Fprintf(&b, "HEIMADRESSE: %q → bei \"zu Hause\" / \"von zu Hause\" verwenden\n", req.HomeAddress)
	}

	b.WriteString(`
━━━ SCHRITT 1: INTENT ━━━
Ist das eine Taxi-Buchung (oder könnte es eine sein)?
→ JA (intent="buchung"): "Taxi", "Fahrt", "abholen", "ich brauche...", konkrete Fahrtangaben, jede Buchungsabsicht
→ NEIN (intent="sonstiges"): Nur Grüße, Profiländerungen, Abmeldungen, reines Feedback ohne Fahrtbezug
REGEL: Im Zweifel IMMER intent="buchung". Lieber zu großzügig als zu eng.

━━━ SCHRITT 2: DATEN EXTRAHIEREN ━━━
`)
	fmt.Fprintf(&b, "Heute: %s (%s), Uhrzeit: %s Uhr\n", today, dayName, timeStr)
	fmt.Fprintf(&b, `
DATUM + UHRZEIT → ISO-Format YYYY-MM-DDTHH:MM:
• "morgen 10 Uhr" → %sT10:00
• "heute 18 Uhr" → %sT18:00
• "Freitag 14:30" → [nächster Freitag]T14:30
• Nur Uhrzeit ohne Datum → Datum = heute
• Nur Datum ohne Uhrzeit → datetime = null, "datetime" in missing
• NIEMALS 00:00 verwenden!

ADRESSEN:
• Straße + Hausnummer immer vollständig übernehmen
• Bekannte Ziele: "Bahnhof Heringsdorf", "Flughafen Heringsdorf (HDF)", "Seebrücke Heringsdorf"
• Unklare Orte (z.B. nur "Bahnhof", "Kirche", "Hotel") → kurz nachfragen
• "zu Hause" / "nach Hause" ohne bekannte Heimadresse → null, in missing, nach Straße fragen

TELEFON: 0157... → +49157... | bereits bekannte Nummer nicht erneut fragen

━━━ SCHRITT 3: FEHLENDE PFLICHTFELDER ━━━
`, tomorrow, today)
	if req.PhoneRequired {
		b.WriteString("Pflicht: datetime, pickup, destination, phone\n")
		b.WriteString("Optional (NICHT in missing): passengers (default 1), notes\n")
	} else {
		b.WriteString("Pflicht: datetime, pickup, destination\n")
		b.WriteString("Optional (NICHT in missing): passengers (default 1), notes | phone ist gespeichert – nicht fragen\n")
	}

	b.WriteString(`
━━━ SCHRITT 4: RÜCKFRAGE FORMULIEREN ━━━
Wenn Felder fehlen → "question" = EINE einzige, kurze, natürliche Frage
• Reihenfolge: erst datetime, dann pickup, dann destination, dann phone
• Wenn alles vollständig: question = null
`)
	if req.Operator {
		b.WriteString(`
━━━ DISPONENTEN-MODUS ━━━
Du buchst für einen Kunden (nicht für den Disponenten selbst):
• Kundenname → forCustomer
• Kein Name genannt → forCustomer: null
`)
	}

	name := req.KnownName
	if name == "" {
		if req.Operator {
			name = "Admin"
		} else {
			name = req.UserName
		}
	}
	phone := "null"
	if req.KnownPhone != "" {
		phone = fmt.Sprintf("%q", req.KnownPhone)
	}

	fmt.Fprintf(&b, `
━━━ ANTWORT ━━━
Nur gültiges JSON, kein Markdown:
{
  "intent": "buchung",
  "datetime": null,
  "pickup": null,
  "destination": null,
  "passengers": 1,
  "name": %q,
  "phone": %s,
  "notes": null,
  "missing": [],
  "question": null,
  "summary": "Kurze Zusammenfassung"
}`, name, phone)

	return b.String()
}

func (g *GeminiExtractor) followUpPrompt(req FollowUpRequest) string {
	now := g.now()
	today := now.Format("2006-01-02")
	tomorrow := now.Add(24 * time.Hour).Format("2006-01-02")

	orMissing := func(v string) string {
		if v == "" {
			return "— fehlt"
		}
		return v
	}
	pax := req.Passengers
	if pax <= 0 {
		pax = 1
	}
	name := req.Name
	if name == "" {
		name = req.UserName
	}

	var b strings.Builder
	b.WriteString("Du ergänzt eine laufende Taxi-Buchung um die neue Antwort des Fahrgasts.\n\n")
	b.WriteString("BISHERIGE BUCHUNGSDATEN (unveränderlich, außer Fahrgast korrigiert explizit):\n")
	fmt.Fprintf(&b, "• datetime:    %s\n", orMissing(req.Datetime))
	fmt.Fprintf(&b, "• pickup:      %s\n", orMissing(req.Pickup))
	fmt.Fprintf(&b, "• destination: %s\n", orMissing(req.Destination))
	fmt.Fprintf(&b, "• passengers:  %d\n", pax)
	fmt.Fprintf(&b, "• name:        %s\n", name)
	fmt.Fprintf(&b, "• phone:       %s\n", orMissing(req.Phone))
	if req.Notes != "" {
		fmt.Fprintf(&b, "• notes: %s\n", req.Notes)
	}
	if req.Operator {
		forCust := req.ForCustomer
		if forCust == "" {
			forCust = "—"
		}
		fmt.Fprintf(&b, "• forCustomer: %s\n", forCust)
	}

	if len(req.Missing) > 0 {
		fmt.Fprintf(&b, "\nNOCH FEHLEND: %s\n", strings.Join(req.Missing, ", "))
	} else {
		b.WriteString("\nNOCH FEHLEND: ✅ alles vollständig\n")
	}
	if req.LastQuestion != "" {
		fmt.Fprintf(&b, "ZULETZT GEFRAGT: %q\n", req.LastQuestion)
	}

	fmt.Fprintf(&b, "\nNEUE ANTWORT: %q\n", req.Text)

	firstMissing := "keines"
	if len(req.Missing) > 0 {
		firstMissing = req.Missing[0]
	}
	homeRule := `unbekannt → frage "Welche Adresse ist Ihr Zuhause?"`
	if req.HomeAddress != "" {
		homeRule = fmt.Sprintf("%q → bei \"zu Hause\"/\"nach Hause\" verwenden", req.HomeAddress)
	}

	fmt.Fprintf(&b, `
REGELN:
1. FELD-ZUORDNUNG: Die Antwort füllt das erste fehlende Feld (%q), außer der Fahrgast benennt explizit ein anderes
2. BESTEHENDE FELDER: Nie überschreiben, außer Fahrgast korrigiert explizit
3. DATUM: ISO YYYY-MM-DDTHH:MM | heute=%s | morgen=%s | nur Uhrzeit → Datum=heute | nur Datum → datetime=null+missing | nie 00:00!
4. HEIMADRESSE: %s
5. UNKLARE ORTE → kurz nachfragen

Nur gültiges JSON, kein Markdown:
{
  "datetime": %s,
  "pickup": %s,
  "destination": %s,
  "passengers": %d,
  "name": %q,%s
  "phone": %s,
  "notes": %s,
  "missing": [],
  "question": null,
  "summary": "Kurze Zusammenfassung"
}`,
		firstMissing, today, tomorrow, homeRule,
		jsonOrNull(req.Datetime), jsonOrNull(req.Pickup), jsonOrNull(req.Destination),
		pax, name, forCustomerLine(req), jsonOrNull(req.Phone), jsonOrNull(req.Notes))

	return b.String()
}

func forCustomerLine(req FollowUpRequest) string {
	if !req.Operator {
		return ""
	}
	return fmt.Sprintf("\n  \"forCustomer\": %s,", jsonOrNull(req.ForCustomer))
}

func jsonOrNull(v string) string {
	if v == "" {
		return "null"
	}
	return fmt.Sprintf("%q", v)
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
