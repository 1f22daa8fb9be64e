package handler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"funktaxi/config"
	"funktaxi/internal/ai"
	"funktaxi/internal/domain"
)

// ---- fakes ----

type fakeMessenger struct {
	sent []*bot.SendMessageParams
}

func (f *fakeMessenger) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

func (f *fakeMessenger) AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	return true, nil
}

func (f *fakeMessenger) textsFor(chatID int64) string {
	var b strings.Builder
	for _, p := range f.sent {
		if id, ok := p.ChatID.(int64); ok && id == chatID {
			b.WriteString(p.Text)
			b.WriteString("\n---\n")
		}
	}
	return b.String()
}

func (f *fakeMessenger) last() *bot.SendMessageParams {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type fakeStore struct {
	pending map[int64]*domain.Pending
	drafts  map[int64]*domain.CRMDraft
	links   map[int64]*domain.CustomerLink
	locks   map[string]bool
	ttl     time.Duration
	now     func() time.Time
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		pending: map[int64]*domain.Pending{},
		drafts:  map[int64]*domain.CRMDraft{},
		links:   map[int64]*domain.CustomerLink{},
		locks:   map[string]bool{},
		ttl:     30 * time.Minute,
		now:     now,
	}
}

func (s *fakeStore) GetPending(ctx context.Context, chatID int64) (*domain.Pending, error) {
	return s.pending[chatID], nil
}

func (s *fakeStore) SetPending(ctx context.Context, chatID int64, p *domain.Pending) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = s.now().UnixMilli()
	}
	s.pending[chatID] = p
	return nil
}

func (s *fakeStore) DeletePending(ctx context.Context, chatID int64) error {
	delete(s.pending, chatID)
	return nil
}

func (s *fakeStore) IsPendingExpired(p *domain.Pending) bool {
	return p != nil && p.Expired(s.ttl, s.now())
}

func (s *fakeStore) GetCRMDraft(ctx context.Context, chatID int64) (*domain.CRMDraft, error) {
	return s.drafts[chatID], nil
}

func (s *fakeStore) SetCRMDraft(ctx context.Context, chatID int64, d *domain.CRMDraft) error {
	s.drafts[chatID] = d
	return nil
}

func (s *fakeStore) DeleteCRMDraft(ctx context.Context, chatID int64) error {
	delete(s.drafts, chatID)
	return nil
}

func (s *fakeStore) GetCustomerLink(ctx context.Context, chatID int64) (*domain.CustomerLink, error) {
	return s.links[chatID], nil
}

func (s *fakeStore) SetCustomerLink(ctx context.Context, chatID int64, link *domain.CustomerLink) error {
	s.links[chatID] = link
	return nil
}

func (s *fakeStore) DeleteCustomerLink(ctx context.Context, chatID int64) error {
	delete(s.links, chatID)
	return nil
}

func (s *fakeStore) AcquireBookingLock(ctx context.Context, bookingID string) (bool, error) {
	if s.locks[bookingID] {
		return false, nil
	}
	s.locks[bookingID] = true
	return true, nil
}

type fakeCustomers struct {
	customers   []domain.Customer
	created     []*domain.Customer
	linked      map[string]int64
	incremented []string
}

func (f *fakeCustomers) CreateCustomer(c *domain.Customer) (*domain.Customer, error) {
	c.ID = fmt.Sprintf("cust-%d", len(f.created)+1)
	f.created = append(f.created, c)
	f.customers = append(f.customers, *c)
	return c, nil
}

func (f *fakeCustomers) GetAllCustomers() ([]domain.Customer, error) {
	return f.customers, nil
}

func (f *fakeCustomers) LinkTelegramChat(customerID string, chatID int64) error {
	if f.linked == nil {
		f.linked = map[string]int64{}
	}
	f.linked[customerID] = chatID
	return nil
}

func (f *fakeCustomers) IncrementTotalRides(customerID string) error {
	f.incremented = append(f.incremented, customerID)
	return nil
}

type fakeRides struct {
	created  []*domain.Ride
	upcoming []*domain.Ride
	deleted  []string
}

func (f *fakeRides) CreateRide(ride *domain.Ride) (*domain.Ride, error) {
	ride.ID = fmt.Sprintf("ride-%d", len(f.created)+1)
	ride.CreatedAt = time.Now()
	f.created = append(f.created, ride)
	return ride, nil
}

func (f *fakeRides) GetRideByID(rideID string) (*domain.Ride, error) {
	for _, r := range append(f.created, f.upcoming...) {
		if r.ID == rideID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRides) GetUpcomingRidesByPhone(phone string, limit int) ([]*domain.Ride, error) {
	return f.upcoming, nil
}

func (f *fakeRides) SoftDeleteRide(rideID string, deletedBy int64) error {
	f.deleted = append(f.deleted, rideID)
	return nil
}

func (f *fakeRides) AttachCustomer(rideID, customerID string) error { return nil }

type fakeResolver struct {
	places     map[string]domain.Place
	candidates map[string][]domain.Place
	route      domain.RouteEstimate
	routeErr   error
}

func (f *fakeResolver) Resolve(ctx context.Context, address string) (domain.Place, bool) {
	p, ok := f.places[strings.ToLower(address)]
	return p, ok
}

func (f *fakeResolver) Candidates(ctx context.Context, query string) []domain.Place {
	return f.candidates[strings.ToLower(query)]
}

func (f *fakeResolver) Route(ctx context.Context, from, to domain.Place) (domain.RouteEstimate, error) {
	return f.route, f.routeErr
}

type fakeExtractor struct {
	analyze  []*ai.Extract
	followUp []*ai.Extract
}

func (f *fakeExtractor) Analyze(ctx context.Context, req ai.AnalyzeRequest) (*ai.Extract, error) {
	if len(f.analyze) == 0 {
		return nil, fmt.Errorf("no scripted analyze response")
	}
	ex := f.analyze[0]
	f.analyze = f.analyze[1:]
	return ex, nil
}

func (f *fakeExtractor) FollowUp(ctx context.Context, req ai.FollowUpRequest) (*ai.Extract, error) {
	if len(f.followUp) == 0 {
		return nil, fmt.Errorf("no scripted follow-up response")
	}
	ex := f.followUp[0]
	f.followUp = f.followUp[1:]
	return ex, nil
}

// ---- test env ----

type testEnv struct {
	h         *Handler
	messenger *fakeMessenger
	store     *fakeStore
	customers *fakeCustomers
	rides     *fakeRides
	resolver  *fakeResolver
	extractor *fakeExtractor
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Thursday morning
	now := time.Date(2025, 3, 13, 9, 30, 0, 0, loc)

	cfg := &config.Config{
		Port:            "8080",
		GeminiAPIKey:    "test-key",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     time.Minute,
		OperatorChatIDs: []int64{99},
		PendingTTL:      30 * time.Minute,
		BookingLockTTL:  time.Minute,
		PreBookMinutes:  30,
	}

	env := &testEnv{
		messenger: &fakeMessenger{},
		store:     newFakeStore(func() time.Time { return now }),
		customers: &fakeCustomers{},
		rides:     &fakeRides{},
		resolver: &fakeResolver{
			places:     map[string]domain.Place{},
			candidates: map[string][]domain.Place{},
			route:      domain.RouteEstimate{DistanceKm: 3.4, Minutes: 8},
		},
		extractor: &fakeExtractor{},
		now:       now,
	}
	env.h = NewHandler(cfg, zap.NewNop(), env.store, env.customers, env.rides, env.resolver, env.extractor)
	env.h.now = func() time.Time { return now }
	return env
}

func (e *testEnv) sendText(chatID int64, text string) {
	e.h.HandleUpdate(context.Background(), e.messenger, &models.Update{
		Message: &models.Message{
			Chat: models.Chat{ID: chatID},
			From: &models.User{FirstName: "Anna"},
			Text: text,
		},
	})
}

func (e *testEnv) tap(chatID int64, data string) {
	e.h.HandleUpdate(context.Background(), e.messenger, &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{Chat: models.Chat{ID: chatID}},
			},
		},
	})
}

func keyboardData(p *bot.SendMessageParams) []string {
	kb, ok := p.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.CallbackData)
		}
	}
	return out
}

func findButton(data []string, prefix string) string {
	for _, d := range data {
		if strings.HasPrefix(d, prefix) {
			return d
		}
	}
	return ""
}

// ---- tests ----

func TestCompleteBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}
	env.resolver.places["bahnhof heringsdorf"] = domain.Place{Name: "Bahnhof Heringsdorf", Lat: 53.95, Lon: 14.16}
	env.resolver.places["ahlbeck"] = domain.Place{Name: "Ahlbeck", Lat: 53.94, Lon: 14.19}
	env.extractor.analyze = []*ai.Extract{{
		Intent:      domain.IntentBooking,
		Datetime:    "2025-03-14T10:00",
		Pickup:      "Bahnhof Heringsdorf",
		Destination: "Ahlbeck",
		Passengers:  1,
		Name:        "Anna",
		Phone:       "+4915112345678",
	}}

	env.sendText(chatID, "Morgen 10 Uhr vom Bahnhof Heringsdorf nach Ahlbeck")

	pending := env.store.pending[chatID]
	if pending == nil || pending.Booking == nil || pending.BookingID == "" {
		t.Fatalf("expected pending booking with id, got %+v", pending)
	}
	if !pending.AwaitingPassengers {
		t.Fatalf("expected passenger prompt state")
	}
	texts := env.messenger.textsFor(chatID)
	if !strings.Contains(texts, "Adressen verifiziert") {
		t.Errorf("expected address verification notice, got:\n%s", texts)
	}
	paxBtn := findButton(keyboardData(env.messenger.last()), "pax_2_")
	if paxBtn == "" {
		t.Fatalf("expected pax keyboard, got %+v", env.messenger.last())
	}

	env.tap(chatID, paxBtn)

	pending = env.store.pending[chatID]
	if pending == nil || pending.Booking == nil || pending.Booking.Passengers != 2 {
		t.Fatalf("expected 2 passengers after pax tap, got %+v", pending)
	}
	confirm := env.messenger.last()
	if !strings.Contains(confirm.Text, "Soll ich den Termin eintragen?") {
		t.Fatalf("expected confirmation message, got %q", confirm.Text)
	}
	if !strings.Contains(confirm.Text, "14.50 €") {
		t.Errorf("expected price 14.50 in confirmation, got %q", confirm.Text)
	}
	yesBtn := findButton(keyboardData(confirm), "book_yes_")
	if yesBtn == "" {
		t.Fatalf("expected confirm keyboard")
	}

	env.tap(chatID, yesBtn)

	if len(env.rides.created) != 1 {
		t.Fatalf("expected 1 ride, got %d", len(env.rides.created))
	}
	ride := env.rides.created[0]
	if ride.Status != domain.RideStatusPreBooked {
		t.Errorf("expected vorbestellt status for next-day pickup, got %q", ride.Status)
	}
	if ride.Passengers != 2 || ride.CustomerName != "Anna" {
		t.Errorf("unexpected ride data: %+v", ride)
	}
	if ride.EstimatedPrice != 14.5 {
		t.Errorf("expected estimated price 14.5, got %v", ride.EstimatedPrice)
	}
	if env.store.pending[chatID] != nil {
		t.Errorf("pending state should be cleared after booking")
	}
	opTexts := env.messenger.textsFor(99)
	if !strings.Contains(opTexts, "VORBESTELLUNG") {
		t.Errorf("expected operator notification, got:\n%s", opTexts)
	}
}

func TestBookYesDoubleTapIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.pending[chatID] = &domain.Pending{
		Booking: &domain.Booking{
			Datetime:    "2025-03-13T10:30",
			Pickup:      "Seestraße 1",
			Destination: "Ahlbeck",
			Passengers:  1,
			Name:        "Anna",
		},
		BookingID: "dup-1",
		CreatedAt: env.now.UnixMilli(),
	}
	env.store.locks["dup-1"] = true

	env.tap(chatID, "book_yes_dup-1")

	if len(env.rides.created) != 0 {
		t.Fatalf("locked booking must not create a ride")
	}
	if len(env.messenger.sent) != 0 {
		t.Errorf("locked tap should stay silent, got %q", env.messenger.last().Text)
	}
}

func TestMissingFieldsAskQuestion(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}
	env.extractor.analyze = []*ai.Extract{{
		Intent:   domain.IntentBooking,
		Datetime: "2025-03-13T18:00",
		Pickup:   "Seestraße 1",
		Missing:  []string{"destination"},
		Question: "Wohin soll die Fahrt gehen?",
	}}

	env.sendText(chatID, "Heute 18 Uhr von der Seestraße 1")

	pending := env.store.pending[chatID]
	if pending == nil || pending.Partial == nil {
		t.Fatalf("expected partial booking, got %+v", pending)
	}
	if pending.LastQuestion != "Wohin soll die Fahrt gehen?" {
		t.Errorf("expected last question to be stored, got %q", pending.LastQuestion)
	}
	texts := env.messenger.textsFor(chatID)
	if !strings.Contains(texts, "Bereits notiert") || !strings.Contains(texts, "Wohin soll die Fahrt gehen?") {
		t.Errorf("expected summary plus question, got:\n%s", texts)
	}

	// Follow-up answer completes the booking
	env.resolver.places["seestraße 1"] = domain.Place{Lat: 53.95, Lon: 14.16}
	env.resolver.places["ahlbeck"] = domain.Place{Lat: 53.94, Lon: 14.19}
	env.extractor.followUp = []*ai.Extract{{
		Datetime:    "2025-03-13T18:00",
		Pickup:      "Seestraße 1",
		Destination: "Ahlbeck",
		Passengers:  1,
		Name:        "Anna",
		Phone:       "+4915112345678",
	}}

	env.sendText(chatID, "Nach Ahlbeck bitte")

	pending = env.store.pending[chatID]
	if pending == nil || pending.Booking == nil {
		t.Fatalf("expected confirmation-ready booking, got %+v", pending)
	}
	if pending.Booking.Destination != "Ahlbeck" {
		t.Errorf("expected destination Ahlbeck, got %q", pending.Booking.Destination)
	}
}

func TestExpiredPendingIsAnnounced(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}
	env.store.pending[chatID] = &domain.Pending{
		Partial:   &domain.Booking{Pickup: "Seestraße 1"},
		CreatedAt: env.now.Add(-31 * time.Minute).UnixMilli(),
	}

	env.sendText(chatID, "Meine Fahrten")

	if env.store.pending[chatID] != nil {
		t.Errorf("expired pending should be deleted")
	}
	texts := env.messenger.textsFor(chatID)
	if !strings.Contains(texts, "abgelaufen") {
		t.Errorf("expected expiry notice, got:\n%s", texts)
	}
	if !strings.Contains(texts, "keine bevorstehenden Buchungen") {
		t.Errorf("expected status listing after expiry, got:\n%s", texts)
	}
}

func TestMissingAPIKeyGetsConfigNotice(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.h.cfg.GeminiAPIKey = ""
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}

	env.sendText(chatID, "Morgen 10 Uhr vom Bahnhof nach Ahlbeck")

	texts := env.messenger.textsFor(chatID)
	if !strings.Contains(texts, "AI-Assistent nicht konfiguriert") {
		t.Fatalf("expected configuration notice, got:\n%s", texts)
	}
	if env.store.pending[chatID] != nil {
		t.Errorf("unconfigured analysis must not leave pending state")
	}

	// Same guard on follow-up replies
	env.store.pending[chatID] = &domain.Pending{
		Partial:   &domain.Booking{Pickup: "Seestraße 1", Missing: []string{"destination"}},
		CreatedAt: env.now.UnixMilli(),
	}
	env.sendText(chatID, "Nach Ahlbeck")
	if !strings.Contains(env.messenger.last().Text, "AI-Assistent nicht konfiguriert") {
		t.Errorf("expected configuration notice on follow-up, got %q", env.messenger.last().Text)
	}
}

func TestNonBookingIsRejected(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}
	env.extractor.analyze = []*ai.Extract{{Intent: domain.IntentOther}}

	env.sendText(chatID, "Wie ist das Wetter heute?")

	texts := env.messenger.textsFor(chatID)
	if !strings.Contains(texts, "nicht als Taxifahrt erkannt") {
		t.Errorf("expected polite rejection, got:\n%s", texts)
	}
	if env.store.pending[chatID] != nil {
		t.Errorf("rejection must not leave pending state")
	}
}

func TestContactLinksKnownCustomer(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.customers.customers = []domain.Customer{
		{ID: "c-1", Name: "Erika Musterfrau", Phone: "+49 151 1234 5678", Address: "Seestraße 1, Heringsdorf"},
	}

	env.h.HandleUpdate(context.Background(), env.messenger, &models.Update{
		Message: &models.Message{
			Chat:    models.Chat{ID: chatID},
			From:    &models.User{FirstName: "Erika"},
			Contact: &models.Contact{PhoneNumber: "0151 1234 5678", FirstName: "Erika"},
		},
	})

	link := env.store.links[chatID]
	if link == nil || link.CustomerID != "c-1" {
		t.Fatalf("expected chat linked to c-1, got %+v", link)
	}
	if link.Address != "Seestraße 1, Heringsdorf" {
		t.Errorf("expected home address on link, got %q", link.Address)
	}
	if env.customers.linked["c-1"] != chatID {
		t.Errorf("expected telegram chat saved on customer record")
	}
	if !strings.Contains(env.messenger.last().Text, "Willkommen zurück, Erika Musterfrau") {
		t.Errorf("expected welcome back, got %q", env.messenger.last().Text)
	}
}

func TestDeleteQueryOffersButtons(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}
	env.rides.upcoming = []*domain.Ride{
		{ID: "ride-9", Pickup: "Seestraße 1", Destination: "Ahlbeck", PickupTS: env.now.Add(2 * time.Hour).UnixMilli(), Status: domain.RideStatusOpen},
	}

	env.sendText(chatID, "Stornieren")

	data := keyboardData(env.messenger.last())
	if findButton(data, "del_ride_ride-9") == "" || findButton(data, "del_cancel") == "" {
		t.Fatalf("expected delete keyboard, got %v", data)
	}

	env.tap(chatID, "del_ride_ride-9")

	if len(env.rides.deleted) != 1 || env.rides.deleted[0] != "ride-9" {
		t.Fatalf("expected ride-9 soft-deleted, got %v", env.rides.deleted)
	}
	if !strings.Contains(env.messenger.last().Text, "Buchung gelöscht") {
		t.Errorf("expected deletion notice, got %q", env.messenger.last().Text)
	}
}

func TestAddressDisambiguation(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.links[chatID] = &domain.CustomerLink{Name: "Anna", Phone: "+4915112345678"}
	env.resolver.places["seestraße 1"] = domain.Place{Lat: 53.95, Lon: 14.16}
	env.resolver.candidates["bahnhof"] = []domain.Place{
		{Name: "Bahnhof Heringsdorf", Lat: 53.9533, Lon: 14.1633},
		{Name: "Bahnhof Zinnowitz", Lat: 54.09, Lon: 13.91},
	}
	env.extractor.analyze = []*ai.Extract{{
		Intent:      domain.IntentBooking,
		Datetime:    "2025-03-13T12:00",
		Pickup:      "Seestraße 1",
		Destination: "Bahnhof",
		Passengers:  2,
		Name:        "Anna",
		Phone:       "+4915112345678",
	}}

	env.sendText(chatID, "Heute 12 Uhr von der Seestraße 1 zum Bahnhof, 2 Personen")

	suggestion := env.messenger.last()
	if !strings.Contains(suggestion.Text, "nicht eindeutig gefunden") {
		t.Fatalf("expected disambiguation prompt, got %q", suggestion.Text)
	}
	data := keyboardData(suggestion)
	if findButton(data, "nd_0") == "" || findButton(data, "addr_skip") == "" {
		t.Fatalf("expected candidate buttons, got %v", data)
	}
	pending := env.store.pending[chatID]
	if pending == nil || len(pending.NominatimResults) != 2 {
		t.Fatalf("expected stored candidates, got %+v", pending)
	}

	env.tap(chatID, "nd_0")

	pending = env.store.pending[chatID]
	if pending == nil || pending.Booking == nil {
		t.Fatalf("expected booking after candidate pick, got %+v", pending)
	}
	if pending.Booking.Destination != "Bahnhof Heringsdorf" || pending.Booking.DestLat == 0 {
		t.Errorf("expected picked candidate applied, got %+v", pending.Booking)
	}
	// Passenger count was explicit, straight to confirmation
	if !strings.Contains(env.messenger.last().Text, "Soll ich den Termin eintragen?") {
		t.Errorf("expected confirmation, got %q", env.messenger.last().Text)
	}
}

func TestOperatorFlowAsksWhoItIsFor(t *testing.T) {
	env := newTestEnv(t)
	const operatorChat int64 = 99

	env.sendText(operatorChat, "Taxi für Herrn Schmidt morgen 9 Uhr")

	pending := env.store.pending[operatorChat]
	if pending == nil || pending.TaxiChoice == nil {
		t.Fatalf("expected parked operator message, got %+v", pending)
	}
	data := keyboardData(env.messenger.last())
	if findButton(data, "taxi_for_customer") == "" || findButton(data, "taxi_for_self") == "" {
		t.Fatalf("expected choice keyboard, got %v", data)
	}

	env.tap(operatorChat, "taxi_for_customer")

	pending = env.store.pending[operatorChat]
	if pending == nil || !pending.AwaitingCustomerName {
		t.Fatalf("expected awaiting-customer-name state, got %+v", pending)
	}
	if !strings.Contains(env.messenger.last().Text, "Für welchen Kunden?") {
		t.Errorf("expected name prompt, got %q", env.messenger.last().Text)
	}

	// Single directory match triggers a confirmation keyboard
	env.customers.customers = []domain.Customer{
		{ID: "c-7", Name: "Herr Schmidt", Phone: "+493812345", Address: "Dünenstraße 3"},
	}
	env.sendText(operatorChat, "Schmidt")

	pending = env.store.pending[operatorChat]
	if pending == nil || pending.CrmConfirm == nil {
		t.Fatalf("expected directory confirmation state, got %+v", pending)
	}
	data = keyboardData(env.messenger.last())
	if findButton(data, "admin_cust_yes_") == "" {
		t.Fatalf("expected admin confirm keyboard, got %v", data)
	}

	// Confirming re-runs the analysis with the customer preselected
	env.extractor.analyze = []*ai.Extract{{
		Intent:   domain.IntentBooking,
		Datetime: "2025-03-14T09:00",
		Pickup:   "zu Hause",
		Missing:  []string{"destination"},
	}}
	env.tap(operatorChat, findButton(data, "admin_cust_yes_"))

	pending = env.store.pending[operatorChat]
	if pending == nil || pending.Partial == nil {
		t.Fatalf("expected partial booking, got %+v", pending)
	}
	if !pending.Partial.AdminBooked || pending.Partial.CRMCustomerID != "c-7" {
		t.Errorf("expected operator booking for c-7, got %+v", pending.Partial)
	}
	if pending.Partial.Pickup != "Dünenstraße 3" {
		t.Errorf("expected home placeholder resolved to customer address, got %q", pending.Partial.Pickup)
	}
}

func TestSlotChoiceShiftsTime(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 7
	env.store.pending[chatID] = &domain.Pending{
		Booking: &domain.Booking{
			Datetime:    "2025-03-13T14:00",
			Pickup:      "Seestraße 1",
			Destination: "Ahlbeck",
			Passengers:  2,
		},
		BookingID: "slot-book",
		CreatedAt: env.now.UnixMilli(),
	}

	env.tap(chatID, fmt.Sprintf("slot_%d_13_00", chatID))

	pending := env.store.pending[chatID]
	if pending.Booking.Datetime != "2025-03-13T13:00" {
		t.Errorf("expected shifted time, got %q", pending.Booking.Datetime)
	}
	if !pending.PrevalidatedSlot {
		t.Errorf("expected prevalidated slot flag")
	}
	data := keyboardData(env.messenger.last())
	if findButton(data, "book_yes_slot-book") == "" {
		t.Errorf("expected re-confirmation keyboard, got %v", data)
	}
}

func TestBookingForDirectoryCustomerBumpsRideCounter(t *testing.T) {
	env := newTestEnv(t)
	const operatorChat int64 = 99
	env.store.pending[operatorChat] = &domain.Pending{
		Booking: &domain.Booking{
			Datetime:        "2025-03-14T09:00",
			Pickup:          "Dünenstraße 3",
			Destination:     "Bahnhof Heringsdorf",
			Passengers:      1,
			Name:            "Herr Schmidt",
			AdminBooked:     true,
			AdminChatID:     operatorChat,
			ForCustomerName: "Herr Schmidt",
			CRMCustomerID:   "c-7",
		},
		BookingID: "crm-book",
		CreatedAt: env.now.UnixMilli(),
	}

	env.tap(operatorChat, "book_yes_crm-book")

	if len(env.rides.created) != 1 {
		t.Fatalf("expected 1 ride, got %d", len(env.rides.created))
	}
	ride := env.rides.created[0]
	if ride.CustomerID == nil || *ride.CustomerID != "c-7" {
		t.Errorf("expected ride attached to c-7, got %+v", ride.CustomerID)
	}
	if len(env.customers.incremented) != 1 || env.customers.incremented[0] != "c-7" {
		t.Errorf("expected ride counter bumped for c-7, got %v", env.customers.incremented)
	}
}

func TestCrmCreateFromDraft(t *testing.T) {
	env := newTestEnv(t)
	const chatID int64 = 99
	env.store.drafts[chatID] = &domain.CRMDraft{
		CustomerName:  "Herr Neu",
		CustomerPhone: "+4938123",
		PickupAddress: "Strandweg 2",
		RideID:        "ride-1",
	}

	env.tap(chatID, "crm_create_yes_ride-1")

	if len(env.customers.created) != 1 {
		t.Fatalf("expected customer created, got %d", len(env.customers.created))
	}
	c := env.customers.created[0]
	if c.Name != "Herr Neu" || c.Address != "Strandweg 2" || c.TotalRides != 1 {
		t.Errorf("unexpected customer: %+v", c)
	}
	if env.store.drafts[chatID] != nil {
		t.Errorf("draft should be cleared")
	}
	if !strings.Contains(env.messenger.last().Text, "im CRM angelegt") {
		t.Errorf("expected creation notice, got %q", env.messenger.last().Text)
	}
}
