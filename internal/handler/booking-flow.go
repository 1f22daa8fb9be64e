package handler

// booking-flow.go
import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"funktaxi/internal/ai"
	"funktaxi/internal/crm"
	"funktaxi/internal/domain"
	"funktaxi/internal/fare"
	"funktaxi/internal/flow"
	"funktaxi/internal/intent"
)

// analyzeOptions steer a fresh booking analysis
type analyzeOptions struct {
	ForSelf         bool
	Operator        bool
	Preselected     *domain.CustomerRef
	ForCustomerName string
}

// analyzeBooking runs the extraction service over a fresh message and
// drives the result into the booking flow.
func (h *Handler) analyzeBooking(ctx context.Context, m Messenger, chatID int64, text, userName string, opts analyzeOptions) {
	if h.cfg.GeminiAPIKey == "" {
		h.sendHTML(ctx, m, chatID, "⚠️ AI-Assistent nicht konfiguriert. Bitte GEMINI_API_KEY in der Umgebung eintragen.")
		return
	}
	isOperator := !opts.ForSelf && (opts.Operator || h.cfg.IsOperator(chatID))

	var known *domain.CustomerLink
	if opts.Preselected == nil && !isOperator {
		known = h.knownCustomer(ctx, chatID)
	}

	req := ai.AnalyzeRequest{
		Text:          text,
		UserName:      userName,
		Operator:      isOperator,
		PhoneRequired: known == nil && opts.Preselected == nil && !isOperator,
	}
	switch {
	case opts.Preselected != nil:
		req.KnownName = opts.Preselected.Name
		req.KnownPhone = opts.Preselected.Phone
		req.HomeAddress = opts.Preselected.Address
	case known != nil:
		req.KnownName = known.Name
		req.KnownPhone = known.Phone
		req.HomeAddress = known.Address
	case isOperator && opts.ForCustomerName != "":
		req.KnownName = opts.ForCustomerName
	}

	ex, err := h.extractor.Analyze(ctx, req)
	if err != nil {
		h.logger.Error("Booking analysis failed", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler bei der Analyse. Bitte versuchen Sie es nochmal.")
		return
	}

	b := flow.FromExtract(ex)
	b.Datetime = flow.ClampYear(b.Datetime, h.now())

	h.logger.Info("Booking analyzed",
		zap.Int64("chat_id", chatID),
		zap.String("intent", b.Intent),
		zap.String("datetime", b.Datetime),
		zap.String("pickup", b.Pickup),
		zap.String("destination", b.Destination),
		zap.Strings("missing", b.Missing))

	hasData := b.Pickup != "" || b.Destination != "" || b.Datetime != ""
	if intent.IsObviousBooking(text) && b.Intent != domain.IntentBooking {
		b.Intent = domain.IntentBooking
	}
	if (b.Intent != "" && b.Intent != domain.IntentBooking) || (b.Intent == "" && !hasData) {
		h.sendHTML(ctx, m, chatID, "😊 Das habe ich leider nicht als Taxifahrt erkannt.\n\nIch bin speziell für <b>Taxi-Buchungen</b> da! Schreiben Sie mir zum Beispiel:\n<i>„Morgen 10 Uhr vom Bahnhof Heringsdorf nach Ahlbeck\"</i>")
		return
	}

	if isOperator {
		b.AdminBooked = true
		b.AdminChatID = chatID
		switch {
		case opts.Preselected != nil:
			flow.ApplyCustomer(b, *opts.Preselected, chatID)
		case opts.ForCustomerName != "":
			b.Name = opts.ForCustomerName
			b.ForCustomerName = opts.ForCustomerName
			b.CRMCustomerID = ""
		case b.ForCustomer != "":
			// The extraction named a customer, look them up
			if h.resolveExtractedCustomer(ctx, m, chatID, b, text) {
				return
			}
		}
	}

	h.continueBookingFlow(ctx, m, chatID, b, text)
}

// resolveExtractedCustomer matches the customer name the extraction
// found against the directory. Returns true when a confirmation
// keyboard was sent and the flow pauses.
func (h *Handler) resolveExtractedCustomer(ctx context.Context, m Messenger, chatID int64, b *domain.Booking, originalText string) bool {
	matches := h.searchCustomers(b.ForCustomer)
	switch {
	case len(matches) == 1:
		found := matches[0].Ref()
		confirmID := uuid.NewString()
		h.store.SetPending(ctx, chatID, &domain.Pending{
			Partial:      b,
			OriginalText: originalText,
			CrmConfirm:   &domain.CrmConfirm{Found: found, ConfirmID: confirmID},
		})
		msg := fmt.Sprintf("🔍 <b>Kunden im CRM gefunden:</b>\n\n👤 <b>%s</b>\n", found.Name)
		if found.Phone != "" {
			msg += fmt.Sprintf("📱 %s\n", found.Phone)
		}
		if found.Address != "" {
			msg += fmt.Sprintf("🏠 %s\n", found.Address)
		}
		msg += "\n<b>Ist das der richtige Kunde?</b>"
		h.sendKeyboard(ctx, m, chatID, msg, &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "✅ Ja, genau!", CallbackData: "crm_confirm_yes_" + confirmID},
				{Text: "❌ Anderer Kunde", CallbackData: "crm_confirm_no_" + confirmID},
			}},
		})
		return true

	case len(matches) > 1:
		confirmID := uuid.NewString()
		refs := make([]domain.CustomerRef, 0, len(matches))
		var buttons [][]models.InlineKeyboardButton
		for i, c := range matches {
			refs = append(refs, c.Ref())
			label := "👤 " + c.Name
			if c.Address != "" {
				label += " · 📍 " + truncate(c.Address, 30)
			}
			buttons = append(buttons, []models.InlineKeyboardButton{
				{Text: label, CallbackData: fmt.Sprintf("crm_select_%d_%s", i, confirmID)},
			})
		}
		buttons = append(buttons, []models.InlineKeyboardButton{
			{Text: "🆕 Keiner davon – neu anlegen", CallbackData: "crm_confirm_no_" + confirmID},
		})
		h.store.SetPending(ctx, chatID, &domain.Pending{
			Partial:        b,
			OriginalText:   originalText,
			CrmMultiSelect: &domain.CrmMultiSelect{Matches: refs, ConfirmID: confirmID},
		})
		h.sendKeyboard(ctx, m, chatID, fmt.Sprintf("🔍 <b>Mehrere Kunden gefunden für „%s\":</b>\n\nWelchen Kunden meinen Sie?", b.ForCustomer), &models.InlineKeyboardMarkup{InlineKeyboard: buttons})
		return true

	default:
		b.Name = b.ForCustomer
		b.ForCustomerName = b.ForCustomer
		b.CRMCustomerID = ""
		if b.Phone == "" && !b.HasMissing(domain.FieldPhone) {
			b.Missing = append(b.Missing, domain.FieldPhone)
		}
		return false
	}
}

// analyzeFollowUp feeds a reply within an ongoing conversation back
// through the extraction service.
func (h *Handler) analyzeFollowUp(ctx context.Context, m Messenger, chatID int64, newText, userName string, pending *domain.Pending) {
	if h.cfg.GeminiAPIKey == "" {
		h.sendHTML(ctx, m, chatID, "⚠️ AI-Assistent nicht konfiguriert. Bitte GEMINI_API_KEY in der Umgebung eintragen.")
		return
	}
	partial := pending.Partial
	operatorFlow := partial.AdminBooked

	var known *domain.CustomerLink
	if !operatorFlow {
		known = h.knownCustomer(ctx, chatID)
	}

	phone := partial.Phone
	if phone == "" && known != nil {
		phone = known.Phone
	}
	homeAddress := partial.CustomerAddress
	if homeAddress == "" && known != nil {
		homeAddress = known.Address
	}
	name := partial.Name
	if name == "" {
		name = userName
	}

	ex, err := h.extractor.FollowUp(ctx, ai.FollowUpRequest{
		Text:         newText,
		UserName:     userName,
		Datetime:     partial.Datetime,
		Pickup:       partial.Pickup,
		Destination:  partial.Destination,
		Passengers:   partial.Passengers,
		Name:         name,
		Phone:        phone,
		Notes:        partial.Notes,
		ForCustomer:  partial.ForCustomerName,
		Missing:      partial.Missing,
		LastQuestion: pending.LastQuestion,
		HomeAddress:  homeAddress,
		Operator:     operatorFlow,
	})
	if err != nil {
		h.logger.Error("Follow-up analysis failed", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler bei der Analyse. Bitte versuchen Sie es nochmal.")
		return
	}

	b := flow.FromExtract(ex)
	// Collected fields are authoritative over re-extracted ones
	if partial.Phone != "" {
		b.Phone = partial.Phone
	}
	if partial.Name != "" && partial.CRMCustomerID != "" {
		b.Name = partial.Name
	}
	b.Datetime = flow.ClampYear(b.Datetime, h.now())
	b.PassengersExplicit = partial.PassengersExplicit || b.Passengers > 1
	flow.MergeFollowUp(b, partial, chatID)

	h.continueBookingFlow(ctx, m, chatID, b, pending.OriginalText)
}

// continueBookingFlow either asks for the next missing field or moves
// the booking on to address validation and confirmation.
func (h *Handler) continueBookingFlow(ctx context.Context, m Messenger, chatID int64, b *domain.Booking, originalText string) {
	flow.SyncMissing(b)

	if len(b.Missing) > 0 {
		var noted []string
		if t := b.PickupTime(h.loc); !t.IsZero() {
			noted = append(noted, fmt.Sprintf("📅 %s um %s Uhr", formatDayShortYear(t), formatClock(t)))
		}
		if b.Pickup != "" {
			noted = append(noted, "📍 Von: "+b.Pickup)
		}
		if b.Destination != "" {
			noted = append(noted, "🎯 Nach: "+b.Destination)
		}
		if b.Passengers > 1 {
			noted = append(noted, fmt.Sprintf("👥 %d Personen", b.Passengers))
		}
		var msg string
		if len(noted) > 0 {
			msg = "✅ <b>Bereits notiert:</b>\n" + strings.Join(noted, "\n") + "\n\n"
		}
		question := b.Question
		if question == "" {
			question = flow.FallbackQuestion(b.Missing[0])
		}
		msg += "💬 " + question + "\n\n<i>/abbrechen zum Zurücksetzen</i>"

		h.store.SetPending(ctx, chatID, &domain.Pending{
			Partial:      b,
			OriginalText: originalText,
			LastQuestion: b.Question,
		})
		h.sendHTML(ctx, m, chatID, msg)
		return
	}

	if !h.validateAddresses(ctx, m, chatID, b, originalText) {
		return
	}
	rp := h.routePrice(ctx, b)
	h.askPassengersOrConfirm(ctx, m, chatID, b, rp, originalText)
}

// validateAddresses geocodes both endpoints. When one stays unresolved
// it offers disambiguation candidates and returns false, pausing the
// flow until the passenger picks one.
func (h *Handler) validateAddresses(ctx context.Context, m Messenger, chatID int64, b *domain.Booking, originalText string) bool {
	h.sendHTML(ctx, m, chatID, "📍 <i>Prüfe Adressen...</i>")

	pickupOK := b.PickupLat != 0
	if !pickupOK && b.Pickup != "" {
		if p, ok := h.resolver.Resolve(ctx, b.Pickup); ok {
			b.PickupLat, b.PickupLon = p.Lat, p.Lon
			pickupOK = true
		}
	}
	destOK := b.DestLat != 0
	if !destOK && b.Destination != "" {
		if p, ok := h.resolver.Resolve(ctx, b.Destination); ok {
			b.DestLat, b.DestLon = p.Lat, p.Lon
			destOK = true
		}
	}

	if !pickupOK || !destOK {
		address, label, prefix := b.Destination, "🎯 Zielort", "nd"
		if !pickupOK {
			address, label, prefix = b.Pickup, "📍 Abholort", "np"
		}
		candidates := h.resolver.Candidates(ctx, address)
		if len(candidates) > 0 {
			var buttons [][]models.InlineKeyboardButton
			for i, c := range candidates {
				buttons = append(buttons, []models.InlineKeyboardButton{
					{Text: "📍 " + c.Name, CallbackData: fmt.Sprintf("%s_%d", prefix, i)},
				})
			}
			buttons = append(buttons, []models.InlineKeyboardButton{
				{Text: "⏩ Trotzdem weiter (ohne Preis)", CallbackData: "addr_skip"},
			})

			partial := *b
			partial.Missing = nil
			h.store.SetPending(ctx, chatID, &domain.Pending{
				Partial:               &partial,
				OriginalText:          originalText,
				NominatimResults:      candidates,
				PendingDestValidation: !pickupOK && !destOK,
			})
			h.logger.Info("Address ambiguous, offering candidates",
				zap.Int64("chat_id", chatID),
				zap.String("address", address),
				zap.Int("candidates", len(candidates)))
			h.sendKeyboard(ctx, m, chatID,
				fmt.Sprintf("🔍 <b>%s: \"%s\" nicht eindeutig gefunden.</b>\n\nMeinten Sie einen dieser Orte?", label, address),
				&models.InlineKeyboardMarkup{InlineKeyboard: buttons})
			return false
		}
	}

	if pickupOK && destOK {
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>Adressen verifiziert:</b>\n📍 %s\n🎯 %s", b.Pickup, b.Destination))
	}
	return true
}

// routePrice computes distance, duration and fare for a fully
// geocoded booking. Nil when no price can be quoted.
func (h *Handler) routePrice(ctx context.Context, b *domain.Booking) *domain.RoutePrice {
	if !b.HasCoords() {
		return nil
	}
	est, err := h.resolver.Route(ctx,
		domain.Place{Lat: b.PickupLat, Lon: b.PickupLon},
		domain.Place{Lat: b.DestLat, Lon: b.DestLon})
	if err != nil {
		h.logger.Warn("Route calculation failed", zap.Error(err))
		return nil
	}
	at := b.PickupTime(h.loc)
	if at.IsZero() {
		at = h.now()
	}
	quote, ok := fare.Estimate(est.DistanceKm, at)
	if !ok {
		return nil
	}
	return &domain.RoutePrice{
		DistanceKm: est.DistanceKm,
		Minutes:    est.Minutes,
		Price:      quote.Total,
		Surcharges: quote.Surcharges,
	}
}

// askPassengersOrConfirm asks for the passenger count unless it was
// given explicitly, then shows the confirmation keyboard.
func (h *Handler) askPassengersOrConfirm(ctx context.Context, m Messenger, chatID int64, b *domain.Booking, rp *domain.RoutePrice, originalText string) {
	if !flow.NeedsPassengerPrompt(b) {
		h.showConfirmation(ctx, m, chatID, b, rp)
		return
	}

	bookingID := uuid.NewString()
	h.store.SetPending(ctx, chatID, &domain.Pending{
		Booking:            b,
		BookingID:          bookingID,
		RoutePrice:         rp,
		OriginalText:       originalText,
		AwaitingPassengers: true,
	})
	h.sendKeyboard(ctx, m, chatID, "👥 <b>Wie viele Personen fahren mit?</b>", &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🧑 1", CallbackData: "pax_1_" + bookingID},
				{Text: "👥 2", CallbackData: "pax_2_" + bookingID},
				{Text: "👨‍👩‍👦 3", CallbackData: "pax_3_" + bookingID},
				{Text: "👨‍👩‍👧‍👦 4", CallbackData: "pax_4_" + bookingID},
			},
			{
				{Text: "5", CallbackData: "pax_5_" + bookingID},
				{Text: "6", CallbackData: "pax_6_" + bookingID},
				{Text: "7+", CallbackData: "pax_7_" + bookingID},
			},
		},
	})
}

func (h *Handler) showConfirmation(ctx context.Context, m Messenger, chatID int64, b *domain.Booking, rp *domain.RoutePrice) {
	msg := h.buildConfirmMsg(b, rp)
	bookingID := uuid.NewString()
	h.store.SetPending(ctx, chatID, &domain.Pending{
		Booking:    b,
		BookingID:  bookingID,
		RoutePrice: rp,
	})
	if !h.sendKeyboard(ctx, m, chatID, msg, h.buildConfirmKeyboard(bookingID, chatID, b)) {
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler beim Senden der Bestätigung. Bitte nochmal versuchen.")
	}
}

func (h *Handler) buildConfirmMsg(b *domain.Booking, rp *domain.RoutePrice) string {
	var msg string
	if b.AdminBooked {
		name := b.ForCustomerName
		if name == "" {
			name = b.Name
		}
		msg = fmt.Sprintf("🕵️ <b>Buchung für %s</b>\n\n", name)
	} else {
		msg = "✅ <b>Termin erkannt!</b>\n\n"
	}
	if t := b.PickupTime(h.loc); !t.IsZero() {
		msg += fmt.Sprintf("📅 %s um %s Uhr\n", formatDayLongYear(t), formatClock(t))
	}
	if b.Pickup != "" {
		msg += fmt.Sprintf("📍 Von: %s ✅\n", b.Pickup)
	}
	if b.Destination != "" {
		msg += fmt.Sprintf("🎯 Nach: %s ✅\n", b.Destination)
	}
	passengers := b.Passengers
	if passengers < 1 {
		passengers = 1
	}
	msg += fmt.Sprintf("👥 %d Person(en)\n", passengers)
	if b.Name != "" {
		msg += fmt.Sprintf("👤 %s\n", b.Name)
	}
	if phone := cleanPhoneDisplay(b.Phone); phone != "" {
		msg += fmt.Sprintf("📱 %s\n", phone)
	}
	if b.Notes != "" {
		msg += fmt.Sprintf("📝 %s\n", b.Notes)
	}
	if rp != nil {
		msg += fmt.Sprintf("\n🗺️ Strecke: ca. %s km (~%d Min)\n", formatKm(rp.DistanceKm), rp.Minutes)
		msg += fmt.Sprintf("💰 Geschätzter Preis: ca. %s €", formatPrice(rp.Price))
		if len(rp.Surcharges) > 0 {
			msg += " (" + strings.Join(rp.Surcharges, ", ") + ")"
		}
		msg += "\n"
	}
	msg += "\n<b>Soll ich den Termin eintragen?</b>"
	return msg
}

func (h *Handler) buildConfirmKeyboard(bookingID string, chatID int64, b *domain.Booking) *models.InlineKeyboardMarkup {
	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Ja, eintragen!", CallbackData: "book_yes_" + bookingID},
			{Text: "✏️ Ändern", CallbackData: "book_no_" + bookingID},
		}},
	}
	if t := b.PickupTime(h.loc); !t.IsZero() {
		var row []models.InlineKeyboardButton
		for _, offset := range flow.SlotOffsets {
			alt := t.Add(time.Duration(offset) * time.Minute)
			hhmm := formatClock(alt)
			label := hhmm + " ▶"
			if offset < 0 {
				label = "◀ " + hhmm
			}
			row = append(row, models.InlineKeyboardButton{
				Text:         label,
				CallbackData: fmt.Sprintf("slot_%d_%02d_%02d", chatID, alt.Hour(), alt.Minute()),
			})
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, row)
	}
	return kb
}

// searchCustomers loads the directory and matches a free-text name
func (h *Handler) searchCustomers(name string) []domain.Customer {
	customers, err := h.customerRepo.GetAllCustomers()
	if err != nil {
		h.logger.Error("Failed to load customers", zap.Error(err))
		return nil
	}
	return crm.SearchByName(customers, name)
}

// linkChatToCustomer saves the chat-to-customer association after a
// successful passenger booking.
func (h *Handler) linkChatToCustomer(ctx context.Context, chatID int64, b *domain.Booking) {
	if b.Phone == "" && b.Name == "" {
		return
	}
	customers, err := h.customerRepo.GetAllCustomers()
	if err != nil {
		h.logger.Warn("Failed to load customers for linking", zap.Error(err))
		return
	}
	if found, ok := crm.FindByPhone(customers, b.Phone); ok {
		name := found.Name
		if name == "" {
			name = b.Name
		}
		phone := found.BestPhone()
		if phone == "" {
			phone = b.Phone
		}
		h.store.SetCustomerLink(ctx, chatID, &domain.CustomerLink{
			CustomerID: found.ID,
			Name:       name,
			Phone:      phone,
			Address:    found.Address,
			LinkedAt:   h.now().UnixMilli(),
		})
		if err := h.customerRepo.LinkTelegramChat(found.ID, chatID); err != nil {
			h.logger.Warn("Failed to link telegram chat", zap.Error(err), zap.String("customer_id", found.ID))
		}
		return
	}
	name := b.Name
	if name == "" {
		name = "Telegram-Gast"
	}
	h.store.SetCustomerLink(ctx, chatID, &domain.CustomerLink{
		Name:     name,
		Phone:    b.Phone,
		LinkedAt: h.now().UnixMilli(),
	})
}
