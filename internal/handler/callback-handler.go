package handler

// callback-handler.go
import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"funktaxi/internal/domain"
	"funktaxi/internal/flow"
)

var (
	paxPattern       = regexp.MustCompile(`^pax_(\d+)_(.+)$`)
	slotPattern      = regexp.MustCompile(`^slot_(-?\d+)_(\d{2})_(\d{2})$`)
	crmSelectPattern = regexp.MustCompile(`^crm_select_(\d+)_(.+)$`)
	custSelPattern   = regexp.MustCompile(`^admin_cust_sel_(\d+)_(.+)$`)
)

func (h *Handler) handleCallback(ctx context.Context, m Messenger, cb *models.CallbackQuery) {
	if cb.Message.Message == nil {
		return
	}
	chatID := cb.Message.Message.Chat.ID
	data := cb.Data

	h.logger.Info("Callback received", zap.Int64("chat_id", chatID), zap.String("data", truncate(data, 25)))

	if _, err := m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID}); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}

	switch {
	case data == "menu_buchen":
		h.sendHTML(ctx, m, chatID, "🚕 <b>Neue Fahrt buchen</b>\n\nSchreiben Sie mir einfach Ihre Fahrtwünsche:\n\n• <i>Jetzt vom Bahnhof Heringsdorf nach Ahlbeck</i>\n• <i>Morgen 10 Uhr Hotel Maritim → Flughafen BER</i>\n\n<i>Ich analysiere Ihre Nachricht automatisch.</i>")

	case data == "menu_status":
		known := h.knownCustomer(ctx, chatID)
		if known != nil {
			h.listBookings(ctx, m, chatID, known)
		} else {
			h.sendContactRequest(ctx, m, chatID, "📊 <b>Status</b>\n\nBitte teilen Sie Ihre Telefonnummer!")
		}

	case data == "menu_hilfe":
		h.sendHTML(ctx, m, chatID, "🚕 <b>Funk Taxi Heringsdorf</b>\n\n<b>Befehle:</b>\n/buchen – 🚕 Neue Fahrt\n/status – 📊 Ihre Fahrten\n/abbrechen – ❌ Abbrechen\n/abmelden – 🔓 Abmelden\n/hilfe – ℹ️ Hilfe")

	case data == "menu_abmelden":
		known := h.knownCustomer(ctx, chatID)
		if known != nil {
			h.store.DeleteCustomerLink(ctx, chatID)
			h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>Abgemeldet!</b> Profil <b>%s</b> gelöscht.\n\nTippen Sie /start um sich wieder anzumelden.", known.Name))
		} else {
			h.sendHTML(ctx, m, chatID, "ℹ️ Sie sind nicht angemeldet. Tippen Sie /start.")
		}

	case data == "taxi_for_customer" || data == "taxi_for_self":
		h.handleTaxiChoice(ctx, m, chatID, data)

	case strings.HasPrefix(data, "book_yes_"):
		h.handleBookYes(ctx, m, chatID)

	case strings.HasPrefix(data, "book_no_"):
		h.handleBookNo(ctx, m, chatID, strings.TrimPrefix(data, "book_no_"))

	case strings.HasPrefix(data, "change_time_"), strings.HasPrefix(data, "change_pickup_"), strings.HasPrefix(data, "change_dest_"):
		h.handleChange(ctx, m, chatID, data)

	case strings.HasPrefix(data, "discard_"):
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "👍 OK, Buchung verworfen.")

	case strings.HasPrefix(data, "pax_"):
		h.handlePassengerChoice(ctx, m, chatID, data)

	case strings.HasPrefix(data, "slot_"):
		h.handleSlotChoice(ctx, m, chatID, data)

	case strings.HasPrefix(data, "del_ride_"):
		h.handleDeleteRide(ctx, m, chatID, strings.TrimPrefix(data, "del_ride_"))

	case data == "del_cancel":
		h.sendHTML(ctx, m, chatID, "✅ Keine Buchung gelöscht.")

	case strings.HasPrefix(data, "admin_cust_yes_"):
		h.handleCustomerConfirmed(ctx, m, chatID)

	case strings.HasPrefix(data, "admin_cust_sel_"):
		h.handleCustomerSelected(ctx, m, chatID, data)

	case strings.HasPrefix(data, "admin_cust_no_"):
		h.handleCustomerRejected(ctx, m, chatID)

	case strings.HasPrefix(data, "crm_confirm_yes_"):
		h.handleCrmConfirmYes(ctx, m, chatID)

	case strings.HasPrefix(data, "crm_confirm_no_"):
		h.handleCrmConfirmNo(ctx, m, chatID)

	case strings.HasPrefix(data, "crm_select_"):
		h.handleCrmSelect(ctx, m, chatID, data)

	case strings.HasPrefix(data, "crm_create_yes_"):
		h.handleCrmCreate(ctx, m, chatID, strings.TrimPrefix(data, "crm_create_yes_"), true)

	case strings.HasPrefix(data, "crm_create_yesnoaddr_"):
		h.handleCrmCreate(ctx, m, chatID, strings.TrimPrefix(data, "crm_create_yesnoaddr_"), false)

	case strings.HasPrefix(data, "crm_create_no_"):
		h.store.DeleteCRMDraft(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "✅ OK, ohne CRM-Eintrag.")

	case data == "addr_skip":
		h.handleAddressSkip(ctx, m, chatID)

	case strings.HasPrefix(data, "np_") || strings.HasPrefix(data, "nd_"):
		h.handleAddressChoice(ctx, m, chatID, data)
	}
}

func (h *Handler) handleTaxiChoice(ctx context.Context, m Messenger, chatID int64, data string) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.TaxiChoice == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Anfrage nicht mehr gefunden. Bitte nochmal senden.")
		return
	}
	text, userName := pending.TaxiChoice.Text, pending.TaxiChoice.UserName
	h.store.DeletePending(ctx, chatID)

	if data == "taxi_for_self" {
		h.sendHTML(ctx, m, chatID, "🤖 <i>Analysiere deine Nachricht...</i>")
		h.analyzeBooking(ctx, m, chatID, text, userName, analyzeOptions{ForSelf: true})
		return
	}
	h.store.SetPending(ctx, chatID, &domain.Pending{
		AwaitingCustomerName: true,
		OriginalText:         text,
		UserName:             userName,
	})
	h.sendHTML(ctx, m, chatID, "👤 <b>Für welchen Kunden?</b>\n\nBitte den Kundennamen eingeben:")
}

func (h *Handler) handleBookNo(ctx context.Context, m Messenger, chatID int64, bookingID string) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending != nil && pending.ActiveBooking() != nil && pending.BookingID == bookingID {
		h.sendKeyboard(ctx, m, chatID, "✏️ <b>Was möchten Sie ändern?</b>", &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "⏰ Zeit", CallbackData: "change_time_" + bookingID},
					{Text: "📍 Abholort", CallbackData: "change_pickup_" + bookingID},
				},
				{
					{Text: "🎯 Ziel", CallbackData: "change_dest_" + bookingID},
					{Text: "🗑️ Verwerfen", CallbackData: "discard_" + bookingID},
				},
			},
		})
		return
	}
	h.store.DeletePending(ctx, chatID)
	h.sendHTML(ctx, m, chatID, "👍 OK, Buchung verworfen.")
}

func (h *Handler) handleChange(ctx context.Context, m Messenger, chatID int64, data string) {
	pending, _ := h.store.GetPending(ctx, chatID)
	var b *domain.Booking
	if pending != nil {
		b = pending.ActiveBooking()
	}
	if b == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Buchung nicht mehr vorhanden.")
		return
	}
	switch {
	case strings.HasPrefix(data, "change_time_"):
		flow.ClearField(b, domain.FieldDatetime)
	case strings.HasPrefix(data, "change_pickup_"):
		flow.ClearField(b, domain.FieldPickup)
	default:
		flow.ClearField(b, domain.FieldDestination)
	}
	h.continueBookingFlow(ctx, m, chatID, b, pending.OriginalText)
}

func (h *Handler) handlePassengerChoice(ctx context.Context, m Messenger, chatID int64, data string) {
	match := paxPattern.FindStringSubmatch(data)
	if match == nil {
		return
	}
	pax, _ := strconv.Atoi(match[1])
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.Booking == nil {
		return
	}
	pending.Booking.Passengers = pax
	pending.Booking.PassengersExplicit = true
	h.showConfirmation(ctx, m, chatID, pending.Booking, pending.RoutePrice)
}

func (h *Handler) handleSlotChoice(ctx context.Context, m Messenger, chatID int64, data string) {
	match := slotPattern.FindStringSubmatch(data)
	if match == nil {
		return
	}
	hour, _ := strconv.Atoi(match[2])
	minute, _ := strconv.Atoi(match[3])
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.Booking == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Buchung nicht mehr gefunden.")
		return
	}
	b := pending.Booking
	flow.ShiftToSlot(b, hour, minute, h.loc)
	pending.PrevalidatedSlot = true
	if err := h.store.SetPending(ctx, chatID, pending); err != nil {
		h.logger.Error("Failed to store pending state", zap.Error(err), zap.Int64("chat_id", chatID))
	}

	t := b.PickupTime(h.loc)
	passengers := b.Passengers
	if passengers < 1 {
		passengers = 1
	}
	h.sendKeyboard(ctx, m, chatID,
		fmt.Sprintf("🕐 <b>Neue Zeit: %02d:%02d Uhr</b>\n\n📅 %s um %02d:%02d Uhr\n📍 %s → %s\n👥 %d Person(en)\n\nSoll ich diese Zeit buchen?",
			hour, minute, formatDayLong(t), hour, minute, b.Pickup, b.Destination, passengers),
		&models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "✅ Ja, buchen!", CallbackData: "book_yes_" + pending.BookingID},
				{Text: "❌ Abbrechen", CallbackData: "book_no_" + pending.BookingID},
			}},
		})
}

func (h *Handler) handleDeleteRide(ctx context.Context, m Messenger, chatID int64, rideID string) {
	if err := h.rideRepo.SoftDeleteRide(rideID, chatID); err != nil {
		h.logger.Error("Failed to delete ride", zap.Error(err), zap.String("ride_id", rideID))
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler beim Löschen.")
		return
	}
	pickup, destination := "?", "?"
	if ride, err := h.rideRepo.GetRideByID(rideID); err == nil && ride != nil {
		pickup, destination = ride.Pickup, ride.Destination
	}
	h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>Buchung gelöscht!</b>\n\n📍 %s → %s\n\n<i>Neues Taxi? Schreiben Sie wann und wohin!</i>", pickup, destination))
}

// handleCustomerConfirmed: the operator confirmed the single directory
// match for the typed customer name.
func (h *Handler) handleCustomerConfirmed(ctx context.Context, m Messenger, chatID int64) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.CrmConfirm == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Anfrage nicht mehr gefunden.")
		return
	}
	found := pending.CrmConfirm.Found
	h.store.DeletePending(ctx, chatID)
	h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>%s</b>\n🤖 <i>Analysiere Buchung...</i>", found.Name))
	h.analyzeBooking(ctx, m, chatID, pending.OriginalText, pending.UserName, analyzeOptions{Operator: true, Preselected: &found})
}

func (h *Handler) handleCustomerSelected(ctx context.Context, m Messenger, chatID int64, data string) {
	match := custSelPattern.FindStringSubmatch(data)
	if match == nil {
		return
	}
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.CrmMultiSelect == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Anfrage nicht mehr gefunden.")
		return
	}
	idx, _ := strconv.Atoi(match[1])
	if idx < 0 || idx >= len(pending.CrmMultiSelect.Matches) {
		h.sendHTML(ctx, m, chatID, "⚠️ Ungültige Auswahl.")
		return
	}
	found := pending.CrmMultiSelect.Matches[idx]
	h.store.DeletePending(ctx, chatID)
	h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>%s</b>\n🤖 <i>Analysiere Buchung...</i>", found.Name))
	h.analyzeBooking(ctx, m, chatID, pending.OriginalText, pending.UserName, analyzeOptions{Operator: true, Preselected: &found})
}

func (h *Handler) handleCustomerRejected(ctx context.Context, m Messenger, chatID int64) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Anfrage nicht mehr gefunden.")
		return
	}
	h.store.SetPending(ctx, chatID, &domain.Pending{
		AwaitingCustomerName: true,
		OriginalText:         pending.OriginalText,
		UserName:             pending.UserName,
	})
	h.sendHTML(ctx, m, chatID, "👤 <b>Anderen Kundennamen eingeben:</b>\n\n<i>Oder \"neu\" für ohne CRM-Zuordnung.</i>")
}

// handleCrmConfirmYes: the extraction named a customer and the operator
// confirmed the directory match. The match is applied to the partial
// booking and the flow resumes.
func (h *Handler) handleCrmConfirmYes(ctx context.Context, m Messenger, chatID int64) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.CrmConfirm == nil || pending.Partial == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Nicht mehr gefunden.")
		return
	}
	b := pending.Partial
	flow.ApplyCustomer(b, pending.CrmConfirm.Found, chatID)
	h.continueBookingFlow(ctx, m, chatID, b, pending.OriginalText)
}

func (h *Handler) handleCrmConfirmNo(ctx context.Context, m Messenger, chatID int64) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.Partial == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Nicht mehr gefunden.")
		return
	}
	b := pending.Partial
	b.AdminBooked = true
	b.AdminChatID = chatID
	b.CRMCustomerID = ""
	h.continueBookingFlow(ctx, m, chatID, b, pending.OriginalText)
}

func (h *Handler) handleCrmSelect(ctx context.Context, m Messenger, chatID int64, data string) {
	match := crmSelectPattern.FindStringSubmatch(data)
	if match == nil {
		return
	}
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.CrmMultiSelect == nil || pending.Partial == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Nicht mehr gefunden.")
		return
	}
	idx, _ := strconv.Atoi(match[1])
	if idx < 0 || idx >= len(pending.CrmMultiSelect.Matches) {
		h.sendHTML(ctx, m, chatID, "⚠️ Ungültige Auswahl.")
		return
	}
	b := pending.Partial
	flow.ApplyCustomer(b, pending.CrmMultiSelect.Matches[idx], chatID)
	h.continueBookingFlow(ctx, m, chatID, b, pending.OriginalText)
}

// handleCrmCreate saves the parked customer draft into the directory
// and attaches the ride to the new record.
func (h *Handler) handleCrmCreate(ctx context.Context, m Messenger, chatID int64, rideID string, withAddress bool) {
	draft, err := h.store.GetCRMDraft(ctx, chatID)
	if err != nil || draft == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Kundendaten nicht mehr vorhanden.")
		return
	}

	customer := &domain.Customer{
		Name:       draft.CustomerName,
		Phone:      draft.CustomerPhone,
		TotalRides: 1,
		CreatedBy:  "telegram-admin",
	}
	if withAddress {
		customer.Address = draft.PickupAddress
	}
	created, err := h.customerRepo.CreateCustomer(customer)
	if err != nil {
		h.logger.Error("Failed to create customer", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendHTML(ctx, m, chatID, "⚠️ CRM-Fehler. Bitte versuchen Sie es nochmal.")
		return
	}
	if rideID != "" {
		if err := h.rideRepo.AttachCustomer(rideID, created.ID); err != nil {
			h.logger.Warn("Failed to attach customer to ride", zap.Error(err), zap.String("ride_id", rideID))
		}
	}
	h.store.DeleteCRMDraft(ctx, chatID)

	if withAddress {
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>%s</b> im CRM angelegt!\n📱 %s\n🏠 %s",
			created.Name, orDefault(created.Phone, "(kein Tel.)"), orDefault(created.Address, "(keine Adresse)")))
	} else {
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>%s</b> im CRM angelegt (ohne Adresse)!", created.Name))
	}
}

// handleAddressSkip books on without verified coordinates (no price)
func (h *Handler) handleAddressSkip(ctx context.Context, m Messenger, chatID int64) {
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.Partial == nil {
		return
	}
	b := pending.Partial
	h.askPassengersOrConfirm(ctx, m, chatID, b, h.routePrice(ctx, b), pending.OriginalText)
}

// handleAddressChoice applies a picked disambiguation candidate
func (h *Handler) handleAddressChoice(ctx context.Context, m Messenger, chatID int64, data string) {
	isPickup := strings.HasPrefix(data, "np_")
	idx, err := strconv.Atoi(data[3:])
	if err != nil {
		return
	}
	pending, _ := h.store.GetPending(ctx, chatID)
	if pending == nil || pending.Partial == nil || idx < 0 || idx >= len(pending.NominatimResults) {
		return
	}
	selected := pending.NominatimResults[idx]
	b := pending.Partial
	if isPickup {
		b.Pickup = selected.Name
		b.PickupLat, b.PickupLon = selected.Lat, selected.Lon
	} else {
		b.Destination = selected.Name
		b.DestLat, b.DestLon = selected.Lat, selected.Lon
	}

	// Both addresses were unresolved: with the pickup settled, the
	// destination still needs its own validation round.
	if pending.PendingDestValidation && isPickup {
		pending.PendingDestValidation = false
		if !h.validateAddresses(ctx, m, chatID, b, pending.OriginalText) {
			return
		}
	}

	h.askPassengersOrConfirm(ctx, m, chatID, b, h.routePrice(ctx, b), pending.OriginalText)
}
