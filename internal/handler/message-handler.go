package handler

// message-handler.go
import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"funktaxi/internal/domain"
	"funktaxi/internal/flow"
	"funktaxi/internal/intent"
)

func (h *Handler) handleMessage(ctx context.Context, m Messenger, message *models.Message) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}
	textCmd := strings.ToLower(text)
	userName := "Unbekannt"
	if message.From != nil && message.From.FirstName != "" {
		userName = message.From.FirstName
	}

	h.logger.Info("Incoming message",
		zap.Int64("chat_id", chatID),
		zap.String("user", userName),
		zap.String("text", truncate(text, 100)))

	if strings.HasPrefix(textCmd, "/") {
		h.handleCommand(ctx, m, chatID, text, textCmd)
		return
	}

	pending, err := h.store.GetPending(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to load pending state", zap.Error(err), zap.Int64("chat_id", chatID))
	}

	if pending != nil && h.store.IsPendingExpired(pending) {
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "⏰ <b>Ihre vorherige Anfrage ist abgelaufen</b> (nach 30 Minuten).\n\nSchreiben Sie einfach eine neue Anfrage!")
		pending = nil
	}

	// A confirmation keyboard is on screen, no free text accepted
	if pending != nil && pending.Booking != nil && pending.BookingID != "" {
		h.sendHTML(ctx, m, chatID, "⏳ <b>Bitte erst die aktuelle Buchung bestätigen oder ablehnen!</b>\n\n<i>/abbrechen zum Zurücksetzen</i>")
		return
	}

	// Operator typed a customer name after "Für einen Kunden"
	if pending != nil && pending.AwaitingCustomerName {
		h.handleCustomerNameInput(ctx, m, chatID, text, pending)
		return
	}

	// Reply within an incomplete booking
	if pending != nil && pending.Partial != nil {
		h.sendHTML(ctx, m, chatID, "🤖 <i>Ergänze fehlende Infos...</i>")
		h.analyzeFollowUp(ctx, m, chatID, text, userName, pending)
		return
	}

	known := h.knownCustomer(ctx, chatID)
	isOperator := h.cfg.IsOperator(chatID)

	if known == nil && !isOperator {
		h.sendContactRequest(ctx, m, chatID,
			"👋 Hallo! Ich bin der <b>Taxibot von Funk Taxi Heringsdorf</b>.\n\n📱 Bitte teilen Sie einmalig Ihre Telefonnummer.\n\nOder schreiben Sie direkt Ihre Anfrage:\n<i>„Morgen 10 Uhr vom Bahnhof Heringsdorf nach Ahlbeck\"</i>")
	}

	if intent.IsStatusQuery(text) {
		h.listBookings(ctx, m, chatID, known)
		return
	}
	if intent.IsDeleteQuery(text) {
		h.listDeletableBookings(ctx, m, chatID, known)
		return
	}

	// Operators first pick who the ride is for
	if isOperator {
		h.store.SetPending(ctx, chatID, &domain.Pending{
			TaxiChoice: &domain.TaxiChoice{Text: text, UserName: userName},
		})
		h.sendKeyboard(ctx, m, chatID, "🚕 <b>Neue Buchung</b>\n\nMöchtest du für einen Kunden buchen oder für dich selber?", &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "👤 Für einen Kunden", CallbackData: "taxi_for_customer"}},
				{{Text: "🙋 Für mich selber", CallbackData: "taxi_for_self"}},
			},
		})
		return
	}

	h.sendHTML(ctx, m, chatID, "🤖 <i>Analysiere Ihre Nachricht...</i>")
	h.analyzeBooking(ctx, m, chatID, text, userName, analyzeOptions{})
}

func (h *Handler) handleCommand(ctx context.Context, m Messenger, chatID int64, text, textCmd string) {
	switch textCmd {
	case "/start":
		known := h.knownCustomer(ctx, chatID)
		greeting := "🚕 <b>Funk Taxi Heringsdorf</b>\n\n"
		if known != nil {
			phone := known.Phone
			if phone == "" {
				phone = "Telefon gespeichert"
			}
			greeting += fmt.Sprintf("👋 Hallo <b>%s</b>! Schön, Sie wieder zu sehen.\n📱 %s\n\nWas kann ich für Sie tun?", known.Name, phone)
		} else {
			greeting += "Herzlich willkommen! Ich bin Ihr persönlicher Taxi-Assistent.\n\n💡 <i>Tipp: Teilen Sie einmalig Ihre Telefonnummer, damit wir Sie beim nächsten Mal sofort erkennen.</i>"
		}
		lastRow := []models.InlineKeyboardButton{{Text: "ℹ️ Hilfe & Befehle", CallbackData: "menu_hilfe"}}
		if known != nil {
			lastRow = []models.InlineKeyboardButton{{Text: "🔓 Abmelden", CallbackData: "menu_abmelden"}}
		}
		h.sendKeyboard(ctx, m, chatID, greeting, &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "🚕 Fahrt buchen", CallbackData: "menu_buchen"}},
				{{Text: "📊 Meine Fahrten", CallbackData: "menu_status"}, {Text: "ℹ️ Hilfe", CallbackData: "menu_hilfe"}},
				lastRow,
			},
		})
		if known == nil {
			h.sendContactRequest(ctx, m, chatID, "📱 <b>Telefonnummer teilen</b> – einmalig, damit wir Sie sofort erkennen:")
		}

	case "/buchen":
		h.sendHTML(ctx, m, chatID, "🚕 <b>Neue Fahrt buchen</b>\n\nSchreiben Sie mir einfach Ihre Fahrtwünsche:\n\n• <i>Jetzt vom Bahnhof Heringsdorf nach Ahlbeck</i>\n• <i>Morgen 10 Uhr Hotel Maritim → Flughafen BER</i>\n• <i>Freitag 14:30 Seebrücke Bansin nach Zinnowitz, 3 Personen</i>\n\n<i>Ich analysiere Ihre Nachricht automatisch.</i>")

	case "/hilfe", "/help":
		known := h.knownCustomer(ctx, chatID)
		msg := "🚕 <b>Funk Taxi Heringsdorf – Taxibot</b>\n\n<b>So buchen Sie:</b>\nSchreiben Sie einfach eine Nachricht, z.B.:\n• <i>Morgen 10 Uhr vom Bahnhof nach Ahlbeck</i>\n\n<b>Befehle:</b>\n/buchen – 🚕 Neue Fahrt\n/status – 📊 Ihre Fahrten\n/abbrechen – ❌ Buchung abbrechen\n/abmelden – 🔓 Abmelden\n/hilfe – ℹ️ Übersicht"
		if known != nil {
			phone := known.Phone
			if phone == "" {
				phone = "keine Telefonnummer"
			}
			msg += fmt.Sprintf("\n\n<b>Ihr Profil:</b>\n👤 %s\n📱 %s", known.Name, phone)
		}
		h.sendHTML(ctx, m, chatID, msg)

	case "/abmelden":
		known := h.knownCustomer(ctx, chatID)
		if known != nil {
			h.store.DeleteCustomerLink(ctx, chatID)
			h.sendHTML(ctx, m, chatID, fmt.Sprintf("✅ <b>Abgemeldet!</b>\n\nIhr Profil (%s) wurde gelöscht.\n\nTippen Sie /start um sich wieder anzumelden.", known.Name))
		} else {
			h.sendHTML(ctx, m, chatID, "ℹ️ Sie sind aktuell nicht angemeldet. Tippen Sie /start.")
		}

	case "/abbrechen", "/reset", "/neu":
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "🔄 Buchung abgebrochen.\n\nSchreiben Sie jederzeit eine neue Anfrage.")

	case "/status":
		known := h.knownCustomer(ctx, chatID)
		if known != nil {
			h.listBookings(ctx, m, chatID, known)
		} else {
			h.sendContactRequest(ctx, m, chatID, "📊 <b>Status</b>\n\nBitte teilen Sie Ihre Telefonnummer!")
		}

	default:
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("❓ Befehl <b>%s</b> nicht erkannt.\n\n/buchen – 🚕 Neue Fahrt\n/status – 📊 Meine Fahrten\n/abbrechen – ❌ Abbrechen\n/hilfe – ℹ️ Hilfe", text))
	}
}

// handleCustomerNameInput matches an operator-typed customer name
// against the directory before the booking is analyzed.
func (h *Handler) handleCustomerNameInput(ctx context.Context, m Messenger, chatID int64, text string, pending *domain.Pending) {
	customerName := strings.TrimSpace(text)

	if flow.IsSkipCRM(customerName) {
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "🤖 <i>Analysiere Buchung ohne CRM-Zuordnung...</i>")
		h.analyzeBooking(ctx, m, chatID, pending.OriginalText, pending.UserName, analyzeOptions{Operator: true})
		return
	}

	matches := h.searchCustomers(customerName)
	switch {
	case len(matches) == 1:
		found := matches[0].Ref()
		confirmID := uuid.NewString()
		h.store.SetPending(ctx, chatID, &domain.Pending{
			AwaitingAdminCrmConfirm: true,
			OriginalText:            pending.OriginalText,
			UserName:                pending.UserName,
			SearchName:              customerName,
			CrmConfirm:              &domain.CrmConfirm{Found: found, ConfirmID: confirmID},
		})
		msg := fmt.Sprintf("🔍 <b>Kunde im CRM gefunden:</b>\n\n👤 <b>%s</b>\n", found.Name)
		if found.Phone != "" {
			msg += fmt.Sprintf("📱 %s\n", found.Phone)
		}
		if found.Address != "" {
			msg += fmt.Sprintf("🏠 %s\n", found.Address)
		}
		msg += "\n<b>Ist das der richtige Kunde?</b>"
		h.sendKeyboard(ctx, m, chatID, msg, &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "✅ Ja, genau!", CallbackData: "admin_cust_yes_" + confirmID},
				{Text: "❌ Anderer Kunde", CallbackData: "admin_cust_no_" + confirmID},
			}},
		})

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
				{Text: label, CallbackData: fmt.Sprintf("admin_cust_sel_%d_%s", i, confirmID)},
			})
		}
		buttons = append(buttons, []models.InlineKeyboardButton{
			{Text: "🆕 Keiner davon", CallbackData: "admin_cust_no_" + confirmID},
		})
		h.store.SetPending(ctx, chatID, &domain.Pending{
			AwaitingAdminCrmConfirm: true,
			OriginalText:            pending.OriginalText,
			UserName:                pending.UserName,
			SearchName:              customerName,
			CrmMultiSelect:          &domain.CrmMultiSelect{Matches: refs, ConfirmID: confirmID},
		})
		h.sendKeyboard(ctx, m, chatID, fmt.Sprintf("🔍 <b>Mehrere Kunden gefunden für „%s\":</b>", customerName), &models.InlineKeyboardMarkup{InlineKeyboard: buttons})

	default:
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("🔍 <i>\"%s\" nicht im CRM.</i>\n🤖 <i>Analysiere Buchung...</i>", customerName))
		h.analyzeBooking(ctx, m, chatID, pending.OriginalText, pending.UserName, analyzeOptions{Operator: true, ForCustomerName: customerName})
	}
}
