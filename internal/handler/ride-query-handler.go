package handler

// ride-query-handler.go
import (
	"context"
	"fmt"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"funktaxi/internal/domain"
)

const maxListedRides = 5

// listBookings shows the caller's upcoming rides
func (h *Handler) listBookings(ctx context.Context, m Messenger, chatID int64, known *domain.CustomerLink) {
	if known == nil {
		h.sendHTML(ctx, m, chatID, "❓ Ich habe noch keine Buchungen für Sie gespeichert.\n\nBitte teilen Sie Ihre Telefonnummer.")
		return
	}
	rides, err := h.rideRepo.GetUpcomingRidesByPhone(known.Phone, maxListedRides)
	if err != nil {
		h.logger.Error("Failed to load rides", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler beim Abrufen der Buchungen.")
		return
	}
	if len(rides) == 0 {
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("📋 <b>%s</b>, Sie haben keine bevorstehenden Buchungen.\n\nSchreiben Sie jederzeit eine neue Anfrage!", known.Name))
		return
	}

	msg := fmt.Sprintf("📋 <b>Ihre Buchungen, %s:</b>\n\n", known.Name)
	for _, r := range rides {
		t := r.PickupTime(h.loc)
		status := r.Status
		if status == "" {
			status = "offen"
		}
		msg += fmt.Sprintf("📅 <b>%s Uhr</b>\n📍 %s → %s\n📋 %s\n\n", formatDayShort(t), r.Pickup, r.Destination, status)
	}
	h.sendHTML(ctx, m, chatID, msg)
}

// listDeletableBookings shows upcoming rides with delete buttons
func (h *Handler) listDeletableBookings(ctx context.Context, m Messenger, chatID int64, known *domain.CustomerLink) {
	if known == nil {
		h.sendHTML(ctx, m, chatID, "❓ Bitte teilen Sie Ihre Telefonnummer damit ich Ihre Buchungen finde.")
		return
	}
	rides, err := h.rideRepo.GetUpcomingRidesByPhone(known.Phone, maxListedRides)
	if err != nil {
		h.logger.Error("Failed to load rides", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler beim Abrufen der Buchungen.")
		return
	}
	if len(rides) == 0 {
		h.sendHTML(ctx, m, chatID, fmt.Sprintf("📋 <b>%s</b>, keine löschbaren Buchungen vorhanden.", known.Name))
		return
	}

	msg := "📋 <b>Welche Buchung löschen?</b>\n\n"
	var buttons [][]models.InlineKeyboardButton
	for _, r := range rides {
		t := r.PickupTime(h.loc)
		timeStr := formatDayShort(t)
		msg += fmt.Sprintf("📅 <b>%s Uhr</b>\n📍 %s → %s\n\n", timeStr, r.Pickup, r.Destination)
		buttons = append(buttons, []models.InlineKeyboardButton{
			{Text: fmt.Sprintf("🗑️ %s: %s...", timeStr, truncate(r.Pickup, 20)), CallbackData: "del_ride_" + r.ID},
		})
	}
	buttons = append(buttons, []models.InlineKeyboardButton{
		{Text: "✖️ Nichts löschen", CallbackData: "del_cancel"},
	})
	h.sendKeyboard(ctx, m, chatID, msg, &models.InlineKeyboardMarkup{InlineKeyboard: buttons})
}
