package handler

// contact-handler.go
import (
	"context"
	"fmt"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"funktaxi/internal/crm"
	"funktaxi/internal/domain"
)

// handleContact links a shared phone number to the chat, matching it
// against the customer directory when possible.
func (h *Handler) handleContact(ctx context.Context, m Messenger, message *models.Message) {
	chatID := message.Chat.ID
	firstName := message.Contact.FirstName
	if firstName == "" && message.From != nil {
		firstName = message.From.FirstName
	}
	if firstName == "" {
		firstName = "Unbekannt"
	}

	phone := crm.NormalizeContactPhone(message.Contact.PhoneNumber)
	h.logger.Info("Contact shared", zap.Int64("chat_id", chatID), zap.String("phone", phone))

	if h.cfg.IsOperator(chatID) {
		h.sendRemoveKeyboard(ctx, m, chatID, "✅ <b>Admin-Kontakt erkannt.</b>\n\nKeine Kunden-Verknüpfung nötig.")
		return
	}

	customers, err := h.customerRepo.GetAllCustomers()
	if err != nil {
		h.logger.Warn("Failed to load customers", zap.Error(err))
		h.sendRemoveKeyboard(ctx, m, chatID, "✅ Telefonnummer erhalten! Sie können jetzt buchen.")
		return
	}

	if found, ok := crm.FindByPhone(customers, phone); ok {
		savedPhone := found.BestPhone()
		if savedPhone == "" {
			savedPhone = phone
		}
		h.store.SetCustomerLink(ctx, chatID, &domain.CustomerLink{
			CustomerID: found.ID,
			Name:       orDefault(found.Name, firstName),
			Phone:      savedPhone,
			Address:    found.Address,
			LinkedAt:   h.now().UnixMilli(),
		})
		if err := h.customerRepo.LinkTelegramChat(found.ID, chatID); err != nil {
			h.logger.Warn("Failed to link telegram chat", zap.Error(err), zap.String("customer_id", found.ID))
		}
		h.sendRemoveKeyboard(ctx, m, chatID, fmt.Sprintf("✅ <b>Willkommen zurück, %s!</b>\n\nIhre Nummer <b>%s</b> ist gespeichert.\n\nSchreiben Sie wann und wohin – ich buche sofort!", found.Name, phone))
		return
	}

	h.store.SetCustomerLink(ctx, chatID, &domain.CustomerLink{
		Name:     firstName,
		Phone:    phone,
		LinkedAt: h.now().UnixMilli(),
	})
	h.sendRemoveKeyboard(ctx, m, chatID, fmt.Sprintf("✅ <b>Danke, %s!</b>\n\nIhre Nummer <b>%s</b> wurde gespeichert.\n\nSchreiben Sie jetzt wann und wohin!", firstName, phone))
}
