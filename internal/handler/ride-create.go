package handler

// ride-create.go
import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"funktaxi/internal/domain"
	"funktaxi/internal/flow"
)

// handleBookYes writes the confirmed booking into the ride book. A
// short-lived lock on the booking id keeps double taps from creating
// duplicate rides.
func (h *Handler) handleBookYes(ctx context.Context, m Messenger, chatID int64) {
	pending, err := h.store.GetPending(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to load pending state", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	if pending == nil || pending.Booking == nil {
		h.sendHTML(ctx, m, chatID, "⚠️ Buchung nicht mehr gefunden. Bitte nochmal senden.")
		return
	}

	lockID := pending.BookingID
	if lockID == "" {
		lockID = strconv.FormatInt(chatID, 10)
	}
	acquired, err := h.store.AcquireBookingLock(ctx, lockID)
	if err != nil {
		// Store trouble must not block the booking
		h.logger.Warn("Booking lock unavailable", zap.Error(err), zap.String("booking_id", lockID))
		acquired = true
	}
	if !acquired {
		return
	}

	if h.store.IsPendingExpired(pending) {
		h.store.DeletePending(ctx, chatID)
		h.sendHTML(ctx, m, chatID, "⏰ <b>Buchung abgelaufen</b> (nach 30 Min).\n\nBitte senden Sie Ihre Anfrage nochmal!")
		return
	}

	b := pending.Booking
	pickup := b.PickupTime(h.loc)
	if pickup.IsZero() {
		pickup = h.now()
	}
	preBooked := flow.IsPreBooking(pickup, h.now(), time.Duration(h.cfg.PreBookMinutes)*time.Minute)
	passengers := b.Passengers
	if passengers < 1 {
		passengers = 1
	}
	rp := pending.RoutePrice
	if rp == nil {
		rp = h.routePrice(ctx, b)
	}

	status := domain.RideStatusOpen
	if preBooked {
		status = domain.RideStatusPreBooked
	}
	source := domain.RideSourceTelegram
	if b.AdminBooked {
		source = domain.RideSourceAdmin
	}
	customerName := b.Name
	if customerName == "" {
		customerName = "Telegram"
	}

	ride := &domain.Ride{
		Pickup:         orDefault(b.Pickup, "Abholort offen"),
		Destination:    orDefault(b.Destination, "Zielort offen"),
		PickupLat:      b.PickupLat,
		PickupLon:      b.PickupLon,
		DestinationLat: b.DestLat,
		DestinationLon: b.DestLon,
		PickupTS:       pickup.UnixMilli(),
		Passengers:     passengers,
		CustomerName:   customerName,
		CustomerPhone:  b.Phone,
		Notes:          b.Notes,
		Status:         status,
		Source:         source,
		CreatedBy:      chatID,
	}
	if b.AdminBooked {
		ride.AdminBookedBy = strconv.FormatInt(b.AdminChatID, 10)
		ride.BookedForCustomer = orDefault(b.ForCustomerName, b.Name)
	}
	if b.CRMCustomerID != "" {
		id := b.CRMCustomerID
		ride.CustomerID = &id
	}
	if rp != nil {
		ride.EstimatedPrice = rp.Price
		ride.EstimatedDistance = rp.DistanceKm
		ride.EstimatedDuration = rp.Minutes
	}

	created, err := h.rideRepo.CreateRide(ride)
	if err != nil {
		h.logger.Error("Failed to create ride", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendHTML(ctx, m, chatID, "⚠️ Fehler beim Eintragen. Bitte versuchen Sie es nochmal.")
		return
	}
	if b.CRMCustomerID != "" {
		if err := h.customerRepo.IncrementTotalRides(b.CRMCustomerID); err != nil {
			h.logger.Warn("Failed to update ride counter", zap.Error(err), zap.String("customer_id", b.CRMCustomerID))
		}
	}

	header := "🎉 <b>Termin eingetragen!</b>\n\n"
	if b.AdminBooked {
		header = fmt.Sprintf("✅ <b>Buchung für %s eingetragen!</b>\n\n", orDefault(b.ForCustomerName, customerName))
	}
	statusLabel := "Offen"
	if preBooked {
		statusLabel = "Vorbestellt"
	}
	msg := header + fmt.Sprintf("📅 %s um %s Uhr\n", formatDayLong(pickup), formatClock(pickup))
	msg += fmt.Sprintf("📍 %s → %s\n", created.Pickup, created.Destination)
	msg += "👤 " + created.CustomerName
	if created.CustomerPhone != "" {
		msg += " · 📱 " + created.CustomerPhone
	}
	msg += fmt.Sprintf("\n👥 %d Person(en)\n", passengers)
	if rp != nil {
		msg += fmt.Sprintf("🗺️ ca. %s km (~%d Min)\n💰 ca. %s €\n", formatKm(rp.DistanceKm), rp.Minutes, formatPrice(rp.Price))
	}
	msg += fmt.Sprintf("📋 Status: %s\n\n✅ Fahrt ist im System!", statusLabel)
	h.sendHTML(ctx, m, chatID, msg)

	h.logger.Info("Ride created",
		zap.String("ride_id", created.ID),
		zap.Int64("chat_id", chatID),
		zap.String("pickup", created.Pickup),
		zap.String("destination", created.Destination),
		zap.String("status", status))

	h.store.DeletePending(ctx, chatID)

	if !b.AdminBooked {
		if b.Phone != "" || b.Name != "" {
			h.linkChatToCustomer(ctx, chatID, b)
		}
		h.notifyOperators(ctx, m, created, rp, preBooked, pickup)
	}

	// Unknown customer booked by an operator: offer a directory entry
	if b.AdminBooked && b.ForCustomerName != "" && b.CRMCustomerID == "" {
		h.offerCRMCreate(ctx, m, chatID, b, created.ID)
	}
}

// notifyOperators pushes a new passenger booking to every operator chat
func (h *Handler) notifyOperators(ctx context.Context, m Messenger, ride *domain.Ride, rp *domain.RoutePrice, preBooked bool, pickup time.Time) {
	if len(h.cfg.OperatorChatIDs) == 0 {
		return
	}
	now := h.now().In(h.loc)

	var timeLabel string
	switch {
	case !preBooked:
		timeLabel = "SOFORT"
	case pickup.Year() == now.Year() && pickup.YearDay() == now.YearDay():
		timeLabel = "Heute " + formatClock(pickup) + " Uhr"
	default:
		timeLabel = formatDateShortYear(pickup) + " " + formatClock(pickup) + " Uhr"
	}

	statusEmoji, statusText := "🚕", "SOFORT-FAHRT!"
	if preBooked {
		statusEmoji, statusText = "📅", "VORBESTELLUNG"
	}

	msg := fmt.Sprintf("%s <b>%s</b>\n🆔 <b>ID:</b> <code>%s</code>\n\n", statusEmoji, statusText, ride.ID)
	msg += fmt.Sprintf("📍 <b>Von:</b> %s\n🎯 <b>Nach:</b> %s\n👤 <b>Name:</b> %s\n", ride.Pickup, ride.Destination, ride.CustomerName)
	if ride.CustomerPhone != "" {
		msg += fmt.Sprintf("📱 <b>Tel:</b> %s\n", ride.CustomerPhone)
	}
	msg += fmt.Sprintf("🕐 <b>Abholung:</b> %s\n👥 <b>Personen:</b> %d\n", timeLabel, ride.Passengers)
	if rp != nil {
		msg += fmt.Sprintf("💰 <b>Preis:</b> ca. %s €\n", formatPrice(rp.Price))
	}
	msg += fmt.Sprintf("⏰ <b>Gesendet:</b> %s\n\n📱 <i>Via Telegram-Bot</i>", formatStamp(now))

	for _, operatorChatID := range h.cfg.OperatorChatIDs {
		h.sendHTML(ctx, m, operatorChatID, msg)
	}
}

// offerCRMCreate parks the unknown customer's data and asks the
// operator whether to save them in the directory.
func (h *Handler) offerCRMCreate(ctx context.Context, m Messenger, chatID int64, b *domain.Booking, rideID string) {
	draft := &domain.CRMDraft{
		CustomerName:  orDefault(b.ForCustomerName, b.Name),
		CustomerPhone: b.Phone,
		PickupAddress: b.Pickup,
		RideID:        rideID,
		CreatedAt:     h.now().UnixMilli(),
	}
	if err := h.store.SetCRMDraft(ctx, chatID, draft); err != nil {
		h.logger.Warn("Failed to store CRM draft", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}

	phone := orDefault(b.Phone, "(keine Angabe)")
	var hint string
	var rows [][]models.InlineKeyboardButton
	if b.Pickup != "" {
		hint = fmt.Sprintf("\n📍 Abholadresse: <i>%s</i>\n\nSoll diese Adresse als <b>Wohnanschrift</b> gespeichert werden?", b.Pickup)
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "✅ Mit Wohnanschrift", CallbackData: "crm_create_yes_" + rideID},
			{Text: "📋 Ohne Adresse", CallbackData: "crm_create_yesnoaddr_" + rideID},
		})
	} else {
		hint = "\n\nSoll ich diesen Kunden im CRM anlegen?"
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "✅ Im CRM anlegen", CallbackData: "crm_create_yesnoaddr_" + rideID},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "❌ Nein", CallbackData: "crm_create_no_" + rideID},
	})

	h.sendKeyboard(ctx, m, chatID,
		fmt.Sprintf("👤 <b>%s</b> ist noch nicht im CRM.\n📱 %s%s", draft.CustomerName, phone, hint),
		&models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
