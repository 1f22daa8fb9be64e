package handler

// handler.go
import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"funktaxi/config"
	"funktaxi/internal/ai"
	"funktaxi/internal/domain"
)

// Messenger is the slice of the Telegram bot API the handlers need.
// *bot.Bot satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// ConversationStore holds the per-chat dialogue state
type ConversationStore interface {
	GetPending(ctx context.Context, chatID int64) (*domain.Pending, error)
	SetPending(ctx context.Context, chatID int64, p *domain.Pending) error
	DeletePending(ctx context.Context, chatID int64) error
	IsPendingExpired(p *domain.Pending) bool
	GetCRMDraft(ctx context.Context, chatID int64) (*domain.CRMDraft, error)
	SetCRMDraft(ctx context.Context, chatID int64, d *domain.CRMDraft) error
	DeleteCRMDraft(ctx context.Context, chatID int64) error
	GetCustomerLink(ctx context.Context, chatID int64) (*domain.CustomerLink, error)
	SetCustomerLink(ctx context.Context, chatID int64, link *domain.CustomerLink) error
	DeleteCustomerLink(ctx context.Context, chatID int64) error
	AcquireBookingLock(ctx context.Context, bookingID string) (bool, error)
}

// CustomerDirectory is the customer database
type CustomerDirectory interface {
	CreateCustomer(c *domain.Customer) (*domain.Customer, error)
	GetAllCustomers() ([]domain.Customer, error)
	LinkTelegramChat(customerID string, chatID int64) error
	IncrementTotalRides(customerID string) error
}

// RideBook is the ride database
type RideBook interface {
	CreateRide(ride *domain.Ride) (*domain.Ride, error)
	GetRideByID(rideID string) (*domain.Ride, error)
	GetUpcomingRidesByPhone(phone string, limit int) ([]*domain.Ride, error)
	SoftDeleteRide(rideID string, deletedBy int64) error
	AttachCustomer(rideID, customerID string) error
}

// PlaceResolver turns free-text addresses into coordinates and routes
type PlaceResolver interface {
	Resolve(ctx context.Context, address string) (domain.Place, bool)
	Candidates(ctx context.Context, query string) []domain.Place
	Route(ctx context.Context, from, to domain.Place) (domain.RouteEstimate, error)
}

type Handler struct {
	logger       *zap.Logger
	cfg          *config.Config
	store        ConversationStore
	customerRepo CustomerDirectory
	rideRepo     RideBook
	resolver     PlaceResolver
	extractor    ai.Extractor
	loc          *time.Location
	now          func() time.Time
}

func NewHandler(cfg *config.Config, logger *zap.Logger, store ConversationStore, customerRepo CustomerDirectory, rideRepo RideBook, resolver PlaceResolver, extractor ai.Extractor) *Handler {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.Local
	}
	return &Handler{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		customerRepo: customerRepo,
		rideRepo:     rideRepo,
		resolver:     resolver,
		extractor:    extractor,
		loc:          loc,
		now:          time.Now,
	}
}

// DefaultHandler receives every Telegram update and dispatches it.
// Registered via bot.WithDefaultHandler.
func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.HandleUpdate(ctx, b, update)
}

func (h *Handler) HandleUpdate(ctx context.Context, m Messenger, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, m, update.CallbackQuery)
	case update.Message != nil && update.Message.Contact != nil:
		h.handleContact(ctx, m, update.Message)
	case update.Message != nil && update.Message.Text != "":
		h.handleMessage(ctx, m, update.Message)
	}
}

// StartWebServer runs the HTTP server carrying the Telegram webhook.
// Blocks until ctx is cancelled, then shuts down gracefully.
func (h *Handler) StartWebServer(ctx context.Context, b *bot.Bot) {
	r := mux.NewRouter()

	r.HandleFunc("/webhook", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Funk Taxi Heringsdorf Telegram Bot - Webhook aktiv"))
	}).Methods("GET")
	r.HandleFunc("/webhook", b.WebhookHandler()).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	port := h.cfg.Port
	if !strings.Contains(port, ":") {
		port = ":" + port
	}

	server := &http.Server{
		Addr:         port,
		Handler:      r,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
		IdleTimeout:  h.cfg.IdleTimeout,
	}

	h.logger.Info("Starting webhook server", zap.String("port", port))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Fatal("Failed to start web server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	h.logger.Info("Shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		h.logger.Error("Server shutdown error", zap.Error(err))
	}
}

// sendHTML sends an HTML-formatted message, logging failures
func (h *Handler) sendHTML(ctx context.Context, m Messenger, chatID int64, text string) bool {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		h.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
		return false
	}
	return true
}

// sendKeyboard sends an HTML message with an inline keyboard
func (h *Handler) sendKeyboard(ctx context.Context, m Messenger, chatID int64, text string, kb *models.InlineKeyboardMarkup) bool {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: kb,
	})
	if err != nil {
		h.logger.Error("Failed to send keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
		return false
	}
	return true
}

// sendContactRequest asks for the phone number via a reply keyboard
func (h *Handler) sendContactRequest(ctx context.Context, m Messenger, chatID int64, text string) {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard: [][]models.KeyboardButton{
				{{Text: "📱 Telefonnummer teilen", RequestContact: true}},
			},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	})
	if err != nil {
		h.logger.Error("Failed to send contact request", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

// sendRemoveKeyboard sends a message and removes any reply keyboard
func (h *Handler) sendRemoveKeyboard(ctx context.Context, m Messenger, chatID int64, text string) {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: &models.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
	if err != nil {
		h.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

// knownCustomer fetches the saved chat-to-customer link, nil when none
func (h *Handler) knownCustomer(ctx context.Context, chatID int64) *domain.CustomerLink {
	link, err := h.store.GetCustomerLink(ctx, chatID)
	if err != nil {
		h.logger.Warn("Failed to load customer link", zap.Error(err), zap.Int64("chat_id", chatID))
		return nil
	}
	return link
}
