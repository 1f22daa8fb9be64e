package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"funktaxi/config"
	"funktaxi/internal/ai"
	"funktaxi/internal/geo"
	"funktaxi/internal/handler"
	"funktaxi/internal/repository"
	"funktaxi/internal/store"
	"funktaxi/traits/database"
	"funktaxi/traits/logger"

	"github.com/go-telegram/bot"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Error("error init config", zap.Error(err))
		return
	}

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		zapLogger.Error("invalid configuration", zap.Error(err))
		return
	}

	zapLogger.Info("Starting Funk Taxi bot",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("db_name", cfg.DBName),
	)

	// Initialize database
	db, err := database.InitDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to initialize database", zap.Error(err))
		return
	}
	defer db.Close()

	// Create database tables
	if err := database.CreateTables(db, zapLogger); err != nil {
		zapLogger.Error("failed to create tables", zap.Error(err))
		return
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db, zapLogger)
	rideRepo := repository.NewRideRepository(db, zapLogger)

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation state store
	redisClient := store.NewClient(cfg)
	conversationStore := store.NewStore(redisClient, cfg, zapLogger)
	if err := conversationStore.Ping(ctx); err != nil {
		zapLogger.Error("failed to connect to redis", zap.Error(err))
		return
	}
	defer redisClient.Close()

	// Booking extraction service
	extractor, err := ai.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		zapLogger.Error("failed to init extraction client", zap.Error(err))
		return
	}
	defer extractor.Close()

	// Place resolution: gazetteer + cached Nominatim, routed via OSRM
	geocoder := geo.NewNominatimClient(cfg.GeoTimeout, zapLogger)
	router := geo.NewOSRMClient(cfg.RouteTimeout, zapLogger)
	resolver := geo.NewResolver(conversationStore, geocoder, router, zapLogger)

	// Create handler
	handl := handler.NewHandler(cfg, zapLogger, conversationStore, customerRepo, rideRepo, resolver, extractor)

	// Create bot instance
	opts := []bot.Option{
		bot.WithDefaultHandler(handl.DefaultHandler),
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Error("error creating bot", zap.Error(err))
		return
	}

	// Register the webhook with Telegram
	if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            cfg.WebhookURL,
		AllowedUpdates: []string{"message", "callback_query"},
	}); err != nil {
		zapLogger.Error("failed to set webhook", zap.Error(err))
		return
	}
	zapLogger.Info("Webhook registered", zap.String("url", cfg.WebhookURL))

	// Set up graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-stop
		zapLogger.Info("Shutdown signal received")
		cancel()
	}()

	// Process webhook updates
	go b.StartWebhook(ctx)

	// Serve the webhook endpoint, blocks until shutdown
	handl.StartWebServer(ctx, b)

	zapLogger.Info("Application stopped successfully")
}
