package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains application configuration parameters
type Config struct {
	// Server configuration
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// Telegram Bot configuration
	Token      string `json:"token"`
	WebhookURL string `json:"webhook_url"`

	// Extraction service configuration
	GeminiAPIKey string `json:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model"`

	// Database configuration
	DBName          string        `json:"db_name"`
	DBPath          string        `json:"db_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Redis configuration
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// Operator chats allowed to book on behalf of customers
	OperatorChatIDs []int64 `json:"operator_chat_ids"`

	// App configuration
	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error

	// Business logic configuration
	PendingTTL     time.Duration `json:"pending_ttl"`
	BookingLockTTL time.Duration `json:"booking_lock_ttl"`
	GeoTimeout     time.Duration `json:"geo_timeout"`
	RouteTimeout   time.Duration `json:"route_timeout"`
	PreBookMinutes int           `json:"pre_book_minutes"`
}

// NewConfig creates and returns a new configuration instance
func NewConfig() (*Config, error) {
	cfg := &Config{
		// Server defaults
		Port:         ":8081",
		Host:         "0.0.0.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		// Extraction defaults
		GeminiModel: "gemini-2.0-flash",

		// Database defaults
		DBName:          "funktaxi.db",
		DBPath:          "./data/",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,

		// Redis defaults
		RedisAddr: "localhost:6379",

		// App defaults
		Environment: "development",
		LogLevel:    "info",

		// Business defaults
		PendingTTL:     30 * time.Minute,
		BookingLockTTL: 60 * time.Second,
		GeoTimeout:     10 * time.Second,
		RouteTimeout:   10 * time.Second,
		PreBookMinutes: 30,
	}

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if port[0] != ':' {
			cfg.Port = ":" + port
		} else {
			cfg.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Token = token
	}

	if webhookURL := os.Getenv("WEBHOOK_URL"); webhookURL != "" {
		cfg.WebhookURL = webhookURL
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.GeminiAPIKey = apiKey
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.GeminiModel = model
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.RedisDB = db
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Comma-separated list of operator chat ids
	if operators := os.Getenv("OPERATOR_CHAT_IDS"); operators != "" {
		for _, part := range strings.Split(operators, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if id, err := strconv.ParseInt(part, 10, 64); err == nil {
				cfg.OperatorChatIDs = append(cfg.OperatorChatIDs, id)
			}
		}
	}

	// Parse numeric environment variables
	if maxOpenConns := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenConns != "" {
		if conns, err := strconv.Atoi(maxOpenConns); err == nil {
			cfg.MaxOpenConns = conns
		}
	}

	if maxIdleConns := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleConns != "" {
		if conns, err := strconv.Atoi(maxIdleConns); err == nil {
			cfg.MaxIdleConns = conns
		}
	}

	if preBook := os.Getenv("PRE_BOOK_MINUTES"); preBook != "" {
		if minutes, err := strconv.Atoi(preBook); err == nil {
			cfg.PreBookMinutes = minutes
		}
	}

	// Parse duration environment variables
	if readTimeout := os.Getenv("READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if idleTimeout := os.Getenv("IDLE_TIMEOUT"); idleTimeout != "" {
		if timeout, err := time.ParseDuration(idleTimeout); err == nil {
			cfg.IdleTimeout = timeout
		}
	}

	if connMaxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); connMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(connMaxLifetime); err == nil {
			cfg.ConnMaxLifetime = lifetime
		}
	}

	if pendingTTL := os.Getenv("PENDING_TTL"); pendingTTL != "" {
		if ttl, err := time.ParseDuration(pendingTTL); err == nil {
			cfg.PendingTTL = ttl
		}
	}

	if lockTTL := os.Getenv("BOOKING_LOCK_TTL"); lockTTL != "" {
		if ttl, err := time.ParseDuration(lockTTL); err == nil {
			cfg.BookingLockTTL = ttl
		}
	}

	if geoTimeout := os.Getenv("GEO_TIMEOUT"); geoTimeout != "" {
		if timeout, err := time.ParseDuration(geoTimeout); err == nil {
			cfg.GeoTimeout = timeout
		}
	}

	if routeTimeout := os.Getenv("ROUTE_TIMEOUT"); routeTimeout != "" {
		if timeout, err := time.ParseDuration(routeTimeout); err == nil {
			cfg.RouteTimeout = timeout
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabasePath returns the full path to the database file
func (c *Config) GetDatabasePath() string {
	return c.DBPath + c.DBName
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return c.Host + c.Port
}

// IsOperator reports whether a chat id is on the operator allowlist
func (c *Config) IsOperator(chatID int64) bool {
	for _, id := range c.OperatorChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// ValidateConfig validates the configuration
func (c *Config) ValidateConfig() error {
	if c.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}

	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.PendingTTL <= 0 {
		return fmt.Errorf("pending TTL must be positive")
	}

	if c.BookingLockTTL <= 0 {
		return fmt.Errorf("booking lock TTL must be positive")
	}

	return nil
}
