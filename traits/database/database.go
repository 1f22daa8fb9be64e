package database

import (
	"database/sql"
	"os"

	"funktaxi/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InitDatabase initializes the SQLite database
func InitDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DBPath, 0755); err != nil {
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", cfg.GetDatabasePath()+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database initialized successfully",
		zap.String("path", cfg.GetDatabasePath()),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return db, nil
}

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// CreateTables creates customers and rides tables with UUID primary keys
func CreateTables(db *sql.DB, logger *zap.Logger) error {
	customersTable := `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-' || substr('89ab',abs(random()) % 4 + 1, 1) || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6)))),
			name TEXT NOT NULL,
			phone TEXT DEFAULT '',
			mobile TEXT DEFAULT '',
			address TEXT DEFAULT '',
			default_pickup TEXT DEFAULT '',
			telegram_chat_id INTEGER NULL,
			notes TEXT DEFAULT '',
			is_vip BOOLEAN DEFAULT FALSE,
			total_rides INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT DEFAULT ''
		);`

	ridesTable := `
		CREATE TABLE IF NOT EXISTS rides (
			id TEXT PRIMARY KEY,
			pickup TEXT NOT NULL,
			destination TEXT NOT NULL,
			pickup_lat REAL DEFAULT 0.0,
			pickup_lon REAL DEFAULT 0.0,
			destination_lat REAL DEFAULT 0.0,
			destination_lon REAL DEFAULT 0.0,
			pickup_ts INTEGER NOT NULL,
			passengers INTEGER DEFAULT 1,
			customer_name TEXT DEFAULT '',
			customer_phone TEXT DEFAULT '',
			customer_id TEXT NULL,
			notes TEXT DEFAULT '',
			status TEXT DEFAULT 'open' CHECK (status IN ('open', 'vorbestellt', 'deleted')),
			source TEXT DEFAULT 'telegram-bot',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			created_by INTEGER DEFAULT 0,
			admin_booked_by TEXT DEFAULT '',
			booked_for_customer TEXT DEFAULT '',
			estimated_price REAL DEFAULT 0.0,
			estimated_distance REAL DEFAULT 0.0,
			estimated_duration INTEGER DEFAULT 0,
			deleted_by INTEGER NULL,
			deleted_at DATETIME NULL,
			FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE SET NULL
		);`

	// Table creation/verification
	tables := []struct {
		name string
		sql  string
	}{
		{"customers", customersTable},
		{"rides", ridesTable},
	}

	for _, table := range tables {
		// Check if table exists
		var tableCount int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table.name).Scan(&tableCount)
		if err != nil {
			logger.Error("Failed to check table existence", zap.String("table", table.name), zap.Error(err))
			return err
		}

		if tableCount == 0 {
			// Table doesn't exist, create it
			if _, err := db.Exec(table.sql); err != nil {
				logger.Error("Failed to create table", zap.String("table", table.name), zap.Error(err))
				return err
			}
			logger.Info("Table created successfully", zap.String("table", table.name))
		} else {
			logger.Info("Table exists, checking for missing columns", zap.String("table", table.name))

			if table.name == "customers" {
				columnsToAdd := []struct {
					name string
					sql  string
				}{
					{"default_pickup", "ALTER TABLE customers ADD COLUMN default_pickup TEXT DEFAULT '';"},
					{"telegram_chat_id", "ALTER TABLE customers ADD COLUMN telegram_chat_id INTEGER NULL;"},
					{"is_vip", "ALTER TABLE customers ADD COLUMN is_vip BOOLEAN DEFAULT FALSE;"},
					{"total_rides", "ALTER TABLE customers ADD COLUMN total_rides INTEGER DEFAULT 0;"},
					{"created_by", "ALTER TABLE customers ADD COLUMN created_by TEXT DEFAULT '';"},
				}

				for _, col := range columnsToAdd {
					if _, err := db.Exec(col.sql); err != nil {
						// Column might already exist, that's okay
						logger.Debug("Column might already exist",
							zap.String("table", table.name),
							zap.String("column", col.name),
							zap.Error(err))
					} else {
						logger.Info("Added missing column",
							zap.String("table", table.name),
							zap.String("column", col.name))
					}
				}
			}

			if table.name == "rides" {
				columnsToAdd := []struct {
					name string
					sql  string
				}{
					{"admin_booked_by", "ALTER TABLE rides ADD COLUMN admin_booked_by TEXT DEFAULT '';"},
					{"booked_for_customer", "ALTER TABLE rides ADD COLUMN booked_for_customer TEXT DEFAULT '';"},
					{"customer_id", "ALTER TABLE rides ADD COLUMN customer_id TEXT NULL;"},
					{"estimated_price", "ALTER TABLE rides ADD COLUMN estimated_price REAL DEFAULT 0.0;"},
					{"estimated_distance", "ALTER TABLE rides ADD COLUMN estimated_distance REAL DEFAULT 0.0;"},
					{"estimated_duration", "ALTER TABLE rides ADD COLUMN estimated_duration INTEGER DEFAULT 0;"},
					{"deleted_by", "ALTER TABLE rides ADD COLUMN deleted_by INTEGER NULL;"},
					{"deleted_at", "ALTER TABLE rides ADD COLUMN deleted_at DATETIME NULL;"},
				}

				for _, col := range columnsToAdd {
					if _, err := db.Exec(col.sql); err != nil {
						// Column might already exist, that's okay
						logger.Debug("Column might already exist",
							zap.String("table", table.name),
							zap.String("column", col.name),
							zap.Error(err))
					} else {
						logger.Info("Added missing column",
							zap.String("table", table.name),
							zap.String("column", col.name))
					}
				}
			}
		}
	}

	// Helpful indexes for lookups by phone, chat id, and pickup time
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);",
		"CREATE INDEX IF NOT EXISTS idx_customers_chat_id ON customers(telegram_chat_id);",
		"CREATE INDEX IF NOT EXISTS idx_rides_created_by ON rides(created_by);",
		"CREATE INDEX IF NOT EXISTS idx_rides_pickup_ts ON rides(pickup_ts);",
		"CREATE INDEX IF NOT EXISTS idx_rides_status ON rides(status);",
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			logger.Error("Failed to create index", zap.Error(err))
			return err
		}
	}

	logger.Info("All tables ready")
	return nil
}
