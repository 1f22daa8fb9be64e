package repository

import (
	"database/sql"
	"fmt"
	"time"

	"funktaxi/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CustomerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCustomerRepository(db *sql.DB, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCustomer creates a new directory entry
func (r *CustomerRepository) CreateCustomer(c *domain.Customer) (*domain.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO customers (
			id, name, phone, mobile, address, default_pickup,
			telegram_chat_id, notes, is_vip, total_rides, created_at, updated_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()

	_, err := r.db.Exec(query,
		c.ID, c.Name, c.Phone, c.Mobile, c.Address, c.DefaultPickup,
		c.TelegramChatID, c.Notes, c.IsVIP, c.TotalRides, now, now, c.CreatedBy,
	)

	if err != nil {
		r.logger.Error("Failed to create customer", zap.Error(err))
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	return r.GetCustomerByID(c.ID)
}

// GetCustomerByID retrieves a customer by their database ID (UUID)
func (r *CustomerRepository) GetCustomerByID(customerID string) (*domain.Customer, error) {
	query := `
		SELECT id, name, phone, mobile, address, default_pickup,
			   telegram_chat_id, notes, is_vip, total_rides, created_at, updated_at, created_by
		FROM customers
		WHERE id = ?`

	customer := &domain.Customer{}
	var telegramChatID sql.NullInt64

	err := r.db.QueryRow(query, customerID).Scan(
		&customer.ID, &customer.Name, &customer.Phone, &customer.Mobile,
		&customer.Address, &customer.DefaultPickup, &telegramChatID,
		&customer.Notes, &customer.IsVIP, &customer.TotalRides,
		&customer.CreatedAt, &customer.UpdatedAt, &customer.CreatedBy,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("customer not found")
		}
		r.logger.Error("Failed to get customer by ID", zap.Error(err), zap.String("customer_id", customerID))
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	if telegramChatID.Valid {
		customer.TelegramChatID = &telegramChatID.Int64
	}

	return customer, nil
}

// GetAllCustomers loads the whole directory, used for name and phone
// matching. The directory of a local taxi company stays small enough
// to match in memory.
func (r *CustomerRepository) GetAllCustomers() ([]domain.Customer, error) {
	query := `
		SELECT id, name, phone, mobile, address, default_pickup,
			   telegram_chat_id, notes, is_vip, total_rides, created_at, updated_at, created_by
		FROM customers
		ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list customers", zap.Error(err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var customer domain.Customer
		var telegramChatID sql.NullInt64

		err := rows.Scan(
			&customer.ID, &customer.Name, &customer.Phone, &customer.Mobile,
			&customer.Address, &customer.DefaultPickup, &telegramChatID,
			&customer.Notes, &customer.IsVIP, &customer.TotalRides,
			&customer.CreatedAt, &customer.UpdatedAt, &customer.CreatedBy,
		)
		if err != nil {
			r.logger.Error("Failed to scan customer", zap.Error(err))
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}

		if telegramChatID.Valid {
			customer.TelegramChatID = &telegramChatID.Int64
		}
		customers = append(customers, customer)
	}

	return customers, rows.Err()
}

// LinkTelegramChat records which Telegram chat belongs to a customer
func (r *CustomerRepository) LinkTelegramChat(customerID string, chatID int64) error {
	query := `UPDATE customers SET telegram_chat_id = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Exec(query, chatID, time.Now(), customerID)
	if err != nil {
		r.logger.Error("Failed to link telegram chat",
			zap.String("customer_id", customerID),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return fmt.Errorf("failed to link telegram chat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("customer not found")
	}

	return nil
}

// IncrementTotalRides bumps a customer's ride counter
func (r *CustomerRepository) IncrementTotalRides(customerID string) error {
	query := `UPDATE customers SET total_rides = total_rides + 1, updated_at = ? WHERE id = ?`

	if _, err := r.db.Exec(query, time.Now(), customerID); err != nil {
		r.logger.Error("Failed to increment total rides",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return fmt.Errorf("failed to increment total rides: %w", err)
	}

	return nil
}
