package repository

import (
	"database/sql"
	"fmt"
	"time"

	"funktaxi/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RideRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRideRepository(db *sql.DB, logger *zap.Logger) *RideRepository {
	return &RideRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRide stores a confirmed booking as a ride order
func (r *RideRepository) CreateRide(ride *domain.Ride) (*domain.Ride, error) {
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	if ride.Status == "" {
		ride.Status = domain.RideStatusOpen
	}
	if ride.Source == "" {
		ride.Source = domain.RideSourceTelegram
	}

	query := `
		INSERT INTO rides (
			id, pickup, destination, pickup_lat, pickup_lon,
			destination_lat, destination_lon, pickup_ts, passengers,
			customer_name, customer_phone, customer_id, notes, status, source,
			created_at, created_by, admin_booked_by, booked_for_customer,
			estimated_price, estimated_distance, estimated_duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var customerID interface{}
	if ride.CustomerID != nil {
		customerID = *ride.CustomerID
	}

	_, err := r.db.Exec(query,
		ride.ID, ride.Pickup, ride.Destination, ride.PickupLat, ride.PickupLon,
		ride.DestinationLat, ride.DestinationLon, ride.PickupTS, ride.Passengers,
		ride.CustomerName, ride.CustomerPhone, customerID, ride.Notes, ride.Status, ride.Source,
		time.Now(), ride.CreatedBy, ride.AdminBookedBy, ride.BookedForCustomer,
		ride.EstimatedPrice, ride.EstimatedDistance, ride.EstimatedDuration,
	)

	if err != nil {
		r.logger.Error("Failed to create ride", zap.Error(err))
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	r.logger.Info("Ride created",
		zap.String("ride_id", ride.ID),
		zap.String("pickup", ride.Pickup),
		zap.String("destination", ride.Destination),
		zap.String("status", ride.Status),
	)

	return r.GetRideByID(ride.ID)
}

// GetRideByID retrieves a single ride
func (r *RideRepository) GetRideByID(rideID string) (*domain.Ride, error) {
	query := `
		SELECT id, pickup, destination, pickup_lat, pickup_lon,
			   destination_lat, destination_lon, pickup_ts, passengers,
			   customer_name, customer_phone, customer_id, notes, status, source,
			   created_at, created_by, admin_booked_by, booked_for_customer,
			   estimated_price, estimated_distance, estimated_duration,
			   deleted_by, deleted_at
		FROM rides
		WHERE id = ?`

	ride, err := r.scanRide(r.db.QueryRow(query, rideID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ride not found")
		}
		r.logger.Error("Failed to get ride", zap.Error(err), zap.String("ride_id", rideID))
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return ride, nil
}

// GetUpcomingRidesByPhone lists a caller's rides, matched on the last
// nine digits of the phone number. Rides picked up more than an hour
// ago are old news; deleted rides are hidden.
func (r *RideRepository) GetUpcomingRidesByPhone(phone string, limit int) ([]*domain.Ride, error) {
	suffix := phoneSuffix(phone)
	if suffix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	cutoff := time.Now().Add(-time.Hour).UnixMilli()

	query := `
		SELECT id, pickup, destination, pickup_lat, pickup_lon,
			   destination_lat, destination_lon, pickup_ts, passengers,
			   customer_name, customer_phone, customer_id, notes, status, source,
			   created_at, created_by, admin_booked_by, booked_for_customer,
			   estimated_price, estimated_distance, estimated_duration,
			   deleted_by, deleted_at
		FROM rides
		WHERE status != 'deleted'
		  AND pickup_ts >= ?
		ORDER BY pickup_ts ASC`

	rows, err := r.db.Query(query, cutoff)
	if err != nil {
		r.logger.Error("Failed to list rides", zap.Error(err))
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := r.scanRide(rows)
		if err != nil {
			r.logger.Error("Failed to scan ride", zap.Error(err))
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		if phoneSuffix(ride.CustomerPhone) != suffix {
			continue
		}
		rides = append(rides, ride)
		if len(rides) >= limit {
			break
		}
	}

	return rides, rows.Err()
}

// SoftDeleteRide marks a ride as deleted without removing the record
func (r *RideRepository) SoftDeleteRide(rideID string, deletedBy int64) error {
	query := `UPDATE rides SET status = 'deleted', deleted_by = ?, deleted_at = ? WHERE id = ?`

	result, err := r.db.Exec(query, deletedBy, time.Now(), rideID)
	if err != nil {
		r.logger.Error("Failed to delete ride", zap.String("ride_id", rideID), zap.Error(err))
		return fmt.Errorf("failed to delete ride: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ride not found")
	}

	r.logger.Info("Ride deleted",
		zap.String("ride_id", rideID),
		zap.Int64("deleted_by", deletedBy),
	)

	return nil
}

// AttachCustomer links a ride to a directory entry after the fact
func (r *RideRepository) AttachCustomer(rideID, customerID string) error {
	query := `UPDATE rides SET customer_id = ? WHERE id = ?`

	if _, err := r.db.Exec(query, customerID, rideID); err != nil {
		r.logger.Error("Failed to attach customer",
			zap.String("ride_id", rideID),
			zap.String("customer_id", customerID),
			zap.Error(err))
		return fmt.Errorf("failed to attach customer: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RideRepository) scanRide(row rowScanner) (*domain.Ride, error) {
	ride := &domain.Ride{}
	var customerID sql.NullString
	var deletedBy sql.NullInt64
	var deletedAt sql.NullTime

	err := row.Scan(
		&ride.ID, &ride.Pickup, &ride.Destination, &ride.PickupLat, &ride.PickupLon,
		&ride.DestinationLat, &ride.DestinationLon, &ride.PickupTS, &ride.Passengers,
		&ride.CustomerName, &ride.CustomerPhone, &customerID, &ride.Notes, &ride.Status, &ride.Source,
		&ride.CreatedAt, &ride.CreatedBy, &ride.AdminBookedBy, &ride.BookedForCustomer,
		&ride.EstimatedPrice, &ride.EstimatedDistance, &ride.EstimatedDuration,
		&deletedBy, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		ride.CustomerID = &customerID.String
	}
	if deletedBy.Valid {
		ride.DeletedBy = &deletedBy.Int64
	}
	if deletedAt.Valid {
		ride.DeletedAt = &deletedAt.Time
	}

	return ride, nil
}

// phoneSuffix reduces a phone number to its last nine digits for
// matching across formatting variants.
func phoneSuffix(phone string) string {
	var digits []byte
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) <= 5 {
		return ""
	}
	if len(digits) > 9 {
		digits = digits[len(digits)-9:]
	}
	return string(digits)
}
