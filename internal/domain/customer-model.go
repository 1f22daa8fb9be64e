package domain

import (
	"time"
)

// Customer represents a directory entry in the customer database
type Customer struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Phone          string    `json:"phone" db:"phone"`
	Mobile         string    `json:"mobile" db:"mobile"`
	Address        string    `json:"address" db:"address"`
	DefaultPickup  string    `json:"default_pickup" db:"default_pickup"`
	TelegramChatID *int64    `json:"telegram_chat_id" db:"telegram_chat_id"`
	Notes          string    `json:"notes" db:"notes"`
	IsVIP          bool      `json:"is_vip" db:"is_vip"`
	TotalRides     int       `json:"total_rides" db:"total_rides"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	CreatedBy      string    `json:"created_by" db:"created_by"`
}

// BestPhone returns the customer's preferred callback number
func (c *Customer) BestPhone() string {
	if c.Mobile != "" {
		return c.Mobile
	}
	return c.Phone
}

// Ref converts a directory entry into the snapshot form carried
// through confirmation keyboards.
func (c *Customer) Ref() CustomerRef {
	return CustomerRef{
		CustomerID:    c.ID,
		Name:          c.Name,
		Phone:         c.BestPhone(),
		Address:       c.Address,
		DefaultPickup: c.DefaultPickup,
	}
}

// CustomerLink associates a Telegram chat with a confirmed customer,
// so repeat callers skip the directory confirmation step.
type CustomerLink struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	LinkedAt   int64  `json:"linkedAt"` // unix ms
}

// Ride represents a stored ride order
type Ride struct {
	ID                string     `json:"id" db:"id"`
	Pickup            string     `json:"pickup" db:"pickup"`
	Destination       string     `json:"destination" db:"destination"`
	PickupLat         float64    `json:"pickup_lat" db:"pickup_lat"`
	PickupLon         float64    `json:"pickup_lon" db:"pickup_lon"`
	DestinationLat    float64    `json:"destination_lat" db:"destination_lat"`
	DestinationLon    float64    `json:"destination_lon" db:"destination_lon"`
	PickupTS          int64      `json:"pickup_ts" db:"pickup_ts"` // unix ms
	Passengers        int        `json:"passengers" db:"passengers"`
	CustomerName      string     `json:"customer_name" db:"customer_name"`
	CustomerPhone     string     `json:"customer_phone" db:"customer_phone"`
	CustomerID        *string    `json:"customer_id" db:"customer_id"`
	Notes             string     `json:"notes" db:"notes"`
	Status            string     `json:"status" db:"status"`
	Source            string     `json:"source" db:"source"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	CreatedBy         int64      `json:"created_by" db:"created_by"`
	AdminBookedBy     string     `json:"admin_booked_by" db:"admin_booked_by"`
	BookedForCustomer string     `json:"booked_for_customer" db:"booked_for_customer"`
	EstimatedPrice    float64    `json:"estimated_price" db:"estimated_price"`
	EstimatedDistance float64    `json:"estimated_distance" db:"estimated_distance"`
	EstimatedDuration int        `json:"estimated_duration" db:"estimated_duration"`
	DeletedBy         *int64     `json:"deleted_by" db:"deleted_by"`
	DeletedAt         *time.Time `json:"deleted_at" db:"deleted_at"`
}

// PickupTime returns the pickup timestamp as local time
func (r *Ride) PickupTime(loc *time.Location) time.Time {
	return time.UnixMilli(r.PickupTS).In(loc)
}
