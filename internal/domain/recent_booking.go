package domain

import "time"

// RecentBooking is an informational audit row written with each booking.
type RecentBooking struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	Location      string    `json:"location"`
	VehicleNumber string    `json:"vehicle_number"`
	Timestamp     time.Time `json:"timestamp"`
}
