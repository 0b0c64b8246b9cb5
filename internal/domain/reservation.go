package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// Reservation is one episode of a user holding a spot. It stays open until
// LeavingTime is set, which happens at most once.
type Reservation struct {
	ID               int       `json:"id"`
	SpotID           int       `json:"spot_id"`
	UserID           int       `json:"user_id"`
	VehicleNumber    string    `json:"vehicle_number"`
	ParkingTime      time.Time `json:"parking_time"`
	PlannedStartTime null.Time `json:"planned_start_time"`
	LeavingTime      null.Time `json:"leaving_time"`

	LotID int `json:"lot_id,omitempty"`
}

func (r *Reservation) IsOpen() bool { return !r.LeavingTime.Valid }

// Baseline is the instant billing starts from.
func (r *Reservation) Baseline() time.Time {
	if r.PlannedStartTime.Valid {
		return r.PlannedStartTime.Time
	}
	return r.ParkingTime
}

type BookingRequestDTO struct {
	VehicleNumber string `json:"vehicle_number"`
	Date          string `json:"date"` // 2006-01-02
	Time          string `json:"time"` // 15:04
}

// BookingResult is returned after a committed booking. Warning is set when
// the confirmation could not be delivered.
type BookingResult struct {
	Reservation Reservation `json:"reservation"`
	Lot         ParkingLot  `json:"lot"`
	Token       string      `json:"confirmation_code"`
	Warning     string      `json:"warning,omitempty"`
}

type ReleaseResult struct {
	Reservation     Reservation `json:"reservation"`
	LotName         string      `json:"lot_name"`
	PricePerHour    float64     `json:"price_per_hour"`
	Charge          Charge      `json:"charge"`
	AlreadyReleased bool        `json:"already_released"`
}

// ReservationView is a reservation joined with its lot for listings.
type ReservationView struct {
	Reservation
	LotName      string  `json:"lot_name"`
	Address      string  `json:"address"`
	PricePerHour float64 `json:"price_per_hour"`
}

type ScanReleaseDTO struct {
	Code string `json:"code" binding:"required"`
}

type PlateReleaseDTO struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}

type PlateReleaseResult struct {
	DetectedPlate string        `json:"detected_plate"`
	Confidence    float32       `json:"confidence"`
	Release       ReleaseResult `json:"release"`
}
