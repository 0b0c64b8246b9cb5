package domain

import "time"

type SpotStatus string

const (
	SpotAvailable SpotStatus = "A"
	SpotOccupied  SpotStatus = "O"
)

func (s SpotStatus) Valid() bool {
	return s == SpotAvailable || s == SpotOccupied
}

type ParkingSpot struct {
	ID        int        `json:"id"`
	LotID     int        `json:"lot_id"`
	Status    SpotStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SpotDetail is a spot together with the reservation currently holding it.
type SpotDetail struct {
	ParkingSpot
	OpenReservation *Reservation `json:"open_reservation,omitempty"`
}

// SpotStatusChange is emitted after a committed transaction flips a spot.
type SpotStatusChange struct {
	LotID         int        `json:"lot_id"`
	SpotID        int        `json:"spot_id"`
	Status        SpotStatus `json:"status"`
	ReservationID int        `json:"reservation_id,omitempty"`
	At            time.Time  `json:"at"`
}
