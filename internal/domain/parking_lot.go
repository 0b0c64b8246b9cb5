package domain

import (
	"errors"
	"time"
)

var ErrInvalidPrice = errors.New("price per hour must be greater than zero")

// ParkingLot counts are derived from spot rows on every read and never stored.
type ParkingLot struct {
	ID                int       `json:"id"`
	PrimeLocationName string    `json:"prime_location_name"`
	Address           string    `json:"address"`
	PinCode           string    `json:"pin_code"`
	PricePerHour      float64   `json:"price_per_hour"`
	TotalSpots        int       `json:"total_spots"`
	AvailableSpots    int       `json:"available_spots"`
	OccupiedSpots     int       `json:"occupied_spots"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ParkingLotDTO struct {
	PrimeLocationName string  `json:"prime_location_name" binding:"required,max=120"`
	Address           string  `json:"address" binding:"required,max=255"`
	PinCode           string  `json:"pin_code" binding:"required,numeric,len=6"`
	PricePerHour      float64 `json:"price_per_hour" binding:"required,gt=0"`
	MaxSpots          *int    `json:"max_spots" binding:"required,gte=0"`
}

// ValidatePrice enforces a strictly positive hourly price.
func ValidatePrice(p float64) error {
	if p <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
