package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// BillingRecord is a closed reservation with the lot data needed to price it.
type BillingRecord struct {
	ReservationID    int       `db:"reservation_id"`
	UserID           int       `db:"user_id"`
	LotID            int       `db:"lot_id"`
	LotName          string    `db:"lot_name"`
	PricePerHour     float64   `db:"price_per_hour"`
	ParkingTime      time.Time `db:"parking_time"`
	PlannedStartTime null.Time `db:"planned_start_time"`
	LeavingTime      time.Time `db:"leaving_time"`
}

func (b BillingRecord) Baseline() time.Time {
	if b.PlannedStartTime.Valid {
		return b.PlannedStartTime.Time
	}
	return b.ParkingTime
}

type LotRevenue struct {
	LotID        int     `json:"lot_id"`
	LotName      string  `json:"lot_name"`
	Reservations int     `json:"reservations"`
	Revenue      float64 `json:"revenue"`
}

type RevenueReport struct {
	Lots  []LotRevenue `json:"lots"`
	Total float64      `json:"total"`
}

type LotOccupancy struct {
	LotID     int    `json:"lot_id" db:"lot_id"`
	LotName   string `json:"lot_name" db:"lot_name"`
	Available int    `json:"available" db:"available"`
	Occupied  int    `json:"occupied" db:"occupied"`
}

type LotUsage struct {
	LotID   int     `json:"lot_id"`
	LotName string  `json:"lot_name"`
	Hours   float64 `json:"hours"`
}

type UsageReport struct {
	UserID int        `json:"user_id"`
	Lots   []LotUsage `json:"lots"`
	Total  float64    `json:"total_hours"`
}

type Counts struct {
	Lots             int `db:"lots"`
	Spots            int `db:"spots"`
	OccupiedSpots    int `db:"occupied_spots"`
	OpenReservations int `db:"open_reservations"`
	Users            int `db:"users"`
}

type AdminSummary struct {
	Lots             int     `json:"lots"`
	Spots            int     `json:"spots"`
	AvailableSpots   int     `json:"available_spots"`
	OccupiedSpots    int     `json:"occupied_spots"`
	OpenReservations int     `json:"open_reservations"`
	Users            int     `json:"users"`
	TotalRevenue     float64 `json:"total_revenue"`
}
