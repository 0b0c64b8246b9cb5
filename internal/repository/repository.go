package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrNoActiveReservation = errors.New("no open reservation for the given owner")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	// LockByID reads the user row and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id int) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) (*domain.User, error)
	FindAll(ctx context.Context) ([]domain.UserSummary, error)
}

// ParkingLotRepository reads fill the derived spot counts.
type ParkingLotRepository interface {
	Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingLot, error)
	LockByID(ctx context.Context, id int) (*domain.ParkingLot, error)
	FindAll(ctx context.Context) ([]domain.ParkingLot, error)
	// Search matches address or pin code and returns only lots with a free spot.
	Search(ctx context.Context, query string) ([]domain.ParkingLot, error)
	Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	Delete(ctx context.Context, id int) error
}

type ParkingSpotRepository interface {
	CreateBatch(ctx context.Context, lotID, count int) ([]domain.ParkingSpot, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingSpot, error)
	LockByID(ctx context.Context, id int) (*domain.ParkingSpot, error)
	FindByLotID(ctx context.Context, lotID int) ([]domain.ParkingSpot, error)
	LockByLotID(ctx context.Context, lotID int) ([]domain.ParkingSpot, error)
	// ClaimFirstAvailable locks the lowest id Available spot of the lot, skipping
	// spots locked by concurrent transactions. ErrNotFound when none is free.
	ClaimFirstAvailable(ctx context.Context, lotID int) (*domain.ParkingSpot, error)
	// FindRemovable locks up to limit of the oldest Available spots that were never reserved.
	FindRemovable(ctx context.Context, lotID, limit int) ([]int, error)
	UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error
	DeleteByIDs(ctx context.Context, ids []int) error
	Delete(ctx context.Context, id int) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id int) (*domain.Reservation, error)
	LockByID(ctx context.Context, id int) (*domain.Reservation, error)
	FindOpenByUser(ctx context.Context, userID int) (*domain.Reservation, error)
	FindOpenBySpot(ctx context.Context, spotID int) (*domain.Reservation, error)
	FindOpenByVehicle(ctx context.Context, vehicleNumber string) (*domain.Reservation, error)
	// Close sets leaving_time on an open reservation. ErrNoActiveReservation if it is already closed.
	Close(ctx context.Context, id int, leavingTime time.Time) error
	ListByUser(ctx context.Context, userID int) ([]domain.ReservationView, error)
}

type RecentBookingRepository interface {
	Create(ctx context.Context, b *domain.RecentBooking) error
	ListByUser(ctx context.Context, userID, limit int) ([]domain.RecentBooking, error)
	ListAll(ctx context.Context, limit int) ([]domain.RecentBooking, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ReportRepository interface {
	// ClosedReservations returns closed reservations, optionally for one user.
	ClosedReservations(ctx context.Context, userID *int) ([]domain.BillingRecord, error)
	OccupancyByLot(ctx context.Context) ([]domain.LotOccupancy, error)
	Counts(ctx context.Context) (domain.Counts, error)
}

// Repositories groups the repositories that take part in a transaction.
type Repositories interface {
	Users() UserRepository
	Lots() ParkingLotRepository
	Spots() ParkingSpotRepository
	Reservations() ReservationRepository
	RecentBookings() RecentBookingRepository
}

// Store runs fn in one transaction. fn's error, or a panic, rolls everything back.
type Store interface {
	Repositories
	Reports() ReportRepository
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
