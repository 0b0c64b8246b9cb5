package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

type pgReservationRepository struct {
	db querier
}

func NewPgReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &pgReservationRepository{db: db}
}

const reservationSelect = `SELECT r.id, r.spot_id, r.user_id, r.vehicle_number, r.parking_time,
       r.planned_start_time, r.leaving_time, s.lot_id
  FROM reservations r
  JOIN parking_spots s ON s.id = r.spot_id`

func scanReservation(row rowScanner, extra ...any) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	dest := append([]any{&res.ID, &res.SpotID, &res.UserID, &res.VehicleNumber, &res.ParkingTime,
		&res.PlannedStartTime, &res.LeavingTime, &res.LotID}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	normaliseReservation(res)
	return res, nil
}

func normaliseReservation(res *domain.Reservation) {
	res.ParkingTime = res.ParkingTime.In(time.UTC)
	if res.PlannedStartTime.Valid {
		res.PlannedStartTime.Time = res.PlannedStartTime.Time.In(time.UTC)
	}
	if res.LeavingTime.Valid {
		res.LeavingTime.Time = res.LeavingTime.Time.In(time.UTC)
	}
}

func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `INSERT INTO reservations (spot_id, user_id, vehicle_number, parking_time, planned_start_time, leaving_time)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, res.SpotID, res.UserID, res.VehicleNumber, res.ParkingTime,
		res.PlannedStartTime, res.LeavingTime).Scan(&res.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: spot %d or user %d already holds an open reservation",
				repository.ErrDuplicateEntry, res.SpotID, res.UserID)
		}
		return nil, fmt.Errorf("ReservationRepository.Create: %w", err)
	}
	normaliseReservation(res)
	return res, nil
}

func (r *pgReservationRepository) FindByID(ctx context.Context, id int) (*domain.Reservation, error) {
	return r.findOne(ctx, "ReservationRepository.FindByID", reservationSelect+` WHERE r.id = $1`, id)
}

func (r *pgReservationRepository) LockByID(ctx context.Context, id int) (*domain.Reservation, error) {
	return r.findOne(ctx, "ReservationRepository.LockByID", reservationSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id)
}

func (r *pgReservationRepository) FindOpenByUser(ctx context.Context, userID int) (*domain.Reservation, error) {
	res, err := r.findOne(ctx, "ReservationRepository.FindOpenByUser",
		reservationSelect+` WHERE r.user_id = $1 AND r.leaving_time IS NULL LIMIT 1`, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrNoActiveReservation
	}
	return res, err
}

func (r *pgReservationRepository) FindOpenBySpot(ctx context.Context, spotID int) (*domain.Reservation, error) {
	res, err := r.findOne(ctx, "ReservationRepository.FindOpenBySpot",
		reservationSelect+` WHERE r.spot_id = $1 AND r.leaving_time IS NULL LIMIT 1`, spotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrNoActiveReservation
	}
	return res, err
}

func (r *pgReservationRepository) FindOpenByVehicle(ctx context.Context, vehicleNumber string) (*domain.Reservation, error) {
	res, err := r.findOne(ctx, "ReservationRepository.FindOpenByVehicle",
		reservationSelect+` WHERE upper(r.vehicle_number) = upper($1) AND r.leaving_time IS NULL
		 ORDER BY r.parking_time DESC LIMIT 1`, vehicleNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrNoActiveReservation
	}
	return res, err
}

func (r *pgReservationRepository) findOne(ctx context.Context, op, query string, arg any) (*domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (r *pgReservationRepository) Close(ctx context.Context, id int, leavingTime time.Time) error {
	query := `UPDATE reservations SET leaving_time = $1 WHERE id = $2 AND leaving_time IS NULL`
	result, err := r.db.ExecContext(ctx, query, leavingTime.UTC(), id)
	if err != nil {
		return fmt.Errorf("ReservationRepository.Close: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ReservationRepository.Close (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNoActiveReservation
	}
	return nil
}

func (r *pgReservationRepository) ListByUser(ctx context.Context, userID int) ([]domain.ReservationView, error) {
	query := `SELECT r.id, r.spot_id, r.user_id, r.vehicle_number, r.parking_time,
	                 r.planned_start_time, r.leaving_time, s.lot_id,
	                 l.prime_location_name, l.address, l.price_per_hour
	            FROM reservations r
	            JOIN parking_spots s ON s.id = r.spot_id
	            JOIN parking_lots l ON l.id = s.lot_id
	           WHERE r.user_id = $1
	           ORDER BY r.parking_time DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.ListByUser: %w", err)
	}
	defer rows.Close()

	var views []domain.ReservationView
	for rows.Next() {
		var v domain.ReservationView
		res, err := scanReservation(rows, &v.LotName, &v.Address, &v.PricePerHour)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.ListByUser (scanning row): %w", err)
		}
		v.Reservation = *res
		views = append(views, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.ListByUser (rows error): %w", err)
	}
	return views, nil
}
