package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

type pgRecentBookingRepository struct {
	db querier
}

func NewPgRecentBookingRepository(db *sql.DB) repository.RecentBookingRepository {
	return &pgRecentBookingRepository{db: db}
}

func (r *pgRecentBookingRepository) Create(ctx context.Context, b *domain.RecentBooking) error {
	query := `INSERT INTO recent_bookings (user_id, location, vehicle_number, "timestamp")
	           VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, b.UserID, b.Location, b.VehicleNumber, b.Timestamp.UTC()).Scan(&b.ID); err != nil {
		return fmt.Errorf("RecentBookingRepository.Create: %w", err)
	}
	return nil
}

func (r *pgRecentBookingRepository) ListByUser(ctx context.Context, userID, limit int) ([]domain.RecentBooking, error) {
	query := `SELECT id, user_id, location, vehicle_number, "timestamp" FROM recent_bookings
	           WHERE user_id = $1 ORDER BY "timestamp" DESC, id DESC LIMIT $2`
	return r.list(ctx, "RecentBookingRepository.ListByUser", query, userID, limit)
}

func (r *pgRecentBookingRepository) ListAll(ctx context.Context, limit int) ([]domain.RecentBooking, error) {
	query := `SELECT id, user_id, location, vehicle_number, "timestamp" FROM recent_bookings
	           ORDER BY "timestamp" DESC, id DESC LIMIT $1`
	return r.list(ctx, "RecentBookingRepository.ListAll", query, limit)
}

func (r *pgRecentBookingRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.RecentBooking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.RecentBooking
	for rows.Next() {
		var b domain.RecentBooking
		if err := rows.Scan(&b.ID, &b.UserID, &b.Location, &b.VehicleNumber, &b.Timestamp); err != nil {
			return nil, fmt.Errorf("%s (scanning row): %w", op, err)
		}
		b.Timestamp = b.Timestamp.In(time.UTC)
		out = append(out, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows error): %w", op, err)
	}
	return out, nil
}

func (r *pgRecentBookingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recent_bookings WHERE "timestamp" < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("RecentBookingRepository.DeleteOlderThan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("RecentBookingRepository.DeleteOlderThan (checking rows affected): %w", err)
	}
	return n, nil
}
