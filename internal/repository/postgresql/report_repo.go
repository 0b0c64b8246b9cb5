package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/jmoiron/sqlx"
)

type pgReportRepository struct {
	db *sqlx.DB
}

func NewPgReportRepository(db *sqlx.DB) repository.ReportRepository {
	return &pgReportRepository{db: db}
}

func (r *pgReportRepository) ClosedReservations(ctx context.Context, userID *int) ([]domain.BillingRecord, error) {
	query := `SELECT r.id AS reservation_id, r.user_id, l.id AS lot_id, l.prime_location_name AS lot_name,
	                 l.price_per_hour, r.parking_time, r.planned_start_time, r.leaving_time
	            FROM reservations r
	            JOIN parking_spots s ON s.id = r.spot_id
	            JOIN parking_lots l ON l.id = s.lot_id
	           WHERE r.leaving_time IS NOT NULL
	             AND ($1::int IS NULL OR r.user_id = $1)
	           ORDER BY l.id, r.id`
	var records []domain.BillingRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("ReportRepository.ClosedReservations: %w", err)
	}
	for i := range records {
		records[i].ParkingTime = records[i].ParkingTime.In(time.UTC)
		records[i].LeavingTime = records[i].LeavingTime.In(time.UTC)
	}
	return records, nil
}

func (r *pgReportRepository) OccupancyByLot(ctx context.Context) ([]domain.LotOccupancy, error) {
	query := `SELECT l.id AS lot_id, l.prime_location_name AS lot_name,
	                 COUNT(s.id) FILTER (WHERE s.status = 'A') AS available,
	                 COUNT(s.id) FILTER (WHERE s.status = 'O') AS occupied
	            FROM parking_lots l
	            LEFT JOIN parking_spots s ON s.lot_id = l.id
	           GROUP BY l.id, l.prime_location_name
	           ORDER BY l.id`
	var rows []domain.LotOccupancy
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("ReportRepository.OccupancyByLot: %w", err)
	}
	return rows, nil
}

func (r *pgReportRepository) Counts(ctx context.Context) (domain.Counts, error) {
	query := `SELECT (SELECT COUNT(*) FROM parking_lots) AS lots,
	                 (SELECT COUNT(*) FROM parking_spots) AS spots,
	                 (SELECT COUNT(*) FROM parking_spots WHERE status = 'O') AS occupied_spots,
	                 (SELECT COUNT(*) FROM reservations WHERE leaving_time IS NULL) AS open_reservations,
	                 (SELECT COUNT(*) FROM users) AS users`
	var c domain.Counts
	if err := r.db.GetContext(ctx, &c, query); err != nil {
		return domain.Counts{}, fmt.Errorf("ReportRepository.Counts: %w", err)
	}
	return c, nil
}
