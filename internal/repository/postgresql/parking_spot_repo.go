package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/lib/pq"
)

type pgParkingSpotRepository struct {
	db querier
}

func NewPgParkingSpotRepository(db *sql.DB) repository.ParkingSpotRepository {
	return &pgParkingSpotRepository{db: db}
}

const spotColumns = `id, lot_id, status, created_at, updated_at`

func scanSpot(row rowScanner) (*domain.ParkingSpot, error) {
	spot := &domain.ParkingSpot{}
	if err := row.Scan(&spot.ID, &spot.LotID, &spot.Status, &spot.CreatedAt, &spot.UpdatedAt); err != nil {
		return nil, err
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgParkingSpotRepository) CreateBatch(ctx context.Context, lotID, count int) ([]domain.ParkingSpot, error) {
	if count <= 0 {
		return nil, nil
	}
	query := `INSERT INTO parking_spots (lot_id, status)
	          SELECT $1, $2 FROM generate_series(1, $3)
	          RETURNING ` + spotColumns
	spots, err := r.list(ctx, "ParkingSpotRepository.CreateBatch", query, lotID, domain.SpotAvailable, count)
	if err != nil {
		return nil, err
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	return spots, nil
}

func (r *pgParkingSpotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingSpot, error) {
	return r.findOne(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE id = $1`, id, "ParkingSpotRepository.FindByID")
}

func (r *pgParkingSpotRepository) LockByID(ctx context.Context, id int) (*domain.ParkingSpot, error) {
	return r.findOne(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE id = $1 FOR UPDATE`, id, "ParkingSpotRepository.LockByID")
}

func (r *pgParkingSpotRepository) ClaimFirstAvailable(ctx context.Context, lotID int) (*domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + `
	            FROM parking_spots
	           WHERE lot_id = $1 AND status = 'A'
	           ORDER BY id ASC
	           LIMIT 1
	             FOR UPDATE SKIP LOCKED`
	return r.findOne(ctx, query, lotID, "ParkingSpotRepository.ClaimFirstAvailable")
}

func (r *pgParkingSpotRepository) findOne(ctx context.Context, query string, arg int, op string) (*domain.ParkingSpot, error) {
	spot, err := scanSpot(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return spot, nil
}

func (r *pgParkingSpotRepository) FindByLotID(ctx context.Context, lotID int) ([]domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots WHERE lot_id = $1 ORDER BY id`
	return r.list(ctx, "ParkingSpotRepository.FindByLotID", query, lotID)
}

func (r *pgParkingSpotRepository) LockByLotID(ctx context.Context, lotID int) ([]domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots WHERE lot_id = $1 ORDER BY id FOR UPDATE`
	return r.list(ctx, "ParkingSpotRepository.LockByLotID", query, lotID)
}

func (r *pgParkingSpotRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.ParkingSpot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var spots []domain.ParkingSpot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s (scanning row): %w", op, err)
		}
		spots = append(spots, *spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows error): %w", op, err)
	}
	return spots, nil
}

func (r *pgParkingSpotRepository) FindRemovable(ctx context.Context, lotID, limit int) ([]int, error) {
	query := `SELECT s.id
	            FROM parking_spots s
	           WHERE s.lot_id = $1
	             AND s.status = 'A'
	             AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.spot_id = s.id)
	           ORDER BY s.id ASC
	           LIMIT $2
	             FOR UPDATE OF s`
	rows, err := r.db.QueryContext(ctx, query, lotID, limit)
	if err != nil {
		return nil, fmt.Errorf("ParkingSpotRepository.FindRemovable: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ParkingSpotRepository.FindRemovable (scanning row): %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingSpotRepository.FindRemovable (rows error): %w", err)
	}
	return ids, nil
}

func (r *pgParkingSpotRepository) UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error {
	if !status.Valid() {
		return fmt.Errorf("ParkingSpotRepository.UpdateStatus: invalid status %q", status)
	}
	query := `UPDATE parking_spots SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("ParkingSpotRepository.UpdateStatus: %w", err)
	}
	return expectRows(result, "ParkingSpotRepository.UpdateStatus")
}

func (r *pgParkingSpotRepository) DeleteByIDs(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("ParkingSpotRepository.DeleteByIDs: %w", err)
	}
	return nil
}

func (r *pgParkingSpotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ParkingSpotRepository.Delete: %w", err)
	}
	return expectRows(result, "ParkingSpotRepository.Delete")
}

func expectRows(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s (checking rows affected): %w", op, err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
