package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

type pgParkingLotRepository struct {
	db querier
}

func NewPgParkingLotRepository(db *sql.DB) repository.ParkingLotRepository {
	return &pgParkingLotRepository{db: db}
}

// Counts come from spot rows; there is no stored counter to drift.
const lotSelect = `SELECT l.id, l.prime_location_name, l.address, l.pin_code, l.price_per_hour,
       (SELECT COUNT(*) FROM parking_spots s WHERE s.lot_id = l.id),
       (SELECT COUNT(*) FROM parking_spots s WHERE s.lot_id = l.id AND s.status = 'A'),
       l.created_at, l.updated_at
  FROM parking_lots l`

func scanLot(row rowScanner) (*domain.ParkingLot, error) {
	lot := &domain.ParkingLot{}
	err := row.Scan(&lot.ID, &lot.PrimeLocationName, &lot.Address, &lot.PinCode, &lot.PricePerHour,
		&lot.TotalSpots, &lot.AvailableSpots, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lot.OccupiedSpots = lot.TotalSpots - lot.AvailableSpots
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	query := `INSERT INTO parking_lots (prime_location_name, address, pin_code, price_per_hour)
	           VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, lot.PrimeLocationName, lot.Address, lot.PinCode, lot.PricePerHour).
		Scan(&lot.ID, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.Create: %w", err)
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return r.findOne(ctx, lotSelect+` WHERE l.id = $1`, id, "ParkingLotRepository.FindByID")
}

func (r *pgParkingLotRepository) LockByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return r.findOne(ctx, lotSelect+` WHERE l.id = $1 FOR UPDATE`, id, "ParkingLotRepository.LockByID")
}

func (r *pgParkingLotRepository) findOne(ctx context.Context, query string, id int, op string) (*domain.ParkingLot, error) {
	lot, err := scanLot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return lot, nil
}

func (r *pgParkingLotRepository) FindAll(ctx context.Context) ([]domain.ParkingLot, error) {
	return r.list(ctx, "ParkingLotRepository.FindAll", lotSelect+` ORDER BY l.id`)
}

func (r *pgParkingLotRepository) Search(ctx context.Context, q string) ([]domain.ParkingLot, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(q)) + "%"
	query := lotSelect + `
	 WHERE (l.address ILIKE $1 OR l.pin_code ILIKE $1)
	   AND EXISTS (SELECT 1 FROM parking_spots s WHERE s.lot_id = l.id AND s.status = 'A')
	 ORDER BY l.id`
	return r.list(ctx, "ParkingLotRepository.Search", query, pattern)
}

func (r *pgParkingLotRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.ParkingLot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var lots []domain.ParkingLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s (scanning row): %w", op, err)
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows error): %w", op, err)
	}
	return lots, nil
}

func (r *pgParkingLotRepository) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	query := `UPDATE parking_lots
	             SET prime_location_name = $1, address = $2, pin_code = $3, price_per_hour = $4, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $5 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, lot.PrimeLocationName, lot.Address, lot.PinCode, lot.PricePerHour, lot.ID).
		Scan(&lot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.Update: %w", err)
	}
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

// Delete removes the lot; spots and their reservations go with it through FK cascades.
func (r *pgParkingLotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ParkingLotRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ParkingLotRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
