package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/jmoiron/sqlx"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgRepositories struct {
	users          repository.UserRepository
	lots           repository.ParkingLotRepository
	spots          repository.ParkingSpotRepository
	reservations   repository.ReservationRepository
	recentBookings repository.RecentBookingRepository
}

func newRepositories(q querier) *pgRepositories {
	return &pgRepositories{
		users:          &pgUserRepository{db: q},
		lots:           &pgParkingLotRepository{db: q},
		spots:          &pgParkingSpotRepository{db: q},
		reservations:   &pgReservationRepository{db: q},
		recentBookings: &pgRecentBookingRepository{db: q},
	}
}

func (r *pgRepositories) Users() repository.UserRepository                   { return r.users }
func (r *pgRepositories) Lots() repository.ParkingLotRepository              { return r.lots }
func (r *pgRepositories) Spots() repository.ParkingSpotRepository            { return r.spots }
func (r *pgRepositories) Reservations() repository.ReservationRepository     { return r.reservations }
func (r *pgRepositories) RecentBookings() repository.RecentBookingRepository { return r.recentBookings }

type pgStore struct {
	*pgRepositories
	db      *sql.DB
	reports repository.ReportRepository
}

// NewStore builds the PostgreSQL backed store. driverName must match the
// driver db was opened with; it selects sqlx's placeholder style.
func NewStore(db *sql.DB, driverName string) repository.Store {
	return &pgStore{
		pgRepositories: newRepositories(db),
		db:             db,
		reports:        NewPgReportRepository(sqlx.NewDb(db, driverName)),
	}
}

func (s *pgStore) Reports() repository.ReportRepository { return s.reports }

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Store.WithinTx (begin): %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("Store.WithinTx (rollback): %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Store.WithinTx (commit): %w", err)
	}
	return nil
}
