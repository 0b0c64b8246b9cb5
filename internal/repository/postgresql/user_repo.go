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

type pgUserRepository struct {
	db querier
}

func NewPgUserRepository(db *sql.DB) repository.UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, address, pin_code, phone, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.FullName, &user.Address,
		&user.PinCode, &user.Phone, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.In(time.UTC)
	user.UpdatedAt = user.UpdatedAt.In(time.UTC)
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `INSERT INTO users (email, password_hash, full_name, address, pin_code, phone, role, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.Email, user.Password, user.FullName, user.Address,
		user.PinCode, user.Phone, user.Role).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email '%s' is already registered", repository.ErrDuplicateEntry, user.Email)
		}
		return nil, fmt.Errorf("UserRepository.Create: %w", err)
	}
	user.CreatedAt = user.CreatedAt.In(time.UTC)
	user.UpdatedAt = user.UpdatedAt.In(time.UTC)
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.FindByEmail: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	return r.findByID(ctx, id, "", "UserRepository.FindByID")
}

func (r *pgUserRepository) LockByID(ctx context.Context, id int) (*domain.User, error) {
	return r.findByID(ctx, id, " FOR UPDATE", "UserRepository.LockByID")
}

func (r *pgUserRepository) findByID(ctx context.Context, id int, suffix, op string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1` + suffix
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `UPDATE users SET full_name = $1, address = $2, pin_code = $3, phone = $4, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $5 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, user.FullName, user.Address, user.PinCode, user.Phone, user.ID).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.UpdateProfile: %w", err)
	}
	user.UpdatedAt = user.UpdatedAt.In(time.UTC)
	return user, nil
}

func (r *pgUserRepository) FindAll(ctx context.Context) ([]domain.UserSummary, error) {
	query := `SELECT u.id, u.email, u.password_hash, u.full_name, u.address, u.pin_code, u.phone, u.role,
	                 u.created_at, u.updated_at,
	                 COUNT(r.id),
	                 COALESCE(BOOL_OR(r.id IS NOT NULL AND r.leaving_time IS NULL), false)
	            FROM users u
	            LEFT JOIN reservations r ON r.user_id = u.id
	           GROUP BY u.id
	           ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("UserRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var users []domain.UserSummary
	for rows.Next() {
		var s domain.UserSummary
		u := &s.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Address, &u.PinCode, &u.Phone,
			&u.Role, &u.CreatedAt, &u.UpdatedAt, &s.ReservationCount, &s.HasOpenReservation); err != nil {
			return nil, fmt.Errorf("UserRepository.FindAll (scanning row): %w", err)
		}
		u.CreatedAt = u.CreatedAt.In(time.UTC)
		u.UpdatedAt = u.UpdatedAt.In(time.UTC)
		users = append(users, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("UserRepository.FindAll (rows error): %w", err)
	}
	return users, nil
}
