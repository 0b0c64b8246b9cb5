//go:build integration

package postgresql_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/notify"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/Megho-git/ParkEase/internal/repository/postgresql"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/Megho-git/ParkEase/internal/token"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("parkease"),
		postgres.WithUsername("parkease"),
		postgres.WithPassword("parkease"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(20)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, postgresql.Migrate(ctx, db))
	// Migrate must be repeatable.
	require.NoError(t, postgresql.Migrate(ctx, db))
	return db
}

type noopObserver struct{}

func (noopObserver) SpotChanged(context.Context, domain.SpotStatusChange) {}

func services(store repository.Store) (*service.BookingService, *service.ReleaseService, *service.LotService, *service.ReportService) {
	log := zap.NewNop()
	codec := token.NewCodec("qr-secret-for-tests")
	booking := service.NewBookingService(store, notify.NewLogNotifier(log), codec, noopObserver{}, service.BookingOptions{
		Location: time.UTC, Grace: 5 * time.Minute, Horizon: 30 * 24 * time.Hour,
	}, log)
	return booking,
		service.NewReleaseService(store, codec, noopObserver{}, log),
		service.NewLotService(store, 500, log),
		service.NewReportService(store)
}

func createUser(t *testing.T, store repository.Store, email string) domain.Identity {
	t.Helper()
	u, err := store.Users().Create(context.Background(), &domain.User{
		Email: email, Password: "x", FullName: "Test", Address: "a", PinCode: "700001", Role: domain.RoleUser,
	})
	require.NoError(t, err)
	return domain.Identity{UserID: u.ID, Role: u.Role}
}

func now() domain.BookingRequestDTO {
	at := time.Now().UTC()
	return domain.BookingRequestDTO{VehicleNumber: "WB01A1", Date: at.Format("2006-01-02"), Time: at.Format("15:04")}
}

func TestPostgresStore(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	store := postgresql.NewStore(db, "pgx")
	booking, release, lots, reports := services(store)

	t.Run("duplicate email is case insensitive", func(t *testing.T) {
		createUser(t, store, "dup@example.com")
		_, err := store.Users().Create(ctx, &domain.User{Email: "DUP@example.com", Password: "x", Role: domain.RoleUser})
		assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
	})

	t.Run("concurrent bookings for the last spot", func(t *testing.T) {
		spots := 1
		lot, err := lots.CreateLot(ctx, domain.ParkingLotDTO{
			PrimeLocationName: "Race", Address: "Race Course", PinCode: "700027", PricePerHour: 30, MaxSpots: &spots,
		})
		require.NoError(t, err)

		const n = 8
		ids := make([]domain.Identity, n)
		for i := range ids {
			ids[i] = createUser(t, store, fmt.Sprintf("race%d@example.com", i))
		}
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = booking.Book(ctx, ids[i], lot.ID, now())
			}(i)
		}
		wg.Wait()

		ok, full := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case apperror.IsKind(err, apperror.KindCapacity):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, full)
	})

	t.Run("same user cannot hold two reservations", func(t *testing.T) {
		spots := 4
		lot, err := lots.CreateLot(ctx, domain.ParkingLotDTO{
			PrimeLocationName: "Twin", Address: "Esplanade", PinCode: "700069", PricePerHour: 30, MaxSpots: &spots,
		})
		require.NoError(t, err)
		alice := createUser(t, store, "twin@example.com")

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = booking.Book(ctx, alice, lot.ID, now())
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.True(t, apperror.IsKind(err, apperror.KindConflict), "%v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("release resize and revenue", func(t *testing.T) {
		spots := 5
		lot, err := lots.CreateLot(ctx, domain.ParkingLotDTO{
			PrimeLocationName: "Resize", Address: "Howrah", PinCode: "711101", PricePerHour: 50, MaxSpots: &spots,
		})
		require.NoError(t, err)

		a := createUser(t, store, "ra@example.com")
		b := createUser(t, store, "rb@example.com")
		c := createUser(t, store, "rc@example.com")
		_, err = booking.Book(ctx, a, lot.ID, now())
		require.NoError(t, err)
		_, err = booking.Book(ctx, b, lot.ID, now())
		require.NoError(t, err)
		booked, err := booking.Book(ctx, c, lot.ID, now())
		require.NoError(t, err)

		released, err := release.Release(ctx, c, booked.Reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, 50.0, released.Charge.Cost)
		again, err := release.Release(ctx, c, booked.Reservation.ID)
		require.NoError(t, err)
		assert.True(t, again.AlreadyReleased)

		_, err = lots.UpdateLot(ctx, lot.ID, domain.ParkingLotDTO{
			PrimeLocationName: "Resize", Address: "Howrah", PinCode: "711101", PricePerHour: 50, MaxSpots: intPtr(2),
		})
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))

		updated, err := lots.UpdateLot(ctx, lot.ID, domain.ParkingLotDTO{
			PrimeLocationName: "Resize", Address: "Howrah", PinCode: "711101", PricePerHour: 50, MaxSpots: intPtr(3),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.TotalSpots)
		assert.Equal(t, 2, updated.OccupiedSpots)

		assert.True(t, apperror.IsKind(lots.DeleteLot(ctx, lot.ID), apperror.KindConflict))

		rev, err := reports.Revenue(ctx)
		require.NoError(t, err)
		var found bool
		for _, l := range rev.Lots {
			if l.LotID == lot.ID {
				found = true
				assert.Equal(t, 50.0, l.Revenue)
			}
		}
		assert.True(t, found)

		usage, err := reports.UserUsage(ctx, c.UserID)
		require.NoError(t, err)
		assert.NotNil(t, usage)

		recent, err := booking.RecentBookings(ctx, c.UserID, 5)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "Resize", recent[0].Location)
	})

	t.Run("search only returns lots with free spots", func(t *testing.T) {
		found, err := lots.SearchLots(ctx, "700027")
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = lots.SearchLots(ctx, "howrah")
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})
}

func intPtr(v int) *int { return &v }
