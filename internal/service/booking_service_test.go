package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookClaimsLowestSpot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com")
	lot := f.lot(t, 50, 3)

	res, err := f.booking.Book(ctx, alice, lot.ID, request(testNow, "wb 02-ab 1234"))
	require.NoError(t, err)
	assert.Empty(t, res.Warning)

	spots, err := f.store.Spots().FindByLotID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, spots[0].ID, res.Reservation.SpotID)
	assert.Equal(t, domain.SpotOccupied, spots[0].Status)
	assert.Equal(t, domain.SpotAvailable, spots[1].Status)

	assert.Equal(t, "WB02AB1234", res.Reservation.VehicleNumber)
	assert.True(t, res.Reservation.IsOpen())
	assert.Equal(t, testNow, res.Reservation.PlannedStartTime.Time)
	assert.Equal(t, 2, res.Lot.AvailableSpots)
	assert.Equal(t, 1, res.Lot.OccupiedSpots)

	id, err := f.codec.Decode([]byte(res.Token))
	require.NoError(t, err)
	assert.Equal(t, res.Reservation.ID, id)

	recent, err := f.booking.RecentBookings(ctx, alice.UserID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, lot.PrimeLocationName, recent[0].Location)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "alice@example.com", f.notifier.sent[0].Recipient)
	assert.Equal(t, res.Token, f.notifier.sent[0].Code)

	events := f.observer.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.SpotOccupied, events[0].Status)
	assert.Equal(t, res.Reservation.SpotID, events[0].SpotID)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	lot := f.lot(t, 50, 2)

	tests := []struct {
		name string
		req  domain.BookingRequestDTO
		kind apperror.Kind
	}{
		{"missing vehicle", domain.BookingRequestDTO{Date: "2025-06-01", Time: "10:00"}, apperror.KindValidation},
		{"missing time", domain.BookingRequestDTO{VehicleNumber: "WB01A1", Date: "2025-06-01"}, apperror.KindValidation},
		{"bad date", domain.BookingRequestDTO{VehicleNumber: "WB01A1", Date: "01/06/2025", Time: "10:00"}, apperror.KindValidation},
		{"bad time", domain.BookingRequestDTO{VehicleNumber: "WB01A1", Date: "2025-06-01", Time: "25:00"}, apperror.KindValidation},
		{"vehicle too long", request(testNow, "WB01AB123456789012345"), apperror.KindValidation},
		{"past beyond grace", request(testNow.Add(-10*time.Minute), "WB01A1"), apperror.KindOutOfRange},
		{"beyond horizon", request(testNow.Add(31*24*time.Hour), "WB01A1"), apperror.KindOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.booking.Book(context.Background(), alice, lot.ID, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}

	// Validation failures never touch storage.
	spots, err := f.store.Spots().FindByLotID(context.Background(), lot.ID)
	require.NoError(t, err)
	for _, s := range spots {
		assert.Equal(t, domain.SpotAvailable, s.Status)
	}
}

func TestBookWithinGraceIsAccepted(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	lot := f.lot(t, 50, 1)

	_, err := f.booking.Book(context.Background(), alice, lot.ID, request(testNow.Add(-4*time.Minute), "WB01A1"))
	assert.NoError(t, err)
}

func TestBookUnknownLot(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")

	_, err := f.booking.Book(context.Background(), alice, 999, request(testNow, "WB01A1"))
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestBookSecondOpenReservationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com")
	first := f.lot(t, 50, 2)
	second := f.lot(t, 40, 2)

	_, err := f.booking.Book(ctx, alice, first.ID, request(testNow, "WB01A1"))
	require.NoError(t, err)

	_, err = f.booking.Book(ctx, alice, second.ID, request(testNow, "WB01A2"))
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	lot, err := f.lots.GetLot(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, lot.AvailableSpots)
}

func TestBookFullLot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, 50, 1)

	_, err := f.booking.Book(ctx, f.user(t, "a@example.com"), lot.ID, request(testNow, "WB01A1"))
	require.NoError(t, err)

	_, err = f.booking.Book(ctx, f.user(t, "b@example.com"), lot.ID, request(testNow, "WB01A2"))
	assert.True(t, apperror.IsKind(err, apperror.KindCapacity))
}

func TestBookEmptyLot(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, 50, 0)

	_, err := f.booking.Book(context.Background(), f.user(t, "a@example.com"), lot.ID, request(testNow, "WB01A1"))
	assert.True(t, apperror.IsKind(err, apperror.KindCapacity))
}

func TestBookNotifierFailureKeepsBooking(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panic=%v", panics), func(t *testing.T) {
			f := newFixture(t)
			f.notifier.fail = "mail provider rejected the message"
			f.notifier.panic = panics
			lot := f.lot(t, 50, 1)

			res, err := f.booking.Book(context.Background(), f.user(t, "a@example.com"), lot.ID, request(testNow, "WB01A1"))
			require.NoError(t, err)
			assert.NotEmpty(t, res.Warning)

			_, err = f.store.Reservations().FindByID(context.Background(), res.Reservation.ID)
			assert.NoError(t, err)
		})
	}
}

func TestConcurrentBookingsForLastSpot(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, 50, 1)

	const n = 10
	users := make([]domain.Identity, n)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("u%d@example.com", i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		capacity int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id domain.Identity) {
			defer wg.Done()
			_, err := f.booking.Book(context.Background(), id, lot.ID, request(testNow, "WB01A1"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperror.IsKind(err, apperror.KindCapacity):
				capacity++
			}
		}(users[i])
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, capacity)
}

func TestConcurrentBookingsBySameUser(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, 50, 5)
	alice := f.user(t, "alice@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.booking.Book(context.Background(), alice, lot.ID, request(testNow, "WB01A1"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestPruneRecentBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, 50, 2)
	_, err := f.booking.Book(ctx, f.user(t, "a@example.com"), lot.ID, request(testNow, "WB01A1"))
	require.NoError(t, err)

	f.booking.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	n, err := f.booking.PruneRecentBookings(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err := f.booking.AllRecentBookings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
