package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/notify"
	"github.com/Megho-git/ParkEase/internal/repository/memory"
	"github.com/Megho-git/ParkEase/internal/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingObserver struct {
	mu     sync.Mutex
	events []domain.SpotStatusChange
}

func (o *recordingObserver) SpotChanged(_ context.Context, ev domain.SpotStatusChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) all() []domain.SpotStatusChange {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.SpotStatusChange(nil), o.events...)
}

type stubNotifier struct {
	mu    sync.Mutex
	sent  []notify.Confirmation
	fail  string
	panic bool
}

func (n *stubNotifier) SendConfirmation(_ context.Context, c notify.Confirmation) (bool, string) {
	if n.panic {
		panic("smtp exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != "" {
		return false, n.fail
	}
	n.sent = append(n.sent, c)
	return true, ""
}

type fixture struct {
	store    *memory.Store
	codec    *token.Codec
	observer *recordingObserver
	notifier *stubNotifier
	booking  *BookingService
	release  *ReleaseService
	lots     *LotService
	reports  *ReportService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		store:    memory.NewStore(),
		codec:    token.NewCodec("qr-secret-for-tests"),
		observer: &recordingObserver{},
		notifier: &stubNotifier{},
	}
	f.booking = NewBookingService(f.store, f.notifier, f.codec, f.observer, BookingOptions{
		Location: time.UTC,
		Grace:    5 * time.Minute,
		Horizon:  30 * 24 * time.Hour,
	}, log)
	f.booking.now = func() time.Time { return testNow }
	f.release = NewReleaseService(f.store, f.codec, f.observer, log)
	f.release.now = func() time.Time { return testNow }
	f.lots = NewLotService(f.store, 500, log)
	f.reports = NewReportService(f.store)
	f.auth = NewAuthService(f.store.Users(), "jwt-secret-for-tests-0123456789", time.Hour, log)
	return f
}

// at moves the release clock.
func (f *fixture) at(t time.Time) {
	f.release.now = func() time.Time { return t }
}

func (f *fixture) user(t *testing.T, email string) domain.Identity {
	t.Helper()
	u, err := f.store.Users().Create(context.Background(), &domain.User{
		Email: email, Password: "x", FullName: email, Address: "a", PinCode: "700001", Role: domain.RoleUser,
	})
	require.NoError(t, err)
	return domain.Identity{UserID: u.ID, Role: domain.RoleUser}
}

func (f *fixture) admin(t *testing.T) domain.Identity {
	t.Helper()
	u, err := f.store.Users().Create(context.Background(), &domain.User{
		Email: "admin@parkease.test", Password: "x", FullName: "Admin", Address: "a", PinCode: "700001", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)
	return domain.Identity{UserID: u.ID, Role: domain.RoleAdmin}
}

func (f *fixture) lot(t *testing.T, price float64, spots int) *domain.ParkingLot {
	t.Helper()
	lot, err := f.lots.CreateLot(context.Background(), domain.ParkingLotDTO{
		PrimeLocationName: fmt.Sprintf("Lot %d", spots),
		Address:           "12 MG Road, Kolkata",
		PinCode:           "700001",
		PricePerHour:      price,
		MaxSpots:          &spots,
	})
	require.NoError(t, err)
	return lot
}

func request(at time.Time, vehicle string) domain.BookingRequestDTO {
	return domain.BookingRequestDTO{
		VehicleNumber: vehicle,
		Date:          at.Format("2006-01-02"),
		Time:          at.Format("15:04"),
	}
}
