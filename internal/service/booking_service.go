package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/notify"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/Megho-git/ParkEase/internal/token"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"
)

const (
	bookingDateLayout = "2006-01-02"
	bookingTimeLayout = "15:04"
	maxVehicleNumber  = 20
)

type BookingOptions struct {
	Location *time.Location
	Grace    time.Duration
	Horizon  time.Duration
}

type BookingService struct {
	store    repository.Store
	notifier notify.Notifier
	codec    *token.Codec
	observer SpotObserver
	opts     BookingOptions
	now      func() time.Time
	log      *zap.Logger
}

func NewBookingService(store repository.Store, notifier notify.Notifier, codec *token.Codec,
	observer SpotObserver, opts BookingOptions, log *zap.Logger) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &BookingService{
		store:    store,
		notifier: notifier,
		codec:    codec,
		observer: observer,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// NormaliseVehicle upper-cases a plate and strips whitespace and dashes.
func NormaliseVehicle(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "", "-", "").Replace(v)
}

// Book reserves the lowest numbered free spot of lotID for the caller.
// Validation runs in a fixed order: presence, parse, time window, then the
// one-open-reservation rule inside the transaction.
func (s *BookingService) Book(ctx context.Context, id domain.Identity, lotID int, req domain.BookingRequestDTO) (*domain.BookingResult, error) {
	vehicle := NormaliseVehicle(req.VehicleNumber)
	date, clock := strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	if vehicle == "" || date == "" || clock == "" {
		return nil, apperror.Validation("vehicle number, date and time are required")
	}
	if len(vehicle) > maxVehicleNumber {
		return nil, apperror.Validation(fmt.Sprintf("vehicle number must be at most %d characters", maxVehicleNumber))
	}

	planned, err := time.ParseInLocation(bookingDateLayout+" "+bookingTimeLayout, date+" "+clock, s.opts.Location)
	if err != nil {
		return nil, apperror.Validation("invalid date or time format, expected YYYY-MM-DD and HH:MM")
	}

	now := s.now()
	if planned.Before(now.Add(-s.opts.Grace)) {
		return nil, apperror.OutOfRange("booking time cannot be in the past")
	}
	if planned.After(now.Add(s.opts.Horizon)) {
		return nil, apperror.OutOfRange(fmt.Sprintf("booking time cannot be more than %d days ahead", int(s.opts.Horizon.Hours()/24)))
	}

	var (
		lot  *domain.ParkingLot
		user *domain.User
		res  *domain.Reservation
	)
	err = inTx(ctx, s.store, "book spot", func(tx repository.Repositories) error {
		var err error
		if lot, err = tx.Lots().FindByID(ctx, lotID); err != nil {
			return notFoundOr(err, "parking lot not found", "load lot")
		}
		if user, err = tx.Users().LockByID(ctx, id.UserID); err != nil {
			return notFoundOr(err, "user not found", "lock user")
		}

		_, err = tx.Reservations().FindOpenByUser(ctx, id.UserID)
		switch {
		case err == nil:
			return apperror.Conflict("you already have an active booking")
		case !errors.Is(err, repository.ErrNoActiveReservation):
			return storageErr(err, "check open reservation")
		}

		spot, err := tx.Spots().ClaimFirstAvailable(ctx, lotID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.Capacity("no spots available in this lot")
			}
			return storageErr(err, "claim spot")
		}
		if err := tx.Spots().UpdateStatus(ctx, spot.ID, domain.SpotOccupied); err != nil {
			return storageErr(err, "occupy spot")
		}

		res, err = tx.Reservations().Create(ctx, &domain.Reservation{
			SpotID:           spot.ID,
			UserID:           id.UserID,
			VehicleNumber:    vehicle,
			ParkingTime:      planned.UTC(),
			PlannedStartTime: null.TimeFrom(planned.UTC()),
			LotID:            lotID,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return apperror.Conflict("you already have an active booking")
			}
			return storageErr(err, "insert reservation")
		}

		err = tx.RecentBookings().Create(ctx, &domain.RecentBooking{
			UserID:        id.UserID,
			Location:      lot.PrimeLocationName,
			VehicleNumber: vehicle,
			Timestamp:     now.UTC(),
		})
		return storageErr(err, "record recent booking")
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindStorage) {
			s.log.Error("booking failed", zap.Error(err), zap.Int("lot_id", lotID), zap.Int("user_id", id.UserID))
		}
		return nil, err
	}

	lot.AvailableSpots--
	lot.OccupiedSpots++
	result := &domain.BookingResult{Reservation: *res, Lot: *lot}
	s.log.Info("spot booked",
		zap.Int("reservation_id", res.ID), zap.Int("spot_id", res.SpotID), zap.Int("lot_id", lotID), zap.Int("user_id", id.UserID))

	s.observer.SpotChanged(ctx, domain.SpotStatusChange{
		LotID: lotID, SpotID: res.SpotID, Status: domain.SpotOccupied, ReservationID: res.ID, At: now.UTC(),
	})

	code, err := s.codec.Encode(res.ID)
	if err != nil {
		s.log.Error("encode confirmation code", zap.Error(err), zap.Int("reservation_id", res.ID))
		result.Warning = "booking confirmed but the confirmation code could not be generated"
		return result, nil
	}
	result.Token = string(code)

	ok, msg := s.confirm(ctx, notify.Confirmation{
		Recipient:     user.Email,
		RecipientName: user.FullName,
		ReservationID: res.ID,
		SpotID:        res.SpotID,
		VehicleNumber: vehicle,
		LotName:       lot.PrimeLocationName,
		Address:       lot.Address,
		PinCode:       lot.PinCode,
		PricePerHour:  lot.PricePerHour,
		ScheduledTime: planned.UTC(),
		Code:          result.Token,
	})
	if !ok {
		s.log.Warn("confirmation not delivered", zap.Int("reservation_id", res.ID), zap.String("reason", msg))
		result.Warning = "booking confirmed but " + msg
	}
	return result, nil
}

func (s *BookingService) confirm(ctx context.Context, c notify.Confirmation) (ok bool, msg string) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("notifier panicked", zap.Any("panic", p), zap.Int("reservation_id", c.ReservationID))
			ok, msg = false, "confirmation could not be sent"
		}
	}()
	return s.notifier.SendConfirmation(ctx, c)
}

func (s *BookingService) RecentBookings(ctx context.Context, userID, limit int) ([]domain.RecentBooking, error) {
	out, err := s.store.RecentBookings().ListByUser(ctx, userID, limit)
	return out, storageErr(err, "list recent bookings")
}

func (s *BookingService) AllRecentBookings(ctx context.Context, limit int) ([]domain.RecentBooking, error) {
	out, err := s.store.RecentBookings().ListAll(ctx, limit)
	return out, storageErr(err, "list recent bookings")
}

// PruneRecentBookings drops audit rows older than retention.
func (s *BookingService) PruneRecentBookings(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.store.RecentBookings().DeleteOlderThan(ctx, s.now().Add(-retention))
	return n, storageErr(err, "prune recent bookings")
}
