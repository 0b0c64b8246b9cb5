package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/Megho-git/ParkEase/internal/token"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"
)

type ReleaseService struct {
	store    repository.Store
	codec    *token.Codec
	observer SpotObserver
	now      func() time.Time
	log      *zap.Logger
}

func NewReleaseService(store repository.Store, codec *token.Codec, observer SpotObserver, log *zap.Logger) *ReleaseService {
	return &ReleaseService{store: store, codec: codec, observer: observer, now: time.Now, log: log}
}

// Release closes an open reservation, frees its spot and prices the stay.
// Releasing an already closed reservation changes nothing and reports the
// charge recorded at its original leaving time.
func (s *ReleaseService) Release(ctx context.Context, id domain.Identity, reservationID int) (*domain.ReleaseResult, error) {
	var result domain.ReleaseResult
	now := s.now().UTC()

	err := inTx(ctx, s.store, "release reservation", func(tx repository.Repositories) error {
		res, err := tx.Reservations().LockByID(ctx, reservationID)
		if err != nil {
			return notFoundOr(err, "reservation not found", "lock reservation")
		}
		if !id.CanAccess(res.UserID) {
			return apperror.Forbidden("you can only release your own reservations")
		}
		lot, err := tx.Lots().FindByID(ctx, res.LotID)
		if err != nil {
			return notFoundOr(err, "parking lot not found", "load lot")
		}
		result.LotName = lot.PrimeLocationName
		result.PricePerHour = lot.PricePerHour

		if !res.IsOpen() {
			result.AlreadyReleased = true
			result.Reservation = *res
			result.Charge = domain.ComputeCharge(lot.PricePerHour, res.Baseline(), res.LeavingTime.Time)
			return nil
		}

		if err := tx.Reservations().Close(ctx, res.ID, now); err != nil {
			if errors.Is(err, repository.ErrNoActiveReservation) {
				return apperror.Conflict("reservation was released concurrently")
			}
			return storageErr(err, "close reservation")
		}
		if err := tx.Spots().UpdateStatus(ctx, res.SpotID, domain.SpotAvailable); err != nil {
			return storageErr(err, "free spot")
		}
		res.LeavingTime = null.TimeFrom(now)
		result.Reservation = *res
		result.Charge = domain.ComputeCharge(lot.PricePerHour, res.Baseline(), now)
		return nil
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindStorage) {
			s.log.Error("release failed", zap.Error(err), zap.Int("reservation_id", reservationID))
		}
		return nil, err
	}
	if result.AlreadyReleased {
		return &result, nil
	}

	s.log.Info("spot released",
		zap.Int("reservation_id", reservationID),
		zap.Int("spot_id", result.Reservation.SpotID),
		zap.Float64("cost", result.Charge.Cost))
	s.observer.SpotChanged(ctx, domain.SpotStatusChange{
		LotID:         result.Reservation.LotID,
		SpotID:        result.Reservation.SpotID,
		Status:        domain.SpotAvailable,
		ReservationID: reservationID,
		At:            now,
	})
	return &result, nil
}

// Preview prices an open reservation as if it were released now. Nothing is written.
func (s *ReleaseService) Preview(ctx context.Context, id domain.Identity, reservationID int) (*domain.ReleaseResult, error) {
	view, err := s.GetReservation(ctx, id, reservationID)
	if err != nil {
		return nil, err
	}
	end := s.now().UTC()
	if !view.IsOpen() {
		end = view.LeavingTime.Time
	}
	return &domain.ReleaseResult{
		Reservation:     view.Reservation,
		LotName:         view.LotName,
		PricePerHour:    view.PricePerHour,
		Charge:          domain.ComputeCharge(view.PricePerHour, view.Baseline(), end),
		AlreadyReleased: !view.IsOpen(),
	}, nil
}

func (s *ReleaseService) GetReservation(ctx context.Context, id domain.Identity, reservationID int) (*domain.ReservationView, error) {
	res, err := s.store.Reservations().FindByID(ctx, reservationID)
	if err != nil {
		return nil, notFoundOr(err, "reservation not found", "load reservation")
	}
	if !id.CanAccess(res.UserID) {
		return nil, apperror.Forbidden("you can only view your own reservations")
	}
	lot, err := s.store.Lots().FindByID(ctx, res.LotID)
	if err != nil {
		return nil, notFoundOr(err, "parking lot not found", "load lot")
	}
	return &domain.ReservationView{
		Reservation:  *res,
		LotName:      lot.PrimeLocationName,
		Address:      lot.Address,
		PricePerHour: lot.PricePerHour,
	}, nil
}

func (s *ReleaseService) ListForUser(ctx context.Context, userID int) ([]domain.ReservationView, error) {
	out, err := s.store.Reservations().ListByUser(ctx, userID)
	return out, storageErr(err, "list reservations")
}

// ReleaseByCode releases the reservation a scanned confirmation code points at.
func (s *ReleaseService) ReleaseByCode(ctx context.Context, id domain.Identity, code string) (*domain.ReleaseResult, error) {
	reservationID, err := s.codec.Decode([]byte(strings.TrimSpace(code)))
	if err != nil {
		return nil, apperror.Validation("invalid confirmation code")
	}
	return s.Release(ctx, id, reservationID)
}

// QRCode renders the confirmation code of a reservation as a PNG.
func (s *ReleaseService) QRCode(ctx context.Context, id domain.Identity, reservationID int) ([]byte, error) {
	if _, err := s.GetReservation(ctx, id, reservationID); err != nil {
		return nil, err
	}
	code, err := s.codec.Encode(reservationID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindStorage, "encode confirmation code")
	}
	png, err := token.QRCodePNG(code)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindStorage, "render qr code")
	}
	return png, nil
}
