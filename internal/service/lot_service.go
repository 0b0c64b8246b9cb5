package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
	"go.uber.org/zap"
)

type LotService struct {
	store       repository.Store
	maxCapacity int
	log         *zap.Logger
}

func NewLotService(store repository.Store, maxCapacity int, log *zap.Logger) *LotService {
	return &LotService{store: store, maxCapacity: maxCapacity, log: log}
}

func (s *LotService) validate(dto domain.ParkingLotDTO) (domain.ParkingLot, int, error) {
	lot := domain.ParkingLot{
		PrimeLocationName: strings.TrimSpace(dto.PrimeLocationName),
		Address:           strings.TrimSpace(dto.Address),
		PinCode:           strings.TrimSpace(dto.PinCode),
		PricePerHour:      domain.RoundMoney(dto.PricePerHour),
	}
	if lot.PrimeLocationName == "" || lot.Address == "" || lot.PinCode == "" || dto.MaxSpots == nil {
		return lot, 0, apperror.Validation("name, address, pin code and max spots are required")
	}
	if err := domain.ValidatePrice(lot.PricePerHour); err != nil {
		return lot, 0, apperror.Validation(err.Error())
	}
	capacity := *dto.MaxSpots
	if capacity < 0 || capacity > s.maxCapacity {
		return lot, 0, apperror.Validation(fmt.Sprintf("max spots must be between 0 and %d", s.maxCapacity))
	}
	return lot, capacity, nil
}

// CreateLot inserts the lot and its spots in one transaction.
func (s *LotService) CreateLot(ctx context.Context, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	lot, capacity, err := s.validate(dto)
	if err != nil {
		return nil, err
	}

	var created *domain.ParkingLot
	err = inTx(ctx, s.store, "create lot", func(tx repository.Repositories) error {
		l, err := tx.Lots().Create(ctx, &lot)
		if err != nil {
			return storageErr(err, "insert lot")
		}
		if capacity > 0 {
			if _, err := tx.Spots().CreateBatch(ctx, l.ID, capacity); err != nil {
				return storageErr(err, "insert spots")
			}
		}
		created, err = tx.Lots().FindByID(ctx, l.ID)
		return storageErr(err, "reload lot")
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("parking lot created", zap.Int("lot_id", created.ID), zap.Int("spots", capacity))
	return created, nil
}

// UpdateLot edits the lot and resizes it to dto.MaxSpots. Shrinking removes
// only Available spots that were never reserved; when there are not enough
// of them nothing changes.
func (s *LotService) UpdateLot(ctx context.Context, lotID int, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	fields, target, err := s.validate(dto)
	if err != nil {
		return nil, err
	}

	var updated *domain.ParkingLot
	err = inTx(ctx, s.store, "update lot", func(tx repository.Repositories) error {
		lot, err := tx.Lots().LockByID(ctx, lotID)
		if err != nil {
			return notFoundOr(err, "parking lot not found", "lock lot")
		}

		switch current := lot.TotalSpots; {
		case target > current:
			if _, err := tx.Spots().CreateBatch(ctx, lotID, target-current); err != nil {
				return storageErr(err, "insert spots")
			}
		case target < current:
			deficit := current - target
			ids, err := tx.Spots().FindRemovable(ctx, lotID, deficit)
			if err != nil {
				return storageErr(err, "find removable spots")
			}
			if len(ids) < deficit {
				return apperror.Newf(apperror.KindConflict,
					"cannot remove %d spots: only %d are free and were never booked", deficit, len(ids)).
					WithMeta("requested", deficit).
					WithMeta("removable", len(ids))
			}
			if err := tx.Spots().DeleteByIDs(ctx, ids); err != nil {
				return storageErr(err, "delete spots")
			}
		}

		fields.ID = lotID
		if _, err := tx.Lots().Update(ctx, &fields); err != nil {
			return notFoundOr(err, "parking lot not found", "update lot")
		}
		updated, err = tx.Lots().FindByID(ctx, lotID)
		return storageErr(err, "reload lot")
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("parking lot updated", zap.Int("lot_id", lotID), zap.Int("spots", updated.TotalSpots))
	return updated, nil
}

// DeleteLot removes a lot with all its spots and their reservation history.
// A lot with an occupied spot cannot be deleted.
func (s *LotService) DeleteLot(ctx context.Context, lotID int) error {
	err := inTx(ctx, s.store, "delete lot", func(tx repository.Repositories) error {
		if _, err := tx.Lots().LockByID(ctx, lotID); err != nil {
			return notFoundOr(err, "parking lot not found", "lock lot")
		}
		spots, err := tx.Spots().LockByLotID(ctx, lotID)
		if err != nil {
			return storageErr(err, "lock spots")
		}
		occupied := 0
		for _, sp := range spots {
			if sp.Status == domain.SpotOccupied {
				occupied++
			}
		}
		if occupied > 0 {
			return apperror.Newf(apperror.KindConflict, "cannot delete lot: %d spots are occupied", occupied).
				WithMeta("occupied", occupied)
		}
		return notFoundOr(tx.Lots().Delete(ctx, lotID), "parking lot not found", "delete lot")
	})
	if err == nil {
		s.log.Info("parking lot deleted", zap.Int("lot_id", lotID))
	}
	return err
}

func (s *LotService) DeleteSpot(ctx context.Context, spotID int) error {
	return inTx(ctx, s.store, "delete spot", func(tx repository.Repositories) error {
		spot, err := tx.Spots().LockByID(ctx, spotID)
		if err != nil {
			return notFoundOr(err, "parking spot not found", "lock spot")
		}
		if spot.Status == domain.SpotOccupied {
			return apperror.Conflict("cannot delete an occupied spot")
		}
		return notFoundOr(tx.Spots().Delete(ctx, spotID), "parking spot not found", "delete spot")
	})
}

func (s *LotService) GetLot(ctx context.Context, lotID int) (*domain.ParkingLot, error) {
	lot, err := s.store.Lots().FindByID(ctx, lotID)
	if err != nil {
		return nil, notFoundOr(err, "parking lot not found", "load lot")
	}
	return lot, nil
}

func (s *LotService) ListLots(ctx context.Context) ([]domain.ParkingLot, error) {
	lots, err := s.store.Lots().FindAll(ctx)
	return lots, storageErr(err, "list lots")
}

// SearchLots matches address or pin code and returns lots with a free spot.
func (s *LotService) SearchLots(ctx context.Context, query string) ([]domain.ParkingLot, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("search query is required")
	}
	lots, err := s.store.Lots().Search(ctx, query)
	return lots, storageErr(err, "search lots")
}

func (s *LotService) ListSpots(ctx context.Context, lotID int) ([]domain.ParkingSpot, error) {
	if _, err := s.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	spots, err := s.store.Spots().FindByLotID(ctx, lotID)
	return spots, storageErr(err, "list spots")
}

// GetSpot returns the spot and, when occupied, the reservation holding it.
func (s *LotService) GetSpot(ctx context.Context, spotID int) (*domain.SpotDetail, error) {
	spot, err := s.store.Spots().FindByID(ctx, spotID)
	if err != nil {
		return nil, notFoundOr(err, "parking spot not found", "load spot")
	}
	detail := &domain.SpotDetail{ParkingSpot: *spot}
	res, err := s.store.Reservations().FindOpenBySpot(ctx, spotID)
	switch {
	case err == nil:
		detail.OpenReservation = res
	case !errors.Is(err, repository.ErrNoActiveReservation):
		return nil, storageErr(err, "load open reservation")
	}
	return detail, nil
}

var demoLots = []struct {
	name, address, pin string
	price              float64
	spots              int
}{
	{"City Center", "12 MG Road, Kolkata", "700001", 50, 5},
	{"Salt Lake Sector V", "DLF IT Park, Kolkata", "700091", 40, 3},
	{"South City", "375 Prince Anwar Shah Road, Kolkata", "700068", 60, 7},
}

// SeedDemoLots creates a few lots when the store has none.
func (s *LotService) SeedDemoLots(ctx context.Context) error {
	lots, err := s.ListLots(ctx)
	if err != nil {
		return err
	}
	if len(lots) > 0 {
		return nil
	}
	for _, d := range demoLots {
		spots := d.spots
		if _, err := s.CreateLot(ctx, domain.ParkingLotDTO{
			PrimeLocationName: d.name,
			Address:           d.address,
			PinCode:           d.pin,
			PricePerHour:      d.price,
			MaxSpots:          &spots,
		}); err != nil {
			return fmt.Errorf("seed lot %q: %w", d.name, err)
		}
	}
	s.log.Info("demo parking lots seeded", zap.Int("count", len(demoLots)))
	return nil
}
