package service

import (
	"context"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

// Stays shorter than this are left out of usage reports.
const minUsage = time.Minute

type ReportService struct {
	store repository.Store
}

func NewReportService(store repository.Store) *ReportService {
	return &ReportService{store: store}
}

// Revenue prices every closed reservation and sums per lot.
func (s *ReportService) Revenue(ctx context.Context) (*domain.RevenueReport, error) {
	records, err := s.store.Reports().ClosedReservations(ctx, nil)
	if err != nil {
		return nil, storageErr(err, "load closed reservations")
	}

	report := &domain.RevenueReport{Lots: []domain.LotRevenue{}}
	index := map[int]int{}
	for _, rec := range records {
		i, ok := index[rec.LotID]
		if !ok {
			i = len(report.Lots)
			index[rec.LotID] = i
			report.Lots = append(report.Lots, domain.LotRevenue{LotID: rec.LotID, LotName: rec.LotName})
		}
		cost := domain.ComputeCharge(rec.PricePerHour, rec.Baseline(), rec.LeavingTime).Cost
		report.Lots[i].Reservations++
		report.Lots[i].Revenue = domain.RoundMoney(report.Lots[i].Revenue + cost)
		report.Total = domain.RoundMoney(report.Total + cost)
	}
	return report, nil
}

func (s *ReportService) Occupancy(ctx context.Context) ([]domain.LotOccupancy, error) {
	out, err := s.store.Reports().OccupancyByLot(ctx)
	if out == nil {
		out = []domain.LotOccupancy{}
	}
	return out, storageErr(err, "load occupancy")
}

// UserUsage sums elapsed hours per lot for one user's closed reservations.
func (s *ReportService) UserUsage(ctx context.Context, userID int) (*domain.UsageReport, error) {
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		return nil, notFoundOr(err, "user not found", "load user")
	}
	records, err := s.store.Reports().ClosedReservations(ctx, &userID)
	if err != nil {
		return nil, storageErr(err, "load closed reservations")
	}

	report := &domain.UsageReport{UserID: userID, Lots: []domain.LotUsage{}}
	index := map[int]int{}
	var total time.Duration
	for _, rec := range records {
		elapsed := rec.LeavingTime.Sub(rec.Baseline())
		if elapsed < minUsage {
			continue
		}
		i, ok := index[rec.LotID]
		if !ok {
			i = len(report.Lots)
			index[rec.LotID] = i
			report.Lots = append(report.Lots, domain.LotUsage{LotID: rec.LotID, LotName: rec.LotName})
		}
		report.Lots[i].Hours += elapsed.Hours()
		total += elapsed
	}
	for i := range report.Lots {
		report.Lots[i].Hours = domain.RoundMoney(report.Lots[i].Hours)
	}
	report.Total = domain.RoundMoney(total.Hours())
	return report, nil
}

func (s *ReportService) Summary(ctx context.Context) (*domain.AdminSummary, error) {
	counts, err := s.store.Reports().Counts(ctx)
	if err != nil {
		return nil, storageErr(err, "load counts")
	}
	revenue, err := s.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.AdminSummary{
		Lots:             counts.Lots,
		Spots:            counts.Spots,
		AvailableSpots:   counts.Spots - counts.OccupiedSpots,
		OccupiedSpots:    counts.OccupiedSpots,
		OpenReservations: counts.OpenReservations,
		Users:            counts.Users,
		TotalRevenue:     revenue.Total,
	}, nil
}
