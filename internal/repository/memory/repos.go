package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

type userRepo struct{ *repos }

func (r userRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	defer r.lock()()
	st := r.data()
	for _, u := range st.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, fmt.Errorf("%w: email '%s' is already registered", repository.ErrDuplicateEntry, user.Email)
		}
	}
	user.ID = st.next("users")
	user.CreatedAt = r.store.now()
	user.UpdatedAt = user.CreatedAt
	st.users[user.ID] = *user
	return user, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.lock()()
	for _, u := range r.data().users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) FindByID(_ context.Context, id int) (*domain.User, error) {
	defer r.lock()()
	u, ok := r.data().users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) LockByID(ctx context.Context, id int) (*domain.User, error) {
	return r.FindByID(ctx, id)
}

func (r userRepo) UpdateProfile(_ context.Context, user *domain.User) (*domain.User, error) {
	defer r.lock()()
	st := r.data()
	u, ok := st.users[user.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.FullName, u.Address, u.PinCode, u.Phone = user.FullName, user.Address, user.PinCode, user.Phone
	u.UpdatedAt = r.store.now()
	st.users[u.ID] = u
	return &u, nil
}

func (r userRepo) FindAll(_ context.Context) ([]domain.UserSummary, error) {
	defer r.lock()()
	st := r.data()
	out := make([]domain.UserSummary, 0, len(st.users))
	for _, u := range st.users {
		s := domain.UserSummary{User: u}
		for _, res := range st.reservations {
			if res.UserID != u.ID {
				continue
			}
			s.ReservationCount++
			if res.IsOpen() {
				s.HasOpenReservation = true
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type lotRepo struct{ *repos }

func withCounts(st *state, lot domain.ParkingLot) domain.ParkingLot {
	lot.TotalSpots, lot.AvailableSpots, lot.OccupiedSpots = 0, 0, 0
	for _, s := range st.spots {
		if s.LotID != lot.ID {
			continue
		}
		lot.TotalSpots++
		if s.Status == domain.SpotAvailable {
			lot.AvailableSpots++
		} else {
			lot.OccupiedSpots++
		}
	}
	return lot
}

func (r lotRepo) Create(_ context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	defer r.lock()()
	st := r.data()
	lot.ID = st.next("lots")
	lot.CreatedAt = r.store.now()
	lot.UpdatedAt = lot.CreatedAt
	st.lots[lot.ID] = *lot
	return lot, nil
}

func (r lotRepo) FindByID(_ context.Context, id int) (*domain.ParkingLot, error) {
	defer r.lock()()
	st := r.data()
	lot, ok := st.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	lot = withCounts(st, lot)
	return &lot, nil
}

func (r lotRepo) LockByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return r.FindByID(ctx, id)
}

func (r lotRepo) FindAll(_ context.Context) ([]domain.ParkingLot, error) {
	defer r.lock()()
	return r.filter(func(domain.ParkingLot) bool { return true }), nil
}

func (r lotRepo) Search(_ context.Context, q string) ([]domain.ParkingLot, error) {
	defer r.lock()()
	q = strings.ToLower(strings.TrimSpace(q))
	return r.filter(func(l domain.ParkingLot) bool {
		match := strings.Contains(strings.ToLower(l.Address), q) || strings.Contains(strings.ToLower(l.PinCode), q)
		return match && l.AvailableSpots > 0
	}), nil
}

func (r lotRepo) filter(keep func(domain.ParkingLot) bool) []domain.ParkingLot {
	st := r.data()
	var out []domain.ParkingLot
	for _, lot := range st.lots {
		lot = withCounts(st, lot)
		if keep(lot) {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r lotRepo) Update(_ context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	defer r.lock()()
	st := r.data()
	cur, ok := st.lots[lot.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cur.PrimeLocationName, cur.Address, cur.PinCode, cur.PricePerHour = lot.PrimeLocationName, lot.Address, lot.PinCode, lot.PricePerHour
	cur.UpdatedAt = r.store.now()
	st.lots[cur.ID] = cur
	lot.UpdatedAt = cur.UpdatedAt
	return lot, nil
}

func (r lotRepo) Delete(_ context.Context, id int) error {
	defer r.lock()()
	st := r.data()
	if _, ok := st.lots[id]; !ok {
		return repository.ErrNotFound
	}
	for sid, s := range st.spots {
		if s.LotID == id {
			deleteSpot(st, sid)
		}
	}
	delete(st.lots, id)
	return nil
}

// deleteSpot mirrors the ON DELETE CASCADE from spots to reservations.
func deleteSpot(st *state, id int) {
	for rid, res := range st.reservations {
		if res.SpotID == id {
			delete(st.reservations, rid)
		}
	}
	delete(st.spots, id)
}

type spotRepo struct{ *repos }

func (r spotRepo) CreateBatch(_ context.Context, lotID, count int) ([]domain.ParkingSpot, error) {
	defer r.lock()()
	st := r.data()
	if _, ok := st.lots[lotID]; !ok {
		return nil, fmt.Errorf("ParkingSpotRepository.CreateBatch: lot %d does not exist", lotID)
	}
	spots := make([]domain.ParkingSpot, 0, count)
	now := r.store.now()
	for i := 0; i < count; i++ {
		s := domain.ParkingSpot{ID: st.next("spots"), LotID: lotID, Status: domain.SpotAvailable, CreatedAt: now, UpdatedAt: now}
		st.spots[s.ID] = s
		spots = append(spots, s)
	}
	return spots, nil
}

func (r spotRepo) FindByID(_ context.Context, id int) (*domain.ParkingSpot, error) {
	defer r.lock()()
	s, ok := r.data().spots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r spotRepo) LockByID(ctx context.Context, id int) (*domain.ParkingSpot, error) {
	return r.FindByID(ctx, id)
}

func (r spotRepo) FindByLotID(_ context.Context, lotID int) ([]domain.ParkingSpot, error) {
	defer r.lock()()
	return spotsOfLot(r.data(), lotID), nil
}

func (r spotRepo) LockByLotID(ctx context.Context, lotID int) ([]domain.ParkingSpot, error) {
	return r.FindByLotID(ctx, lotID)
}

func spotsOfLot(st *state, lotID int) []domain.ParkingSpot {
	var out []domain.ParkingSpot
	for _, s := range st.spots {
		if s.LotID == lotID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r spotRepo) ClaimFirstAvailable(_ context.Context, lotID int) (*domain.ParkingSpot, error) {
	defer r.lock()()
	for _, s := range spotsOfLot(r.data(), lotID) {
		if s.Status == domain.SpotAvailable {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r spotRepo) FindRemovable(_ context.Context, lotID, limit int) ([]int, error) {
	defer r.lock()()
	st := r.data()
	used := map[int]bool{}
	for _, res := range st.reservations {
		used[res.SpotID] = true
	}
	var ids []int
	for _, s := range spotsOfLot(st, lotID) {
		if len(ids) == limit {
			break
		}
		if s.Status == domain.SpotAvailable && !used[s.ID] {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (r spotRepo) UpdateStatus(_ context.Context, id int, status domain.SpotStatus) error {
	defer r.lock()()
	if !status.Valid() {
		return fmt.Errorf("ParkingSpotRepository.UpdateStatus: invalid status %q", status)
	}
	st := r.data()
	s, ok := st.spots[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = r.store.now()
	st.spots[id] = s
	return nil
}

func (r spotRepo) DeleteByIDs(_ context.Context, ids []int) error {
	defer r.lock()()
	st := r.data()
	for _, id := range ids {
		deleteSpot(st, id)
	}
	return nil
}

func (r spotRepo) Delete(_ context.Context, id int) error {
	defer r.lock()()
	st := r.data()
	if _, ok := st.spots[id]; !ok {
		return repository.ErrNotFound
	}
	deleteSpot(st, id)
	return nil
}

type reservationRepo struct{ *repos }

func (r reservationRepo) Create(_ context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	defer r.lock()()
	st := r.data()
	spot, ok := st.spots[res.SpotID]
	if !ok {
		return nil, fmt.Errorf("ReservationRepository.Create: spot %d does not exist", res.SpotID)
	}
	if res.IsOpen() {
		for _, other := range st.reservations {
			if other.IsOpen() && (other.SpotID == res.SpotID || other.UserID == res.UserID) {
				return nil, fmt.Errorf("%w: spot %d or user %d already holds an open reservation",
					repository.ErrDuplicateEntry, res.SpotID, res.UserID)
			}
		}
	}
	res.ID = st.next("reservations")
	res.LotID = spot.LotID
	st.reservations[res.ID] = *res
	return res, nil
}

func (r reservationRepo) withLot(res domain.Reservation) *domain.Reservation {
	if s, ok := r.data().spots[res.SpotID]; ok {
		res.LotID = s.LotID
	}
	return &res
}

func (r reservationRepo) FindByID(_ context.Context, id int) (*domain.Reservation, error) {
	defer r.lock()()
	res, ok := r.data().reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withLot(res), nil
}

func (r reservationRepo) LockByID(ctx context.Context, id int) (*domain.Reservation, error) {
	return r.FindByID(ctx, id)
}

func (r reservationRepo) findOpen(match func(domain.Reservation) bool) (*domain.Reservation, error) {
	var found *domain.Reservation
	for _, res := range r.data().reservations {
		if res.IsOpen() && match(res) && (found == nil || res.ParkingTime.After(found.ParkingTime)) {
			found = r.withLot(res)
		}
	}
	if found == nil {
		return nil, repository.ErrNoActiveReservation
	}
	return found, nil
}

func (r reservationRepo) FindOpenByUser(_ context.Context, userID int) (*domain.Reservation, error) {
	defer r.lock()()
	return r.findOpen(func(res domain.Reservation) bool { return res.UserID == userID })
}

func (r reservationRepo) FindOpenBySpot(_ context.Context, spotID int) (*domain.Reservation, error) {
	defer r.lock()()
	return r.findOpen(func(res domain.Reservation) bool { return res.SpotID == spotID })
}

func (r reservationRepo) FindOpenByVehicle(_ context.Context, vehicle string) (*domain.Reservation, error) {
	defer r.lock()()
	return r.findOpen(func(res domain.Reservation) bool { return strings.EqualFold(res.VehicleNumber, vehicle) })
}

func (r reservationRepo) Close(_ context.Context, id int, leavingTime time.Time) error {
	defer r.lock()()
	st := r.data()
	res, ok := st.reservations[id]
	if !ok || !res.IsOpen() {
		return repository.ErrNoActiveReservation
	}
	res.LeavingTime.SetValid(leavingTime.UTC())
	st.reservations[id] = res
	return nil
}

func (r reservationRepo) ListByUser(_ context.Context, userID int) ([]domain.ReservationView, error) {
	defer r.lock()()
	st := r.data()
	var out []domain.ReservationView
	for _, res := range st.reservations {
		if res.UserID != userID {
			continue
		}
		v := domain.ReservationView{Reservation: *r.withLot(res)}
		if lot, ok := st.lots[v.LotID]; ok {
			v.LotName, v.Address, v.PricePerHour = lot.PrimeLocationName, lot.Address, lot.PricePerHour
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ParkingTime.Equal(out[j].ParkingTime) {
			return out[i].ParkingTime.After(out[j].ParkingTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type recentRepo struct{ *repos }

func (r recentRepo) Create(_ context.Context, b *domain.RecentBooking) error {
	defer r.lock()()
	st := r.data()
	b.ID = st.next("recent")
	st.recent[b.ID] = *b
	return nil
}

func (r recentRepo) ListByUser(_ context.Context, userID, limit int) ([]domain.RecentBooking, error) {
	defer r.lock()()
	return r.list(func(b domain.RecentBooking) bool { return b.UserID == userID }, limit), nil
}

func (r recentRepo) ListAll(_ context.Context, limit int) ([]domain.RecentBooking, error) {
	defer r.lock()()
	return r.list(func(domain.RecentBooking) bool { return true }, limit), nil
}

func (r recentRepo) list(keep func(domain.RecentBooking) bool, limit int) []domain.RecentBooking {
	var out []domain.RecentBooking
	for _, b := range r.data().recent {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r recentRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	defer r.lock()()
	st := r.data()
	var n int64
	for id, b := range st.recent {
		if b.Timestamp.Before(cutoff) {
			delete(st.recent, id)
			n++
		}
	}
	return n, nil
}

type reportRepo struct{ *repos }

func (r reportRepo) ClosedReservations(_ context.Context, userID *int) ([]domain.BillingRecord, error) {
	defer r.lock()()
	st := r.data()
	var out []domain.BillingRecord
	for _, res := range st.reservations {
		if res.IsOpen() || (userID != nil && res.UserID != *userID) {
			continue
		}
		spot := st.spots[res.SpotID]
		lot := st.lots[spot.LotID]
		out = append(out, domain.BillingRecord{
			ReservationID:    res.ID,
			UserID:           res.UserID,
			LotID:            lot.ID,
			LotName:          lot.PrimeLocationName,
			PricePerHour:     lot.PricePerHour,
			ParkingTime:      res.ParkingTime,
			PlannedStartTime: res.PlannedStartTime,
			LeavingTime:      res.LeavingTime.Time,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LotID != out[j].LotID {
			return out[i].LotID < out[j].LotID
		}
		return out[i].ReservationID < out[j].ReservationID
	})
	return out, nil
}

func (r reportRepo) OccupancyByLot(_ context.Context) ([]domain.LotOccupancy, error) {
	defer r.lock()()
	st := r.data()
	var out []domain.LotOccupancy
	for _, lot := range st.lots {
		lot = withCounts(st, lot)
		out = append(out, domain.LotOccupancy{
			LotID: lot.ID, LotName: lot.PrimeLocationName, Available: lot.AvailableSpots, Occupied: lot.OccupiedSpots,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotID < out[j].LotID })
	return out, nil
}

func (r reportRepo) Counts(_ context.Context) (domain.Counts, error) {
	defer r.lock()()
	st := r.data()
	c := domain.Counts{Lots: len(st.lots), Spots: len(st.spots), Users: len(st.users)}
	for _, s := range st.spots {
		if s.Status == domain.SpotOccupied {
			c.OccupiedSpots++
		}
	}
	for _, res := range st.reservations {
		if res.IsOpen() {
			c.OpenReservations++
		}
	}
	return c, nil
}
