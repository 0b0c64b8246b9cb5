// Package memory is an in-process repository.Store. A single mutex makes
// every transaction serialisable; a failed transaction restores a snapshot.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

type state struct {
	users        map[int]domain.User
	lots         map[int]domain.ParkingLot
	spots        map[int]domain.ParkingSpot
	reservations map[int]domain.Reservation
	recent       map[int]domain.RecentBooking
	seq          map[string]int
}

func newState() *state {
	return &state{
		users:        map[int]domain.User{},
		lots:         map[int]domain.ParkingLot{},
		spots:        map[int]domain.ParkingSpot{},
		reservations: map[int]domain.Reservation{},
		recent:       map[int]domain.RecentBooking{},
		seq:          map[string]int{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.spots {
		c.spots[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.recent {
		c.recent[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *state) next(table string) int {
	s.seq[table]++
	return s.seq[table]
}

type Store struct {
	mu    sync.Mutex
	data  *state
	now   func() time.Time
	repos *repos
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{data: newState(), now: func() time.Time { return time.Now().UTC() }}
	s.repos = &repos{store: s}
	return s
}

// repos is the repository set. Outside a transaction every call takes the
// store lock itself; inside one the lock is already held.
type repos struct {
	store *Store
	inTx  bool
}

func (r *repos) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *repos) data() *state { return r.store.data }

func (r *repos) Users() repository.UserRepository                   { return userRepo{r} }
func (r *repos) Lots() repository.ParkingLotRepository              { return lotRepo{r} }
func (r *repos) Spots() repository.ParkingSpotRepository            { return spotRepo{r} }
func (r *repos) Reservations() repository.ReservationRepository     { return reservationRepo{r} }
func (r *repos) RecentBookings() repository.RecentBookingRepository { return recentRepo{r} }

func (s *Store) Users() repository.UserRepository                   { return s.repos.Users() }
func (s *Store) Lots() repository.ParkingLotRepository              { return s.repos.Lots() }
func (s *Store) Spots() repository.ParkingSpotRepository            { return s.repos.Spots() }
func (s *Store) Reservations() repository.ReservationRepository     { return s.repos.Reservations() }
func (s *Store) RecentBookings() repository.RecentBookingRepository { return s.repos.RecentBookings() }
func (s *Store) Reports() repository.ReportRepository               { return reportRepo{s.repos} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()

	if err := fn(&repos{store: s, inTx: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
