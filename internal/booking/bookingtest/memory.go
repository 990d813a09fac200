// Package bookingtest provides an in-memory store for exercising the booking
// core without MySQL.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

// Store implements booking.SeatStore, booking.TripInitializer, booking.Ledger
// and booking.Transactor.  Transactions are not isolated: writes made before
// a failing step stay applied, like a store without transactions.
type Store struct {
	mu       sync.Mutex
	trips    map[string]model.Trip
	seats    map[string]map[string]model.Seat // trip -> seat id -> seat
	bookings []model.Booking

	// Now stamps ledger records.  Defaults to time.Now.
	Now func() time.Time
	// AppendErr, when set, is returned by the next Append calls.
	AppendErr error
	// StoreErr, when set, is returned by every seat operation.
	StoreErr error
}

func NewStore() *Store {
	return &Store{
		trips: make(map[string]model.Trip),
		seats: make(map[string]map[string]model.Seat),
		Now:   time.Now,
	}
}

func (s *Store) InitTrip(_ context.Context, trip model.Trip, seats []model.Seat) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StoreErr != nil {
		return false, s.StoreErr
	}
	if _, ok := s.trips[trip.ID]; ok {
		return false, nil
	}
	trip.CreatedAt = s.Now().UTC()
	s.trips[trip.ID] = trip
	m := make(map[string]model.Seat, len(seats))
	for _, seat := range seats {
		seat.Status = model.SeatAvailable
		seat.UpdatedAt = trip.CreatedAt
		m[seat.ID] = seat
	}
	s.seats[trip.ID] = m
	return true, nil
}

func (s *Store) ListByTrip(_ context.Context, tripID string) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StoreErr != nil {
		return nil, s.StoreErr
	}
	out := make([]model.Seat, 0, len(s.seats[tripID]))
	for _, seat := range s.seats[tripID] {
		out = append(out, seat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out, nil
}

func (s *Store) GetByID(_ context.Context, tripID, seatID string) (model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StoreErr != nil {
		return model.Seat{}, s.StoreErr
	}
	seat, ok := s.seats[tripID][seatID]
	if !ok {
		return model.Seat{}, repository.ErrSeatNotFound
	}
	return seat, nil
}

func (s *Store) CompareAndSet(_ context.Context, tripID string, t model.Transition) (model.Seat, error) {
	if err := t.To.Validate(); err != nil {
		return model.Seat{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StoreErr != nil {
		return model.Seat{}, s.StoreErr
	}
	seat, ok := s.seats[tripID][t.SeatID]
	if !ok {
		return model.Seat{}, repository.ErrSeatNotFound
	}
	if seat.Status != t.FromStatus || seat.Version != t.FromVersion {
		return model.Seat{}, repository.ErrConflict
	}
	seat.Apply(t.To)
	seat.Version++
	seat.UpdatedAt = t.At
	s.seats[tripID][t.SeatID] = seat
	return seat, nil
}

// Put overwrites a seat, bypassing compare-and-set.  Tests use it to build
// states the lock manager would not produce.
func (s *Store) Put(seat model.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seats[seat.TripID] == nil {
		s.seats[seat.TripID] = make(map[string]model.Seat)
	}
	s.seats[seat.TripID][seat.ID] = seat
}

// SeatAt returns the seat at row, col of tripID.
func (s *Store) SeatAt(tripID string, row, col int) model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range s.seats[tripID] {
		if seat.Row == row && seat.Column == col {
			return seat
		}
	}
	return model.Seat{}
}

func (s *Store) Append(_ context.Context, b model.Booking) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return model.Booking{}, s.AppendErr
	}
	for _, existing := range s.bookings {
		if existing.TripID == b.TripID && existing.SeatID == b.SeatID {
			return model.Booking{}, repository.ErrBookingExists
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.Now().UTC()
	}
	s.bookings = append(s.bookings, b)
	return b, nil
}

func (s *Store) FindLatestByUser(_ context.Context, tripID, userID string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest model.Booking
		found  bool
	)
	for _, b := range s.bookings {
		if b.TripID != tripID || b.UserID != userID {
			continue
		}
		if !found || !b.ConfirmedAt.Before(latest.ConfirmedAt) {
			latest, found = b, true
		}
	}
	if !found {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return latest, nil
}

func (s *Store) FindBySeat(_ context.Context, tripID, seatID string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.TripID == tripID && b.SeatID == seatID {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrBookingNotFound
}

func (s *Store) FindByID(_ context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrBookingNotFound
}

// Bookings returns a copy of the ledger.
func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Booking(nil), s.bookings...)
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
