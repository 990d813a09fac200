// Package handlertest assembles the HTTP API on in-memory stores for tests of
// the handlers and of API clients.
package handlertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/booking/bookingtest"
	"github.com/iliyamo/trip-seat-booking/internal/config"
	"github.com/iliyamo/trip-seat-booking/internal/feed"
	"github.com/iliyamo/trip-seat-booking/internal/handler"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
	"github.com/iliyamo/trip-seat-booking/internal/router"
	"github.com/iliyamo/trip-seat-booking/internal/utils"
)

const (
	Secret = "test-secret"
	TripID = "trip-1"
)

// Users is an in-memory handler.UserStore.  Created users get the id
// "id-<email>".
type Users struct {
	mu   sync.Mutex
	byID map[string]model.User
}

func NewUsers(seed ...model.User) *Users {
	u := &Users{byID: map[string]model.User{}}
	for _, x := range seed {
		x.IsActive = true
		u.byID[x.ID] = x
	}
	return u
}

func (u *Users) Create(_ context.Context, in repository.NewUser, cost int) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, x := range u.byID {
		if x.Email == in.Email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return model.User{}, err
	}
	usr := model.User{
		ID: "id-" + in.Email, Email: in.Email, Name: in.Name, Gender: in.Gender,
		PasswordHash: hash, IsActive: true,
	}
	u.byID[usr.ID] = usr
	return usr, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, x := range u.byID {
		if x.Email == email {
			return x, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (u *Users) GetByID(_ context.Context, id string) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if x, ok := u.byID[id]; ok {
		return x, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

// Tokens is an in-memory handler.TokenStore.
type Tokens struct {
	mu      sync.Mutex
	owner   map[string]string
	revoked map[string]bool
}

func NewTokens() *Tokens {
	return &Tokens{owner: map[string]string{}, revoked: map[string]bool{}}
}

func (t *Tokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner[hash] = userID
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	uid, ok := t.owner[hash]
	if !ok || t.revoked[hash] {
		return "", repository.ErrRefreshInvalid
	}
	return uid, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, hash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[hash] = true
	return nil
}

func (t *Tokens) RevokeAllForUser(_ context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for h, uid := range t.owner {
		if uid == userID {
			t.revoked[h] = true
		}
	}
	return nil
}

// Active returns the number of live refresh tokens of userID.
func (t *Tokens) Active(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for h, uid := range t.owner {
		if uid == userID && !t.revoked[h] {
			n++
		}
	}
	return n
}

// Stack is the full API over in-memory stores with a fixed clock.
type Stack struct {
	Echo     *echo.Echo
	Store    *bookingtest.Store
	Users    *Users
	Tokens   *Tokens
	Registry *booking.Registry
	Locks    *booking.LockManager
	Now      time.Time
}

// NewStack builds the API with the default layout.  The seeded users are
// male m1 and m2 and female f1 and f2.
func NewStack() (*Stack, error) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := bookingtest.NewStore()
	store.Now = clock
	hub := feed.NewHub(store)
	reg := booking.NewRegistry(TripID, store, store, hub)
	if _, err := reg.Initialize(context.Background(), model.DefaultLayout()); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	lm := booking.NewLockManager(reg, store, booking.WithClock(clock), booking.WithTransactor(store))

	users := NewUsers(
		model.User{ID: "m1", Email: "m1@example.com", Gender: model.GenderMale},
		model.User{ID: "m2", Email: "m2@example.com", Gender: model.GenderMale},
		model.User{ID: "f1", Email: "f1@example.com", Gender: model.GenderFemale},
		model.User{ID: "f2", Email: "f2@example.com", Gender: model.GenderFemale},
	)
	tokens := NewTokens()

	cfg := config.Config{JWTSecret: Secret, AccessTTLMin: 15, RefreshTTLDays: 1, BcryptCost: 4}
	seats := handler.NewSeatHandler(reg, lm, users, hub)
	seats.Now = clock
	seats.Heartbeat = time.Hour

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, nil)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), Secret)
	router.RegisterSeats(e, seats, Secret, nil)
	router.RegisterBookings(e, handler.NewBookingHandler(lm), Secret, nil)

	return &Stack{Echo: e, Store: store, Users: users, Tokens: tokens, Registry: reg, Locks: lm, Now: now}, nil
}

// SeatID returns the id of the seat at row, col.
func (s *Stack) SeatID(row, col int) string { return s.Store.SeatAt(TripID, row, col).ID }
