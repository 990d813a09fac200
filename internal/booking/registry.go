package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// Registry is the single source of truth for the seats of one trip.  Reads go
// straight to the store; every successful write is announced to the notifier.
type Registry struct {
	tripID   string
	store    SeatStore
	init     TripInitializer
	notifier Notifier
	log      *logrus.Entry
}

// NewRegistry binds a registry to tripID.  notifier may be nil.
func NewRegistry(tripID string, store SeatStore, init TripInitializer, notifier Notifier) *Registry {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Registry{
		tripID:   tripID,
		store:    store,
		init:     init,
		notifier: notifier,
		log:      logrus.WithField("trip_id", tripID),
	}
}

func (r *Registry) TripID() string { return r.tripID }

// Initialize creates the trip with layout unless it already exists.  Running
// it again leaves seat state untouched.
func (r *Registry) Initialize(ctx context.Context, layout model.Layout) (bool, error) {
	if err := layout.Validate(); err != nil {
		return false, err
	}
	trip := model.Trip{ID: r.tripID, Rows: layout.Rows, Columns: layout.Columns}
	created, err := r.init.InitTrip(ctx, trip, layout.Seats(r.tripID, uuid.NewString))
	if err != nil {
		return false, storeErr("initialize trip", err)
	}
	if created {
		r.log.Infof("registry: created trip with %dx%d seats", layout.Rows, layout.Columns)
		r.notifier.Notify(ctx, r.tripID)
	}
	return created, nil
}

// Get returns one seat.
func (r *Registry) Get(ctx context.Context, seatID string) (model.Seat, error) {
	s, err := r.store.GetByID(ctx, r.tripID, seatID)
	return s, storeErr("get seat", err)
}

// ListAll returns every seat ordered by row, then column.
func (r *Registry) ListAll(ctx context.Context) ([]model.Seat, error) {
	seats, err := r.store.ListByTrip(ctx, r.tripID)
	return seats, storeErr("list seats", err)
}

// CompareAndSet applies t and notifies subscribers on success.  The store's
// error is returned unchanged so callers can tell a conflict apart.
func (r *Registry) CompareAndSet(ctx context.Context, t model.Transition) (model.Seat, error) {
	s, err := r.compareAndSet(ctx, t)
	if err != nil {
		return model.Seat{}, err
	}
	r.notify(ctx)
	return s, nil
}

// compareAndSet applies t without notifying; used inside transactions, where
// the notification waits for the commit.
func (r *Registry) compareAndSet(ctx context.Context, t model.Transition) (model.Seat, error) {
	return r.store.CompareAndSet(ctx, r.tripID, t)
}

func (r *Registry) notify(ctx context.Context) {
	r.notifier.Notify(context.WithoutCancel(ctx), r.tripID)
}
