package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/metrics"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

const (
	DefaultReconcileInterval = 5 * time.Second
	DefaultRepairGrace       = 30 * time.Second
)

// Reconciler releases locks whose deadline has passed and writes the ledger
// entry of booked seats that have none.  It mutates seats only through the
// registry's compare-and-set, so any number of reconcilers may run against
// the same store next to the API.
type Reconciler struct {
	registry    *Registry
	ledger      Ledger
	interval    time.Duration
	repairGrace time.Duration
	events      EventPublisher
	now         func() time.Time

	// ledgered holds booked seats known to have a ledger entry.  Booked is
	// final and the ledger is append-only, so they never need checking again.
	mu       sync.Mutex
	ledgered map[string]struct{}
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRepairGrace sets how long a booked seat may lack a ledger entry before
// the reconciler writes one.  The grace covers confirms still in flight.
func WithRepairGrace(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d >= 0 {
			r.repairGrace = d
		}
	}
}

// WithRepairEvents publishes a booking event for every ledger entry the
// reconciler writes.
func WithRepairEvents(p EventPublisher) ReconcilerOption {
	return func(r *Reconciler) { r.events = p }
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler returns a reconciler for the registry's trip.  With a nil
// ledger the repair pass is skipped.
func NewReconciler(registry *Registry, ledger Ledger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		registry:    registry,
		ledger:      ledger,
		interval:    DefaultReconcileInterval,
		repairGrace: DefaultRepairGrace,
		now:         time.Now,
		ledgered:    make(map[string]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SweepResult summarizes one pass.
type SweepResult struct {
	Scanned   int
	Released  int // expired locks returned to available
	Conflicts int // seats that changed under the sweep; left alone
	Repaired  int // ledger entries written for booked seats
	Flagged   int // booked seats that need manual resolution
	Failed    int
}

// Sweep performs one pass over the trip.  It only returns an error when the
// seats cannot be listed; per-seat failures are counted in the result.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	seats, err := r.registry.ListAll(ctx)
	if err != nil {
		return res, err
	}
	now := r.now().UTC()
	for _, seat := range seats {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Scanned++
		switch seat.Status {
		case model.SeatLocked:
			if seat.LockExpired(now) {
				r.release(ctx, seat, now, &res)
			}
		case model.SeatBooked:
			if r.ledger != nil && now.Sub(seat.UpdatedAt) >= r.repairGrace {
				r.repair(ctx, seat, &res)
			}
		}
	}
	return res, nil
}

func (r *Reconciler) release(ctx context.Context, seat model.Seat, now time.Time, res *SweepResult) {
	log := logrus.WithFields(logrus.Fields{"trip_id": seat.TripID, "seat": seat.Number, "holder": seat.LockHolder})
	_, err := r.registry.CompareAndSet(ctx, model.NewTransition(seat, model.AvailableState(), now))
	switch {
	case err == nil:
		res.Released++
		metrics.ExpiredLocksReleased.Inc()
		log.Info("reconciler: released expired lock")
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrSeatNotFound):
		res.Conflicts++
	default:
		res.Failed++
		log.WithError(err).Error("reconciler: release failed")
	}
}

func (r *Reconciler) repair(ctx context.Context, seat model.Seat, res *SweepResult) {
	if r.known(seat) {
		return
	}
	log := logrus.WithFields(logrus.Fields{"trip_id": seat.TripID, "seat": seat.Number})
	_, err := r.ledger.FindBySeat(ctx, seat.TripID, seat.ID)
	if err == nil {
		r.remember(seat)
		return
	}
	if !errors.Is(err, repository.ErrBookingNotFound) {
		res.Failed++
		log.WithError(err).Error("reconciler: ledger lookup failed")
		return
	}
	if seat.BookingHolder == "" {
		res.Flagged++
		metrics.FlaggedSeats.Inc()
		log.Error("reconciler: booked seat has no holder and no ledger entry, needs manual resolution")
		return
	}
	b, err := r.ledger.Append(ctx, model.Booking{
		UserID:      seat.BookingHolder,
		SeatID:      seat.ID,
		TripID:      seat.TripID,
		ConfirmedAt: seat.UpdatedAt,
		Recovered:   true,
	})
	switch {
	case err == nil:
		r.remember(seat)
		res.Repaired++
		metrics.LedgerRepairs.Inc()
		log.WithField("booking_id", b.ID).Warn("reconciler: wrote missing ledger entry")
		publishBooking(ctx, r.events, b, seat, "reconciler")
	case errors.Is(err, repository.ErrBookingExists):
		// a late confirm got there first
		r.remember(seat)
	default:
		res.Failed++
		log.WithError(err).Error("reconciler: ledger repair failed")
	}
}

func (r *Reconciler) known(seat model.Seat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ledgered[seat.TripID+"/"+seat.ID]
	return ok
}

func (r *Reconciler) remember(seat model.Seat) {
	r.mu.Lock()
	r.ledgered[seat.TripID+"/"+seat.ID] = struct{}{}
	r.mu.Unlock()
}

// Run sweeps immediately and then every interval until ctx ends.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logrus.WithField("interval", r.interval.String()).Info("reconciler: started")
	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("reconciler: stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	res, err := r.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logrus.WithError(err).Error("reconciler: sweep failed")
		}
		return
	}
	if res.Released+res.Repaired+res.Flagged+res.Failed > 0 {
		logrus.WithFields(logrus.Fields{
			"scanned":   res.Scanned,
			"released":  res.Released,
			"conflicts": res.Conflicts,
			"repaired":  res.Repaired,
			"flagged":   res.Flagged,
			"failed":    res.Failed,
		}).Info("reconciler: sweep completed")
	}
}
