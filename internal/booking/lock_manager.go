package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/compliance"
	"github.com/iliyamo/trip-seat-booking/internal/metrics"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

// DefaultLockDuration is how long an acquired seat stays locked.
const DefaultLockDuration = 2 * time.Minute

// LockManager is the only entry point that mutates seats on behalf of users.
// None of its operations wait for another operation; they finish with a seat
// or booking, or with one of the outcomes in errors.go.
type LockManager struct {
	registry     *Registry
	ledger       Ledger
	tx           Transactor
	events       EventPublisher
	lockDuration time.Duration
	now          func() time.Time
}

// Option configures a LockManager.
type Option func(*LockManager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *LockManager) { m.now = now } }

func WithLockDuration(d time.Duration) Option {
	return func(m *LockManager) {
		if d > 0 {
			m.lockDuration = d
		}
	}
}

// WithTransactor makes Confirm write the seat and the ledger in one
// transaction.
func WithTransactor(tx Transactor) Option { return func(m *LockManager) { m.tx = tx } }

// WithEvents publishes every confirmed booking to p.
func WithEvents(p EventPublisher) Option { return func(m *LockManager) { m.events = p } }

func NewLockManager(registry *Registry, ledger Ledger, opts ...Option) *LockManager {
	m := &LockManager{
		registry:     registry,
		ledger:       ledger,
		tx:           directTx{},
		lockDuration: DefaultLockDuration,
		now:          time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// LockDuration returns the configured lock lifetime.
func (m *LockManager) LockDuration() time.Duration { return m.lockDuration }

// Acquire locks an available seat for user until now plus the lock duration.
// The compliance rules are evaluated against one snapshot of the trip; the
// compare-and-set guarantees that only one acquirer wins per lock cycle.
func (m *LockManager) Acquire(ctx context.Context, seatID string, user model.User) (model.Seat, error) {
	seat, err := m.acquire(ctx, seatID, user)
	observe("acquire", err)
	return seat, err
}

func (m *LockManager) acquire(ctx context.Context, seatID string, user model.User) (model.Seat, error) {
	seats, err := m.registry.ListAll(ctx)
	if err != nil {
		return model.Seat{}, err
	}
	var (
		seat  model.Seat
		found bool
	)
	for _, s := range seats {
		if s.ID == seatID {
			seat, found = s, true
			break
		}
	}
	if !found {
		return model.Seat{}, ErrSeatNotFound
	}

	if err := compliance.CanOccupy(seat, user, seats); err != nil {
		d, _ := DenialOf(err)
		if d != nil && d.Reason == compliance.NotAvailable {
			return model.Seat{}, fmt.Errorf("%w: %w", ErrSeatUnavailable, err)
		}
		if d != nil {
			metrics.ComplianceDenials.WithLabelValues(string(d.Reason)).Inc()
		}
		return model.Seat{}, fmt.Errorf("%w: %w", ErrComplianceViolation, err)
	}

	now := m.now().UTC()
	next := model.LockedState(user.ID, now.Add(m.lockDuration))
	locked, err := m.registry.CompareAndSet(ctx, model.NewTransition(seat, next, now))
	switch {
	case errors.Is(err, repository.ErrConflict):
		return model.Seat{}, ErrSeatUnavailable
	case err != nil:
		return model.Seat{}, storeErr("lock seat", err)
	}
	logrus.WithFields(logrus.Fields{
		"trip_id": seat.TripID, "seat": seat.Number, "user_id": user.ID,
	}).Debug("lock-manager: seat locked")
	return locked, nil
}

// Cancel releases a lock held by userID.  Anyone else gets ErrNotLockHolder
// and the seat is left as it was.
func (m *LockManager) Cancel(ctx context.Context, seatID, userID string) (model.Seat, error) {
	seat, err := m.cancel(ctx, seatID, userID)
	observe("cancel", err)
	return seat, err
}

func (m *LockManager) cancel(ctx context.Context, seatID, userID string) (model.Seat, error) {
	seat, err := m.registry.Get(ctx, seatID)
	if err != nil {
		return model.Seat{}, err
	}
	if !seat.LockedBy(userID) {
		return model.Seat{}, ErrNotLockHolder
	}
	released, err := m.registry.CompareAndSet(ctx, model.NewTransition(seat, model.AvailableState(), m.now()))
	switch {
	case errors.Is(err, repository.ErrConflict):
		return model.Seat{}, ErrSeatUnavailable
	case err != nil:
		return model.Seat{}, storeErr("release seat", err)
	}
	return released, nil
}

// Confirm converts the caller's live lock into a booking and records it in
// the ledger.  The lock must still be held at now: a deadline that has been
// reached, or a seat the reconciler already released, yields ErrLockExpired.
// Confirming a seat the caller already booked returns the existing booking.
func (m *LockManager) Confirm(ctx context.Context, seatID, userID string) (model.Booking, error) {
	b, err := m.confirm(ctx, seatID, userID)
	observe("confirm", err)
	return b, err
}

func (m *LockManager) confirm(ctx context.Context, seatID, userID string) (model.Booking, error) {
	now := m.now().UTC()
	seat, err := m.registry.Get(ctx, seatID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := checkConfirmable(seat, userID, now); err != nil {
		if errors.Is(err, errAlreadyBooked) {
			return m.existingBooking(ctx, seat)
		}
		return model.Booking{}, err
	}

	var (
		booked  model.Seat
		record  model.Booking
		seatSet bool
	)
	err = m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		booked, err = m.registry.compareAndSet(ctx, model.NewTransition(seat, model.BookedState(userID), now))
		if err != nil {
			return err
		}
		seatSet = true
		record, err = m.ledger.Append(ctx, model.Booking{
			UserID:      userID,
			SeatID:      seat.ID,
			TripID:      seat.TripID,
			ConfirmedAt: now,
		})
		if errors.Is(err, repository.ErrBookingExists) {
			existing, ferr := m.ledger.FindBySeat(ctx, seat.TripID, seat.ID)
			if ferr == nil && existing.UserID == userID {
				record = existing
				return nil
			}
		}
		return err
	})
	if errors.Is(err, repository.ErrConflict) {
		return m.afterConflict(ctx, seatID, userID)
	}
	if err != nil {
		// Without a rolling-back transactor the booked seat is already
		// stored; observers must see it even though the ledger write failed.
		if seatSet {
			m.registry.notify(ctx)
		}
		if errors.Is(err, repository.ErrBookingExists) {
			return model.Booking{}, ErrSeatUnavailable
		}
		return model.Booking{}, storeErr("confirm seat", err)
	}

	m.registry.notify(ctx)
	m.publish(ctx, record, booked)
	return record, nil
}

var errAlreadyBooked = errors.New("already booked by caller")

func checkConfirmable(seat model.Seat, userID string, now time.Time) error {
	switch {
	case seat.Status == model.SeatBooked && seat.BookingHolder == userID && userID != "":
		return errAlreadyBooked
	case seat.Status == model.SeatAvailable:
		return ErrLockExpired
	case !seat.LockedBy(userID):
		return ErrNotLockHolder
	case seat.LockDeadline == nil || !seat.LockDeadline.After(now):
		return ErrLockExpired
	}
	return nil
}

// afterConflict re-reads a seat whose confirm lost a compare-and-set and
// reports what happened to the caller's lock.
func (m *LockManager) afterConflict(ctx context.Context, seatID, userID string) (model.Booking, error) {
	cur, err := m.registry.Get(ctx, seatID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := checkConfirmable(cur, userID, m.now().UTC()); errors.Is(err, errAlreadyBooked) {
		return m.existingBooking(ctx, cur)
	} else if err != nil {
		return model.Booking{}, err
	}
	return model.Booking{}, ErrSeatUnavailable
}

// existingBooking returns the ledger record of a seat the caller booked.  A
// booked seat whose ledger write was lost gets its record written here, as
// the reconciler would after the repair grace.
func (m *LockManager) existingBooking(ctx context.Context, seat model.Seat) (model.Booking, error) {
	b, err := m.ledger.FindBySeat(ctx, seat.TripID, seat.ID)
	if !errors.Is(err, repository.ErrBookingNotFound) {
		return b, storeErr("find booking", err)
	}
	b, err = m.ledger.Append(ctx, model.Booking{
		UserID:      seat.BookingHolder,
		SeatID:      seat.ID,
		TripID:      seat.TripID,
		ConfirmedAt: seat.UpdatedAt,
	})
	switch {
	case errors.Is(err, repository.ErrBookingExists):
		b, err = m.ledger.FindBySeat(ctx, seat.TripID, seat.ID)
		return b, storeErr("find booking", err)
	case err != nil:
		return model.Booking{}, storeErr("complete booking", err)
	}
	logrus.WithFields(logrus.Fields{
		"trip_id": seat.TripID, "seat": seat.Number, "booking_id": b.ID,
	}).Warn("lock-manager: wrote missing ledger entry on confirm retry")
	m.publish(ctx, b, seat)
	return b, nil
}

func (m *LockManager) publish(ctx context.Context, b model.Booking, seat model.Seat) {
	publishBooking(ctx, m.events, b, seat, "lock-manager")
}

// publishBooking hands a booking to p.  Failures are logged and counted but
// never returned: the ledger row is already the record of truth.
func publishBooking(ctx context.Context, p EventPublisher, b model.Booking, seat model.Seat, component string) {
	if p == nil {
		return
	}
	if err := p.PublishBookingConfirmed(context.WithoutCancel(ctx), b, seat); err != nil {
		metrics.BookingEventsPublished.WithLabelValues("error").Inc()
		logrus.WithError(err).WithField("booking_id", b.ID).Warn(component + ": publish booking event failed")
		return
	}
	metrics.BookingEventsPublished.WithLabelValues("ok").Inc()
}

// FindLatestByUser returns the user's most recently confirmed booking on this
// trip.  Clients use it when they lose track of the booking they just made.
func (m *LockManager) FindLatestByUser(ctx context.Context, userID string) (model.Booking, error) {
	b, err := m.ledger.FindLatestByUser(ctx, m.registry.TripID(), userID)
	return b, storeErr("find latest booking", err)
}

// GetBooking returns a booking by id.
func (m *LockManager) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := m.ledger.FindByID(ctx, id)
	return b, storeErr("get booking", err)
}

func observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrSeatUnavailable):
		outcome = "seat_unavailable"
	case errors.Is(err, ErrComplianceViolation):
		outcome = "compliance_violation"
	case errors.Is(err, ErrNotLockHolder):
		outcome = "not_lock_holder"
	case errors.Is(err, ErrLockExpired):
		outcome = "lock_expired"
	case errors.Is(err, ErrSeatNotFound):
		outcome = "not_found"
	default:
		outcome = "store_unavailable"
	}
	metrics.LockOperations.WithLabelValues(op, outcome).Inc()
}
