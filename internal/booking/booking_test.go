package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/booking/bookingtest"
	"github.com/iliyamo/trip-seat-booking/internal/compliance"
	"github.com/iliyamo/trip-seat-booking/internal/model"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

const tripID = "trip-1"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify(context.Context, string) { c.n.Add(1) }

type fixture struct {
	store *bookingtest.Store
	clk   *clock
	notes *countingNotifier
	reg   *booking.Registry
	lm    *booking.LockManager
}

func newFixture(t *testing.T, layout model.Layout) *fixture {
	t.Helper()
	f := &fixture{
		store: bookingtest.NewStore(),
		clk:   &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		notes: &countingNotifier{},
	}
	f.store.Now = f.clk.Now
	f.reg = booking.NewRegistry(tripID, f.store, f.store, f.notes)
	_, err := f.reg.Initialize(context.Background(), layout)
	require.NoError(t, err)
	f.lm = booking.NewLockManager(f.reg, f.store,
		booking.WithClock(f.clk.Now),
		booking.WithTransactor(f.store),
	)
	return f
}

func (f *fixture) seat(row, col int) model.Seat { return f.store.SeatAt(tripID, row, col) }

func (f *fixture) reconciler() *booking.Reconciler {
	return booking.NewReconciler(f.reg, f.store, booking.WithReconcilerClock(f.clk.Now))
}

var (
	u1 = model.User{ID: "u1", Gender: model.GenderMale}
	u2 = model.User{ID: "u2", Gender: model.GenderMale}
	u3 = model.User{ID: "u3", Gender: model.GenderFemale}
	u4 = model.User{ID: "u4", Gender: model.GenderFemale}
)

func requireReason(t *testing.T, err error, want compliance.Reason) {
	t.Helper()
	require.ErrorIs(t, err, booking.ErrComplianceViolation)
	d, ok := booking.DenialOf(err)
	require.True(t, ok)
	assert.Equal(t, want, d.Reason)
}

func TestAcquireAndConfirmMaleOnlySeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	target := f.seat(1, 1)
	require.Equal(t, model.MaleOnly, target.Gender)
	start := f.clk.Now()

	locked, err := f.lm.Acquire(ctx, target.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatLocked, locked.Status)
	assert.Equal(t, "u1", locked.LockHolder)
	require.NotNil(t, locked.LockDeadline)
	assert.True(t, locked.LockDeadline.Equal(start.Add(120000*time.Millisecond)))

	_, err = f.lm.Acquire(ctx, target.ID, u2)
	assert.ErrorIs(t, err, booking.ErrSeatUnavailable)

	f.clk.Advance(time.Minute)
	b, err := f.lm.Confirm(ctx, target.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, target.ID, b.SeatID)
	assert.Equal(t, "u1", b.UserID)
	assert.Equal(t, tripID, b.TripID)
	assert.NotEmpty(t, b.ID)
	assert.True(t, b.ConfirmedAt.Equal(f.clk.Now()))

	booked := f.seat(1, 1)
	assert.Equal(t, model.SeatBooked, booked.Status)
	assert.Equal(t, "u1", booked.BookingHolder)
	assert.Empty(t, booked.LockHolder)
	assert.Nil(t, booked.LockDeadline)
	assert.Len(t, f.store.Bookings(), 1)
}

func TestAcquireGenderMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())

	_, err := f.lm.Acquire(ctx, f.seat(1, 1).ID, u3)
	requireReason(t, err, compliance.GenderMismatch)

	_, err = f.lm.Acquire(ctx, f.seat(1, 2).ID, u1)
	requireReason(t, err, compliance.GenderMismatch)

	assert.Equal(t, model.SeatAvailable, f.seat(1, 1).Status)
	assert.Equal(t, model.SeatAvailable, f.seat(1, 2).Status)
}

func TestAcquireAdjacentToFemaleOnlySeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	neighbor := f.seat(1, 2)

	// available neighbor does not block
	s, err := f.lm.Acquire(ctx, f.seat(2, 2).ID, u1)
	require.NoError(t, err)
	_, err = f.lm.Cancel(ctx, s.ID, u1.ID)
	require.NoError(t, err)

	// locked neighbor does not block
	_, err = f.lm.Acquire(ctx, neighbor.ID, u3)
	require.NoError(t, err)
	s, err = f.lm.Acquire(ctx, f.seat(2, 2).ID, u1)
	require.NoError(t, err)
	_, err = f.lm.Cancel(ctx, s.ID, u1.ID)
	require.NoError(t, err)

	// booked neighbor blocks the opposite gender only
	_, err = f.lm.Confirm(ctx, neighbor.ID, u3.ID)
	require.NoError(t, err)

	_, err = f.lm.Acquire(ctx, f.seat(2, 2).ID, u1)
	requireReason(t, err, compliance.AdjacentConflict)

	_, err = f.lm.Acquire(ctx, f.seat(2, 2).ID, u4)
	assert.NoError(t, err)

	// a reserved seat matching the user ignores its neighbors
	_, err = f.lm.Acquire(ctx, f.seat(1, 3).ID, u2)
	assert.NoError(t, err)
}

func TestAcquireNextToBookedMaleOnlySeat(t *testing.T) {
	ctx := context.Background()
	layout := model.Layout{Rows: 2, Columns: 2, Genders: map[model.Position]model.GenderConstraint{
		{Row: 1, Column: 1}: model.MaleOnly,
	}}
	f := newFixture(t, layout)

	_, err := f.lm.Acquire(ctx, f.seat(1, 1).ID, u1)
	require.NoError(t, err)
	_, err = f.lm.Confirm(ctx, f.seat(1, 1).ID, u1.ID)
	require.NoError(t, err)

	_, err = f.lm.Acquire(ctx, f.seat(1, 2).ID, u3)
	requireReason(t, err, compliance.AdjacentConflict)

	_, err = f.lm.Acquire(ctx, f.seat(1, 2).ID, u2)
	assert.NoError(t, err)

	// diagonal seat is not adjacent
	_, err = f.lm.Acquire(ctx, f.seat(2, 2).ID, u3)
	assert.NoError(t, err)
}

func TestAcquireUnknownSeat(t *testing.T) {
	f := newFixture(t, model.DefaultLayout())
	_, err := f.lm.Acquire(context.Background(), "missing", u1)
	assert.ErrorIs(t, err, booking.ErrSeatNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	id := f.seat(3, 3).ID

	_, err := f.lm.Acquire(ctx, id, u1)
	require.NoError(t, err)
	before := f.seat(3, 3)

	_, err = f.lm.Cancel(ctx, id, u2.ID)
	assert.ErrorIs(t, err, booking.ErrNotLockHolder)
	assert.Equal(t, before, f.seat(3, 3))

	released, err := f.lm.Cancel(ctx, id, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, released.Status)
	assert.Empty(t, released.LockHolder)
	assert.Nil(t, released.LockDeadline)

	_, err = f.lm.Cancel(ctx, id, u1.ID)
	assert.ErrorIs(t, err, booking.ErrNotLockHolder)
}

func TestConfirmRequiresHolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	id := f.seat(4, 1).ID

	_, err := f.lm.Acquire(ctx, id, u1)
	require.NoError(t, err)

	_, err = f.lm.Confirm(ctx, id, u2.ID)
	assert.ErrorIs(t, err, booking.ErrNotLockHolder)
	assert.Equal(t, model.SeatLocked, f.seat(4, 1).Status)
	assert.Empty(t, f.store.Bookings())
}

func TestConfirmAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	id := f.seat(2, 3).ID

	_, err := f.lm.Acquire(ctx, id, u1)
	require.NoError(t, err)

	// the deadline itself is already too late to confirm
	f.clk.Advance(booking.DefaultLockDuration)
	_, err = f.lm.Confirm(ctx, id, u1.ID)
	assert.ErrorIs(t, err, booking.ErrLockExpired)

	// but the reconciler only releases once the deadline has passed
	res, err := f.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Released)

	f.clk.Advance(time.Millisecond)
	res, err = f.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Released)
	reconciled := f.seat(2, 3)
	assert.Equal(t, model.SeatAvailable, reconciled.Status)

	_, err = f.lm.Confirm(ctx, id, u1.ID)
	assert.ErrorIs(t, err, booking.ErrLockExpired)
	assert.Equal(t, reconciled, f.seat(2, 3))
	assert.Empty(t, f.store.Bookings())
}

func TestConfirmTwiceReturnsSameBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	id := f.seat(5, 4).ID

	_, err := f.lm.Acquire(ctx, id, u3)
	require.NoError(t, err)
	first, err := f.lm.Confirm(ctx, id, u3.ID)
	require.NoError(t, err)
	second, err := f.lm.Confirm(ctx, id, u3.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.store.Bookings(), 1)

	_, err = f.lm.Confirm(ctx, id, u4.ID)
	assert.ErrorIs(t, err, booking.ErrNotLockHolder)
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	id := f.seat(3, 2).ID

	const n = 32
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		refused atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			user := model.User{ID: fmt.Sprintf("user-%d", i), Gender: model.GenderMale}
			_, err := f.lm.Acquire(ctx, id, user)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, booking.ErrSeatUnavailable):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), refused.Load())
	assert.Equal(t, model.SeatLocked, f.seat(3, 2).Status)
}

func TestConcurrentConfirmAndReconcile(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		f := newFixture(t, model.DefaultLayout())
		id := f.seat(2, 2).ID
		_, err := f.lm.Acquire(ctx, id, u1)
		require.NoError(t, err)
		f.clk.Advance(booking.DefaultLockDuration + time.Second)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.reconciler().Sweep(ctx)
		}()
		go func() {
			defer wg.Done()
			_, err := f.lm.Confirm(ctx, id, u1.ID)
			assert.ErrorIs(t, err, booking.ErrLockExpired)
		}()
		wg.Wait()

		assert.Empty(t, f.store.Bookings())
		assert.NotEqual(t, model.SeatBooked, f.seat(2, 2).Status)
	}
}

func TestStoreFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	f.store.StoreErr = errors.New("connection refused")

	_, err := f.lm.Acquire(ctx, f.seat(2, 2).ID, u1)
	assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
	_, err = f.lm.Cancel(ctx, "any", u1.ID)
	assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
}

func TestFindLatestByUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())

	_, err := f.lm.FindLatestByUser(ctx, u1.ID)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)

	for _, pos := range []model.Position{{Row: 4, Column: 1}, {Row: 5, Column: 3}} {
		id := f.seat(pos.Row, pos.Column).ID
		_, err := f.lm.Acquire(ctx, id, u1)
		require.NoError(t, err)
		_, err = f.lm.Confirm(ctx, id, u1.ID)
		require.NoError(t, err)
		f.clk.Advance(time.Minute)
	}

	latest, err := f.lm.FindLatestByUser(ctx, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.seat(5, 3).ID, latest.SeatID)

	byID, err := f.lm.GetBooking(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, latest, byID)

	_, err = f.lm.GetBooking(ctx, "nope")
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	first, err := f.reg.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 20)

	_, err = f.lm.Acquire(ctx, first[5].ID, u1)
	require.NoError(t, err)

	created, err := f.reg.Initialize(ctx, model.DefaultLayout())
	require.NoError(t, err)
	assert.False(t, created)

	second, err := f.reg.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Position(), second[i].Position())
		assert.Equal(t, first[i].Gender, second[i].Gender)
	}
	assert.Equal(t, model.SeatLocked, second[5].Status)
}

func TestListAllIsRowMajor(t *testing.T) {
	f := newFixture(t, model.DefaultLayout())
	seats, err := f.reg.ListAll(context.Background())
	require.NoError(t, err)
	for i := 1; i < len(seats); i++ {
		prev, cur := seats[i-1], seats[i]
		assert.True(t, prev.Row < cur.Row || (prev.Row == cur.Row && prev.Column < cur.Column),
			"%s before %s", prev.Number, cur.Number)
	}
	assert.Equal(t, "1-1", seats[0].Number)
	assert.Equal(t, "5-4", seats[len(seats)-1].Number)
}

func TestMutationsNotify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	base := f.notes.n.Load()
	id := f.seat(3, 1).ID

	_, err := f.lm.Acquire(ctx, id, u1)
	require.NoError(t, err)
	_, err = f.lm.Confirm(ctx, id, u1.ID)
	require.NoError(t, err)
	_, err = f.lm.Cancel(ctx, id, u1.ID)
	require.ErrorIs(t, err, booking.ErrNotLockHolder)

	assert.Equal(t, base+2, f.notes.n.Load())
}

func TestStaleTransitionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	id := f.seat(2, 4).ID

	_, err := f.lm.Acquire(ctx, id, u1)
	require.NoError(t, err)
	observed := f.seat(2, 4)

	// the lock ends and a new one starts before the stale write lands
	_, err = f.lm.Cancel(ctx, id, u1.ID)
	require.NoError(t, err)
	_, err = f.lm.Acquire(ctx, id, u2)
	require.NoError(t, err)

	_, err = f.reg.CompareAndSet(ctx, model.NewTransition(observed, model.AvailableState(), f.clk.Now()))
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, "u2", f.seat(2, 4).LockHolder)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Booking
	err    error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, b model.Booking, _ model.Seat) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, b)
	return p.err
}

func TestConfirmPublishesEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.DefaultLayout())
	pub := &recordingPublisher{err: errors.New("broker down")}
	lm := booking.NewLockManager(f.reg, f.store, booking.WithClock(f.clk.Now), booking.WithEvents(pub))
	id := f.seat(4, 4).ID

	_, err := lm.Acquire(ctx, id, u1)
	require.NoError(t, err)
	b, err := lm.Confirm(ctx, id, u1.ID)
	require.NoError(t, err, "publishing is best effort")

	require.Len(t, pub.events, 1)
	assert.Equal(t, b.ID, pub.events[0].ID)
}
