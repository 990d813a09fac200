// Package feed delivers seat snapshots to observers.  A Hub fans snapshots
// out to in-process subscribers; a Relay carries change notifications between
// processes over Redis pub/sub.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/metrics"
	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// Source loads the current seats of a trip ordered by row and column.
type Source interface {
	ListByTrip(ctx context.Context, tripID string) ([]model.Seat, error)
}

// Snapshot is the full seat map of a trip at one point in time.  Seq grows
// with every snapshot of the trip produced by this hub.
type Snapshot struct {
	TripID string       `json:"trip_id"`
	Seq    uint64       `json:"seq"`
	At     time.Time    `json:"at"`
	Seats  []model.Seat `json:"seats"`
}

// Hub keeps one slot per subscriber holding the newest undelivered snapshot.
// A slow subscriber skips intermediate snapshots and never blocks writers.
type Hub struct {
	source Source
	now    func() time.Time

	mu    sync.Mutex
	trips map[string]*tripFeed
}

type tripFeed struct {
	mu   sync.Mutex // serializes loads so Seq follows load order
	seq  uint64
	subs map[chan Snapshot]struct{}
}

func NewHub(source Source) *Hub {
	return &Hub{source: source, now: time.Now, trips: make(map[string]*tripFeed)}
}

func (h *Hub) trip(id string) *tripFeed {
	h.mu.Lock()
	defer h.mu.Unlock()
	tf, ok := h.trips[id]
	if !ok {
		tf = &tripFeed{subs: make(map[chan Snapshot]struct{})}
		h.trips[id] = tf
	}
	return tf
}

// load reads a snapshot; tf.mu must be held.
func (h *Hub) load(ctx context.Context, tripID string, tf *tripFeed) (Snapshot, error) {
	seats, err := h.source.ListByTrip(ctx, tripID)
	if err != nil {
		return Snapshot{}, err
	}
	tf.seq++
	return Snapshot{TripID: tripID, Seq: tf.seq, At: h.now().UTC(), Seats: seats}, nil
}

// Subscribe returns a channel that first yields the current snapshot and then
// a fresh one after every refresh.  The channel is closed when ctx ends;
// subscribing again restarts the sequence from the current state.
func (h *Hub) Subscribe(ctx context.Context, tripID string) (<-chan Snapshot, error) {
	tf := h.trip(tripID)
	ch := make(chan Snapshot, 1)

	tf.mu.Lock()
	snap, err := h.load(ctx, tripID, tf)
	if err != nil {
		tf.mu.Unlock()
		return nil, err
	}
	ch <- snap
	tf.subs[ch] = struct{}{}
	tf.mu.Unlock()
	metrics.FeedSubscribers.Inc()
	metrics.FeedDeliveries.Inc()

	go func() {
		<-ctx.Done()
		tf.mu.Lock()
		delete(tf.subs, ch)
		close(ch)
		tf.mu.Unlock()
		metrics.FeedSubscribers.Dec()
	}()
	return ch, nil
}

// Refresh loads a new snapshot of tripID and hands it to every subscriber,
// replacing any snapshot a subscriber has not read yet.
func (h *Hub) Refresh(ctx context.Context, tripID string) error {
	tf := h.trip(tripID)
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if len(tf.subs) == 0 {
		return nil
	}
	snap, err := h.load(ctx, tripID, tf)
	if err != nil {
		return err
	}
	for ch := range tf.subs {
		select {
		case <-ch:
		default:
		}
		// only this goroutine sends while tf.mu is held, so the slot is free
		ch <- snap
		metrics.FeedDeliveries.Inc()
	}
	return nil
}

// Notify implements booking.Notifier.
func (h *Hub) Notify(ctx context.Context, tripID string) {
	if err := h.Refresh(ctx, tripID); err != nil {
		logrus.WithError(err).WithField("trip_id", tripID).Warn("feed: refresh failed")
	}
}

// Subscribers returns the number of live subscriptions of tripID.
func (h *Hub) Subscribers(tripID string) int {
	tf := h.trip(tripID)
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.subs)
}

// NotifyAll refreshes every trip that has subscribers.
func (h *Hub) NotifyAll(ctx context.Context) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.trips))
	for id := range h.trips {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Notify(ctx, id)
	}
}
