package feed

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannelPrefix namespaces the pub/sub channels, one per trip.
const DefaultChannelPrefix = "seatfeed"

// Relay announces seat mutations on Redis so that every process refreshes its
// local hub, including mutations made by the standalone reconciler.
type Relay struct {
	rdb    *redis.Client
	hub    *Hub
	prefix string

	// subscribed is true while Run holds a live subscription.  Until then
	// Notify also refreshes the local hub.
	subscribed atomic.Bool
	backoff    time.Duration

	readyOnce sync.Once
	ready     chan struct{}
}

func NewRelay(rdb *redis.Client, hub *Hub, prefix string) *Relay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Relay{rdb: rdb, hub: hub, prefix: prefix, backoff: time.Second, ready: make(chan struct{})}
}

func (r *Relay) channel(tripID string) string { return r.prefix + ":" + tripID }

// Notify implements booking.Notifier.  When Redis is unreachable, or this
// process is not subscribed, the local hub is refreshed directly so its
// subscribers still converge.
func (r *Relay) Notify(ctx context.Context, tripID string) {
	if r.rdb == nil {
		r.local(ctx, tripID)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.rdb.Publish(pctx, r.channel(tripID), time.Now().UnixNano()).Err(); err != nil {
		logrus.WithError(err).WithField("trip_id", tripID).Warn("feed: publish failed, refreshing locally")
		r.local(ctx, tripID)
		return
	}
	if !r.subscribed.Load() {
		r.local(ctx, tripID)
	}
}

func (r *Relay) local(ctx context.Context, tripID string) {
	if r.hub != nil {
		r.hub.Notify(ctx, tripID)
	}
}

// Ready is closed once Run has subscribed for the first time.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Subscribed reports whether the relay currently receives notifications.
func (r *Relay) Subscribed() bool { return r.subscribed.Load() }

// Serve keeps Run going until ctx ends, resubscribing with exponential
// backoff whenever the subscription fails or drops.
func (r *Relay) Serve(ctx context.Context) {
	backoff := r.backoff
	for {
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		logrus.WithError(err).Warnf("feed: relay subscription lost; retrying in %s", backoff)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Run subscribes to every trip channel and refreshes the hub on each message
// until ctx ends or the subscription fails.  A process that only publishes
// (the standalone reconciler) does not need to call it.
func (r *Relay) Run(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, r.prefix+":*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	r.readyOnce.Do(func() { close(r.ready) })
	logrus.WithField("pattern", r.prefix+":*").Info("feed: relay subscribed")

	// Mutations made before the subscription was live were only refreshed
	// locally when Notify saw no subscription; refresh once more to pick up
	// anything published by other processes meanwhile.
	if r.hub != nil {
		r.hub.NotifyAll(ctx)
	}

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			tripID := strings.TrimPrefix(msg.Channel, r.prefix+":")
			r.hub.Notify(ctx, tripID)
		}
	}
}
