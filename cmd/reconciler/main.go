// reconciler runs the lock expiry and ledger repair sweep without the API.
// Any number of instances may run next to the servers: every write is a
// compare-and-set on the seat version.
//
// Usage:
//
//	reconciler [--interval 5s] [--grace 30s] [--trip id] [--once] [--events]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/config"
	"github.com/iliyamo/trip-seat-booking/internal/database"
	"github.com/iliyamo/trip-seat-booking/internal/feed"
	"github.com/iliyamo/trip-seat-booking/internal/queue"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	bc := config.LoadBooking()

	flags := pflag.NewFlagSet("reconciler", pflag.ContinueOnError)
	interval := flags.Duration("interval", bc.ReconcileInterval, "time between sweeps")
	grace := flags.Duration("grace", bc.RepairGrace, "how long a booked seat may lack a ledger entry")
	tripID := flags.String("trip", bc.TripID, "trip to reconcile")
	once := flags.Bool("once", false, "run a single sweep and exit")
	events := flags.Bool("events", false, "publish booking events for repaired ledger entries to RabbitMQ")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbc := config.LoadDB()
	db, err := database.Open(ctx, dbc)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	seats := repository.NewSeatRepo(db)
	trips := repository.NewTripRepo(db, seats, database.NewTxManager(db))

	// Publish-only relay: servers pick up the releases through Redis.
	var notifier booking.Notifier
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		notifier = feed.NewRelay(rdb, nil, bc.FeedChannelPrefix)
	}

	registry := booking.NewRegistry(*tripID, seats, trips, notifier)
	opts := []booking.ReconcilerOption{booking.WithInterval(*interval), booking.WithRepairGrace(*grace)}
	if *events {
		opts = append(opts, booking.WithRepairEvents(queue.NewPublisher(queue.URLFromEnv())))
	}
	reconciler := booking.NewReconciler(registry, repository.NewBookingRepo(db), opts...)

	if *once {
		res, err := reconciler.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"trip_id":   *tripID,
			"scanned":   res.Scanned,
			"released":  res.Released,
			"conflicts": res.Conflicts,
			"repaired":  res.Repaired,
			"flagged":   res.Flagged,
			"failed":    res.Failed,
		}).Info("reconciler: sweep completed")
		if res.Failed > 0 {
			return fmt.Errorf("%d seats could not be reconciled", res.Failed)
		}
		return nil
	}

	reconciler.Run(ctx)
	return nil
}
