package main // Entry point of the booking API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/booking"
	"github.com/iliyamo/trip-seat-booking/internal/config"
	"github.com/iliyamo/trip-seat-booking/internal/database"
	"github.com/iliyamo/trip-seat-booking/internal/feed"
	"github.com/iliyamo/trip-seat-booking/internal/handler"
	"github.com/iliyamo/trip-seat-booking/internal/middleware"
	"github.com/iliyamo/trip-seat-booking/internal/queue"
	"github.com/iliyamo/trip-seat-booking/internal/repository"
	"github.com/iliyamo/trip-seat-booking/internal/router"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	cfg := config.Load()
	if cfg.Env == "dev" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		logrus.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logrus.Fatalf("db: %v", err)
	}

	seats := repository.NewSeatRepo(db)
	tx := database.NewTxManager(db)
	trips := repository.NewTripRepo(db, seats, tx)
	bookings := repository.NewBookingRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Without Redis the hub is notified directly and the feed only covers
	// mutations made by this process.
	hub := feed.NewHub(seats)
	var notifier booking.Notifier = hub
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		relay := feed.NewRelay(rdb, hub, cfg.Booking.FeedChannelPrefix)
		go relay.Serve(ctx)
		notifier = relay
	}

	registry := booking.NewRegistry(cfg.Booking.TripID, seats, trips, notifier)
	created, err := registry.Initialize(ctx, cfg.Booking.Layout)
	if err != nil {
		logrus.Fatalf("trip: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"trip_id": cfg.Booking.TripID,
		"created": created,
		"rows":    cfg.Booking.Layout.Rows,
		"columns": cfg.Booking.Layout.Columns,
	}).Info("trip: ready")

	lockOpts := []booking.Option{
		booking.WithLockDuration(cfg.Booking.LockDuration),
		booking.WithTransactor(tx),
	}
	reconcilerOpts := []booking.ReconcilerOption{
		booking.WithInterval(cfg.Booking.ReconcileInterval),
		booking.WithRepairGrace(cfg.Booking.RepairGrace),
	}
	if cfg.RabbitURL != "" {
		publisher := queue.NewPublisher(cfg.RabbitURL)
		lockOpts = append(lockOpts, booking.WithEvents(publisher))
		reconcilerOpts = append(reconcilerOpts, booking.WithRepairEvents(publisher))

		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.BookingLogDir)
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("booking-consumer: stopped")
			}
		}()
		logrus.Info("booking-consumer: started")
	} else {
		logrus.Warn("rabbitmq: RABBITMQ_URL not set, booking events disabled")
	}

	locks := booking.NewLockManager(registry, bookings, lockOpts...)
	go booking.NewReconciler(registry, bookings, reconcilerOpts...).Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.Logger())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterSeats(e,
		handler.NewSeatHandler(registry, locks, users, hub),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)
	router.RegisterBookings(e,
		handler.NewBookingHandler(locks),
		cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)

	addr := ":" + cfg.Port
	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("http: listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit
	logrus.Info("shutting down")

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		// open event streams keep connections busy until the deadline
		logrus.WithError(err).Warn("http: forced close")
		_ = e.Close()
	}
}
