package config // package config loads application configuration from environment variables

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

// Config holds the runtime configuration of the API server.  Each field
// corresponds to an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DB             DBConfig
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	RabbitURL      string // broker for booking events; empty disables them
	BookingLogDir  string // where the consumer writes booking.log
	Booking        BookingConfig
}

// DBConfig locates the MySQL database.
type DBConfig struct {
	User, Pass, Host, Port, Name string
}

// BookingConfig drives the seat lifecycle and is shared by the server and
// the standalone reconciler.
type BookingConfig struct {
	TripID            string
	LockDuration      time.Duration
	ReconcileInterval time.Duration
	RepairGrace       time.Duration
	FeedChannelPrefix string
	Layout            model.Layout
}

var dotenvOnce sync.Once

// loadDotEnv reads .env from the working directory when present.  Variables
// already set in the environment win.
func loadDotEnv() {
	dotenvOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).Warn("config: could not read .env")
		}
	})
}

// Load reads the server configuration.  Required variables are enforced by
// must() and missing values stop the program.
func Load() Config {
	loadDotEnv()
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DB:             LoadDB(),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		BookingLogDir:  envStr("BOOKING_LOG_DIR", "logs"),
		Booking:        LoadBooking(),
	}
}

// LoadDB reads the database settings.
func LoadDB() DBConfig {
	loadDotEnv()
	return DBConfig{
		User: must("DB_USER"),
		Pass: os.Getenv("DB_PASS"), // empty allowed
		Host: must("DB_HOST"),
		Port: must("DB_PORT"),
		Name: must("DB_NAME"),
	}
}

// LoadBooking reads the trip, timing and layout settings.  All of them have
// defaults.
func LoadBooking() BookingConfig {
	loadDotEnv()
	layout, err := LayoutFromEnv()
	if err != nil {
		logrus.Fatalf("invalid seat layout: %v", err)
	}
	return BookingConfig{
		TripID:            envStr("TRIP_ID", "default-trip"),
		LockDuration:      envDur("LOCK_DURATION", 2*time.Minute),
		ReconcileInterval: envDur("RECONCILE_INTERVAL", 5*time.Second),
		RepairGrace:       envDur("LEDGER_REPAIR_GRACE", 30*time.Second),
		FeedChannelPrefix: envStr("FEED_CHANNEL_PREFIX", "seatfeed"),
		Layout:            layout,
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
