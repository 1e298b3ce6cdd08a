package app

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/metinatakli/cinema-booking-core/internal/jobs"
	"github.com/metinatakli/cinema-booking-core/internal/seatlock"
)

const (
	LockStoreMemory = "memory"
	LockStoreRedis  = "redis"
)

type Config struct {
	Port             int
	Env              string
	DB               DBConfig
	Redis            RedisConfig
	Lock             LockConfig
	Booking          BookingConfig
	RabbitMQ         RabbitMQConfig
	OtelCollectorUrl string
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type LockConfig struct {
	// Store is either "memory" for a single instance or "redis" when several
	// instances share the lock table.
	Store         string
	TTL           time.Duration
	MaxTTL        time.Duration
	Wait          time.Duration
	StrictRelease bool
}

type BookingConfig struct {
	RequireHolder      bool
	PendingPaymentTTL  time.Duration
	ExpirationInterval time.Duration
}

type RabbitMQConfig struct {
	URL string
}

// parseConfig reads flags from args. Every flag defaults to an environment variable,
// which may come from a .env file in the working directory.
func parseConfig(args []string) (Config, bool, error) {
	// a missing .env file is fine, the environment is used as is
	_ = godotenv.Load()

	var cfg Config

	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "port", envInt("PORT", 3000), "server port")
	fs.StringVar(&cfg.Env, "env", envString("ENV", "dev"), "Environment (dev|staging|prod)")

	fs.StringVar(&cfg.DB.DSN, "db-dsn", envString("DB_DSN", ""), "PostgreSQL DSN")
	fs.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", envInt("DB_MAX_OPEN_CONNS", 25), "PostgreSQL max open connections")
	fs.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", envDuration("DB_MAX_IDLE_TIME", 15*time.Minute), "PostgreSQL max idle time for connections")

	fs.StringVar(&cfg.Redis.URL, "redis-url", envString("REDIS_URL", ""), "Redis URL")
	fs.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", envInt("REDIS_MAX_OPEN_CONNS", 25), "Redis max open connections")
	fs.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", envInt("REDIS_MAX_IDLE_CONNS", 10), "Redis max idle connections")
	fs.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", envDuration("REDIS_MAX_IDLE_TIME", 2*time.Minute), "Redis max idle time for connections")

	fs.StringVar(&cfg.Lock.Store, "lock-store", envString("LOCK_STORE", LockStoreMemory), "Seat lock store (memory|redis)")
	fs.DurationVar(&cfg.Lock.TTL, "lock-ttl", envDuration("LOCK_TTL", seatlock.DefaultTTL), "Default seat hold duration")
	fs.DurationVar(&cfg.Lock.MaxTTL, "lock-max-ttl", envDuration("LOCK_MAX_TTL", seatlock.DefaultMaxTTL), "Longest seat hold a client may request")
	fs.DurationVar(&cfg.Lock.Wait, "lock-wait", envDuration("LOCK_WAIT", seatlock.DefaultLockWait), "How long a request waits for a busy showtime")
	fs.BoolVar(&cfg.Lock.StrictRelease, "lock-strict-release", envBool("LOCK_STRICT_RELEASE", false), "Reject releases of holds owned by someone else")

	fs.BoolVar(&cfg.Booking.RequireHolder, "confirm-require-holder", envBool("CONFIRM_REQUIRE_HOLDER", true), "Only the holder of a hold may confirm it")
	fs.DurationVar(&cfg.Booking.PendingPaymentTTL, "pending-payment-ttl", envDuration("PENDING_PAYMENT_TTL", jobs.DefaultPendingPaymentTTL), "How long a booking may wait for payment")
	fs.DurationVar(&cfg.Booking.ExpirationInterval, "expiration-interval", envDuration("EXPIRATION_INTERVAL", jobs.DefaultExpirationInterval), "How often unpaid bookings are expired")

	fs.StringVar(&cfg.RabbitMQ.URL, "rabbitmq-url", envString("RABBITMQ_URL", ""), "RabbitMQ URL for booking events (disabled when empty)")
	fs.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", envString("OTEL_COLLECTOR_URL", ""), "OpenTelemetry collector gRPC endpoint")

	displayVersion := fs.Bool("version", false, "Display version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, false, err
	}

	if *displayVersion {
		return cfg, true, nil
	}

	if err := cfg.validate(); err != nil {
		return Config{}, false, err
	}

	return cfg, false, nil
}

func (cfg Config) validate() error {
	switch cfg.Lock.Store {
	case LockStoreMemory, LockStoreRedis:
	default:
		return fmt.Errorf("invalid -lock-store %q, must be memory or redis", cfg.Lock.Store)
	}

	if cfg.Lock.TTL <= 0 || cfg.Lock.MaxTTL < cfg.Lock.TTL {
		return fmt.Errorf("-lock-ttl must be positive and not above -lock-max-ttl")
	}

	if cfg.Lock.Wait <= 0 {
		return fmt.Errorf("-lock-wait must be positive")
	}

	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}

	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}

	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}

	return v
}
