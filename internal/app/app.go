package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-core/internal/booking"
	"github.com/metinatakli/cinema-booking-core/internal/combo"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/metinatakli/cinema-booking-core/internal/events"
	"github.com/metinatakli/cinema-booking-core/internal/jobs"
	"github.com/metinatakli/cinema-booking-core/internal/keymutex"
	"github.com/metinatakli/cinema-booking-core/internal/ledger"
	"github.com/metinatakli/cinema-booking-core/internal/repository"
	"github.com/metinatakli/cinema-booking-core/internal/seatlock"
	"github.com/metinatakli/cinema-booking-core/internal/seatmap"
	appvalidator "github.com/metinatakli/cinema-booking-core/internal/validator"
	"github.com/metinatakli/cinema-booking-core/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

const serviceName = "cinema-booking-api"

type HoldService interface {
	Acquire(ctx context.Context, req seatlock.AcquireRequest) (domain.SeatLock, error)
	Release(ctx context.Context, leaseID, holderID string) error
	ActiveLocks(ctx context.Context, showtimeID int) ([]domain.SeatLock, error)
}

type SeatLister interface {
	ListSeats(ctx context.Context, showtimeID int, viewerID string) (*domain.ShowtimeSeats, error)
}

type ComboCatalog interface {
	List(ctx context.Context) ([]domain.Combo, error)
}

type BookingConfirmer interface {
	Confirm(ctx context.Context, req booking.ConfirmRequest) (*domain.Booking, error)
}

type BookingLedger interface {
	ByCode(ctx context.Context, code string) (*domain.Booking, error)
	ByUser(ctx context.Context, userID int, pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error)
	ByShowtime(ctx context.Context, showtimeID int, pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error)
	MarkPaid(ctx context.Context, code string) (*domain.Booking, error)
	MarkFailed(ctx context.Context, code string) (*domain.Booking, error)
	Cancel(ctx context.Context, code string) (*domain.Booking, error)
}

type VenueHistory interface {
	ListByTheater(ctx context.Context, theaterID, limit int) ([]domain.BookingRef, error)
}

type Application struct {
	config         Config
	logger         *slog.Logger
	validator      *validator.Validate
	sessionManager *scs.SessionManager
	metrics        *metrics

	holds    HoldService
	seats    SeatLister
	combos   ComboCatalog
	bookings BookingConfirmer
	ledger   BookingLedger
	venues   VenueHistory

	expiration *jobs.BookingExpirationJob

	// closers run in order on shutdown
	closers []func() error
}

func Run() error {
	cfg, displayVersion, err := parseConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	shutdownTelemetry, err := InitTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		logger = slog.New(NewMultiHandler(logger.Handler(), otelslog.NewHandler(serviceName)))
	}

	db, err := NewDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	app, err := NewApp(cfg, logger, db, redisClient)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.expiration.Start(ctx)
	defer app.expiration.Stop()

	return app.run()
}

// NewApp wires the booking core on top of the given connections.
func NewApp(cfg Config, logger *slog.Logger, db *pgxpool.Pool, redisClient *redis.Client) (*Application, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	seatRepo := repository.NewPostgresSeatRepository(db)
	bookingRepo := repository.NewPostgresBookingRepository(db)
	comboRepo := repository.NewPostgresComboRepository(db)
	venueHistory := repository.NewPostgresVenueHistory(db)

	seats := seatmap.New(seatRepo, logger)

	var store seatlock.Store
	switch cfg.Lock.Store {
	case LockStoreRedis:
		store = seatlock.NewRedisStore(redisClient, nil)
	case LockStoreMemory, "":
		store = seatlock.NewMemoryStore(nil)
	default:
		return nil, fmt.Errorf("unknown lock store %q", cfg.Lock.Store)
	}

	lockOpts := []seatlock.Option{
		seatlock.WithStrictRelease(cfg.Lock.StrictRelease),
		seatlock.WithLogger(logger),
	}
	if cfg.Lock.TTL > 0 {
		lockOpts = append(lockOpts, seatlock.WithTTL(cfg.Lock.TTL))
	}
	if cfg.Lock.MaxTTL > 0 {
		lockOpts = append(lockOpts, seatlock.WithMaxTTL(cfg.Lock.MaxTTL))
	}
	if cfg.Lock.Wait > 0 {
		lockOpts = append(lockOpts, seatlock.WithLockWait(cfg.Lock.Wait))
	}

	locks := seatlock.NewManager(store, seats, keymutex.New(), lockOpts...)
	seats.TrackLocks(locks)

	bookingLedger := ledger.New(bookingRepo, seats, ledger.WithLogger(logger))
	resolver := combo.NewResolver(comboRepo)

	expiration := jobs.NewBookingExpirationJob(
		bookingLedger,
		cfg.Booking.PendingPaymentTTL,
		cfg.Booking.ExpirationInterval,
		nil,
		logger)

	app := &Application{
		config:         cfg,
		logger:         logger,
		validator:      appvalidator.NewValidator(),
		sessionManager: NewSessionManager(redisClient),
		metrics:        newMetrics(),
		holds:          locks,
		seats:          seats,
		combos:         resolver,
		ledger:         bookingLedger,
		venues:         venueHistory,
		expiration:     expiration,
		closers:        []func() error{locks.Close},
	}

	recorders := []domain.HistoryRecorder{venueHistory}
	if cfg.RabbitMQ.URL != "" {
		publisher := events.NewPublisher(events.DialURL(cfg.RabbitMQ.URL, events.DefaultDialTimeout), logger)
		recorders = append(recorders, publisher)
		app.closers = append(app.closers, publisher.Close)
	}

	app.bookings = booking.NewCoordinator(
		locks,
		seats,
		resolver,
		bookingLedger,
		booking.WithHolderCheck(cfg.Booking.RequireHolder),
		booking.WithHistory(recorders...),
		booking.WithLogger(logger))

	return app, nil
}

// Close releases the lock table and the event publisher.
func (app *Application) Close() error {
	var errs []error
	for _, closer := range app.closers {
		errs = append(errs, closer())
	}

	return errors.Join(errs...)
}

func NewSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server",
		"addr", srv.Addr,
		"env", app.config.Env,
		"lock_store", app.config.Lock.Store)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
