package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacebook/reservation-core/internal/config"
	"github.com/spacebook/reservation-core/internal/database"
	"github.com/spacebook/reservation-core/internal/handler"
	"github.com/spacebook/reservation-core/internal/lock"
	"github.com/spacebook/reservation-core/internal/middleware"
	"github.com/spacebook/reservation-core/internal/notify"
	"github.com/spacebook/reservation-core/internal/queue"
	"github.com/spacebook/reservation-core/internal/repository"
	"github.com/spacebook/reservation-core/internal/router"
	"github.com/spacebook/reservation-core/internal/scheduler"
	"github.com/spacebook/reservation-core/internal/service"
	"github.com/spacebook/reservation-core/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

// stores groups the persistence ports the services are built on.
type stores struct {
	reservations service.ReservationStore
	spaces       service.SpaceStore
	users        service.UserStore
	payments     service.PaymentStore
	reviews      service.ReviewStore
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Info("redis disabled; using in-process locks, no cache or rate limit")
	}

	hub := notify.NewHub(logger.Named("ws"))
	defer hub.Close()
	sinks := []notify.Sink{hub}

	var publisher *queue.Publisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, cfg.EventsExchange, logger.Named("amqp"))
		sinks = append(sinks, publisher)
		consumer := &queue.Consumer{
			URL:      cfg.RabbitURL,
			Exchange: cfg.EventsExchange,
			Log:      queue.NewAuditLog(cfg.EventsAuditLog),
			Logger:   logger.Named("audit"),
		}
		consumerCtx, stopConsumer := context.WithCancel(ctx)
		var audit sync.WaitGroup
		audit.Add(1)
		go func() {
			defer audit.Done()
			consumer.Run(consumerCtx)
		}()
		defer func() {
			stopConsumer()
			audit.Wait()
		}()
	}
	events := notify.NewMulti(sinks...)

	reservations := service.NewReservationService(st.reservations, st.spaces, st.reviews, events,
		service.WithLocation(cfg.Location),
		service.WithLogger(logger.Named("reservation")),
	)
	withdrawals := service.NewWithdrawalService(st.users, st.spaces, st.reservations, st.payments,
		newLocker(rdb, logger), events,
		service.WithLocation(cfg.Location),
		service.WithLogger(logger.Named("withdrawal")),
	)
	withdrawals.SetLockTTL(cfg.WithdrawLockTTL)

	sweep := sweeper.New(st.reservations, reservations, cfg.Location, cfg.SweepWorkers, logger.Named("sweeper"))
	jobs := scheduler.New(logger.Named("scheduler"),
		scheduler.Job{
			Name:       "sweep",
			Interval:   cfg.SweepInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := sweep.Run(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "reconcile",
			Interval: cfg.ReconcileInterval,
			Run: func(ctx context.Context) error {
				_, err := withdrawals.Reconcile(ctx)
				return err
			},
		},
	)
	jobs.Start(ctx)
	defer jobs.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger.Named("http")))
	e.Use(echomw.Recover())

	errs := handler.ErrorResponder{Logger: logger, ExposeCause: !cfg.Prod()}
	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Deps{
		Reservations: handler.NewReservationHandler(reservations, errs),
		Withdrawals:  handler.NewWithdrawHandler(withdrawals, errs),
		Events:       hub,
		JWTSecret:    cfg.JWTSecret,
		Redis:        rdb,
		RateLimit:    cfg.RateLimit,
		Cache:        cfg.Cache,
		Logger:       logger,
	})

	addr := ":" + cfg.Port
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		serveErr <- e.Start(addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if publisher != nil {
		publisher.Close(shutdownCtx)
	}
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Prod() {
		zc = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		m := repository.NewMemoryStore()
		return stores{
			reservations: m.Reservations(),
			spaces:       m.Spaces(),
			users:        m.Users(),
			payments:     m.Payments(),
			reviews:      m.Reviews(),
		}, func() {}, nil
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("mysql connected", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return sqlStores(db), func() { _ = db.Close() }, nil
}

func sqlStores(db *sql.DB) stores {
	return stores{
		reservations: repository.NewReservationRepo(db),
		spaces:       repository.NewSpaceRepo(db),
		users:        repository.NewUserRepo(db),
		payments:     repository.NewPaymentRepo(db),
		reviews:      repository.NewReviewRepo(db),
	}
}

func newLocker(rdb *redis.Client, logger *zap.Logger) service.Locker {
	if rdb == nil {
		return lock.NewLocal()
	}
	return lock.NewRedis(rdb, "reservation:lock", logger.Named("lock"))
}
