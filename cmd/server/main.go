package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/concert-seat-booking/internal/config"
	"github.com/iliyamo/concert-seat-booking/internal/database"
	"github.com/iliyamo/concert-seat-booking/internal/handler"
	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/middleware"
	"github.com/iliyamo/concert-seat-booking/internal/queue"
	"github.com/iliyamo/concert-seat-booking/internal/ratelimit"
	"github.com/iliyamo/concert-seat-booking/internal/repository"
	"github.com/iliyamo/concert-seat-booking/internal/router"
	"github.com/iliyamo/concert-seat-booking/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load() // Load environment config
	log := logger.New(cfg.Env, cfg.LogLevel)
	queueCfg := config.LoadQueueConfig()
	lookupCfg := config.LoadLookupLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("schema applied")
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig()) // nil when redis is down
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	concertRepo := repository.NewConcertRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	opts := []service.Option{service.WithLogger(log), service.WithBcryptCost(cfg.BcryptCost)}
	var publisher *queue.Publisher
	if queueCfg.PublishEnabled {
		publisher = queue.NewPublisher(queueCfg, log)
		opts = append(opts, service.WithPublisher(publisher))
	}
	concerts := service.NewConcertService(concertRepo)
	seats := service.NewSeatService(concertRepo, seatRepo)
	bookings := service.NewBookingService(concertRepo, seatRepo, bookingRepo, opts...)

	if queueCfg.ConsumerEnabled {
		consumer := queue.NewConsumer(queueCfg, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", "error", err)
			}
		}()
	}

	var lookupStore ratelimit.Store = ratelimit.NewMemoryStore()
	if lookupCfg.Store == "redis" {
		if rdb != nil {
			lookupStore = ratelimit.NewRedisStore(rdb, lookupCfg.Prefix)
		} else {
			log.Warn("LOOKUP_STORE=redis but redis is unreachable; using memory store")
		}
	}
	lookup := ratelimit.New(lookupStore, lookupCfg.MaxFailures, lookupCfg.Window)
	go lookup.RunSweeper(ctx, lookupCfg.SweepInterval, func(err error) {
		log.Warn("lookup sweep failed", "error", err)
	})

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, router.Deps{ // Register application routes
		DB:        db,
		Concerts:  handler.NewConcertHandler(concerts),
		Seats:     handler.NewSeatHandler(seats),
		Bookings:  handler.NewBookingHandler(bookings),
		Lookup:    lookup,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Log:       log,
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	bookings.Drain() // let in-flight booking events go out
	if publisher != nil {
		_ = publisher.Close()
	}
}
