package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/availability"
	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/logging"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/router"
	"github.com/iliyamo/studio-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional outside development
	cfg := config.Load() // Load environment config

	logger, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.Options{
		MaxOpenConns:    cfg.DBMaxOpen,
		MaxIdleConns:    cfg.DBMaxIdle,
		ConnMaxLifetime: cfg.DBMaxLife,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := config.NewRedisClient(cfg.Redis) // nil when Redis is unreachable
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting, response cache and idempotency cache disabled")
	} else {
		defer rdb.Close()
	}

	// Repositories
	resources := repository.NewResourceRepo(db)
	catalog := repository.NewCatalogRepo(db)
	reservations := repository.NewReservationRepo(db)
	idem := repository.NewIdempotencyCache(rdb, "idem", cfg.Booking.IdempotencyTTL)
	slots := availability.NewService(resources, reservations, cfg.Booking.SlotStep, logger)

	// Reservation change fan-out
	origin := instanceOrigin()
	bus := queue.NewBus(logger)
	publishers := queue.MultiPublisher{bus}
	if cfg.AMQPURL != "" {
		amqpPub := queue.NewAMQPPublisher(cfg.AMQPURL, origin, logger)
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)

		consumer := queue.NewConsumer(cfg.AMQPURL, origin, bus, logger)
		go func() { _ = consumer.Run(ctx) }()
	}

	cache := middleware.NewResponseCache(cfg.Cache, rdb, logger)
	bus.Subscribe(cache.OnReservationChanged)

	var mailer service.Mailer
	if m := service.NewSendGridMailer(cfg.Mail); m != nil {
		mailer = m
	} else {
		logger.Info("mail disabled; set SENDGRID_API_KEY and MAIL_FROM_EMAIL to enable")
	}
	notifier := service.NewNotifier(mailer, cfg.Booking.Location(), logger)
	bus.Subscribe(notifier.Handle)

	jobs := service.NewJobService(reservations, publishers, cfg.Booking.ReminderWindow, logger)
	scheduler, err := jobs.Schedule(ctx, cfg.Booking.FinishSpec, cfg.Booking.ReminderSpec)
	if err != nil {
		return err
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	resourceHandler := handler.NewResourceHandler(resources, catalog, slots, cfg.Booking.DefaultDuration, logger)
	reservationHandler := handler.NewReservationHandler(reservations, idem, publishers, logger)

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, resourceHandler, cache)
	router.RegisterMember(e, reservationHandler, cfg.JWTSecret, middleware.RateLimit(cfg.RateLimit, rdb, logger))
	router.RegisterAdmin(e, reservationHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("origin", origin))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		<-scheduler.Stop().Done()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	notifier.Wait()
	return nil
}

// instanceOrigin names this process on the broker so it can skip its own
// messages.
func instanceOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "booking"
	}
	return host + "-" + uuid.NewString()[:8]
}
