package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/config"
	"github.com/fieldcrew/shiftpoint/internal/database"
	"github.com/fieldcrew/shiftpoint/internal/handler"
	"github.com/fieldcrew/shiftpoint/internal/middleware"
	"github.com/fieldcrew/shiftpoint/internal/queue"
	"github.com/fieldcrew/shiftpoint/internal/repository"
	"github.com/fieldcrew/shiftpoint/internal/router"
	"github.com/fieldcrew/shiftpoint/internal/service"
	"github.com/fieldcrew/shiftpoint/internal/sweeper"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, sweeper lock / rate limit / cache disabled")
	}

	siteRepo := repository.NewSiteRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	attendanceRepo := repository.NewAttendanceRepo(db)
	authRepo := repository.NewAuthorizationRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	var publisher service.Publisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, logger)
	} else {
		logger.Warn("no AMQP URL configured, events disabled")
	}

	bookingSvc := &service.BookingService{
		Sites: siteRepo, Slots: slotRepo, Bookings: bookingRepo,
		Auths: authRepo, Publisher: publisher, Log: logger,
		MinDuration: cfg.MinBookingDuration, CancelCutoff: cfg.CancelCutoff,
	}
	attendanceSvc := &service.AttendanceService{
		Sites: siteRepo, Slots: slotRepo, Bookings: bookingRepo,
		Sessions: attendanceRepo, Auths: authRepo,
		Publisher: publisher, Log: logger,
	}
	accessSvc := &service.AccessService{
		Bookings: bookingRepo, Auths: authRepo,
		Publisher: publisher, Log: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sw := &sweeper.Sweeper{
		Attendance: attendanceSvc,
		Sessions:   attendanceRepo,
		Sites:      siteRepo,
		Slots:      slotRepo,
		Log:        logger,
		Interval:   cfg.SweepInterval,
	}
	if rdb != nil {
		sw.Locker = &sweeper.RedisLocker{Client: rdb}
	}
	go sw.Run(ctx)

	if cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartConsumer(cfg.RabbitURL, logger); err != nil {
				logger.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true

	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo, tokenRepo), cfg.JWTSecret)
	router.RegisterWorker(e,
		handler.NewWorkerBookingHandler(bookingSvc),
		handler.NewWorkerAttendanceHandler(attendanceSvc),
		cfg.JWTSecret, rateLimit, cache)
	router.RegisterAdmin(e,
		handler.NewAdminSiteHandler(siteRepo, bookingRepo),
		handler.NewAdminSlotHandler(siteRepo, slotRepo),
		handler.NewAdminAuthorizationHandler(authRepo, accessSvc),
		cfg.JWTSecret, rateLimit)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
