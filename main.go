package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/Megho-git/ParkEase/internal/api"
	"github.com/Megho-git/ParkEase/internal/api/handler"
	"github.com/Megho-git/ParkEase/internal/api/middleware"
	"github.com/Megho-git/ParkEase/internal/config"
	"github.com/Megho-git/ParkEase/internal/logger"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/Megho-git/ParkEase/internal/token"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, ping, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("cannot open storage", zap.Error(err))
	}
	defer closeStore()

	clients, err := newAWSClients(ctx, cfg, log)
	if err != nil {
		log.Fatal("cannot load AWS config", zap.Error(err))
	}

	notifier, closeNotifier, err := newNotifier(cfg, clients, log)
	if err != nil {
		log.Fatal("cannot set up notifier", zap.Error(err))
	}
	defer closeNotifier()

	wsManager := handler.NewWebSocketManager(log)
	observers := service.Observers{wsManager}
	if clients.signage != nil {
		observers = append(observers, clients.signage)
	}

	codec := token.NewCodec(cfg.QRTokenSecret)
	authService := service.NewAuthService(store.Users(), cfg.JWTSecret, cfg.JWTExpirationHours, log)
	bookingService := service.NewBookingService(store, notifier, codec, observers, service.BookingOptions{
		Location: cfg.Location(),
		Grace:    cfg.BookingGrace,
		Horizon:  cfg.BookingHorizon,
	}, log)
	releaseService := service.NewReleaseService(store, codec, observers, log)
	lotService := service.NewLotService(store, cfg.MaxLotCapacity, log)
	reportService := service.NewReportService(store)
	lprService := service.NewLPRService(clients.rekognition, store, releaseService, log)

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal("cannot create admin account", zap.Error(err))
	}
	if cfg.SeedDemoLots {
		if err := lotService.SeedDemoLots(ctx); err != nil {
			log.Fatal("cannot seed demo lots", zap.Error(err))
		}
	}

	rateLimiter := middleware.NewRateLimiter(cfg.BookingRateRPS, cfg.BookingRateBurst)

	var wg sync.WaitGroup
	bgCtx, cancelBackground := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		wsManager.Start(bgCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		every(bgCtx, time.Minute, rateLimiter.Sweep)
	}()

	if cfg.RecentBookingRetention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(bgCtx, time.Hour, func() { pruneRecentBookings(bgCtx, bookingService, cfg.RecentBookingRetention, log) })
		}()
	}

	router := api.SetupRouter(api.Services{
		Auth:        authService,
		Booking:     bookingService,
		Release:     releaseService,
		Lots:        lotService,
		Reports:     reportService,
		LPR:         lprService,
		WebSocket:   wsManager,
		RateLimiter: rateLimiter,
		Ping:        ping,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort), zap.String("env", cfg.AppEnv), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	cancelBackground()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("background jobs did not stop in time")
	}
	log.Info("server stopped")
}

// every runs fn on each tick until ctx is cancelled.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func pruneRecentBookings(ctx context.Context, bookings *service.BookingService, retention time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := bookings.PruneRecentBookings(ctx, retention)
	if err != nil {
		log.Error("prune recent bookings", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("pruned recent bookings", zap.Int64("count", n))
	}
}
