package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/slotgrid/slotgrid/api/echo"
	"github.com/slotgrid/slotgrid/cache"
	redislock "github.com/slotgrid/slotgrid/cache/redis"
	"github.com/slotgrid/slotgrid/config"
	"github.com/slotgrid/slotgrid/internal/provider"
	"github.com/slotgrid/slotgrid/log"
	"github.com/slotgrid/slotgrid/mongodb"
	"github.com/slotgrid/slotgrid/services"
	"github.com/slotgrid/slotgrid/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting slotgrid server...", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	// Repositories
	credRepo, err := mongodb.NewCredentialRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize CredentialRepository", err, nil)
	}
	selRepo, err := mongodb.NewSelectedCalendarRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize SelectedCalendarRepository", err, nil)
	}
	slotRepo, err := mongodb.NewSlotRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize SlotRepository", err, nil)
	}
	hoursRepo, err := mongodb.NewBusinessHoursRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize BusinessHoursRepository", err, nil)
	}
	statsRepo, err := mongodb.NewWidgetStatsRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize WidgetStatsRepository", err, nil)
	}

	// Provider adapters
	providerTimeout := time.Duration(cfg.ProviderTimeoutSec) * time.Second
	registry := provider.NewRegistry(
		provider.NewGoogleProvider(provider.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL(),
			Timeout:      providerTimeout,
		}),
		provider.NewOutlookProvider(provider.Config{
			ClientID:     cfg.OutlookClientID,
			ClientSecret: cfg.OutlookClientSecret,
			RedirectURL:  cfg.CallbackURL(),
			Timeout:      providerTimeout,
		}),
	)

	// Flow state and refresh locking
	pendingStore := cache.NewMemoryPendingAuthStore(time.Duration(cfg.PendingAuthTTLMin) * time.Minute)
	defer pendingStore.Close()

	var locker cache.RefreshLocker
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		locker = redislock.NewRefreshLocker(redisClient, "slotgrid")
		appLogger.Info(ctx, "Using Redis refresh lock", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		memLocker := cache.NewMemoryRefreshLocker()
		defer memLocker.Close()
		locker = memLocker
	}

	// Services
	integrationSvc := services.NewIntegrationService(credRepo, selRepo, registry, pendingStore, locker, nil)
	availabilitySvc := services.NewAvailabilityService(integrationSvc, slotRepo, hoursRepo, nil)
	scheduleSvc := services.NewScheduleService(slotRepo, hoursRepo, nil)
	trackerSvc := services.NewTrackerService(statsRepo)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	api := echoapi.NewAvailabilityAPI(integrationSvc, availabilitySvc, scheduleSvc, trackerSvc,
		func(c echo.Context) error {
			return mongodb.Ping(c.Request().Context())
		})
	api.RegisterRoutes(e)

	httpServer = &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
		}
	}

	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
