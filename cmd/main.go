package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"floor-service/internal/catalog"
	"floor-service/internal/config"
	"floor-service/internal/database"
	"floor-service/internal/logger"
	"floor-service/internal/messaging"
	"floor-service/internal/services/dispatch"
	"floor-service/internal/services/session"
	"floor-service/internal/services/tables"
	"floor-service/internal/services/tracking"
	"floor-service/internal/staff"
	"floor-service/internal/stock"
	"floor-service/internal/web"
)

func main() {
	var (
		port          = flag.Int("port", 3000, "HTTP port")
		maxConcurrent = flag.Int("max-concurrent", 50, "Maximum concurrent mutating operations")
		configPath    = flag.String("config", "config.yaml", "Path to config file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("floor-service")
	requestID := logger.GenerateRequestID()

	log.Info("service_started", "Starting floor service", requestID, map[string]interface{}{
		"port":           *port,
		"max_concurrent": *maxConcurrent,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	if err := run(ctx, cfg, log, *port, *maxConcurrent); err != nil {
		log.Error("service_failed", "Floor service failed", requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, port, maxConcurrent int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	publisher := messaging.NewPublisher(conn, log)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
	}

	cat := catalog.NewHTTPCatalog(cfg.Catalog.BaseURL, rdb, log)
	staffDir := staff.NewHTTPDirectory(cfg.Staff.BaseURL)
	ledger := stock.NewAMQPLedger(publisher)

	registry := tables.NewRegistry(tables.NewPostgresStore(db), staffDir, log)
	if err := registry.WarmCache(ctx); err != nil {
		return fmt.Errorf("failed to warm floor cache: %w", err)
	}

	sessionService := session.NewService(session.NewPostgresStore(db), cat, ledger, log, maxConcurrent)
	dispatchRouter := dispatch.NewRouter(dispatch.NewPostgresStore(db), publisher, log)
	trackingService := tracking.NewService(db, log)

	sessionHandler := session.NewHandler(sessionService, registry, log)
	dispatchHandler := dispatch.NewHandler(dispatchRouter, log)
	trackingHandler := tracking.NewHandler(trackingService, log)
	tablesHandler := tables.NewHandler(registry, log)

	// Background tasks: reservation expiry sweep and floor cache resync
	go registry.RunReservationSweeper(ctx, 30*time.Second)
	go registry.RunCacheResync(ctx, 5*time.Minute)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(web.WithRequestLogging(log))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(100))))

	e.POST("/orders", sessionHandler.CreateOrder)
	e.POST("/orders/:id/items", sessionHandler.AddItems)
	e.POST("/orders/:id/dispatch", dispatchHandler.Dispatch)
	e.GET("/orders/active", trackingHandler.ActiveSessions)
	e.GET("/orders/:id", trackingHandler.SessionDetail)
	e.POST("/orders/:id/cancel", sessionHandler.CancelOrder)
	e.DELETE("/orders/lines/:lineId", sessionHandler.RemoveLine)

	e.PUT("/tables/:id/state", tablesHandler.ChangeState)
	e.POST("/tables/:id/assign", tablesHandler.Assign)
	e.PUT("/tables/:id/release", tablesHandler.Release)
	e.GET("/tables/:id/session", trackingHandler.OpenSessionForTable)
	e.GET("/floor", tablesHandler.Floor)

	e.GET("/health", func(c echo.Context) error {
		healthCtx, healthCancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer healthCancel()

		healthy := db.Ping(healthCtx) == nil && !conn.IsClosed()
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]interface{}{
			"status":    map[bool]string{true: "ok", false: "unhealthy"}[healthy],
			"service":   "floor-service",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	go func() {
		log.Info("server_started", fmt.Sprintf("Floor service listening on port %d", port), requestID, map[string]interface{}{
			"port": port,
		})
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return e.Shutdown(shutdownCtx)
}
