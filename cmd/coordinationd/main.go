package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/terrasiaga/coordination/internal/api"
	"github.com/terrasiaga/coordination/internal/config"
	"github.com/terrasiaga/coordination/internal/dispatch"
	"github.com/terrasiaga/coordination/internal/evac"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/ledger"
	"github.com/terrasiaga/coordination/internal/logging"
	"github.com/terrasiaga/coordination/internal/metrics"
	"github.com/terrasiaga/coordination/internal/models"
	"github.com/terrasiaga/coordination/internal/registry"
	"github.com/terrasiaga/coordination/internal/store"
	"github.com/terrasiaga/coordination/internal/validator"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := store.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(cfg.Worker.Count, cfg.Worker.BufferSize)

	rv := validator.New(validator.Config{
		CorrelationRadiusM: cfg.Correlation.RadiusM,
		CorrelationWindow:  cfg.Correlation.Window,
	}, bus)
	reg := registry.New(registry.Config{
		MergeRadiusFloorM: cfg.Merge.RadiusFloorM,
		MergeWindow:       cfg.Merge.Window,
	}, bus)
	led := ledger.New(bus)
	eng := ledger.NewEngine(led)
	evc := evac.New(evac.Config{MaxSearchRadiusM: cfg.Evacuation.MaxSearchRadiusM}, bus)
	disp := dispatch.New(dispatch.Config{
		AckTimeout:    cfg.Dispatch.AckTimeout,
		SweepInterval: cfg.Dispatch.SweepInterval,
	}, bus)

	// Validated reports feed the disaster registry synchronously so the
	// disaster exists by the time the validate call returns.
	bus.RegisterHandler(events.TypeReportValidated, func(ev events.Event) {
		if ev.Status != string(models.ReportValid) {
			return
		}
		rep, err := rv.Get(ev.ReportID)
		if err != nil {
			slog.Error("validated report lookup failed", "report", ev.ReportID, "error", err)
			return
		}
		at, err := rv.Point(ev.ReportID)
		if err != nil {
			slog.Error("validated report point lookup failed", "report", ev.ReportID, "error", err)
			return
		}
		d, err := reg.OnReportValidated(rep, at)
		if err != nil {
			slog.Error("disaster correlation failed", "report", ev.ReportID, "error", err)
			return
		}
		if err := db.SaveDisaster(context.Background(), d); err != nil {
			slog.Error("disaster write-through failed", "disaster", d.ID, "error", err)
		}
	})

	// Async sinks: journal every event, feed the prometheus counters.
	bus.RegisterSink(db.AppendEvent)
	bus.RegisterSink(metrics.Sink)

	bus.Start(ctx)
	disp.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	router.Use(api.MetricsMiddleware())

	handler := api.NewHandler(rv, reg, led, eng, evc, disp, db, db)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	disp.Stop()
	bus.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
