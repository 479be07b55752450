package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/repository"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	catalogService "github.com/cmlabs-hris/attendance-engine/internal/service/catalog"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With(slog.String("app", "attendance-engine")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := repository.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Close()

	if repos.Driver == config.DriverSQLite {
		if err := repos.Migrate(ctx); err != nil {
			return err
		}
	}

	collectors := metrics.New()
	hub := sse.NewHub(32)

	catalogSvc := catalogService.NewCatalogService(
		repos.Catalog,
		repos.Persons,
		catalogService.Options{
			TTL:             cfg.Engine.CatalogCacheTTL,
			PersonCacheSize: cfg.Engine.PersonCacheSize,
		},
		collectors,
	)
	decisionSvc := attendanceService.NewDecisionService(
		catalogSvc,
		repos.Records,
		attendanceService.Settings{
			Location:      cfg.Engine.Location,
			MinConfidence: cfg.Engine.MinConfidence,
		},
		collectors,
		hub,
	)
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	scheduler := cron.NewScheduler()
	cron.NewRuleAuditJob(catalogSvc).RegisterJobs(scheduler, cfg.Engine.RuleAuditInterval)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			Env:                cfg.App.Env,
			Version:            version,
			CORSAllowedOrigins: cfg.App.CORSAllowedOrigins,
			LogLevel:           cfg.SlogLevel(),
			Metrics:            collectors.Handler(),
		},
		JWTService,
		appHTTP.NewPunchHandler(decisionSvc, JWTService, hub),
		appHTTP.NewRecordHandler(decisionSvc),
		appHTTP.NewCatalogHandler(catalogSvc),
		appHTTP.NewTokenHandler(JWTService),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr, "storage", repos.Driver, "timezone", cfg.Engine.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
