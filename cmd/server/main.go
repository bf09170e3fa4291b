package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
	_ "time/tzdata"

	web "chapel/internal/adapters/http"
	"chapel/internal/adapters/http/middleware"
	"chapel/internal/adapters/storage"
	accountStore "chapel/internal/adapters/storage/account"
	attendanceStore "chapel/internal/adapters/storage/attendance"
	memberStore "chapel/internal/adapters/storage/member"
	"chapel/internal/application/orchestrators"
	"chapel/internal/config"
	"chapel/internal/logger"
	"chapel/internal/metrics"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server_event", "event", "fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetupDefault(nil, logger.ParseLevel(cfg.LogLevel))

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.MigrateDB(db); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery())

	stores := &web.Stores{
		AccountStore:    accountStore.NewSQLiteStore(timedDB),
		MemberStore:     memberStore.NewSQLiteStore(timedDB),
		AttendanceStore: attendanceStore.NewSQLiteStore(timedDB),
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		seedDeps := orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore}
		if err := orchestrators.ExecuteSeedAdmin(context.Background(), seedDeps, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}

	app := web.NewServer(stores, web.Options{
		CSRFKey:       cfg.CSRFAuthKey,
		JWTKey:        cfg.JWTKey,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.IsProduction(),
		RateLimit: middleware.RateLimiterConfig{
			Rate:            rate.Limit(cfg.RateLimitRPS),
			Burst:           cfg.RateLimitBurst,
			CleanupInterval: 5 * time.Minute,
		},
		SlowRequest: cfg.SlowRequest(),
		Location:    cfg.Location,
		Metrics:     collector,
		Gatherer:    reg,
		Ping:        timedDB.PingContext,
	})
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_event",
			"event", "started",
			"version", version,
			"addr", cfg.Addr,
			"env", cfg.Env,
			"schema", storage.LatestSchemaVersion,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server_event", "event", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server_event", "event", "stopped")
	return nil
}
