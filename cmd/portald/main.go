package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardbook/portalsync/internal/api/router"
	"github.com/wardbook/portalsync/internal/app/bootstrap"
	appconfig "github.com/wardbook/portalsync/internal/config"
	"github.com/wardbook/portalsync/internal/http/handlers"
	"github.com/wardbook/portalsync/internal/listview"
	"github.com/wardbook/portalsync/internal/observability/metrics"
	"github.com/wardbook/portalsync/internal/portalapi"
	"github.com/wardbook/portalsync/internal/refcache"
	"github.com/wardbook/portalsync/internal/sessionuser"
	"github.com/wardbook/portalsync/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting portalsync feed",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.PortalAPIBaseURL == "" {
		logger.Error("PORTAL_API_BASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	client := bootstrap.BuildPortalClient(cfg, logger)
	backend := bootstrap.BuildReferenceBackend(ctx, cfg, logger)

	profileCache := refcache.New[portalapi.StaffProfile](backend, cfg.SessionCacheTTL, syncMetrics, logger)
	provider := sessionuser.NewProvider(client, profileCache, cfg.PortalAPIToken, logger)

	admissions := listview.NewContainer("admissions", client.ListAdmissions, false, syncMetrics, logger)
	admissionsLatest := listview.NewContainer("admissions_latest", client.ListAdmissions, true, syncMetrics, logger)
	appointments := listview.NewContainer("appointments", client.ListAppointments, false, syncMetrics, logger)
	defer admissions.Close()
	defer admissionsLatest.Close()
	defer appointments.Close()

	// Initial window: trailing N days up to today.
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -cfg.ListWindowDays)
	for _, c := range []*listview.Container{admissions, admissionsLatest, appointments} {
		if err := c.SetDateRange(ctx, from, to); err != nil {
			logger.Warn("initial fetch failed, starting with empty view model", "error", err)
		}
	}

	if cfg.ListRefreshInterval > 0 {
		refreshCtx, stopRefresh := context.WithCancel(ctx)
		defer stopRefresh()
		refresher := listview.NewRefresher(
			[]*listview.Container{admissions, admissionsLatest, appointments}, logger,
		).WithInterval(cfg.ListRefreshInterval)
		go refresher.Run(refreshCtx)
	}

	listsHandler := handlers.NewListsHandler(client, admissions, admissionsLatest, appointments, logger)
	sessionHandler := handlers.NewSessionHandler(provider, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Lists:              listsHandler,
		Session:            sessionHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
