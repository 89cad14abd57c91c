package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/appointment"
	"github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	"github.com/jwalitptl/clinic-api/pkg/tracer"
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func runServer(configPath string, migrate bool) error {
	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	tp, err := tracer.Init(ctx, a.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := a.openDB(); err != nil {
		return err
	}
	if migrate {
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
		a.log.Info("schema applied")
	}
	if err := a.openBroker(); err != nil {
		return err
	}

	a.buildServices(prometheus.DefaultRegisterer)

	if err := middleware.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	checks := map[string]health.Pinger{"database": a.db}
	if a.redis != nil {
		checks["redis"] = health.PingerFunc(a.redisPing)
	}

	r := router.NewRouter(a.log, a.metrics, router.RouterConfig{
		Mode:           a.cfg.Server.Mode,
		ServiceName:    a.cfg.Tracing.ServiceName,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		RateLimit:      a.cfg.RateLimit.Enabled,
		RateLimitRPS:   rate.Limit(a.cfg.RateLimit.RequestsPerSecond),
		RateBurst:      a.cfg.RateLimit.Burst,
	},
		health.NewHandler(checks, prometheus.DefaultGatherer),
		appointment.NewHandler(a.appointments),
		doctor.NewHandler(a.doctors),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
		a.log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error(err, "server forced to shutdown")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		a.log.Error(err, "failed to flush traces")
	}

	a.log.Info("server exited")
	return nil
}
