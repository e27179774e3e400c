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

	"qms/kiosk-service/internal/backend"
	"qms/kiosk-service/internal/catalog"
	"qms/kiosk-service/internal/clock"
	"qms/kiosk-service/internal/config"
	"qms/kiosk-service/internal/httpapi"
	"qms/kiosk-service/internal/hub"
	"qms/kiosk-service/internal/logging"
	"qms/kiosk-service/internal/notify"
	"qms/kiosk-service/internal/queuestatus"
	"qms/kiosk-service/internal/telemetry"
	"qms/kiosk-service/internal/ticket"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger, closeLog, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, "kiosk-service", logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	client := backend.New(backend.Options{
		BaseURL:     cfg.BackendURL,
		AdminAPIKey: cfg.AdminAPIKey,
		Timeout:     cfg.RequestTimeout,
	})
	notifier := notify.Logger(logger)
	tickets := ticket.NewController(client, notifier, clock.Real())
	services := catalog.New(client, notifier)
	poller := queuestatus.New(client, queuestatus.Options{
		Interval: cfg.PollInterval,
		Timeout:  cfg.RequestTimeout,
		Notifier: notifier,
		Logger:   logger,
	})

	h := hub.New(logger)
	httpapi.MountViews(h, poller, cfg.ChartWindow, logger)

	handler := httpapi.NewHandler(tickets, services, notifier, httpapi.Options{
		PublicURL: cfg.PublicURL,
		StaticDir: cfg.StaticDir,
		Realtime:  httpapi.NewRealtime(h, tickets, logger),
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(handler.Routes())), "kiosk-service"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: SockJS streaming responses stay open.
		IdleTimeout: 60 * time.Second,
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("kiosk-service listening", "addr", server.Addr, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
			return err
		}
		return nil
	})
	return g.Wait()
}
