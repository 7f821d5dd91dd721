package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	httpapi "github.com/i474232898/openweathermap-exporter/internal/api/http"
	"github.com/i474232898/openweathermap-exporter/internal/common"
	"github.com/i474232898/openweathermap-exporter/internal/config"
	"github.com/i474232898/openweathermap-exporter/internal/logging"
	"github.com/i474232898/openweathermap-exporter/internal/metrics"
	"github.com/i474232898/openweathermap-exporter/internal/weather"
	"github.com/i474232898/openweathermap-exporter/internal/weather/providers"
)

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	configFile := flag.String("config", settings.ConfigFile, "path to the exporter configuration file")
	listen := flag.String("listen", settings.ListenAddress, "address to serve metrics on")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", common.Name, common.Version)
		return
	}

	logger := logging.New(os.Stdout, settings, common.Version, common.Name)
	slog.SetDefault(logger)

	if err := run(*configFile, *listen, settings.APIKey, logger); err != nil {
		slog.Error("exporter failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shut down")
}

func run(configFile, listen, apiKey string, logger *slog.Logger) error {
	cfg, err := config.Load(configFile, apiKey)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := metrics.New(metrics.Options{RuntimeCollectors: true})
	if err := registry.Register(metrics.Families); err != nil {
		return err
	}

	// Shared HTTP client for outbound calls; each fetch also carries its own deadline.
	httpClient, err := providers.NewHTTPClient(cfg.CAFile, cfg.RequestTimeout())
	if err != nil {
		return &config.ConfigurationError{Type: config.ErrValidation, Message: "invalid ca_file", Err: err}
	}

	fetcher := providers.NewOpenWeatherProvider(httpClient, cfg.APIKey, providers.Options{
		Units:   cfg.UnitSystem(),
		Timeout: cfg.RequestTimeout(),
		Breaker: providers.BreakerSettings{
			Failures: cfg.BreakerFailures(),
			OpenFor:  cfg.BreakerOpenFor(),
		},
		Logger: logger,
	})

	locations := make([]weather.Location, 0, len(cfg.Locations))
	for _, l := range cfg.Locations {
		locations = append(locations, weather.Location(l))
	}
	pipeline := weather.NewPipeline(fetcher, registry, locations,
		weather.WithParallelism(cfg.Parallelism),
		weather.WithLogger(logger),
	)

	app := fiber.New(fiber.Config{
		AppName:               common.Name,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A scrape waits for every location in turn.
		WriteTimeout: cfg.RequestTimeout()*time.Duration(len(locations)) + 10*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})
	httpapi.RegisterRoutes(app, pipeline, httpapi.RouteOptions{
		MetricsPath: cfg.Path(),
		Metrics:     registry,
		Logger:      logger,
	})

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}

	logger.Info("starting",
		"listen", ln.Addr().String(),
		"metrics_path", cfg.Path(),
		"locations", len(locations),
		"units", cfg.UnitSystem(),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listener(ln)
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("error during shutdown", "error", err)
	}
	return nil
}
