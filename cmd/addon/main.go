package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogero/stremio-urn3/internal"
	"github.com/ogero/stremio-urn3/internal/cache"
	"github.com/ogero/stremio-urn3/internal/common"
	"github.com/ogero/stremio-urn3/internal/config"
	"github.com/ogero/stremio-urn3/internal/loki"
	"github.com/ogero/stremio-urn3/pkg/urn3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to config.Load: %w", err)
	}

	shutdownLogger, err := common.InitLogger(common.LoggerOptions{
		ServiceName:        cfg.ServiceName,
		ServiceVersion:     cfg.ServiceVersion,
		ServiceEnvironment: cfg.ServiceEnvironment,
		ExporterEndpoint:   cfg.OTELExporterEndpoint,
		Level:              cfg.LogLevel,
		ExportLevel:        cfg.OTELLogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to common.InitLogger: %w", err)
	}
	defer func() {
		_ = shutdownLogger(context.Background())
	}()

	shutdownInstrumentation, err := common.InitInstrumentation(cfg.ServiceName, cfg.ServiceVersion, cfg.ServiceEnvironment, cfg.OTELExporterEndpoint)
	if err != nil {
		return fmt.Errorf("failed to common.InitInstrumentation: %w", err)
	}
	defer shutdownInstrumentation(context.Background())

	recordCache, err := cache.Open(cache.Options{
		Path:   cfg.CachePath,
		Logger: common.Log,
	})
	if err != nil {
		return fmt.Errorf("failed to cache.Open: %w", err)
	}
	defer func() {
		if err := recordCache.Close(); err != nil {
			common.Log.Error("Failed to cache.Cache.Close", "err", err)
		}
	}()

	extractorOpts := []urn3.Option{
		urn3.WithCatalogBaseURL(cfg.CatalogBaseURL),
		urn3.WithMediaHost(cfg.MediaHost),
		urn3.WithMaxRedirects(cfg.MaxRedirects),
		urn3.WithTimeout(cfg.HTTPTimeout),
		urn3.WithLogger(common.Log),
	}
	if cfg.OutboundRateLimit > 0 {
		extractorOpts = append(extractorOpts, urn3.WithRateLimit(rate.Limit(cfg.OutboundRateLimit), 1))
	}

	addonService, err := internal.NewAddonService(
		cfg.StatsWebsocketChannel,
		urn3.NewExtractor(extractorOpts...),
		recordCache,
		loki.NewLoki(cfg.LokiHost, cfg.ServiceName),
	)
	if err != nil {
		return fmt.Errorf("failed to internal.NewAddonService: %w", err)
	}

	app, err := internal.NewApp(addonService, cfg.AddonHost)
	if err != nil {
		return fmt.Errorf("failed to internal.NewApp: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LokiHost != "" {
		go addonService.StartPollingStats(ctx, cfg.StatsPollInterval)
	}

	srv := &http.Server{
		Addr:              cfg.ServerListenAddr,
		Handler:           otelhttp.NewHandler(app.Router(), cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		common.Log.Info("Listening", "addr", cfg.ServerListenAddr)
		common.Log.Info("Install at", "url", fmt.Sprintf("%s/manifest.json", cfg.AddonHost))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.Log.Error("Failed to http.Server.ListenAndServe", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.Log.Error("Failed to http.Server.Shutdown", "err", err)
	}
	if err := addonService.Shutdown(shutdownCtx); err != nil {
		common.Log.Error("Failed to internal.AddonService.Shutdown", "err", err)
	}

	common.Log.Info("Bye!")

	return nil
}
