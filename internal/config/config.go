package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the addon settings, read from the environment.
type Config struct {
	// AddonHost is the public (external) base URL where the addon is accessible.
	// It is used for any links requiring the addon host address.
	AddonHost string `env:"ADDON_HOST" envDefault:"http://127.0.0.1:3593"`
	// ServerListenAddr specifies the network address that the HTTP server will listen on.
	ServerListenAddr string `env:"SERVER_LISTEN_ADDR" envDefault:":3593"`

	ServiceName        string     `env:"SERVICE_NAME" envDefault:"stremio-urn3"`
	ServiceVersion     string     `env:"SERVICE_VERSION" envDefault:"0.0.1"`
	ServiceEnvironment string     `env:"SERVICE_ENVIRONMENT" envDefault:"lcl"`
	LogLevel           slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	// OTELLogLevel is the minimum level of the exported logs. The Loki stats count the DEBUG handler lines.
	OTELLogLevel slog.Level `env:"OTEL_LOG_LEVEL" envDefault:"DEBUG"`
	// OTELExporterEndpoint is the otlp grpc endpoint receiving traces, metrics and logs. Empty disables the export.
	OTELExporterEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
	// LokiHost is queried for the stats broadcast over the websocket. Empty disables stats polling.
	LokiHost string `env:"LOKI_HOST"`

	// CachePath is the badger directory. An empty path keeps the cache in memory.
	CachePath string `env:"CACHE_PATH" envDefault:".cache"`

	CatalogBaseURL string        `env:"CATALOG_BASE_URL" envDefault:"https://api.lib.harvard.edu"`
	MediaHost      string        `env:"MEDIA_HOST" envDefault:"mps.lib.harvard.edu"`
	MaxRedirects   int           `env:"MAX_REDIRECTS" envDefault:"10"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	// OutboundRateLimit is the number of requests per second sent to the library hosts. Zero disables the limit.
	OutboundRateLimit float64 `env:"OUTBOUND_RATE_LIMIT" envDefault:"5"`

	StatsPollInterval     time.Duration `env:"STATS_POLL_INTERVAL" envDefault:"1m"`
	StatsWebsocketChannel string        `env:"STATS_WEBSOCKET_CHANNEL" envDefault:"stats"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to env.ParseAs: %w", err)
	}

	u, err := url.Parse(cfg.AddonHost)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ADDON_HOST: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ADDON_HOST: %q", cfg.AddonHost)
	}
	cfg.AddonHost = fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	if cfg.MaxRedirects <= 0 {
		return nil, fmt.Errorf("invalid MAX_REDIRECTS: %d", cfg.MaxRedirects)
	}

	return &cfg, nil
}
