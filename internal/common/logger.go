package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var (
	// Log is the app global logger. It writes to the default logger until InitLogger is called.
	Log = slog.Default()
)

// LoggerOptions configures InitLogger.
type LoggerOptions struct {
	ServiceName        string
	ServiceVersion     string
	ServiceEnvironment string
	// ExporterEndpoint is the otlp grpc log endpoint. Empty keeps logs on Stdout only.
	ExporterEndpoint string
	// Level is the minimum level written to Stdout.
	Level slog.Level
	// ExportLevel is the minimum level sent to the exporter.
	ExportLevel slog.Level
	// Stdout receives the text logs, os.Stdout when nil.
	Stdout io.Writer
}

// InitLogger initializes the app global logger and makes it the slog default.
// Logs are exported over otlp and, in local environments, also written as text to Stdout.
func InitLogger(opts LoggerOptions) (func(ctx context.Context) error, error) {

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	textHandler := slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: opts.Level})

	if opts.ExporterEndpoint == "" {
		Log = slog.New(textHandler)
		slog.SetDefault(Log)
		return func(context.Context) error { return nil }, nil
	}

	logExporter, err := otlploggrpc.New(context.Background(),
		otlploggrpc.WithEndpoint(opts.ExporterEndpoint),
		otlploggrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to otlploggrpc.New: %w", err)
	}

	lp := log.NewLoggerProvider(
		log.WithProcessor(
			log.NewBatchProcessor(logExporter),
		),
		log.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.ServiceVersion),
			semconv.DeploymentEnvironmentNameKey.String(opts.ServiceEnvironment))),
	)

	slogHandler := levelFilter(opts.ExportLevel, otelslog.NewHandler("github.com/ogero/stremio-urn3",
		otelslog.WithLoggerProvider(lp)))

	if isLocal(opts.ServiceEnvironment) {
		slogHandler = slogmulti.Fanout(slogHandler, textHandler)
	}

	Log = slog.New(slogHandler)
	slog.SetDefault(Log)

	return lp.Shutdown, nil
}

// levelFilter drops the records of h below level.
func levelFilter(level slog.Leveler, h slog.Handler) slog.Handler {
	return slogmulti.Pipe(slogmulti.NewEnabledInlineMiddleware(
		func(ctx context.Context, l slog.Level, next func(context.Context, slog.Level) bool) bool {
			return l >= level.Level() && next(ctx, l)
		},
	)).Handler(h)
}

func isLocal(serviceEnvironment string) bool {
	return serviceEnvironment == "lcl" || serviceEnvironment == "dk"
}
