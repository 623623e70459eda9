package obs

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dwc"

// Config controls the ambient logging and tracing stack. There is no OTLP
// endpoint: spans stay in-process and are only used to correlate log lines
// within a single command invocation, never exported.
type Config struct {
	ServiceName string
	LogLevel    slog.Level
	LogJSON     bool
	Verbose     bool
}

// DefaultConfig returns the defaults used when a command doesn't override
// anything via flags or environment.
func DefaultConfig() Config {
	return Config{
		ServiceName: "dwc",
		LogLevel:    slog.LevelInfo,
	}
}

// Providers bundles the initialized logger and tracer for a command run.
type Providers struct {
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Setup builds the logger and tracer for a single CLI invocation. The
// returned shutdown func flushes any buffered spans; callers should defer it.
func Setup(cfg Config) (Providers, func(context.Context) error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("dwc.mode", "cli"),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	logger := slog.New(NewTracingHandler(inner, cfg.ServiceName))

	return Providers{
			Logger: logger,
			Tracer: tp.Tracer(tracerName),
		}, func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		}
}
