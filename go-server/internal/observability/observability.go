package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/config"
	"github.com/fonsecaaso/linkkeep/go-server/internal/logger"
	"github.com/fonsecaaso/linkkeep/go-server/internal/tracing"
)

// Observability holds all observability components
type Observability struct {
	tracerShutdown    func(ctx context.Context) error
	Logger            *zap.Logger
	PrometheusHandler http.Handler
	initialized       ObservabilityStatus
}

// ObservabilityStatus tracks which components are initialized
type ObservabilityStatus struct {
	TracingEnabled bool
	MetricsEnabled bool
	LokiEnabled    bool
}

// SetupObservability builds the process logger, installs it as the zap
// global, starts trace export and exposes the Prometheus registry.
func SetupObservability(ctx context.Context, cfg *config.Config) (*Observability, error) {
	log, err := logger.New(logger.Options{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Level:       cfg.LogLevel,
		LokiURL:     cfg.LokiURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	zap.ReplaceGlobals(log)

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	obs := &Observability{
		tracerShutdown:    tracerShutdown,
		Logger:            log,
		PrometheusHandler: promhttp.Handler(),
		initialized: ObservabilityStatus{
			TracingEnabled: cfg.OTLPEndpoint != "",
			MetricsEnabled: true,
			LokiEnabled:    cfg.LokiURL != "",
		},
	}

	log.Info("observability initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
		zap.Bool("tracing", obs.initialized.TracingEnabled),
		zap.Bool("loki", obs.initialized.LokiEnabled),
	)
	return obs, nil
}

// GetStatus returns the current observability status
func (o *Observability) GetStatus() ObservabilityStatus {
	return o.initialized
}

// Shutdown flushes spans first so their export errors still reach the logger.
func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error

	if o.tracerShutdown != nil {
		if err := o.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	if o.Logger != nil {
		if err := logger.Shutdown(ctx, o.Logger); err != nil {
			errs = append(errs, fmt.Errorf("logger shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
