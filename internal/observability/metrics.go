package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sandeepkv93/chat-session-client/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "chat-session-client"

type AppMetrics struct {
	loginCounter    metric.Int64Counter
	logoutCounter   metric.Int64Counter
	verifyCounter   metric.Int64Counter
	refreshCounter  metric.Int64Counter
	idleExpiryCount metric.Int64Counter
	storageCounter  metric.Int64Counter
	configCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	if err := RegisterMetrics(mp); err != nil {
		return nil, err
	}
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

// RegisterMetrics creates the session instruments on the given provider and
// makes them the target of the Record* helpers.
func RegisterMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(meterName)
	m := &AppMetrics{}
	var err error
	if m.loginCounter, err = meter.Int64Counter("session.login.attempts"); err != nil {
		return err
	}
	if m.logoutCounter, err = meter.Int64Counter("session.logout.attempts"); err != nil {
		return err
	}
	if m.verifyCounter, err = meter.Int64Counter("session.verify.attempts"); err != nil {
		return err
	}
	if m.refreshCounter, err = meter.Int64Counter("session.refresh.attempts"); err != nil {
		return err
	}
	if m.idleExpiryCount, err = meter.Int64Counter("session.idle.expirations"); err != nil {
		return err
	}
	if m.storageCounter, err = meter.Int64Counter("storage.operations"); err != nil {
		return err
	}
	if m.configCounter, err = meter.Int64Counter("config.load.events"); err != nil {
		return err
	}

	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	return nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordSessionLogin(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.loginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordSessionLogout(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.logoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSessionVerify outcome is one of ok, throttled, refreshed, expired, error.
func RecordSessionVerify(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.verifyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordSessionRefresh(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordIdleExpiry(ctx context.Context) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.idleExpiryCount.Add(ctx, 1)
}

func RecordStorageOperation(ctx context.Context, backend, op, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.storageCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordConfigLoad counts a configuration load per profile. errorClass is
// config.ErrorClass of the load error.
func RecordConfigLoad(ctx context.Context, profile, errorClass string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	outcome := "success"
	if errorClass != "none" {
		outcome = "error"
	}
	m.configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func normalizeProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}
