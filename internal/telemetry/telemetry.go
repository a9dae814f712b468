package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	ServiceName    = "exstem-proctor"
	exportInterval = 15 * time.Second
)

// NewMeterProvider builds the process meter provider and installs it as the
// global one. Without an OTLP endpoint the instruments are recorded but never exported.
func NewMeterProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sdkmetric.MeterProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}

		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)),
		))
		log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("OTLP metric export enabled")
	} else {
		log.Info().Msg("OTLP endpoint not set, metrics are not exported")
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider, nil
}
