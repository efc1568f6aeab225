package telemetry

import (
	"context"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// PlatformMetricsRegistry implements core.MetricsRegistry so code in core
// (the ProductionLogger's log-event metrics) can emit metrics through the
// global registry (core.SetMetricsRegistry) without importing telemetry,
// avoiding the import cycle telemetry -> core -> telemetry would otherwise
// create.
type PlatformMetricsRegistry struct {
	logger *TelemetryLogger
}

// NewPlatformMetricsRegistry creates a registry that delegates to the
// package-level Emit/EmitWithContext functions.
func NewPlatformMetricsRegistry(logger *TelemetryLogger) *PlatformMetricsRegistry {
	return &PlatformMetricsRegistry{logger: logger}
}

// Counter implements core.MetricsRegistry.
func (f *PlatformMetricsRegistry) Counter(name string, labels ...string) {
	if f.logger != nil && f.logger.debug {
		f.logger.Debug("platform metric emission", map[string]interface{}{
			"metric_name": name,
			"type":        "counter",
			"label_count": len(labels) / 2,
		})
	}
	Emit(name, 1.0, labels...)
}

// EmitWithContext implements core.MetricsRegistry.
func (f *PlatformMetricsRegistry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if f.logger != nil && f.logger.debug {
		baggage := GetBaggage(ctx)
		tenantID := ""
		if baggage != nil {
			if id, ok := baggage["tenant_id"]; ok {
				tenantID = id
			}
		}
		f.logger.Debug("platform context-aware emission", map[string]interface{}{
			"metric_name": name,
			"value":       value,
			"has_baggage": len(baggage) > 0,
			"tenant_id":   tenantID,
			"label_count": len(labels) / 2,
		})
	}
	EmitWithContext(ctx, name, value, labels...)
}

// GetBaggage implements core.MetricsRegistry.
func (f *PlatformMetricsRegistry) GetBaggage(ctx context.Context) map[string]string {
	return GetBaggage(ctx)
}

// Gauge implements core.MetricsRegistry.
func (f *PlatformMetricsRegistry) Gauge(name string, value float64, labels ...string) {
	Gauge(name, value, labels...)
}

// Histogram implements core.MetricsRegistry.
func (f *PlatformMetricsRegistry) Histogram(name string, value float64, labels ...string) {
	Histogram(name, value, labels...)
}

// EnableFrameworkIntegration registers the telemetry package's registry as
// core's global core.MetricsRegistry, so core-level components can emit
// counters/histograms without a direct import of telemetry (see
// core/interfaces.go's MetricsRegistry seam).
func EnableFrameworkIntegration(logger *TelemetryLogger) {
	registry := NewPlatformMetricsRegistry(logger)
	core.SetMetricsRegistry(registry)

	if logger != nil {
		logger.Info("platform metrics integration enabled", map[string]interface{}{
			"integration": "core.MetricsRegistry",
			"methods":     []string{"Counter", "EmitWithContext", "GetBaggage", "Gauge", "Histogram"},
		})
	}
}
