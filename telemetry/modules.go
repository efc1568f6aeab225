package telemetry

// This file declares the pre-registered metric instruments for each
// domain module. It lives in the telemetry package to avoid the import
// cycle a direct telemetry -> enrichment/jobs/cache dependency would create.

func init() {
	// Enrichment pipeline metrics.
	DeclareMetrics("enrichment", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:    "enrichment.execution.duration_ms",
				Type:    "histogram",
				Help:    "Enricher execution time in milliseconds",
				Labels:  []string{"provider", "type"},
				Unit:    "ms",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000},
			},
			{
				Name:   "enrichment.executions",
				Type:   "counter",
				Help:   "Enricher execution count",
				Labels: []string{"provider", "type", "status"},
			},
			{
				Name:   "enrichment.fields_enriched",
				Type:   "counter",
				Help:   "Fields merged into the target by strategy application",
				Labels: []string{"provider", "strategy"},
			},
			{
				Name:   "enrichment.fallback.activations",
				Type:   "counter",
				Help:   "Fallback chain activations after a primary provider failure",
				Labels: []string{"type"},
			},
		},
	})

	// Cache layer metrics.
	DeclareMetrics("cache", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "cache.operations",
				Type:   "counter",
				Help:   "Cache operations",
				Labels: []string{"operation", "backend"},
			},
			{
				Name:   "cache.hits",
				Type:   "counter",
				Help:   "Cache hits",
				Labels: []string{"backend"},
			},
			{
				Name:   "cache.misses",
				Type:   "counter",
				Help:   "Cache misses",
				Labels: []string{"backend"},
			},
			{
				Name:    "cache.lookup.duration_ms",
				Type:    "histogram",
				Help:    "Cache lookup duration",
				Labels:  []string{"backend"},
				Unit:    "ms",
				Buckets: []float64{0.1, 1, 10, 100, 1000},
			},
		},
	})

	// Job stage service metrics.
	DeclareMetrics("jobs", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "jobs.stage.transitions",
				Type:   "counter",
				Help:   "Job lifecycle stage transitions",
				Labels: []string{"from", "to"},
			},
			{
				Name:   "jobs.active",
				Type:   "gauge",
				Help:   "Number of jobs currently in flight",
				Labels: []string{"job_type"},
			},
			{
				Name:   "jobs.audit.entries",
				Type:   "counter",
				Help:   "Audit entries recorded",
				Labels: []string{"job_type", "event"},
			},
		},
	})
}
