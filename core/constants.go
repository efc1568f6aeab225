package core

import "time"

// GlobalTenantID is the all-zeros UUID denoting the global tenant, used for
// cross-tenant enrichers and as the tenant-fallback target.
const GlobalTenantID = "00000000-0000-0000-0000-000000000000"

// Event topics published by the core (see EventPublisher).
const (
	TopicEnrichmentStarted   = "enrichment.started"
	TopicEnrichmentCompleted = "enrichment.completed"
	TopicEnrichmentFailed    = "enrichment.failed"
	TopicCacheHit            = "cache.hit"
	TopicQualityEvaluated    = "quality.evaluated"
	TopicLineageRecorded     = "lineage.recorded"
	TopicJobStarted          = "job.started"
	TopicJobChecked          = "job.checked"
	TopicJobCollected        = "job.collected"
	TopicJobResult           = "job.result"
	TopicJobStopped          = "job.stopped"
	TopicJobFailed           = "job.failed"
)

// DefaultMetricPrefix is the default namespace for emitted metrics
// (<prefix>.stage.execution, <prefix>.stage.count, <prefix>.error, ...).
const DefaultMetricPrefix = "firefly.data.job"

// Environment variable names recognized when loading Config from the process
// environment. The single namespace from the configuration table is mapped
// onto these FIREFLY_-prefixed variables.
const (
	EnvEnrichmentEnabled    = "FIREFLY_ENRICHMENT_ENABLED"
	EnvPublishEvents        = "FIREFLY_PUBLISH_EVENTS"
	EnvCacheEnabled         = "FIREFLY_CACHE_ENABLED"
	EnvCacheTTLSeconds      = "FIREFLY_CACHE_TTL_SECONDS"
	EnvDefaultTimeoutSecond = "FIREFLY_DEFAULT_TIMEOUT_SECONDS"
	EnvMaxBatchSize         = "FIREFLY_MAX_BATCH_SIZE"
	EnvBatchParallelism     = "FIREFLY_BATCH_PARALLELISM"
	EnvBatchFailFast        = "FIREFLY_BATCH_FAIL_FAST"
	EnvDiscoveryEnabled     = "FIREFLY_DISCOVERY_ENABLED"
	EnvPort                 = "PORT"
	EnvDevMode              = "DEV_MODE"
)

// DefaultExcludedParameterKeys lists parameter keys redacted from audit
// entries before persistence.
var DefaultExcludedParameterKeys = []string{"password", "secret", "token", "apiKey", "authorization"}

// DefaultResultCacheTTL mirrors orchestration.persistence.result-cache-ttl-seconds.
const DefaultResultCacheTTL = 1 * time.Hour
