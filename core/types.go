package core

import "time"

// Strategy is the merge policy combining caller-supplied source data with
// provider-mapped data during enrichment.
type Strategy string

const (
	StrategyEnhance Strategy = "ENHANCE"
	StrategyMerge   Strategy = "MERGE"
	StrategyReplace Strategy = "REPLACE"
	StrategyRaw     Strategy = "RAW"
)

// EnricherMetadata describes a registered enricher. Owned by the enricher
// class; constructed once at startup and never mutated.
type EnricherMetadata struct {
	ProviderName string
	TenantID     string
	Type         string
	Description  string
	Version      string
	Tags         []string
	Priority     int
	Enabled      bool
}

// NewEnricherMetadata fills in the spec defaults (TenantID=global tenant,
// Version="1.0.0", Priority=50, Enabled=true) for any zero-valued field.
func NewEnricherMetadata(m EnricherMetadata) EnricherMetadata {
	if m.TenantID == "" {
		m.TenantID = GlobalTenantID
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	if m.Priority == 0 {
		m.Priority = 50
	}
	return m
}

// EnrichmentRequest is created by the caller and consumed by a single
// enricher. It is never mutated after construction.
type EnrichmentRequest struct {
	Type          string                 `json:"type"`
	TenantID      string                 `json:"tenantId"`
	SourceData    map[string]interface{} `json:"sourceData"`
	Parameters    map[string]interface{} `json:"parameters"`
	Strategy      Strategy               `json:"strategy"`
	RequestID     string                 `json:"requestId,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// RequireParam returns the named parameter or a Validation error.
func (r *EnrichmentRequest) RequireParam(key string) (interface{}, error) {
	if r.Parameters == nil {
		return nil, NewFrameworkError("EnrichmentRequest.RequireParam", KindValidation,
			&FrameworkError{Message: "missing required parameter: " + key, Err: ErrValidationFailed})
	}
	v, ok := r.Parameters[key]
	if !ok {
		return nil, NewFrameworkError("EnrichmentRequest.RequireParam", KindValidation,
			&FrameworkError{Message: "missing required parameter: " + key, Err: ErrValidationFailed})
	}
	return v, nil
}

// EnrichmentResponse is emitted exactly once per EnrichmentRequest.
type EnrichmentResponse struct {
	Success        bool                   `json:"success"`
	EnrichedData   map[string]interface{} `json:"enrichedData,omitempty"`
	ProviderName   string                 `json:"providerName,omitempty"`
	Type           string                 `json:"type"`
	Strategy       Strategy               `json:"strategy"`
	FieldsEnriched int                    `json:"fieldsEnriched"`
	Error          string                 `json:"error,omitempty"`
	CorrelationID  string                 `json:"correlationId,omitempty"`
	DurationMillis int64                  `json:"durationMillis"`
}

// LineageOperation classifies what produced a LineageRecord.
type LineageOperation string

const (
	LineageEnrichment     LineageOperation = "ENRICHMENT"
	LineageTransformation LineageOperation = "TRANSFORMATION"
	LineageJobCollection  LineageOperation = "JOB_COLLECTION"
	LineageCustom         LineageOperation = "CUSTOM"
)

// LineageRecord is an immutable, append-only provenance entry.
type LineageRecord struct {
	RecordID     string
	EntityID     string
	SourceSystem string
	Operation    LineageOperation
	OperatorID   string
	Timestamp    time.Time
	InputHash    string
	OutputHash   string
	TraceID      string
	Metadata     map[string]interface{}
}

// Severity ranks a QualityResult's impact.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// QualityResult is the outcome of evaluating one quality rule.
type QualityResult struct {
	RuleName    string
	Passed      bool
	Severity    Severity
	Message     string
	FieldName   string
	ActualValue interface{}
}

// QualityReport aggregates the results of a quality evaluation run.
// Passed is true iff no result has Passed=false and Severity=CRITICAL.
type QualityReport struct {
	Passed      bool
	TotalRules  int
	PassedRules int
	FailedRules int
	Results     []QualityResult
	Timestamp   time.Time
}

// Failures returns the results that did not pass.
func (r QualityReport) Failures() []QualityResult {
	out := make([]QualityResult, 0, r.FailedRules)
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// BySeverity returns all results of the given severity.
func (r QualityReport) BySeverity(s Severity) []QualityResult {
	out := make([]QualityResult, 0)
	for _, res := range r.Results {
		if res.Severity == s {
			out = append(out, res)
		}
	}
	return out
}

// JobStage is one phase of the asynchronous job lifecycle. ALL denotes
// single-shot synchronous execution.
type JobStage string

const (
	StageStart   JobStage = "START"
	StageCheck   JobStage = "CHECK"
	StageCollect JobStage = "COLLECT"
	StageResult  JobStage = "RESULT"
	StageStop    JobStage = "STOP"
	StageAll     JobStage = "ALL"
)

// JobExecutionStatus is the terminal or in-flight state of a job execution.
type JobExecutionStatus string

const (
	JobRunning   JobExecutionStatus = "RUNNING"
	JobSucceeded JobExecutionStatus = "SUCCEEDED"
	JobFailed    JobExecutionStatus = "FAILED"
	JobTimedOut  JobExecutionStatus = "TIMED_OUT"
	JobAborted   JobExecutionStatus = "ABORTED"
)

// IsTerminal reports whether the status will not transition further.
func (s JobExecutionStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobTimedOut, JobAborted:
		return true
	}
	return false
}

// JobStageRequest drives one call into the Job Stage Service.
type JobStageRequest struct {
	Stage          JobStage
	JobType        string
	Parameters     map[string]interface{}
	ExecutionID    string
	RequestID      string
	Initiator      string
	Metadata       map[string]interface{}
	TargetDTOClass string
	MapperName     string
}

// Validate enforces the §3 per-stage field invariants.
func (r *JobStageRequest) Validate() error {
	switch r.Stage {
	case StageStart:
		if r.JobType == "" || r.Parameters == nil {
			return NewFrameworkError("JobStageRequest.Validate", KindValidation,
				&FrameworkError{Message: "START requires jobType and parameters", Err: ErrValidationFailed})
		}
	case StageCheck, StageCollect, StageStop:
		if r.ExecutionID == "" {
			return NewFrameworkError("JobStageRequest.Validate", KindValidation,
				&FrameworkError{Message: string(r.Stage) + " requires executionId", Err: ErrValidationFailed})
		}
	case StageResult:
		if r.ExecutionID == "" {
			return NewFrameworkError("JobStageRequest.Validate", KindValidation,
				&FrameworkError{Message: "RESULT requires executionId", Err: ErrValidationFailed})
		}
		if r.TargetDTOClass == "" {
			return NewFrameworkError("JobStageRequest.Validate", KindValidation,
				&FrameworkError{Message: "RESULT requires targetDtoClass", Err: ErrValidationFailed})
		}
	}
	return nil
}

// JobStageResponse is the uniform envelope returned from every stage call.
type JobStageResponse struct {
	Stage              JobStage               `json:"stage"`
	ExecutionID        string                 `json:"executionId"`
	Status             JobExecutionStatus     `json:"status"`
	Success            bool                   `json:"success"`
	Message            string                 `json:"message,omitempty"`
	ProgressPercentage *int                   `json:"progressPercentage,omitempty"`
	Data               map[string]interface{} `json:"data,omitempty"`
	Error              string                 `json:"error,omitempty"`
	Timestamp          time.Time              `json:"timestamp"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// AuditEventType classifies a JobAuditEntry.
type AuditEventType string

const (
	EventOperationStarted      AuditEventType = "OPERATION_STARTED"
	EventOperationCompleted    AuditEventType = "OPERATION_COMPLETED"
	EventOperationFailed       AuditEventType = "OPERATION_FAILED"
	EventOperationRetried      AuditEventType = "OPERATION_RETRIED"
	EventCircuitBreakerOpened  AuditEventType = "CIRCUIT_BREAKER_OPENED"
	EventCircuitBreakerClosed  AuditEventType = "CIRCUIT_BREAKER_CLOSED"
	EventRateLimitExceeded     AuditEventType = "RATE_LIMIT_EXCEEDED"
	EventStatusChanged         AuditEventType = "STATUS_CHANGED"
	EventCustom                AuditEventType = "CUSTOM"
)

// JobAuditEntry is an append-only audit trail row.
type JobAuditEntry struct {
	AuditID           string
	ExecutionID       string
	RequestID         string
	Stage             JobStage
	EventType         AuditEventType
	Status            JobExecutionStatus
	Timestamp         time.Time
	Initiator         string
	JobType           string
	InputParameters   map[string]interface{}
	OutputData        map[string]interface{}
	ErrorMessage      string
	ErrorStackTrace   string
	DurationMs        *int64
	OrchestratorType  string
	Metadata          map[string]interface{}
	TraceID           string
	SpanID            string
	ResiliencyApplied bool
	RetryAttempts     int
}

// JobExecutionResult is the single row kept per executionId.
type JobExecutionResult struct {
	ResultID           string
	ExecutionID        string
	RequestID          string
	JobType            string
	Status             JobExecutionStatus
	StartTime          time.Time
	EndTime            *time.Time
	Duration           *time.Duration
	RawOutput          map[string]interface{}
	TransformedOutput  map[string]interface{}
	TargetDTOClass     string
	MapperName         string
	ErrorMessage       string
	ProgressPercentage *int
	RetryAttempts      int
	Cacheable          bool
	TTLSeconds         *int64
	ExpiresAt          *time.Time
	DataSizeBytes      int64
	TraceID            string
	SpanID             string
	Tags               []string
}

// CacheableAndValid reports whether the result may be served from cache:
// Cacheable is set and ExpiresAt is unset or still in the future.
func (r *JobExecutionResult) CacheableAndValid(now time.Time) bool {
	if !r.Cacheable {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}
