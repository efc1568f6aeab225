package jobs

import (
	"context"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/resilience"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/telemetry"
	"github.com/google/uuid"
)

// StageService implements the §4.14 job stage service: a uniform envelope
// (validate -> audit -> resiliency-wrapped stage handler -> audit -> event)
// around START/CHECK/COLLECT/RESULT/STOP, plus the ALL synchronous
// shortcut that runs START through RESULT in one call.
type StageService struct {
	orchestrator core.JobOrchestrator
	audit        core.JobAuditRepository
	results      core.JobExecutionResultRepository
	mappers      *MapperRegistry
	decorator    *resilience.Decorator
	events       core.EventPublisher
	publish      bool
	telemetry    core.Telemetry
	logger       core.Logger

	resultCacheTTL time.Duration
	pollInterval   time.Duration
	syncTimeout    time.Duration
}

// StageServiceConfig assembles a StageService's dependencies and timing.
type StageServiceConfig struct {
	Orchestrator   core.JobOrchestrator
	Audit          core.JobAuditRepository
	Results        core.JobExecutionResultRepository
	Mappers        *MapperRegistry
	Decorator      *resilience.Decorator
	Events         core.EventPublisher
	PublishEvents  bool
	Telemetry      core.Telemetry
	Logger         core.Logger
	ResultCacheTTL time.Duration
	PollInterval   time.Duration
	SyncTimeout    time.Duration
}

// NewStageService builds a StageService from cfg, filling in package
// defaults for any zero-valued timing field.
func NewStageService(cfg StageServiceConfig) *StageService {
	s := &StageService{
		orchestrator:   cfg.Orchestrator,
		audit:          cfg.Audit,
		results:        cfg.Results,
		mappers:        cfg.Mappers,
		decorator:      cfg.Decorator,
		events:         cfg.Events,
		publish:        cfg.PublishEvents,
		telemetry:      cfg.Telemetry,
		logger:         cfg.Logger,
		resultCacheTTL: cfg.ResultCacheTTL,
		pollInterval:   cfg.PollInterval,
		syncTimeout:    cfg.SyncTimeout,
	}
	if s.telemetry == nil {
		s.telemetry = &core.NoOpTelemetry{}
	}
	if s.logger == nil {
		s.logger = &core.NoOpLogger{}
	}
	if s.resultCacheTTL <= 0 {
		s.resultCacheTTL = core.DefaultResultCacheTTL
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 200 * time.Millisecond
	}
	if s.syncTimeout <= 0 {
		s.syncTimeout = 30 * time.Second
	}
	return s
}

// Execute runs one JobStageRequest through the full envelope.
func (s *StageService) Execute(ctx context.Context, req core.JobStageRequest) core.JobStageResponse {
	if err := req.Validate(); err != nil {
		return s.errorResponse(req, err)
	}

	ctx, span := s.telemetry.StartSpan(ctx, "jobs.stage."+string(req.Stage))
	defer span.End()

	start := time.Now()
	s.recordAudit(ctx, req, core.EventOperationStarted, core.JobRunning, nil, "", nil)

	var resp core.JobStageResponse
	var err error

	switch req.Stage {
	case core.StageStart:
		resp, err = s.doStart(ctx, req)
	case core.StageCheck:
		resp, err = s.doCheck(ctx, req)
	case core.StageCollect:
		resp, err = s.doCollect(ctx, req)
	case core.StageResult:
		resp, err = s.doResult(ctx, req)
	case core.StageStop:
		resp, err = s.doStop(ctx, req)
	case core.StageAll:
		resp, err = s.doAll(ctx, req)
	default:
		err = core.NewFrameworkError("StageService.Execute", core.KindValidation,
			&core.FrameworkError{Message: "unknown stage: " + string(req.Stage), Err: core.ErrValidationFailed})
	}

	duration := time.Since(start).Milliseconds()
	if err != nil {
		span.RecordError(err)
		resp = s.errorResponse(req, err)
		s.recordAudit(ctx, req, core.EventOperationFailed, core.JobFailed, nil, err.Error(), &duration)
		s.publishEvent(ctx, failureTopic(req.Stage), resp)
		return resp
	}

	s.recordAudit(ctx, req, core.EventOperationCompleted, resp.Status, resp.Data, "", &duration)
	s.publishEvent(ctx, successTopic(req.Stage), resp)
	return resp
}

func (s *StageService) doStart(ctx context.Context, req core.JobStageRequest) (core.JobStageResponse, error) {
	var executionID string
	err := s.decorator.Execute(ctx, func(ctx context.Context) error {
		id, err := s.orchestrator.StartJob(ctx, core.JobExecutionRequest{
			JobDefinition: req.JobType,
			Input:         req.Parameters,
			RequestID:     req.RequestID,
			Initiator:     req.Initiator,
			Metadata:      req.Metadata,
		})
		executionID = id
		return err
	})
	if err != nil {
		return core.JobStageResponse{}, err
	}

	if s.results != nil {
		tc := telemetry.GetTraceContext(ctx)
		_ = s.results.Upsert(ctx, core.JobExecutionResult{
			ResultID:       uuid.NewString(),
			ExecutionID:    executionID,
			RequestID:      req.RequestID,
			JobType:        req.JobType,
			Status:         core.JobRunning,
			StartTime:      time.Now(),
			TargetDTOClass: req.TargetDTOClass,
			MapperName:     req.MapperName,
			TraceID:        tc.TraceID,
			SpanID:         tc.SpanID,
		})
	}

	return core.JobStageResponse{
		Stage:       core.StageStart,
		ExecutionID: executionID,
		Status:      core.JobRunning,
		Success:     true,
		Timestamp:   time.Now(),
		Data:        map[string]interface{}{"executionId": executionID},
	}, nil
}

func (s *StageService) doCheck(ctx context.Context, req core.JobStageRequest) (core.JobStageResponse, error) {
	var exec *core.JobExecution
	err := s.decorator.Execute(ctx, func(ctx context.Context) error {
		e, err := s.orchestrator.CheckJobStatus(ctx, req.ExecutionID)
		exec = e
		return err
	})
	if err != nil {
		return core.JobStageResponse{}, err
	}

	return core.JobStageResponse{
		Stage:              core.StageCheck,
		ExecutionID:        req.ExecutionID,
		Status:             exec.Status,
		Success:            true,
		ProgressPercentage: exec.ProgressPercentage,
		Timestamp:          time.Now(),
	}, nil
}

func (s *StageService) doCollect(ctx context.Context, req core.JobStageRequest) (core.JobStageResponse, error) {
	var exec *core.JobExecution
	err := s.decorator.Execute(ctx, func(ctx context.Context) error {
		e, err := s.orchestrator.GetJobExecution(ctx, req.ExecutionID)
		exec = e
		return err
	})
	if err != nil {
		return core.JobStageResponse{}, err
	}

	if !exec.Status.IsTerminal() {
		return core.JobStageResponse{
			Stage: core.StageCollect, ExecutionID: req.ExecutionID, Status: exec.Status,
			Success: true, Timestamp: time.Now(),
			Message: "job still running",
		}, nil
	}

	if s.results != nil {
		now := time.Now()
		expires := now.Add(s.resultCacheTTL)
		_ = s.results.Upsert(ctx, core.JobExecutionResult{
			ResultID:       uuid.NewString(),
			ExecutionID:    req.ExecutionID,
			JobType:        req.JobType,
			Status:         exec.Status,
			StartTime:      now,
			EndTime:        &now,
			RawOutput:      exec.RawOutput,
			TargetDTOClass: req.TargetDTOClass,
			MapperName:     req.MapperName,
			Cacheable:      true,
			ExpiresAt:      &expires,
		})
	}

	return core.JobStageResponse{
		Stage: core.StageCollect, ExecutionID: req.ExecutionID, Status: exec.Status,
		Success: exec.Status == core.JobSucceeded, Timestamp: time.Now(), Data: exec.RawOutput,
	}, nil
}

func (s *StageService) doResult(ctx context.Context, req core.JobStageRequest) (core.JobStageResponse, error) {
	now := time.Now()

	if s.results != nil {
		if res, found, err := s.results.Get(ctx, req.ExecutionID); err == nil && found {
			if res.CacheableAndValid(now) && res.TransformedOutput != nil {
				return core.JobStageResponse{
					Stage: core.StageResult, ExecutionID: req.ExecutionID, Status: res.Status,
					Success: res.Status == core.JobSucceeded, Timestamp: now, Data: res.TransformedOutput,
				}, nil
			}
		}
	}

	var exec *core.JobExecution
	err := s.decorator.Execute(ctx, func(ctx context.Context) error {
		e, err := s.orchestrator.GetJobExecution(ctx, req.ExecutionID)
		exec = e
		return err
	})
	if err != nil {
		return core.JobStageResponse{}, err
	}
	if !exec.Status.IsTerminal() {
		return core.JobStageResponse{
			Stage: core.StageResult, ExecutionID: req.ExecutionID, Status: exec.Status,
			Success: true, Timestamp: now, Message: "job still running",
		}, nil
	}

	mapped := exec.RawOutput
	if s.mappers != nil && req.TargetDTOClass != "" {
		mapper, err := s.mappers.Get(req.TargetDTOClass)
		if err != nil {
			return core.JobStageResponse{}, err
		}
		mapped, err = mapper.Map(ctx, exec.RawOutput)
		if err != nil {
			return core.JobStageResponse{}, core.NewFrameworkError("StageService.doResult", core.KindProvider,
				&core.FrameworkError{ID: req.TargetDTOClass, Message: "mapper failed: " + err.Error(), Err: err})
		}
	}

	if s.results != nil {
		expires := now.Add(s.resultCacheTTL)
		_ = s.results.Upsert(ctx, core.JobExecutionResult{
			ResultID:          uuid.NewString(),
			ExecutionID:       req.ExecutionID,
			JobType:           req.JobType,
			Status:            exec.Status,
			StartTime:         now,
			EndTime:           &now,
			RawOutput:         exec.RawOutput,
			TransformedOutput: mapped,
			TargetDTOClass:    req.TargetDTOClass,
			MapperName:        req.MapperName,
			Cacheable:         true,
			ExpiresAt:         &expires,
		})
	}

	return core.JobStageResponse{
		Stage: core.StageResult, ExecutionID: req.ExecutionID, Status: exec.Status,
		Success: exec.Status == core.JobSucceeded, Timestamp: now, Data: mapped,
	}, nil
}

func (s *StageService) doStop(ctx context.Context, req core.JobStageRequest) (core.JobStageResponse, error) {
	err := s.decorator.Execute(ctx, func(ctx context.Context) error {
		return s.orchestrator.StopJob(ctx, req.ExecutionID, "stop requested")
	})
	if err != nil {
		return core.JobStageResponse{}, err
	}

	status := core.JobAborted
	if exec, err := s.orchestrator.CheckJobStatus(ctx, req.ExecutionID); err == nil {
		status = exec.Status
	}

	return core.JobStageResponse{
		Stage: core.StageStop, ExecutionID: req.ExecutionID, Status: status,
		Success: true, Timestamp: time.Now(),
	}, nil
}

// doAll runs START then polls CHECK until the job reaches a terminal state
// or s.syncTimeout elapses, then runs RESULT — the synchronous "ALL" stage
// for callers that want one blocking round trip (§4.14).
func (s *StageService) doAll(ctx context.Context, req core.JobStageRequest) (core.JobStageResponse, error) {
	startResp, err := s.doStart(ctx, req)
	if err != nil {
		return core.JobStageResponse{}, err
	}
	executionID := startResp.ExecutionID

	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		exec, err := s.orchestrator.CheckJobStatus(ctx, executionID)
		if err != nil {
			return core.JobStageResponse{}, err
		}
		if exec.Status.IsTerminal() {
			break
		}
		select {
		case <-ctx.Done():
			return core.JobStageResponse{
				Stage: core.StageAll, ExecutionID: executionID, Status: core.JobTimedOut,
				Success: false, Timestamp: time.Now(), Error: "synchronous job execution timed out",
			}, nil
		case <-ticker.C:
		}
	}

	resultReq := req
	resultReq.Stage = core.StageResult
	resultReq.ExecutionID = executionID
	resp, err := s.doResult(ctx, resultReq)
	if err != nil {
		return core.JobStageResponse{}, err
	}
	resp.Stage = core.StageAll
	return resp, nil
}

func (s *StageService) errorResponse(req core.JobStageRequest, err error) core.JobStageResponse {
	return core.JobStageResponse{
		Stage:       req.Stage,
		ExecutionID: req.ExecutionID,
		Status:      core.JobFailed,
		Success:     false,
		Error:       err.Error(),
		Timestamp:   time.Now(),
	}
}

func (s *StageService) recordAudit(ctx context.Context, req core.JobStageRequest, eventType core.AuditEventType, status core.JobExecutionStatus, output map[string]interface{}, errMsg string, durationMs *int64) {
	if s.audit == nil {
		return
	}
	tc := telemetry.GetTraceContext(ctx)
	_ = s.audit.Append(ctx, core.JobAuditEntry{
		AuditID:         uuid.NewString(),
		ExecutionID:     req.ExecutionID,
		RequestID:       req.RequestID,
		Stage:           req.Stage,
		EventType:       eventType,
		Status:          status,
		Timestamp:       time.Now(),
		Initiator:       req.Initiator,
		JobType:         req.JobType,
		InputParameters: req.Parameters,
		OutputData:      output,
		ErrorMessage:    errMsg,
		DurationMs:      durationMs,
		Metadata:        req.Metadata,
		TraceID:         tc.TraceID,
		SpanID:          tc.SpanID,
	})
}

func (s *StageService) publishEvent(ctx context.Context, topic string, resp core.JobStageResponse) {
	if s.events == nil || !s.publish {
		return
	}
	s.events.Publish(ctx, topic, resp)
}

func successTopic(stage core.JobStage) string {
	switch stage {
	case core.StageStart:
		return core.TopicJobStarted
	case core.StageCheck:
		return core.TopicJobChecked
	case core.StageCollect:
		return core.TopicJobCollected
	case core.StageResult:
		return core.TopicJobResult
	case core.StageStop:
		return core.TopicJobStopped
	default:
		return core.TopicJobResult
	}
}

func failureTopic(stage core.JobStage) string {
	return core.TopicJobFailed
}
