// Package httpapi implements the fixed HTTP surface (spec.md §6) as plain
// http.HandlerFuncs registered on a *http.ServeMux, grounded on the
// teacher's orchestration.TaskAPIHandler convention: one handler struct per
// resource family, JSON request/response DTOs, a shared writeError helper,
// and a RegisterRoutes method that owns the path table.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/enrichment"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/jobs"
)

// Handler serves the enrichment and job HTTP surfaces over one shared set
// of dependencies.
type Handler struct {
	dispatcher   *enrichment.Dispatcher
	operations   *enrichment.OperationDispatcher
	discovery    *enrichment.Discovery
	stageService *jobs.StageService
	logger       core.Logger
	maxBatchSize int
}

// NewHandler builds a Handler. A nil logger falls back to a no-op logger.
func NewHandler(dispatcher *enrichment.Dispatcher, operations *enrichment.OperationDispatcher, discovery *enrichment.Discovery, stageService *jobs.StageService, maxBatchSize int, logger core.Logger) *Handler {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("httpapi")
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}
	return &Handler{
		dispatcher:   dispatcher,
		operations:   operations,
		discovery:    discovery,
		stageService: stageService,
		logger:       logger,
		maxBatchSize: maxBatchSize,
	}
}

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrichment endpoints
// ═══════════════════════════════════════════════════════════════════════════

// HandleSmart handles POST /api/v1/enrichment/smart.
func (h *Handler) HandleSmart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req core.EnrichmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if req.Type == "" {
		h.writeError(w, http.StatusBadRequest, "type is required", "MISSING_TYPE")
		return
	}
	if req.Strategy == "" {
		req.Strategy = core.StrategyEnhance
	}

	resp, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		h.writeFrameworkError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// smartBatchRequest is the request body for POST /api/v1/enrichment/smart/batch.
type smartBatchRequest struct {
	Requests []core.EnrichmentRequest `json:"requests"`
}

// HandleSmartBatch handles POST /api/v1/enrichment/smart/batch.
func (h *Handler) HandleSmartBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body smartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if len(body.Requests) == 0 {
		h.writeError(w, http.StatusBadRequest, "requests must be non-empty", "EMPTY_BATCH")
		return
	}
	if len(body.Requests) > h.maxBatchSize {
		h.writeError(w, http.StatusBadRequest, "batch exceeds max-batch-size", "BATCH_TOO_LARGE")
		return
	}
	for i, req := range body.Requests {
		if req.Strategy == "" {
			body.Requests[i].Strategy = core.StrategyEnhance
		}
	}

	results := h.dispatcher.DispatchBatch(ctx, body.Requests)
	h.writeJSON(w, http.StatusOK, results)
}

// HandleProviders handles GET /api/v1/enrichment/providers.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")
	h.writeJSON(w, http.StatusOK, h.discovery.ListProviders(typeFilter))
}

// HandleHealth handles GET /api/v1/enrichment/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")
	h.writeJSON(w, http.StatusOK, h.discovery.Health(r.Context(), typeFilter))
}

// HandleOperations handles GET /api/v1/enrichment/operations?type=...
func (h *Handler) HandleOperations(w http.ResponseWriter, r *http.Request) {
	enricherType := r.URL.Query().Get("type")
	tenantID := r.URL.Query().Get("tenantId")
	if enricherType == "" {
		h.writeError(w, http.StatusBadRequest, "type is required", "MISSING_TYPE")
		return
	}
	ops, err := h.operations.Describe(enricherType, tenantID)
	if err != nil {
		h.writeFrameworkError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ops)
}

// operationExecuteRequest is the request body for POST /api/v1/enrichment/operations/execute.
type operationExecuteRequest struct {
	Type        string                 `json:"type"`
	TenantID    string                 `json:"tenantId"`
	OperationID string                 `json:"operationId"`
	Request     map[string]interface{} `json:"request"`
}

// HandleOperationExecute handles POST /api/v1/enrichment/operations/execute.
func (h *Handler) HandleOperationExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body operationExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if body.Type == "" || body.OperationID == "" {
		h.writeError(w, http.StatusBadRequest, "type and operationId are required", "MISSING_FIELD")
		return
	}

	result, err := h.operations.Execute(ctx, body.Type, body.TenantID, body.OperationID, body.Request)
	if err != nil {
		h.writeFrameworkError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleCosts handles GET /api/v1/enrichment/costs.
func (h *Handler) HandleCosts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.discovery.CostReport())
}

// ═══════════════════════════════════════════════════════════════════════════
// Job endpoints
// ═══════════════════════════════════════════════════════════════════════════

// jobStartRequest is the request body for POST /api/v1/jobs/start.
type jobStartRequest struct {
	JobType        string                 `json:"jobType"`
	Parameters     map[string]interface{} `json:"parameters"`
	RequestID      string                 `json:"requestId,omitempty"`
	Initiator      string                 `json:"initiator,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	TargetDTOClass string                 `json:"targetDtoClass,omitempty"`
	MapperName     string                 `json:"mapperName,omitempty"`
}

// HandleJobStart handles POST /api/v1/jobs/start.
func (h *Handler) HandleJobStart(w http.ResponseWriter, r *http.Request) {
	var body jobStartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	resp := h.stageService.Execute(r.Context(), core.JobStageRequest{
		Stage: core.StageStart, JobType: body.JobType, Parameters: body.Parameters,
		RequestID: body.RequestID, Initiator: body.Initiator, Metadata: body.Metadata,
		TargetDTOClass: body.TargetDTOClass, MapperName: body.MapperName,
	})
	h.writeStageResponse(w, resp)
}

// HandleJobCheck handles GET /api/v1/jobs/{executionId}/check.
func (h *Handler) HandleJobCheck(w http.ResponseWriter, r *http.Request) {
	executionID, ok := extractExecutionID(r.URL.Path, "/check")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "executionId is required", "MISSING_EXECUTION_ID")
		return
	}
	resp := h.stageService.Execute(r.Context(), core.JobStageRequest{Stage: core.StageCheck, ExecutionID: executionID})
	h.writeStageResponse(w, resp)
}

// HandleJobCollect handles GET /api/v1/jobs/{executionId}/collect.
func (h *Handler) HandleJobCollect(w http.ResponseWriter, r *http.Request) {
	executionID, ok := extractExecutionID(r.URL.Path, "/collect")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "executionId is required", "MISSING_EXECUTION_ID")
		return
	}
	resp := h.stageService.Execute(r.Context(), core.JobStageRequest{Stage: core.StageCollect, ExecutionID: executionID})
	h.writeStageResponse(w, resp)
}

// HandleJobResult handles GET /api/v1/jobs/{executionId}/result?targetDtoClass=...
func (h *Handler) HandleJobResult(w http.ResponseWriter, r *http.Request) {
	executionID, ok := extractExecutionID(r.URL.Path, "/result")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "executionId is required", "MISSING_EXECUTION_ID")
		return
	}
	resp := h.stageService.Execute(r.Context(), core.JobStageRequest{
		Stage: core.StageResult, ExecutionID: executionID,
		TargetDTOClass: r.URL.Query().Get("targetDtoClass"), MapperName: r.URL.Query().Get("mapperName"),
	})
	h.writeStageResponse(w, resp)
}

// HandleJobStop handles POST /api/v1/jobs/{executionId}/stop.
func (h *Handler) HandleJobStop(w http.ResponseWriter, r *http.Request) {
	executionID, ok := extractExecutionID(r.URL.Path, "/stop")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "executionId is required", "MISSING_EXECUTION_ID")
		return
	}
	resp := h.stageService.Execute(r.Context(), core.JobStageRequest{Stage: core.StageStop, ExecutionID: executionID})
	h.writeStageResponse(w, resp)
}

// HandleExecute handles POST /api/v1/execute, the single-shot synchronous
// "ALL" stage shortcut.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var body jobStartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	resp := h.stageService.Execute(r.Context(), core.JobStageRequest{
		Stage: core.StageAll, JobType: body.JobType, Parameters: body.Parameters,
		RequestID: body.RequestID, Initiator: body.Initiator, Metadata: body.Metadata,
		TargetDTOClass: body.TargetDTOClass, MapperName: body.MapperName,
	})
	h.writeStageResponse(w, resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// Route registration
// ═══════════════════════════════════════════════════════════════════════════

// RegisterRoutes registers every handler on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/enrichment/smart", h.methodGuard(http.MethodPost, h.HandleSmart))
	mux.HandleFunc("/api/v1/enrichment/smart/batch", h.methodGuard(http.MethodPost, h.HandleSmartBatch))
	mux.HandleFunc("/api/v1/enrichment/providers", h.methodGuard(http.MethodGet, h.HandleProviders))
	mux.HandleFunc("/api/v1/enrichment/health", h.methodGuard(http.MethodGet, h.HandleHealth))
	mux.HandleFunc("/api/v1/enrichment/operations", h.methodGuard(http.MethodGet, h.HandleOperations))
	mux.HandleFunc("/api/v1/enrichment/operations/execute", h.methodGuard(http.MethodPost, h.HandleOperationExecute))
	mux.HandleFunc("/api/v1/enrichment/costs", h.methodGuard(http.MethodGet, h.HandleCosts))

	mux.HandleFunc("/api/v1/jobs/start", h.methodGuard(http.MethodPost, h.HandleJobStart))
	mux.HandleFunc("/api/v1/jobs/", h.routeJobSubpath)

	mux.HandleFunc("/api/v1/execute", h.methodGuard(http.MethodPost, h.HandleExecute))
}

func (h *Handler) routeJobSubpath(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/check"):
		h.methodGuard(http.MethodGet, h.HandleJobCheck)(w, r)
	case strings.HasSuffix(r.URL.Path, "/collect"):
		h.methodGuard(http.MethodGet, h.HandleJobCollect)(w, r)
	case strings.HasSuffix(r.URL.Path, "/result"):
		h.methodGuard(http.MethodGet, h.HandleJobResult)(w, r)
	case strings.HasSuffix(r.URL.Path, "/stop"):
		h.methodGuard(http.MethodPost, h.HandleJobStop)(w, r)
	default:
		h.writeError(w, http.StatusNotFound, "unknown job route", "NOT_FOUND")
	}
}

func (h *Handler) methodGuard(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
			return
		}
		next(w, r)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════════════════════════════════════

// extractExecutionID pulls the {executionId} segment out of
// "/api/v1/jobs/{executionId}<suffix>".
func extractExecutionID(path, suffix string) (string, bool) {
	const prefix = "/api/v1/jobs/"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" {
		return "", false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeFrameworkError maps a core.FrameworkError's Kind onto an HTTP status
// per §7's error taxonomy.
func (h *Handler) writeFrameworkError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindValidation:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindRateLimited:
		status = http.StatusTooManyRequests
	case core.KindBulkheadFull, core.KindCircuitOpen:
		status = http.StatusServiceUnavailable
	case core.KindTimeout:
		status = http.StatusGatewayTimeout
	case core.KindFallbackLoop, core.KindProvider:
		status = http.StatusBadGateway
	}
	h.writeError(w, status, err.Error(), string(core.KindOf(err)))
}

// writeStageResponse maps a JobStageResponse's Success/Error onto an HTTP
// status, since the stage service never returns a Go error for
// caller-visible failures (they're folded into the response envelope).
func (h *Handler) writeStageResponse(w http.ResponseWriter, resp core.JobStageResponse) {
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
		if resp.Status == core.JobFailed {
			status = http.StatusInternalServerError
		}
	}
	h.writeJSON(w, status, resp)
}
