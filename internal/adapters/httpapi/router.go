package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
	"github.com/kirillkom/personal-ai-assistant/internal/observability/metrics"
)

// Router exposes the single query entry point over HTTP, validating
// requests against openapi.yaml before invoking the pipeline.
type Router struct {
	queryService ports.QueryService
	validator    *schemaValidator
	logger       *slog.Logger
	metrics      *metrics.HTTPServerMetrics
	service      string
}

func NewRouter(queryService ports.QueryService, logger *slog.Logger, m *metrics.HTTPServerMetrics, service string) (*Router, error) {
	validator, err := loadSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		queryService: queryService,
		validator:    validator,
		logger:       logger,
		metrics:      m,
		service:      service,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.runQuery)

	var handler http.Handler = mux
	handler = accessLogMiddleware(rt.logger, handler)
	handler = metricsMiddleware(rt.metrics, rt.service, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) runQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var raw map[string]any
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if err := rt.validator.ValidateQueryRequest(raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	question, _ := raw["question"].(string)
	if strings.TrimSpace(question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question must not be blank"})
		return
	}

	answer, err := rt.queryService.RunQuery(r.Context(), question)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
