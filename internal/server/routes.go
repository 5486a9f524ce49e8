package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// handleHealth returns OK while the process is serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady runs every configured check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(s.cfg.Checks))}
	status := http.StatusOK

	names := make([]string, 0, len(s.cfg.Checks))
	for name := range s.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.cfg.Checks[name](r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "unhealthy"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleExtract runs the pipeline for one object, the same way an upload
// notification would.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var ref storage.ObjectRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if ref.Key == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "key is required"})
		return
	}

	res, err := s.cfg.Processor.Process(r.Context(), ref)
	if err != nil {
		class := pipeline.Classify(err)
		writeJSON(w, statusFor(class), ErrorResponse{Error: err.Error(), Class: string(class)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(class pipeline.Class) int {
	switch class {
	case pipeline.ClassInput:
		return http.StatusUnprocessableEntity
	case pipeline.ClassExtraction, pipeline.ClassUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
