package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleHealth returns the server health status. Degraded components are
// reported individually; the endpoint itself always answers 200 so that
// monitoring can read the detail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.GetStats()

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}

	health := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"parameters": stats.TotalParameters,
		"by_status":  byStatus,
		"endpoints":  len(stats.ByEndpoint),
	}

	if s.engine != nil {
		health["sessions"] = s.engine.Sessions()
	}
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
		} else {
			health["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			health["mqtt"] = "connected"
		} else {
			health["mqtt"] = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, health)
}

// handleListParameters returns every exported parameter.
func (s *Server) handleListParameters(w http.ResponseWriter, _ *http.Request) {
	params := s.exporter.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"parameters": toParameterViews(params),
		"count":      len(params),
	})
}

// handleListEndpoints returns the known endpoint names.
func (s *Server) handleListEndpoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": s.registry.Endpoints(),
	})
}

// handleListEndpointParameters returns one endpoint's parameters.
func (s *Server) handleListEndpointParameters(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpoint")

	params, err := s.exporter.ListEndpoint(endpointID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"endpoint":   endpointID,
		"parameters": toParameterViews(params),
		"count":      len(params),
	})
}

// handleGetParameter returns one parameter by endpoint and path.
func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	endpointID, path, ok := parameterRef(w, r)
	if !ok {
		return
	}

	p, err := s.exporter.Get(endpointID, path)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toParameterView(p))
}

// handleWriteParameter validates and dispatches a write, then returns the
// confirmed parameter state.
func (s *Server) handleWriteParameter(w http.ResponseWriter, r *http.Request) {
	endpointID, path, ok := parameterRef(w, r)
	if !ok {
		return
	}

	value, ok := decodeWriteBody(w, r)
	if !ok {
		return
	}

	p, err := s.exporter.RequestWrite(r.Context(), endpointID, path, value)
	if err != nil {
		s.logger.Warn("parameter write failed",
			"endpoint", endpointID,
			"path", path,
			"error", err,
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toParameterView(p))
}

// handleSessions returns the sync session status for every endpoint.
func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.engine.Sessions(),
	})
}

// parameterRef extracts the endpoint and parameter path from the URL.
func parameterRef(w http.ResponseWriter, r *http.Request) (endpointID, path string, ok bool) {
	endpointID = chi.URLParam(r, "endpoint")
	path = strings.Trim(chi.URLParam(r, "*"), "/")
	if endpointID == "" || path == "" {
		writeBadRequest(w, "endpoint and parameter path are required")
		return "", "", false
	}
	return endpointID, path, true
}

// decodeWriteBody parses a {"value": ...} request body. Numbers are kept as
// json.Number so integer precision survives until type coercion.
func decodeWriteBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return nil, false
		}
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, "request body is required")
			return nil, false
		}
		writeBadRequest(w, "invalid JSON body")
		return nil, false
	}

	value, present := body["value"]
	if !present {
		writeBadRequest(w, `request body must contain a "value" field`)
		return nil, false
	}

	return value, true
}
