package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/matcher"
	"github.com/khanglvm/tooldb/internal/registry"
)

// Response messages.
const (
	msgInvalidRequest   = "invalid request"
	msgNotFound         = "not found"
	msgStoreUnavailable = "store unavailable"
	msgInternal         = "internal error"
)

type messageResponse struct {
	Message string `json:"message"`
}

type addResponse struct {
	Tool json.RawMessage `json:"tool"`
}

type matchResponse struct {
	Name string `json:"name"`
}

// handleAdd registers the tool carried in the request envelope and echoes
// the submitted tool object back.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Debug("failed to read request body", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req, err := registry.ParseRequest(body)
	if err != nil {
		s.logger.Debug("rejected registration", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if _, err := s.svc.Register(r.Context(), req.Tool); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addResponse{Tool: req.Raw})
}

// handleMatch resolves the task query parameter. An absent parameter is the
// empty query.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")

	name, err := s.svc.Match(r.Context(), task)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchResponse{Name: name})
}

// writeError maps a matcher error to its status and message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, matcher.ErrInvalidTool):
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
	case errors.Is(err, matcher.ErrNoMatch):
		writeMessage(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, matcher.ErrStore):
		s.logger.Error("store unavailable", zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, msgStoreUnavailable)
	default:
		s.logger.Error("unexpected error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
