package server

import (
	"errors"
	"net/http"

	"github.com/psychon7/Triage-AI/internal/approval"
	"github.com/psychon7/Triage-AI/internal/pipeline"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps gateway errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrMissingProblem),
		errors.Is(err, pipeline.ErrInvalidStage),
		errors.Is(err, pipeline.ErrStageMismatch),
		errors.Is(err, pipeline.ErrMissingFeedback),
		errors.Is(err, pipeline.ErrAlreadyPaused),
		errors.Is(err, pipeline.ErrNotPaused),
		errors.Is(err, pipeline.ErrAlreadyComplete),
		errors.Is(err, approval.ErrPolicyDenied):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeAPIJSONStatus(w, status, errorResponse{Error: msg})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
