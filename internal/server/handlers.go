package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/psychon7/Triage-AI/internal/pipeline"
)

const maxBodyBytes = 1 << 20

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.gateway.Submit(r.Context(), req.Problem)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.gateway.GetStatus(r.PathValue("taskId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, st)
}

func (s *Server) handleStageOutput(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.GetStageOutput(r.PathValue("taskId"), r.PathValue("stage"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.GetFinalResult(r.PathValue("taskId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.gateway.Decide(r.Context(), r.PathValue("taskId"), r.PathValue("stage"), req.IsApproved(), req.Feedback)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.gateway.Pause(r.Context(), r.PathValue("taskId"), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.gateway.Resume(r.Context(), r.PathValue("taskId"), req.ContinueFrom)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAPIJSON(w, res)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.gateway.ListTasks()
	if tasks == nil {
		tasks = []pipeline.Summary{}
	}
	writeAPIJSON(w, tasks)
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, pipeline.Describe())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, HealthResponse{Status: "ok", Version: s.version})
}
