package server

import "net/http"

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/status/{taskId}", s.handleStatus)
	mux.HandleFunc("GET /api/stageOutput/{taskId}/{stage}", s.handleStageOutput)
	mux.HandleFunc("GET /api/result/{taskId}", s.handleResult)
	mux.HandleFunc("POST /api/decide/{taskId}/{stage}", s.handleDecide)
	mux.HandleFunc("POST /api/pause/{taskId}", s.handlePause)
	mux.HandleFunc("POST /api/resume/{taskId}", s.handleResume)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/stages", s.handleStages)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return s.corsMiddleware(s.logRequests(mux))
}
