// Package web exposes the status and control surface: asynchronous fetch
// jobs, radio start/stop/skip, genre polls, and a websocket status push.
package web

import (
	"context"
	"net/http"

	"radiobot/internal/logger"
	"radiobot/internal/orchestrator"
	"radiobot/internal/radio"
	"radiobot/internal/state"
)

type Server struct {
	ctx    context.Context
	jobMgr *JobManager
	orch   *orchestrator.Orchestrator
	radio  *radio.Controller
	st     *state.State
	logger *logger.Logger
}

func NewServer(ctx context.Context, jobMgr *JobManager, orch *orchestrator.Orchestrator,
	rc *radio.Controller, st *state.State, log *logger.Logger) *Server {
	return &Server{
		ctx:    ctx,
		jobMgr: jobMgr,
		orch:   orch,
		radio:  rc,
		st:     st,
		logger: log,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/fetch", s.handleFetch)
	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobAction)
	mux.HandleFunc("/api/radio/start", s.handleRadioStart)
	mux.HandleFunc("/api/radio/stop", s.handleRadioStop)
	mux.HandleFunc("/api/radio/skip", s.handleRadioSkip)
	mux.HandleFunc("/api/poll", s.handlePoll)
	mux.HandleFunc("/api/poll/vote", s.handlePollVote)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
