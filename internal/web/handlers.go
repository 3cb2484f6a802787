package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"radiobot/internal/media"
	"radiobot/internal/orchestrator"
)

type FetchRequest struct {
	Query    string `json:"query"`
	Source   string `json:"source,omitempty"`
	LongForm bool   `json:"long_form,omitempty"`

	// Pick fetches the n-th result of the requester's last search instead
	// of resolving Query.
	Requester string `json:"requester,omitempty"`
	Pick      int    `json:"pick,omitempty"`
}

type SearchRequest struct {
	Requester string `json:"requester"`
	Query     string `json:"query"`
	Source    string `json:"source,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type SearchResult struct {
	N        int    `json:"n"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"`
	Source   string `json:"source"`
}

type JobResponse struct {
	ID          string         `json:"id"`
	Query       string         `json:"query"`
	Source      media.Source   `json:"source"`
	LongForm    bool           `json:"long_form"`
	Status      JobStatus      `json:"status"`
	Error       string         `json:"error,omitempty"`
	Outcome     *media.Outcome `json:"outcome,omitempty"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   *string        `json:"started_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.st.Snapshot())
}

// handleSearch runs a search on one source and stashes the numbered results
// for the requester, to be fetched later with FetchRequest.Pick.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Requester == "" || req.Query == "" {
		http.Error(w, "Requester and query are required", http.StatusBadRequest)
		return
	}

	src := s.st.General.Preferred()
	if req.Source != "" {
		parsed, err := media.ParseSource(req.Source)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		src = parsed
	}

	cands, err := s.orch.Search(r.Context(), src, req.Query, req.Limit)
	if err != nil {
		s.st.General.SetLastError(err.Error())
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.st.General.StashResults(req.Requester, cands)

	results := make([]SearchResult, len(cands))
	for i, c := range cands {
		results[i] = SearchResult{
			N:        i + 1,
			ID:       c.ID,
			Title:    c.Title,
			Artist:   c.Artist,
			Duration: c.Duration,
			Source:   c.Source.String(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Pick > 0 {
		cand, err := s.st.General.TakeResult(req.Requester, req.Pick)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		// The identifier short-circuits the search phase downstream.
		req.Query = cand.ID
		req.Source = cand.Source.String()
	}
	if req.Query == "" {
		http.Error(w, "Query is required", http.StatusBadRequest)
		return
	}

	src := s.st.General.Preferred()
	if req.Source != "" {
		parsed, err := media.ParseSource(req.Source)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		src = parsed
	}

	job := s.jobMgr.CreateJob(req.Query, src, req.LongForm)
	s.logger.Info("Created job %s for query: %s", job.ID, req.Query)

	// Snapshot the response before the worker starts mutating the job.
	resp := s.jobToResponse(job)
	go s.processJob(job)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /api/jobs/{id} or /api/jobs/{id}/cancel
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Handle GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.jobToResponse(job))
		return
	}

	// Handle POST /api/jobs/{id}/cancel
	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel" {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		if job.Cancel != nil {
			job.Cancel()
		}

		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

func (s *Server) handleRadioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := s.radio.Start(s.ctx)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"started": started})
}

func (s *Server) handleRadioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stopped := s.radio.Stop()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"stopped": stopped})
}

func (s *Server) handleRadioSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.radio.Skip()
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "skipped"})
}

type PollRequest struct {
	ID      string   `json:"id"`
	Options []string `json:"options"`
}

type VoteRequest struct {
	Option string `json:"option"`
}

// handlePoll opens a poll on POST and closes the active one on DELETE.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req PollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ID == "" || len(req.Options) == 0 {
			http.Error(w, "Poll id and options are required", http.StatusBadRequest)
			return
		}
		if err := s.st.Voting.Open(req.ID, req.Options); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": req.ID})

	case http.MethodDelete:
		winner, counts, err := s.st.Voting.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"winner": winner,
			"counts": counts,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePollVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.st.Voting.Vote(req.Option); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "counted"})
}

func (s *Server) processJob(job *Job) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Store cancel function in job
	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Cancel = cancel
		j.Status = StatusRunning
	})

	s.logger.Info("Starting job %s", job.ID)

	out, err := s.orch.Download(ctx, orchestrator.Request{
		Query:     job.Query,
		Preferred: job.Source,
		LongForm:  job.LongForm,
	})
	if err != nil {
		s.logger.Error("Job %s failed: %v", job.ID, err)
		s.st.General.SetLastError(err.Error())
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			if j.Status != StatusCancelled {
				j.Status = StatusFailed
			}
			j.Error = err.Error()
		})
		return
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Outcome = &out
	})

	s.logger.Info("Job %s completed: %s", job.ID, out.Meta.DisplayName())
}

func (s *Server) jobToResponse(job *Job) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		Query:     job.Query,
		Source:    job.Source,
		LongForm:  job.LongForm,
		Status:    job.Status,
		Error:     job.Error,
		Outcome:   job.Outcome,
		CreatedAt: job.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	return resp
}
