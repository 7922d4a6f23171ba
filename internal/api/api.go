// Package api exposes the analysis service over HTTP. The transport is a
// thin collaborator: it validates inputs, translates them into scheduler
// submissions, and maps coded errors onto status codes. No pipeline logic
// lives here.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/fetch"
	"github.com/depscout/depscout/pkg/gradle"
	"github.com/depscout/depscout/pkg/scheduler"
)

// Jobs is the scheduler surface the API depends on.
type Jobs interface {
	Submit(req scheduler.Request) (string, error)
	Status(id string) (scheduler.Job, error)
	Cancel(id string) error
}

// Service wires the job scheduler to HTTP handlers.
type Service struct {
	jobs   Jobs
	logger *log.Logger
}

// NewService creates the HTTP service.
func NewService(jobs Jobs, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// Router builds the chi router with all service routes mounted.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/status/{id}", s.handleStatus)
	r.Delete("/jobs/{id}", s.handleCancel)
	return r
}

// analyzeRequest is the submission payload.
type analyzeRequest struct {
	// Repository in owner/name form.
	Repository string `json:"repository"`

	// Dependency is the target artifact name.
	Dependency string `json:"dependency"`

	// Ref optionally pins a branch, tag, or commit. Empty falls back to the
	// repository default branches.
	Ref string `json:"ref,omitempty"`

	// Credential is an optional access token for private repositories. It is
	// never echoed back.
	Credential string `json:"credential,omitempty"`

	// MatchMode is "exact" (default) or "substring".
	MatchMode string `json:"match_mode,omitempty"`
}

type analyzeResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// jobResponse is the status payload. Credential material never appears.
type jobResponse struct {
	ID          string         `json:"id"`
	Repository  string         `json:"repository"`
	Dependency  string         `json:"dependency"`
	State       string         `json:"state"`
	Matches     []gradle.Match `json:"matches,omitempty"`
	Descriptors []string       `json:"descriptors,omitempty"`
	Note        string         `json:"note,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed request body"))
		return
	}

	sub, err := buildRequest(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.jobs.Submit(sub)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, analyzeResponse{JobID: id, State: string(scheduler.StateQueued)})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Status(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobs.Cancel(id); err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.jobs.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// buildRequest validates the payload and maps it onto a scheduler request.
func buildRequest(req analyzeRequest) (scheduler.Request, error) {
	if err := errors.ValidateRepository(req.Repository); err != nil {
		return scheduler.Request{}, err
	}
	if err := errors.ValidateDependencyName(req.Dependency); err != nil {
		return scheduler.Request{}, err
	}
	if err := errors.ValidateRef(req.Ref); err != nil {
		return scheduler.Request{}, err
	}

	mode := gradle.MatchMode(req.MatchMode)
	if req.MatchMode == "" {
		mode = gradle.MatchExact
	} else if !gradle.ValidMatchModes[mode] {
		return scheduler.Request{}, errors.New(errors.ErrCodeInvalidMatchMode,
			"unknown match mode %q", req.MatchMode)
	}

	owner, repo, _ := strings.Cut(req.Repository, "/")
	return scheduler.Request{
		Spec: fetch.RepositorySpec{
			Owner: owner,
			Repo:  repo,
			Ref:   req.Ref,
			Token: req.Credential,
		},
		Target: req.Dependency,
		Mode:   mode,
	}, nil
}

func toJobResponse(job scheduler.Job) jobResponse {
	resp := jobResponse{
		ID:          job.ID,
		Repository:  job.Request.Spec.Slug(),
		Dependency:  job.Request.Target,
		State:       string(job.State),
		Matches:     job.Matches,
		Descriptors: job.Descriptors,
		Note:        job.Note,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
	}
	if !job.StartedAt.IsZero() {
		t := job.StartedAt
		resp.StartedAt = &t
	}
	if !job.CompletedAt.IsZero() {
		t := job.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// statusFor maps coded errors onto HTTP statuses. Unknown errors are 500s.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidRepository,
		errors.ErrCodeInvalidDependency, errors.ErrCodeInvalidMatchMode:
		return http.StatusBadRequest
	case errors.ErrCodeJobNotFound:
		return http.StatusNotFound
	case errors.ErrCodeCapacityExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logRequests logs one line per request with latency and status.
func (s *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
