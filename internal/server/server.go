// Package server exposes dataset generation over HTTP: jobs run in the
// background, stream their progress over SSE and are recorded in a run
// store.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/plan"
	"github.com/cwbudde/cogstim/internal/render"
	"github.com/cwbudde/cogstim/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures a Server.
type Options struct {
	Addr string
	// OutputRoot holds one directory per job, named after the job ID.
	OutputRoot string
	// Defaults maps a run kind to the config that request overrides are
	// applied to.
	Defaults map[string]generate.Config
}

// Server represents the HTTP server
type Server struct {
	jobs   *JobManager
	store  store.Store
	opts   Options
	server *http.Server

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new HTTP server. st may be nil, in which case runs are
// not persisted and the /runs endpoints answer 503.
func NewServer(opts Options, st store.Store) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		jobs:    NewJobManager(),
		store:   st,
		opts:    opts,
		baseCtx: ctx,
		stop:    stop,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleCreateJob)
			r.Get("/", s.handleListJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Delete("/", s.handleCancelJob)
				r.Get("/stream", s.handleJobStream)
			})
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleDeleteRun)
		})
		r.Post("/preview", s.handlePreview)
	})
	return r
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.opts.Addr, "output", s.opts.OutputRoot)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cancels running jobs, stops accepting requests and waits for the
// workers to record their runs.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobs.GetRunningJobs()))
	s.stop()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// JobRequest is the body of POST /api/v1/jobs. Config holds overrides in
// the JSON form of generate.Config; the output directory is always chosen by
// the server.
type JobRequest struct {
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

const maxPreviewDots = 200

// PreviewRequest is the body of POST /api/v1/preview.
type PreviewRequest struct {
	Kind     string          `json:"kind"`
	N1       int             `json:"n1"`
	N2       int             `json:"n2"`
	Equalize bool            `json:"equalize"`
	Seed     int64           `json:"seed"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// resolveConfig applies overrides to the defaults of kind.
func (s *Server) resolveConfig(kind string, overrides json.RawMessage) (generate.Config, error) {
	cfg, ok := s.opts.Defaults[kind]
	if !ok {
		return generate.Config{}, fmt.Errorf("unknown kind %q", kind)
	}
	if len(overrides) > 0 && !bytes.Equal(bytes.TrimSpace(overrides), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(overrides))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return generate.Config{}, fmt.Errorf("invalid config: %w", err)
		}
	}
	cfg.OneColour = kind == store.KindOneColour
	cfg.OutputDir = s.opts.OutputRoot
	return cfg, nil
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	cfg, err := s.resolveConfig(req.Kind, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := generate.New(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	job := s.jobs.CreateJob(req.Kind, cfg, cancel)
	s.jobs.UpdateJob(job.ID, func(j *Job) {
		j.Config.OutputDir = filepath.Join(s.opts.OutputRoot, j.ID)
	})
	job, _ = s.jobs.GetJob(job.ID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runJob(ctx, s.jobs, s.store, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.ListJobs())
}

// handleGetJob handles GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobs.GetJob(chi.URLParam(r, "id"))
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, struct {
		Job
		Elapsed float64 `json:"elapsed"`
	}{job, elapsed.Seconds()})
}

// handleCancelJob handles DELETE /api/v1/jobs/{id}
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := s.jobs.CancelJob(id); {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, ErrJobFinished):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	infos, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetRun handles GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.LoadRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleDeleteRun handles DELETE /api/v1/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return false
	}
	return true
}

// handlePreview handles POST /api/v1/preview and answers with a PNG.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Kind == "" {
		req.Kind = store.KindANS
	}
	if req.N1 < 0 || req.N2 < 0 || req.N1 > maxPreviewDots || req.N2 > maxPreviewDots-req.N1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d dots per preview", maxPreviewDots))
		return
	}

	cfg, err := s.resolveConfig(req.Kind, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.Seed = req.Seed
	gen, err := generate.New(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, set, err := gen.Preview(r.Context(), plan.Task{N1: req.N1, N2: req.N2, Equalize: req.Equalize})
	var layoutErr *dots.LayoutError
	switch {
	case errors.Is(err, generate.ErrTerminal) || errors.As(err, &layoutErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Primary-Area", fmt.Sprintf("%.2f", set.Area(dots.Primary)))
	w.Header().Set("X-Secondary-Area", fmt.Sprintf("%.2f", set.Area(dots.Secondary)))
	if err := render.Encode(w, img, "png"); err != nil {
		slog.Error("Failed to encode PNG", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}
