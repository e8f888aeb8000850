package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dream2design/internal/domain"
	"dream2design/internal/infra/logging"
	"dream2design/internal/infra/metrics"
	red "dream2design/internal/infra/redis"
	"dream2design/internal/usecase"
)

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	RequestTimeout    time.Duration
	MaxBodyBytes      int64
	GeneratePerMinute int
}

// Server exposes JobUseCase over JSON HTTP.
type Server struct {
	jobs    usecase.JobUseCase
	limiter RateLimiter // nil disables rate limiting
	opts    Options
	log     *zerolog.Logger
}

func NewServer(jobs usecase.JobUseCase, limiter RateLimiter, opts Options, log *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.GeneratePerMinute <= 0 {
		opts.GeneratePerMinute = 10
	}
	return &Server{jobs: jobs, limiter: limiter, opts: opts, log: log}
}

// Handler builds the router with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.opts.RequestTimeout),
		MaxBody(s.opts.MaxBodyBytes),
	)
	s.Register(r)
	return r
}

// Register attaches routes to the provided router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/api/generate", s.handleGenerate)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Route("/api/jobs/{jobID}", func(r chi.Router) {
		r.Get("/files", s.handleListFiles)
		r.Get("/file", s.handleReadFile)
		r.Put("/file", s.handleWriteFile)
		r.Get("/preview", s.handlePreview)
	})
	r.Post("/api/chat/{jobID}", s.handleChat)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidPath):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrLockTimeout):
		code, msg = http.StatusConflict, err.Error()
	}
	if code == http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), red.ClientCommandKey(clientKey(r), "generate"), s.opts.GeneratePerMinute, time.Minute)
		if err != nil {
			// Redis trouble must not take generation down with it.
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
	}

	id, err := s.jobs.CreateJob(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.GetJobStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	tree, err := s.jobs.ListProjectFiles(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	body, err := s.jobs.ReadProjectFile(r.Context(), chi.URLParam(r, "jobID"), r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	if err := s.jobs.WriteProjectFile(r.Context(), chi.URLParam(r, "jobID"), req.Path, req.Content); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc, err := s.jobs.GetPreview(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "No preview found", http.StatusNotFound)
			return
		}
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(doc)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	res, err := s.jobs.Chat(r.Context(), chi.URLParam(r, "jobID"), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
