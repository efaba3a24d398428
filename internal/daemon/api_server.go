package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"modrelay/internal/config"
	"modrelay/internal/logging"
	"modrelay/internal/services"
	"modrelay/internal/submissions"
)

// SubmissionListResponse is the body of GET /api/submissions.
type SubmissionListResponse struct {
	Submissions []*submissions.Submission `json:"submissions"`
}

// SubmissionResponse wraps a single submission.
type SubmissionResponse struct {
	Submission *submissions.Submission `json:"submission"`
}

// ReviewRequest is the body of POST /api/submissions/{id}/review.
type ReviewRequest struct {
	Status    string `json:"status"`
	Moderator string `json:"moderator"`
	Correct   bool   `json:"correct,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error      string                  `json:"error"`
	Submission *submissions.Submission `json:"submission,omitempty"`
}

// APIServer serves the moderator HTTP API.
type APIServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// NewAPIServer builds the API server. It returns nil when no bind address
// is configured.
func NewAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *APIServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &APIServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(strings.TrimSpace(cfg.Paths.APIToken)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *APIServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if m := s.daemon.Metrics(); m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Get("/status", s.handleStatus)
		r.Post("/prune", s.handlePrune)
		r.Route("/submissions", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/review", s.handleReview)
		})
	})
	return r
}

// Start listens on the configured address and shuts down when ctx ends.
func (s *APIServer) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *APIServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *APIServer) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.daemon.running.Load(),
	})
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *APIServer) handlePrune(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Prune(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := submissions.ListFilter{SubmittedBy: strings.TrimSpace(query.Get("submitted_by"))}
	for _, raw := range query["status"] {
		for _, value := range strings.Split(raw, ",") {
			if strings.TrimSpace(value) == "" {
				continue
			}
			status, ok := submissions.ParseStatus(value)
			if !ok {
				s.writeError(w, services.Wrap(services.ErrValidation, "api", "list submissions", fmt.Sprintf("unknown status %q", value), nil), nil)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "list submissions", "invalid limit", nil), nil)
			return
		}
		filter.Limit = limit
	}

	items, err := s.daemon.Store().List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if items == nil {
		items = []*submissions.Submission{}
	}
	s.writeJSON(w, http.StatusOK, SubmissionListResponse{Submissions: items})
}

func (s *APIServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.daemon.Store().GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if sub == nil {
		s.writeError(w, services.Wrap(services.ErrNotFound, "api", "get submission", "submission "+id+" not found", nil), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, SubmissionResponse{Submission: sub})
}

func (s *APIServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Store().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "review", "invalid request body", err), nil)
		return
	}
	status, ok := submissions.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "review", fmt.Sprintf("unknown status %q", req.Status), nil), nil)
		return
	}
	moderator := strings.TrimSpace(req.Moderator)
	if moderator == "" {
		moderator = "api"
	}

	sub, err := s.daemon.Review(r.Context(), chi.URLParam(r, "id"), status, moderator, req.Correct)
	if err != nil {
		s.writeError(w, err, sub)
		return
	}
	s.writeJSON(w, http.StatusOK, SubmissionResponse{Submission: sub})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error, current *submissions.Submission) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "api request failed", "api_request_failed", logging.Error(err))
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Submission: current})
}
