package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clipdigest/internal/api"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
)

// APIServer serves the daemon's HTTP surface over the task service.
type APIServer struct {
	httpServer *http.Server
	service    *api.TaskService
	logger     *slog.Logger
}

func NewAPIServer(bind string, service *api.TaskService, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &APIServer{service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks", s.handleCreate)
	mux.HandleFunc("POST /api/tasks/batch", s.handleCreateBatch)
	mux.HandleFunc("DELETE /api/tasks/batch", s.handleDeleteBatch)
	mux.HandleFunc("GET /api/tasks", s.handleList)
	mux.HandleFunc("GET /api/tasks/current", s.handleCurrent)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/tasks/{id}/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/tasks/{id}/urls", s.handleURLs)
	mux.HandleFunc("POST /api/tasks/{id}/retry", s.handleRetry)
	mux.HandleFunc("POST /api/tasks/{id}/resummarize", s.handleResummarize)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *APIServer) Start() error {
	s.logger.Info("api listening", logging.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type createRequest struct {
	URL string `json:"url"`
}

type batchCreateRequest struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

type batchDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type resummarizeRequest struct {
	CustomPrompt string `json:"custom_prompt"`
}

func (s *APIServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.service.Create(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *APIServer) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.service.CreateBatch(r.Context(), req.URL, req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *APIServer) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "delete-batch",
			"ids are required", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, s.service.DeleteBatch(r.Context(), req.IDs))
}

func (s *APIServer) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []string
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		statuses = strings.Split(raw, ",")
	}
	limit := intParam(query.Get("limit"), 50)
	offset := intParam(query.Get("offset"), 0)

	resp, err := s.service.List(r.Context(), statuses, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleCurrent(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.service.History(r.Context(), intParam(query.Get("limit"), 50), intParam(query.Get("offset"), 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.service.Summaries(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleURLs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.service.ArtifactURLs(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.service.Retry(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *APIServer) handleResummarize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req resummarizeRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}
	resp, err := s.service.Resummarize(r.Context(), id, req.CustomPrompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "parse",
			"task id must be a positive integer", err))
		return 0, false
	}
	return id, true
}

func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode",
			"request body is not valid json", err))
		return false
	}
	return true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, map[string]string{"error": services.Details(err).Message})
}
