package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"starter/internal/models"
	"starter/internal/ratelimit"
	"starter/internal/todo"
	"starter/internal/version"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP handlers for the starter API
type Handlers struct {
	todos     todo.Store
	version   version.Info
	limiters  *ratelimit.Presets
	startTime time.Time
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithVersionInfo sets the build metadata reported by /api/version and the
// health endpoints.
func WithVersionInfo(info version.Info) HandlerOption {
	return func(h *Handlers) {
		h.version = info
	}
}

// WithLimiters lets the health endpoints report limiter store sizes.
func WithLimiters(presets *ratelimit.Presets) HandlerOption {
	return func(h *Handlers) {
		h.limiters = presets
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(todos todo.Store, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		todos:     todos,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hello handles the greeting used by the frontend
// GET /api/hello
func (h *Handlers) Hello(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, models.HelloResponse{
		Message:  "Hello World from Google Cloud Run!",
		Backend:  "Go",
		Frontend: "React + TypeScript + Vite",
	})
}

// HealthCheck handles health check requests
// GET /health, GET /api/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	if h.limiters != nil {
		active := h.limiters.All()
		response.AddComponent("ratelimit", models.StatusHealthy, fmt.Sprintf("%d limiters active", len(active)))
		for _, l := range active {
			response.AddMetric("ratelimit_keys_"+l.Config().Name, l.Size())
		}
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// Version reports build metadata
// GET /api/version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	response := models.VersionResponse{
		Version:    h.version.Version,
		GitCommit:  h.version.GitCommit,
		BuildDate:  h.version.BuildDate,
		InstanceID: h.version.InstanceID,
		Release:    h.version.IsRelease(),
	}
	if v, err := h.version.Semver(); err == nil {
		response.Prerelease = v.Prerelease()
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListTodos returns every todo, oldest first
// GET /api/todos
func (h *Handlers) ListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context())
	if err != nil {
		slog.Error("Failed to list todos", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to list todos")
		return
	}

	response := models.ListTodosResponse{
		Todos:      make([]models.TodoResponse, 0, len(todos)),
		TotalCount: len(todos),
	}
	for _, t := range todos {
		response.Todos = append(response.Todos, toTodoResponse(t))
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetTodo returns one todo
// GET /api/todos/{id}
func (h *Handlers) GetTodo(w http.ResponseWriter, r *http.Request) {
	t, err := h.todos.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeTodoError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, toTodoResponse(t))
}

// CreateTodo adds a todo
// POST /api/todos
func (h *Handlers) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTodoRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if errs := req.Validate(); errs != nil {
		h.writeJSONResponse(w, http.StatusUnprocessableEntity, models.NewValidationErrorResponse(errs))
		return
	}

	t, err := h.todos.Create(r.Context(), req.Title)
	if err != nil {
		h.writeTodoError(w, err)
		return
	}

	slog.Debug("Todo created", "id", t.ID)
	h.writeJSONResponse(w, http.StatusCreated, toTodoResponse(t))
}

// UpdateTodo changes a todo's title or completion state
// PUT /api/todos/{id}
func (h *Handlers) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTodoRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if errs := req.Validate(); errs != nil {
		h.writeJSONResponse(w, http.StatusUnprocessableEntity, models.NewValidationErrorResponse(errs))
		return
	}

	t, err := h.todos.Update(r.Context(), mux.Vars(r)["id"], req.Title, req.Completed)
	if err != nil {
		h.writeTodoError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, toTodoResponse(t))
}

// DeleteTodo removes a todo
// DELETE /api/todos/{id}
func (h *Handlers) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := h.todos.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeTodoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// APINotFound answers unknown API paths, including the rate limited
// /api/auth prefix, with a JSON 404.
func (h *Handlers) APINotFound(w http.ResponseWriter, r *http.Request) {
	h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Resource not found")
}

func toTodoResponse(t *todo.Todo) models.TodoResponse {
	return models.TodoResponse{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (h *Handlers) writeTodoError(w http.ResponseWriter, err error) {
	if errors.Is(err, todo.ErrNotFound) {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Todo not found")
		return
	}
	slog.Error("Todo store operation failed", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message, errorCode))
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; log and give up
		slog.Error("Error encoding JSON response", "error", err)
	}
}
