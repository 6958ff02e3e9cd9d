package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// TaskService - операции слоя валидации, которые нужны транспорту
type TaskService interface {
	CreateTask(ctx context.Context, in manager.CreateTaskInput) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, in manager.UpdateTaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Pinger проверяет доступность хранилища для /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	CORSOrigins []string
	Health      Pinger
}

type createTodoRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
}

// updateTodoRequest: nil-указатель - поле не передано
type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Status      *string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewRouter(tm TaskService, cfg RouterConfig) *chi.Mux {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httpMetrics)

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/todos", func(r chi.Router) {
		r.Post("/", createTodoHandler(tm))
		r.Get("/", listTodosHandler(tm))
		r.Get("/{id}", getTodoHandler(tm))
		r.Put("/{id}", updateTodoHandler(tm))
		r.Delete("/{id}", deleteTodoHandler(tm))
	})

	return r
}

// POST /api/todos
func createTodoHandler(tm TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTodoRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		task, err := tm.CreateTask(r.Context(), manager.CreateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Date:        req.Date,
		})
		if err != nil {
			writeManagerError(w, err, true)
			return
		}

		writeJSON(w, http.StatusCreated, task)
	}
}

// GET /api/todos
func listTodosHandler(tm TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := tm.ListTasks(r.Context())
		if err != nil {
			writeManagerError(w, err, false)
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}

		writeJSON(w, http.StatusOK, tasks)
	}
}

// GET /api/todos/{id}
func getTodoHandler(tm TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := tm.GetTask(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeManagerError(w, err, false)
			return
		}

		writeJSON(w, http.StatusOK, task)
	}
}

// PUT /api/todos/{id}
func updateTodoHandler(tm TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateTodoRequest
		if !decodeBody(w, r, &req, true) {
			return
		}

		task, err := tm.UpdateTask(r.Context(), chi.URLParam(r, "id"), manager.UpdateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Date:        req.Date,
			Status:      req.Status,
		})
		if err != nil {
			writeManagerError(w, err, true)
			return
		}

		writeJSON(w, http.StatusOK, task)
	}
}

// DELETE /api/todos/{id}
func deleteTodoHandler(tm TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := tm.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeManagerError(w, err, false)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: manager.MessageTodoDeleted})
	}
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				logger.Error(r.Context(), err, "Хранилище недоступно")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// decodeBody читает ровно один JSON-объект. Пустое тело при allowEmpty
// означает объект без полей (PUT только обновляет updatedAt).
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
		return true
	case err == nil:
		// После объекта допускаются только пробелы
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("unexpected data after JSON body")
		}
	}

	if err != nil {
		logger.Debug(r.Context(), "Некорректное тело запроса", "err", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeManagerError сопоставляет класс ошибки с HTTP-кодом.
// Сбой хранилища на записи (create/update) отдаётся как 400, на чтении и удалении - 500.
func writeManagerError(w http.ResponseWriter, err error, write bool) {
	message := "internal server error"
	var merr *manager.Error
	if errors.As(err, &merr) {
		message = merr.Message
	}

	switch {
	case errors.Is(err, manager.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, message)
	case errors.Is(err, manager.ErrNotFound):
		writeError(w, http.StatusNotFound, message)
	case errors.Is(err, manager.ErrStorageFailure) && write:
		writeError(w, http.StatusBadRequest, message)
	default:
		writeError(w, http.StatusInternalServerError, message)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(context.Background(), err, "Ошибка записи ответа")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
