package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todo-api/internal/manager"
	"todo-api/internal/models"
	"todo-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type todoResponse struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func newApp(t *testing.T) http.Handler {
	t.Helper()

	store := storage.NewMemoryStorage()
	tm := manager.NewTaskManager(store)
	return NewRouter(tm, RouterConfig{Health: store})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)
	return rr
}

func doRaw(t *testing.T, h http.Handler, method, path string, raw string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), "body=%s", rr.Body.String())
	return out
}

func tomorrowISO() string  { return time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339Nano) }
func yesterdayISO() string { return time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339Nano) }

func createTodo(t *testing.T, app http.Handler) todoResponse {
	t.Helper()
	rr := doJSON(t, app, http.MethodPost, "/api/todos", map[string]any{
		"title":       "Test Todo",
		"description": "Test description",
		"date":        tomorrowISO(),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[todoResponse](t, rr)
}

func TestPOST_Todos_Created(t *testing.T) {
	app := newApp(t)

	rr := doJSON(t, app, http.MethodPost, "/api/todos", map[string]any{
		"title":       "Test Todo",
		"description": "Test description",
		"date":        tomorrowISO(),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	for _, key := range []string{"_id", "title", "description", "date", "status", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "Test Todo", raw["title"])
	assert.Equal(t, "Test description", raw["description"])
	assert.Equal(t, "incomplete", raw["status"])
	assert.True(t, models.IsValidID(raw["_id"].(string)))
}

func TestPOST_Todos_WithoutDescription(t *testing.T) {
	app := newApp(t)

	rr := doJSON(t, app, http.MethodPost, "/api/todos", map[string]any{
		"title": "Test Todo",
		"date":  tomorrowISO(),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "", decode[todoResponse](t, rr).Description)
}

func TestPOST_Todos_Rejected(t *testing.T) {
	app := newApp(t)

	cases := map[string]struct {
		body    map[string]any
		message string
	}{
		"past date":     {map[string]any{"title": "X", "date": yesterdayISO()}, "valid date"},
		"missing title": {map[string]any{"date": tomorrowISO()}, "Title is required"},
		"empty title":   {map[string]any{"title": "", "date": tomorrowISO()}, "Title is required"},
		"blank title":   {map[string]any{"title": "   ", "date": tomorrowISO()}, "Title is required"},
		"bad date":      {map[string]any{"title": "X", "date": "not-a-date"}, "valid date"},
		"missing date":  {map[string]any{"title": "X"}, "valid date"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := doJSON(t, app, http.MethodPost, "/api/todos", tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Contains(t, decode[messageResponse](t, rr).Message, tc.message)
		})
	}
}

func TestPOST_Todos_InvalidJSON_400(t *testing.T) {
	app := newApp(t)

	rr := doRaw(t, app, http.MethodPost, "/api/todos", "{bad json}")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPOST_Todos_TrailingData_400(t *testing.T) {
	app := newApp(t)

	rr := doRaw(t, app, http.MethodPost, "/api/todos", `{"title":"X","date":"`+tomorrowISO()+`"} trailing`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request body", decode[messageResponse](t, rr).Message)

	rr = doRaw(t, app, http.MethodPost, "/api/todos", `{"title":"X","date":"`+tomorrowISO()+`"}{"title":"Y"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRaw(t, app, http.MethodPost, "/api/todos", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request body", decode[messageResponse](t, rr).Message)

	rr = doRaw(t, app, http.MethodPost, "/api/todos", `{"title":"X","date":"`+tomorrowISO()+`"}`+"\n")
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSON(t, app, http.MethodGet, "/api/todos", nil)
	assert.Len(t, decode[[]todoResponse](t, rr), 1)
}

func TestGET_Todos(t *testing.T) {
	app := newApp(t)

	rr := doJSON(t, app, http.MethodGet, "/api/todos", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	first := createTodo(t, app)
	second := createTodo(t, app)

	rr = doJSON(t, app, http.MethodGet, "/api/todos?invalid=param", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]todoResponse](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestGET_TodoByID(t *testing.T) {
	app := newApp(t)
	created := createTodo(t, app)

	rr := doJSON(t, app, http.MethodGet, "/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, decode[todoResponse](t, rr).ID)

	rr = doJSON(t, app, http.MethodGet, "/api/todos/507f1f77bcf86cd799439011", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Todo not found", decode[messageResponse](t, rr).Message)

	rr = doJSON(t, app, http.MethodGet, "/api/todos/invalid-id-format", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPUT_Todo(t *testing.T) {
	app := newApp(t)
	created := createTodo(t, app)

	rr := doJSON(t, app, http.MethodPut, "/api/todos/"+created.ID, map[string]any{
		"title":       "Updated Title",
		"description": "Updated description",
		"status":      "completed",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[todoResponse](t, rr)
	assert.Equal(t, "Updated Title", updated.Title)
	assert.Equal(t, "Updated description", updated.Description)
	assert.Equal(t, "completed", updated.Status)
}

func TestPUT_Todo_PartialKeepsOtherFields(t *testing.T) {
	app := newApp(t)
	created := createTodo(t, app)

	rr := doJSON(t, app, http.MethodPut, "/api/todos/"+created.ID, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	updated := decode[todoResponse](t, rr)
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Date, updated.Date)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestPUT_Todo_EmptyBody(t *testing.T) {
	app := newApp(t)
	created := createTodo(t, app)

	rr := doRaw(t, app, http.MethodPut, "/api/todos/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	updated := decode[todoResponse](t, rr)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Date, updated.Date)
	assert.Equal(t, created.Status, updated.Status)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	rr = doRaw(t, app, http.MethodPut, "/api/todos/invalid-id-format", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid ID format", decode[messageResponse](t, rr).Message)

	rr = doRaw(t, app, http.MethodPut, "/api/todos/"+created.ID, `{"status":"completed"} {}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPUT_Todo_Rejected(t *testing.T) {
	app := newApp(t)
	created := createTodo(t, app)

	rr := doJSON(t, app, http.MethodPut, "/api/todos/"+created.ID, map[string]any{"status": "invalid-status"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid status value", decode[messageResponse](t, rr).Message)

	rr = doJSON(t, app, http.MethodPut, "/api/todos/"+created.ID, map[string]any{"date": yesterdayISO()})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, app, http.MethodPut, "/api/todos/507f1f77bcf86cd799439012", map[string]any{"title": "Attempt to update non-existent"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, app, http.MethodPut, "/api/todos/invalid-id-format", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// задача не изменилась
	rr = doJSON(t, app, http.MethodGet, "/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "incomplete", decode[todoResponse](t, rr).Status)
}

func TestDELETE_Todo(t *testing.T) {
	app := newApp(t)
	created := createTodo(t, app)

	rr := doJSON(t, app, http.MethodDelete, "/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Todo deleted successfully", decode[messageResponse](t, rr).Message)

	rr = doJSON(t, app, http.MethodGet, "/api/todos/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, app, http.MethodDelete, "/api/todos/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, app, http.MethodDelete, "/api/todos/507f1f77bcf86cd799439011", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, app, http.MethodDelete, "/api/todos/invalid-id-format", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrailingSlash(t *testing.T) {
	app := newApp(t)

	rr := doJSON(t, app, http.MethodGet, "/api/todos/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthz(t *testing.T) {
	rr := doJSON(t, newApp(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	tm := manager.NewTaskManager(storage.NewMemoryStorage())
	down := NewRouter(tm, RouterConfig{Health: downPinger{}})
	rr = doJSON(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newApp(t)
	createTodo(t, app)

	rr := doJSON(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "todoapp_todos_created_total"))
	assert.True(t, strings.Contains(body, `todoapp_http_requests_total{code="201",method="POST"`), "нет счётчика HTTP-запросов")
}

// stubService отдаёт фиксированную ошибку из каждой операции
type stubService struct {
	err error
}

func (s stubService) CreateTask(context.Context, manager.CreateTaskInput) (*models.Task, error) {
	return nil, s.err
}
func (s stubService) ListTasks(context.Context) ([]models.Task, error) { return nil, s.err }
func (s stubService) GetTask(context.Context, string) (*models.Task, error) {
	return nil, s.err
}
func (s stubService) UpdateTask(context.Context, string, manager.UpdateTaskInput) (*models.Task, error) {
	return nil, s.err
}
func (s stubService) DeleteTask(context.Context, string) error { return s.err }

func TestStorageFailureStatusCodes(t *testing.T) {
	failure := &manager.Error{Kind: manager.ErrStorageFailure, Message: "Failed to save todo", Err: errors.New("db down")}
	app := NewRouter(stubService{err: failure}, RouterConfig{})
	id := "507f1f77bcf86cd799439011"

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodPost, "/api/todos", map[string]any{"title": "X"}, http.StatusBadRequest},
		{http.MethodPut, "/api/todos/" + id, map[string]any{"title": "X"}, http.StatusBadRequest},
		{http.MethodGet, "/api/todos", nil, http.StatusInternalServerError},
		{http.MethodGet, "/api/todos/" + id, nil, http.StatusInternalServerError},
		{http.MethodDelete, "/api/todos/" + id, nil, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := doJSON(t, app, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.want, rr.Code, "%s %s", tc.method, tc.path)
		assert.NotContains(t, rr.Body.String(), "db down")
	}
}

func TestUnclassifiedError_500(t *testing.T) {
	app := NewRouter(stubService{err: errors.New("boom")}, RouterConfig{})

	rr := doJSON(t, app, http.MethodPost, "/api/todos", map[string]any{"title": "X"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", decode[messageResponse](t, rr).Message)
}
