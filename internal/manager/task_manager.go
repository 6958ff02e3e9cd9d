package manager

import (
	"context"
	"errors"
	"strings"
	"time"

	"todo-api/internal/logger"
	"todo-api/internal/models"
	"todo-api/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	createTodoCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoapp_todos_created_total",
			Help: "Total number of CreateTask operations",
		},
		[]string{"status"},
	)

	updateTodoCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoapp_todos_updated_total",
			Help: "Total number of UpdateTask operations",
		},
		[]string{"status"},
	)

	deleteTodoCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoapp_todos_deleted_total",
			Help: "Total number of DeleteTask operations",
		},
		[]string{"status"},
	)

	todoTitleLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "todoapp_todo_title_length_bytes",
			Help:    "Length distribution of todo titles",
			Buckets: []float64{10, 50, 100, 500, 1000},
		},
	)

	createTodoDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "todoapp_create_todo_duration_seconds",
			Help:    "Duration of CreateTask operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	updateTodoDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "todoapp_update_todo_duration_seconds",
			Help:    "Duration of UpdateTask operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// CreateTaskInput - сырые данные для создания задачи.
// Description и Date - указатели: nil означает, что поле не передано.
type CreateTaskInput struct {
	Title       string
	Description *string
	Date        *string
}

// UpdateTaskInput - частичное обновление; меняются только переданные поля
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Date        *string
	Status      *string
}

// TaskManager - слой валидации и сопоставления с хранилищем.
// Собственного состояния не держит, всё хранится в storage.
type TaskManager struct {
	storage storage.Storage
	now     func() time.Time
	loc     *time.Location
}

type Option func(*TaskManager)

// WithClock подменяет источник текущего времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(tm *TaskManager) {
		tm.now = now
	}
}

// WithLocation задаёт часовой пояс, в котором считается "сегодня"
func WithLocation(loc *time.Location) Option {
	return func(tm *TaskManager) {
		tm.loc = loc
	}
}

func NewTaskManager(s storage.Storage, opts ...Option) *TaskManager {
	tm := &TaskManager{
		storage: s,
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

func (tm *TaskManager) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	startTime := time.Now()
	defer func() {
		createTodoDuration.Observe(time.Since(startTime).Seconds())
	}()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		createTodoCount.WithLabelValues("error").Inc()
		return nil, invalidInput(msgTitleRequired)
	}

	if in.Date == nil {
		createTodoCount.WithLabelValues("error").Inc()
		return nil, invalidInput(msgInvalidDate)
	}
	date, ok := parseDate(*in.Date, tm.loc)
	if !ok || !notBeforeToday(date, tm.now(), tm.loc) {
		createTodoCount.WithLabelValues("error").Inc()
		return nil, invalidInput(msgInvalidDate)
	}

	description := ""
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
	}

	task, err := tm.storage.Insert(ctx, models.Task{
		Title:       title,
		Description: description,
		Date:        &date,
		Status:      models.StatusIncomplete,
	})
	if err != nil {
		createTodoCount.WithLabelValues("error").Inc()
		logger.Error(ctx, err, "Ошибка сохранения задачи")
		return nil, storageFailure(msgStorageWrite, err)
	}

	createTodoCount.WithLabelValues("success").Inc()
	todoTitleLength.Observe(float64(len(title)))
	logger.Debug(ctx, "Задача создана", "id", task.ID.Hex())

	return &task, nil
}

func (tm *TaskManager) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := tm.storage.FindAll(ctx)
	if err != nil {
		logger.Error(ctx, err, "Ошибка получения списка задач")
		return nil, storageFailure(msgStorageRead, err)
	}
	return tasks, nil
}

func (tm *TaskManager) GetTask(ctx context.Context, id string) (*models.Task, error) {
	if !tm.storage.IsValidID(id) {
		return nil, invalidInput(msgInvalidID)
	}

	task, err := tm.storage.FindByID(ctx, id)
	if err != nil {
		return nil, tm.classify(ctx, err, msgStorageRead)
	}
	return task, nil
}

func (tm *TaskManager) UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (*models.Task, error) {
	startTime := time.Now()
	defer func() {
		updateTodoDuration.Observe(time.Since(startTime).Seconds())
	}()

	patch, err := tm.buildPatch(id, in)
	if err != nil {
		updateTodoCount.WithLabelValues("error").Inc()
		return nil, err
	}
	if patch.IsEmpty() {
		logger.Debug(ctx, "Пустое обновление, меняется только updatedAt", "id", id)
	}

	task, err := tm.storage.UpdateByID(ctx, id, patch)
	if err != nil {
		updateTodoCount.WithLabelValues("error").Inc()
		return nil, tm.classify(ctx, err, msgStorageWrite)
	}

	updateTodoCount.WithLabelValues("success").Inc()
	return task, nil
}

// buildPatch проверяет вход до обращения к хранилищу:
// отклонённое обновление не меняет сохранённую задачу
func (tm *TaskManager) buildPatch(id string, in UpdateTaskInput) (models.TaskPatch, error) {
	var patch models.TaskPatch

	if !tm.storage.IsValidID(id) {
		return patch, invalidInput(msgInvalidID)
	}

	if in.Status != nil {
		status := models.Status(*in.Status)
		if !status.IsValid() {
			return patch, invalidInput(msgInvalidStatus)
		}
		patch.Status = &status
	}

	if in.Date != nil {
		date, ok := parseDate(*in.Date, tm.loc)
		if !ok || !notBeforeToday(date, tm.now(), tm.loc) {
			return patch, invalidInput(msgInvalidNewDate)
		}
		patch.Date = &date
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return patch, invalidInput(msgTitleRequired)
		}
		patch.Title = &title
	}

	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		patch.Description = &description
	}

	return patch, nil
}

func (tm *TaskManager) DeleteTask(ctx context.Context, id string) error {
	if !tm.storage.IsValidID(id) {
		deleteTodoCount.WithLabelValues("error").Inc()
		return invalidInput(msgInvalidID)
	}

	if err := tm.storage.DeleteByID(ctx, id); err != nil {
		deleteTodoCount.WithLabelValues("error").Inc()
		return tm.classify(ctx, err, msgStorageDelete)
	}

	deleteTodoCount.WithLabelValues("success").Inc()
	logger.Debug(ctx, "Задача удалена", "id", id)
	return nil
}

// classify переводит ошибку хранилища в класс ошибки слоя
func (tm *TaskManager) classify(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return notFound()
	case errors.Is(err, storage.ErrInvalidID):
		return invalidInput(msgInvalidID)
	default:
		logger.Error(ctx, err, "Ошибка хранилища")
		return storageFailure(msg, err)
	}
}
