package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound - документа с таким идентификатором нет
	ErrNotFound = errors.New("todo not found")
	// ErrInvalidID - идентификатор не в формате ObjectID
	ErrInvalidID = errors.New("invalid todo id")
)

// Storage интерфейс для абстракции хранилища задач.
// Все реализации выдают идентификаторы в формате ObjectID и
// сами проставляют CreatedAt/UpdatedAt.
type Storage interface {
	Insert(ctx context.Context, task models.Task) (models.Task, error)
	// FindAll возвращает задачи в порядке добавления
	FindAll(ctx context.Context) ([]models.Task, error)
	FindByID(ctx context.Context, id string) (*models.Task, error)
	// UpdateByID меняет только поля, переданные в патче
	UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteByID(ctx context.Context, id string) error
	IsValidID(id string) bool

	Ping(ctx context.Context) error
	// Закрытие соединения
	Close() error
}

// Open создаёт хранилище по имени драйвера из конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		s, err := NewMongoStorage(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		return NewSQLiteStorage(cfg.SQLite.Path)
	case config.DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// In-memory хранилище для тестов и локального запуска
type MemoryStorage struct {
	mu    sync.Mutex
	tasks map[primitive.ObjectID]models.Task
	order []primitive.ObjectID
	now   func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[primitive.ObjectID]models.Task),
		now:   time.Now,
	}
}

func (m *MemoryStorage) Insert(_ context.Context, task models.Task) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.ID.IsZero() {
		task.ID = models.NewID()
	}
	if _, exists := m.tasks[task.ID]; exists {
		return models.Task{}, fmt.Errorf("duplicate todo id %s", task.ID.Hex())
	}

	now := m.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	m.tasks[task.ID] = cloneTask(task)
	m.order = append(m.order, task.ID)

	return cloneTask(task), nil
}

func (m *MemoryStorage) FindAll(_ context.Context) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]models.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, cloneTask(m.tasks[id]))
	}
	return tasks, nil
}

func (m *MemoryStorage) FindByID(_ context.Context, id string) (*models.Task, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[oid]
	if !ok {
		return nil, ErrNotFound
	}
	task = cloneTask(task)
	return &task, nil
}

func (m *MemoryStorage) UpdateByID(_ context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[oid]
	if !ok {
		return nil, ErrNotFound
	}

	patch.Apply(&task)
	task.UpdatedAt = m.now().UTC()
	m.tasks[oid] = task

	task = cloneTask(task)
	return &task, nil
}

func (m *MemoryStorage) DeleteByID(_ context.Context, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[oid]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, oid)
	m.order = slices.DeleteFunc(m.order, func(x primitive.ObjectID) bool { return x == oid })
	return nil
}

func (m *MemoryStorage) IsValidID(id string) bool {
	return models.IsValidID(id)
}

func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// cloneTask копирует дату, чтобы вызывающий код не менял состояние хранилища
func cloneTask(t models.Task) models.Task {
	if t.Date != nil {
		d := *t.Date
		t.Date = &d
	}
	return t
}
