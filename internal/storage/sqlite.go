package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todo-api/internal/logger"
	"todo-api/internal/models"

	_ "modernc.org/sqlite"
)

const todoColumns = "id, title, description, date, status, created_at, updated_at"

type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// у каждого соединения своя in-memory база
		db.SetMaxOpenConns(1)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info(context.Background(), "SQLite база данных инициализирована", "path", dbPath)
	return &SQLiteStorage{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	// seq задаёт порядок добавления, id - внешний идентификатор (ObjectID hex)
	createTodosTable := `
	CREATE TABLE IF NOT EXISTS todos (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date DATETIME,
		status TEXT NOT NULL DEFAULT 'incomplete' CHECK (status IN ('incomplete', 'completed')),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`

	if _, err := db.Exec(createTodosTable); err != nil {
		return fmt.Errorf("failed to create todos table: %w", err)
	}
	return nil
}

// Закрытие соединения
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) IsValidID(id string) bool {
	return models.IsValidID(id)
}

func (s *SQLiteStorage) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID.IsZero() {
		task.ID = models.NewID()
	}
	now := s.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `INSERT INTO todos (` + todoColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		task.ID.Hex(), task.Title, task.Description, nullableTime(task.Date),
		string(task.Status), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to insert todo: %w", err)
	}
	return task, nil
}

func (s *SQLiteStorage) FindAll(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read todos: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStorage) FindByID(ctx context.Context, id string) (*models.Task, error) {
	if !models.IsValidID(id) {
		return nil, ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// UpdateByID собирает SET только из переданных полей
func (s *SQLiteStorage) UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if !models.IsValidID(id) {
		return nil, ErrInvalidID
	}

	var sets []string
	var args []any

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, patch.Date.UTC())
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC())
	args = append(args, id)

	query := `UPDATE todos SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.FindByID(ctx, id)
}

func (s *SQLiteStorage) DeleteByID(ctx context.Context, id string) error {
	if !models.IsValidID(id) {
		return ErrInvalidID
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Вспомогательная функция для сканирования задачи
func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	var id, status string
	var date sql.NullTime

	err := row.Scan(&id, &task.Title, &task.Description, &date, &status, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task, err
		}
		return task, fmt.Errorf("failed to scan todo: %w", err)
	}

	oid, err := models.ParseID(id)
	if err != nil {
		return task, fmt.Errorf("corrupted todo id %q: %w", id, err)
	}
	task.ID = oid
	task.Status = models.Status(status)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	if date.Valid {
		d := date.Time.UTC()
		task.Date = &d
	}
	return task, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
