package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/logger"
	"todo-api/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const disconnectTimeout = 5 * time.Second

// MongoStorage хранит задачи в коллекции todos документной базы
type MongoStorage struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoStorage подключается к MongoDB и проверяет соединение до приёма запросов
func NewMongoStorage(ctx context.Context, cfg config.MongoConfig) (*MongoStorage, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info(ctx, "Подключение к MongoDB установлено", "database", cfg.Database, "collection", cfg.Collection)
	return &MongoStorage{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		now:    time.Now,
	}, nil
}

// EnsureIndexes создаёт индексы коллекции; операция идемпотентна
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStorage) IsValidID(id string) bool {
	return models.IsValidID(id)
}

// timestamp обрезает время до миллисекунд - такую точность хранит BSON
func (s *MongoStorage) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *MongoStorage) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID.IsZero() {
		task.ID = models.NewID()
	}
	now := s.timestamp()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Date != nil {
		d := task.Date.UTC().Truncate(time.Millisecond)
		task.Date = &d
	}

	if _, err := s.coll.InsertOne(ctx, task); err != nil {
		return models.Task{}, fmt.Errorf("failed to insert todo: %w", err)
	}
	return task, nil
}

func (s *MongoStorage) FindAll(ctx context.Context) ([]models.Task, error) {
	// ObjectID монотонно растёт, сортировка по _id даёт порядок добавления
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}

	tasks := make([]models.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode todos: %w", err)
	}
	return tasks, nil
}

func (s *MongoStorage) FindByID(ctx context.Context, id string) (*models.Task, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var task models.Task
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	return &task, nil
}

// UpdateByID выполняет $set только по переданным полям и возвращает документ после изменения
func (s *MongoStorage) UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	set := bson.M{"updatedAt": s.timestamp()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Date != nil {
		set["date"] = patch.Date.UTC()
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var task models.Task
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return &task, nil
}

func (s *MongoStorage) DeleteByID(ctx context.Context, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return ErrInvalidID
	}

	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
