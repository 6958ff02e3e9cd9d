package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status статус задачи
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusCompleted  Status = "completed"
)

func (s Status) IsValid() bool {
	return s == StatusIncomplete || s == StatusCompleted
}

// Task - единственная сущность приложения.
// JSON-представление совпадает с документом в коллекции todos.
type Task struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Date        *time.Time         `json:"date,omitempty" bson:"date,omitempty"`
	Status      Status             `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// TaskPatch частичное обновление: nil означает "поле не передано, не трогать"
type TaskPatch struct {
	Title       *string
	Description *string
	Date        *time.Time
	Status      *Status
}

// IsEmpty сообщает, что в патче нет ни одного поля
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.Status == nil
}

// Apply применяет только переданные поля
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		d := *p.Date
		t.Date = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// NewID генерирует идентификатор в формате ObjectID для всех хранилищ
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ParseID проверяет формат идентификатора (24 hex-символа)
func ParseID(id string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(id)
}

// IsValidID - обёртка над ParseID для хранилищ
func IsValidID(id string) bool {
	_, err := ParseID(id)
	return err == nil
}
