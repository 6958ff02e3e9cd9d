package manager

import "errors"

// Классы ошибок; транспорт сопоставляет их с HTTP-кодами через errors.Is
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrStorageFailure = errors.New("storage failure")
)

const (
	msgTitleRequired   = "Title is required"
	msgInvalidDate     = "Please enter a valid date (today or future)."
	msgInvalidNewDate  = "Please enter a valid future date."
	msgInvalidStatus   = "Invalid status value"
	msgInvalidID       = "Invalid ID format"
	msgNotFound        = "Todo not found"
	msgStorageRead     = "Failed to load todos"
	msgStorageWrite    = "Failed to save todo"
	msgStorageDelete   = "Failed to delete todo"
	MessageTodoDeleted = "Todo deleted successfully"
)

// Error - классифицированная ошибка операции.
// Message показывается клиенту, Err (ошибка хранилища) только логируется.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidInput(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func notFound() *Error {
	return &Error{Kind: ErrNotFound, Message: msgNotFound}
}

func storageFailure(msg string, err error) *Error {
	return &Error{Kind: ErrStorageFailure, Message: msg, Err: err}
}
