// Package export выгружает задачи в JSON и CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"todo-api/internal/models"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{"id", "title", "description", "date", "status", "created_at", "updated_at"}

// Write выбирает формат по имени
func Write(w io.Writer, format string, tasks []models.Task) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, tasks)
	case FormatCSV:
		return WriteCSV(w, tasks)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func WriteJSON(w io.Writer, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tasks)
}

func WriteCSV(w io.Writer, tasks []models.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, task := range tasks {
		date := ""
		if task.Date != nil {
			date = task.Date.Format(time.RFC3339)
		}
		record := []string{
			task.ID.Hex(),
			task.Title,
			task.Description,
			date,
			string(task.Status),
			task.CreatedAt.Format(time.RFC3339),
			task.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
