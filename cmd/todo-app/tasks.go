package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"todo-api/internal/export"
	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/models"

	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	var title, desc, date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add new task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tm, store, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			// Без --date задача ставится на сегодня
			if date == "" {
				date = time.Now().In(a.loc).Format(time.DateOnly)
			}

			in := manager.CreateTaskInput{Title: title, Date: &date}
			if cmd.Flags().Changed("desc") {
				in.Description = &desc
			}

			task, err := tm.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added task with ID %s\n", task.ID.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&desc, "desc", "", "Task description")
	cmd.Flags().StringVar(&date, "date", "", "Due date, YYYY-MM-DD or RFC3339 (default today)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var want models.Status
			switch filter {
			case "all":
			case "completed":
				want = models.StatusCompleted
			case "incomplete", "pending":
				want = models.StatusIncomplete
			default:
				return fmt.Errorf("unknown filter %q (all|completed|incomplete)", filter)
			}

			tm, store, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			tasks, err := tm.ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printed := 0
			for _, task := range tasks {
				if want != "" && task.Status != want {
					continue
				}
				printTask(out, task, a.loc)
				printed++
			}
			if printed == 0 {
				fmt.Fprintln(out, "No tasks found")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "all", "Filter tasks (all|completed|incomplete)")
	return cmd
}

// printTask показывает срок в поясе app.timezone, в котором он был введён
func printTask(w io.Writer, task models.Task, loc *time.Location) {
	due := "-"
	if task.Date != nil {
		due = task.Date.In(loc).Format(time.DateOnly)
	}
	fmt.Fprintf(w, "%s: %s [%s] due %s\n", task.ID.Hex(), task.Title, task.Status, due)
}

// newStatusCmd собирает complete/reopen: обе команды меняют только статус
func newStatusCmd(a *app, use, short, status string) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tm, store, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			task, err := tm.UpdateTask(cmd.Context(), id, manager.UpdateTaskInput{Status: &status})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Task %s marked as %s\n", task.ID.Hex(), task.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Task ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tm, store, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := tm.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Task %s deleted\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Task ID to delete")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var format, outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if format != export.FormatJSON && format != export.FormatCSV {
				return fmt.Errorf("unsupported format %s", format)
			}

			tm, store, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			tasks, err := tm.ListTasks(cmd.Context())
			if err != nil {
				return err
			}

			// Без --out пишем в stdout
			if outFile == "" {
				return export.Write(cmd.OutOrStdout(), format, tasks)
			}

			f, err := os.Create(outFile)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, f.Close())
			}()

			if err := export.Write(f, format, tasks); err != nil {
				return err
			}

			logger.Info(cmd.Context(), "Задачи выгружены", "file", outFile, "format", format, "count", len(tasks))
			fmt.Fprintf(cmd.OutOrStdout(), "Tasks exported to %s in %s format\n", outFile, format)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", export.FormatJSON, "Export format (json|csv)")
	cmd.Flags().StringVar(&outFile, "out", "", "Output file path (default stdout)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQLite schema or MongoDB indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}

			logger.Info(cmd.Context(), "Миграция завершена", "driver", a.cfg.Storage.Driver)
			fmt.Fprintf(cmd.OutOrStdout(), "Storage %s is ready\n", a.cfg.Storage.Driver)
			return nil
		},
	}
}
