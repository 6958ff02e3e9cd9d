package main

import (
	"context"
	"fmt"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app - общее состояние команд: viper, путь к файлу конфигурации,
// загруженный Config и его часовой пояс (заполняются в PersistentPreRunE)
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	loc        *time.Location
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "todo-app",
		Short: "Todo list: REST API server and command line client",
		Long: `todo-app serves the todo REST API and manages the same task store
from the command line. Storage is SQLite by default; MongoDB and an
in-memory store are selected with --storage or storage.driver.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default is ./todo.yaml)")
	flags.String("storage", "", "storage driver: sqlite|mongo|memory")
	flags.String("log-level", "", "log level: debug|info|warn|error")
	_ = a.v.BindPFlag("storage.driver", flags.Lookup("storage"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newServeCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newStatusCmd(a, "complete", "Mark task as completed", "completed"),
		newStatusCmd(a, "reopen", "Mark task as incomplete", "incomplete"),
		newDeleteCmd(a),
		newExportCmd(a),
		newMigrateCmd(a),
	)

	return rootCmd
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger.SetLevel(level)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.loc = loc
	return nil
}

// openManager открывает настроенное хранилище; вызывающий закрывает его сам
func (a *app) openManager(ctx context.Context) (*manager.TaskManager, storage.Storage, error) {
	store, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", a.cfg.Storage.Driver, err)
	}
	return manager.NewTaskManager(store, manager.WithLocation(a.loc)), store, nil
}
