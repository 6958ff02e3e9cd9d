package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"todo-api/internal/bot"
	"todo-api/internal/config"
	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/storage"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

func main() {
	configFile := flag.String("config", "", "config file (default is ./todo.yaml)")
	debug := flag.Bool("debug", false, "log Telegram API requests")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(config.New(), *configFile)
	if err != nil {
		logger.Error(ctx, err, "Ошибка загрузки конфигурации")
		os.Exit(1)
	}
	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	if cfg.Telegram.Token == "" {
		logger.Error(ctx, errors.New("telegram.token is empty"), "Установите TODO_TELEGRAM_TOKEN")
		os.Exit(1)
	}

	// Инициализируем хранилище
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error(ctx, err, "Ошибка инициализации хранилища", "driver", cfg.Storage.Driver)
		os.Exit(1)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		_ = store.Close()
		logger.Error(ctx, err, "Ошибка создания бота")
		os.Exit(1)
	}
	api.Debug = *debug
	logger.Info(ctx, "Авторизован", "bot", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		_ = store.Close()
		logger.Error(ctx, err, "Ошибка получения updates")
		os.Exit(1)
	}

	// Config.Validate уже проверил пояс
	loc, _ := cfg.Location()
	b := bot.New(api, manager.NewTaskManager(store, manager.WithLocation(loc)), bot.WithLocation(loc))

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		b.Run(runCtx, updates)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.HTTP.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"telegram-bot": func(ctx context.Context) error {
				api.StopReceivingUpdates()
				cancel()
				select {
				case <-stopped:
				case <-ctx.Done():
					return errors.Join(ctx.Err(), store.Close())
				}
				return store.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info(ctx, "Бот остановлен", "code", exitCode)
	os.Exit(exitCode)
}
