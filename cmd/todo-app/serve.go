package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	server "todo-api"
	"todo-api/internal/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :5555)")
	_ = a.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	tm, store, err := a.openManager(ctx)
	if err != nil {
		return err
	}

	router := server.NewRouter(tm, server.RouterConfig{
		CORSOrigins: a.cfg.HTTP.CORSOrigins,
		Health:      store,
	})

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Слушаем сразу, чтобы занятый порт был ошибкой команды, а не горутины
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		_ = store.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP сервер запущен", "addr", ln.Addr().String(), "storage", a.cfg.Storage.Driver)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Сначала дожидаемся активных запросов, потом закрываем хранилище
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		a.cfg.HTTP.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info(ctx, "Остановка HTTP сервера...")
				return errors.Join(srv.Shutdown(ctx), store.Close())
			},
		},
	)

	return waitServe(ctx, serveErr, wait, store.Close)
}

// waitServe ждёт сигнала остановки или падения сервера.
// При падении хранилище закрывается здесь, сигналов уже не будет.
func waitServe(ctx context.Context, serveErr <-chan error, wait <-chan int, closeStore func() error) error {
	select {
	case err := <-serveErr:
		logger.Error(ctx, err, "HTTP сервер остановлен с ошибкой")
		return errors.Join(fmt.Errorf("http server: %w", err), closeStore())
	case exitCode := <-wait:
		logger.Info(ctx, "Сервер остановлен", "code", exitCode)
		if exitCode != 0 {
			return fmt.Errorf("graceful shutdown finished with code %d", exitCode)
		}
		return nil
	}
}
