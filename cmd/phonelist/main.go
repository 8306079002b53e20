// Command phonelist manages the contact list from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/myphonelist/backend/internal/config"
	"github.com/myphonelist/backend/internal/logging"
	"github.com/myphonelist/backend/internal/repository"
	"github.com/myphonelist/backend/internal/service"
	"github.com/myphonelist/backend/internal/storage"
)

func main() {
	cfg := config.Load()
	// stdout はコマンド出力用なのでログは stderr へ
	level := cfg.LogLevel
	if level == "" {
		level = "WARN"
	}
	slog.SetDefault(logging.New(os.Stderr, level, "text"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(storeOpener(cfg))
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// storeOpener opens the configured store and, when available, the export storage.
func storeOpener(cfg *config.Config) openFunc {
	return func(ctx context.Context) (*app, error) {
		store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DSN())
		if err != nil {
			return nil, err
		}
		var opts []service.Option
		if st, err := storage.New(ctx, cfg.Storage()); err != nil {
			slog.Warn("export storage disabled", "driver", cfg.ExportStorage, "error", err)
		} else {
			opts = append(opts, service.WithStorage(st))
		}
		return &app{svc: service.NewContactService(store, opts...), close: store.Close}, nil
	}
}
