package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/myphonelist/backend/internal/config"
	"github.com/myphonelist/backend/internal/handler"
	"github.com/myphonelist/backend/internal/inbox"
	"github.com/myphonelist/backend/internal/logging"
	"github.com/myphonelist/backend/internal/metrics"
	"github.com/myphonelist/backend/internal/repository"
	"github.com/myphonelist/backend/internal/service"
	"github.com/myphonelist/backend/internal/storage"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		logging.Fatal("failed to open contact store", "driver", cfg.DatabaseDriver, "error", err)
	}
	defer store.Close()

	m := metrics.New()
	opts := []service.Option{service.WithMetrics(m)}

	// エクスポート先が設定できない場合は backup/restore を無効化して起動を続ける
	exportStorage, err := storage.New(ctx, cfg.Storage())
	if err != nil {
		slog.Warn("export storage disabled", "driver", cfg.ExportStorage, "error", err)
	} else {
		opts = append(opts, service.WithStorage(exportStorage))
	}

	contactService := service.NewContactService(store, opts...)

	h := handler.New(store, cfg.FrontendURL)
	contactHandler := handler.NewContactHandler(contactService)
	liveHandler := handler.NewLiveHandler(contactService, cfg.FrontendURL, m)

	// import / share は 1 分あたり 30 リクエストまで
	uploadLimiter := handler.NewRateLimiter(30)
	defer uploadLimiter.Stop()
	limited := func(f http.HandlerFunc) http.Handler { return uploadLimiter.Middleware(f) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("GET /metrics", m.Handler())

	mux.HandleFunc("GET /api/contacts", contactHandler.List)
	mux.HandleFunc("POST /api/contacts", contactHandler.Create)
	mux.HandleFunc("GET /api/contacts/live", liveHandler.Live)
	mux.HandleFunc("GET /api/contacts/export", contactHandler.Export)
	mux.HandleFunc("POST /api/contacts/backup", contactHandler.Backup)
	mux.Handle("POST /api/contacts/import", limited(contactHandler.Import))
	mux.Handle("POST /api/contacts/share", limited(contactHandler.Share))
	mux.HandleFunc("GET /api/contacts/{id}", contactHandler.Get)
	mux.HandleFunc("PUT /api/contacts/{id}", contactHandler.Update)
	mux.HandleFunc("DELETE /api/contacts/{id}", contactHandler.Delete)

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     h.Chain(mux),
		ReadTimeout: 10 * time.Second,
		// WriteTimeout は websocket の live view を切断するため設定しない
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", server.Addr, "driver", cfg.DatabaseDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.InboxDir != "" {
		watcher, err := inbox.NewWatcher(cfg.InboxDir, contactService)
		if err != nil {
			logging.Fatal("failed to create inbox watcher", "dir", cfg.InboxDir, "error", err)
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
		return
	}
	slog.Info("server stopped")
}
