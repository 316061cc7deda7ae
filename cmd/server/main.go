package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	tablestore "muxmonitor"
	"muxmonitor/internal/api"
	"muxmonitor/internal/bus"
	"muxmonitor/internal/config"
	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/rules"
	"muxmonitor/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	bundle, err := rules.LoadOrDefault(cfg.RulesPath)
	if err != nil {
		logger.Error("invalid rule tables", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("rule tables loaded", slog.String("version", bundle.Version), slog.String("fingerprint", bundle.Fingerprint()))

	store, err := tablestore.NewStore(cfg.TableStore())
	if err != nil {
		logger.Error("failed to open table store", slog.String("type", cfg.Store.Type), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	deps := monitoring.Deps{Store: store, Rules: bundle, Logger: logger}
	handler := &api.Handler{Logger: logger, Timeout: cfg.Server.RequestTimeout}

	if cfg.Findings.DatabaseURL != "" {
		pg, err := storage.NewStore(ctx, cfg.Findings.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to findings db", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pg.Close()
		if err := storage.Migrate(ctx, pg.Pool, logger); err != nil {
			logger.Error("failed to migrate findings db", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repo := storage.NewRepository(pg)
		deps.Findings = repo
		handler.Findings = repo
	}
	if cfg.Events.NATSURL != "" {
		publisher, err := bus.NewPublisher(cfg.Events.NATSURL)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		deps.Bus = publisher
	}
	handler.Service = monitoring.NewService(deps, cfg.ServiceOptions())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout + 5*time.Second))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("muxmonitor listening", slog.String("port", cfg.Server.Port), slog.String("store", cfg.Store.Type))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("error", err.Error()))
	}
}
