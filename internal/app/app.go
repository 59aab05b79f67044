package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"wrestlenews/internal/adapter/fetcher"
	"wrestlenews/internal/adapter/notifier"
	"wrestlenews/internal/adapter/source"
	"wrestlenews/internal/config"
	"wrestlenews/internal/logger"
	"wrestlenews/internal/registry"
	server "wrestlenews/internal/transport/http"
	"wrestlenews/internal/usecase"
	"wrestlenews/internal/worker"
	"wrestlenews/storage"
)

// App представляет приложение агрегатора новостей рестлинга.
// Координирует работу всех компонентов: HTTP-сервера, планировщика обновлений,
// менеджера ленты, хранилища и диспетчера уведомлений.
type App struct {
	config     *config.Config
	logger     *slog.Logger
	server     *http.Server
	worker     *worker.Worker
	manager    *usecase.FeedManager
	dispatcher notifier.Dispatcher
	sources    *registry.Sources
	stopChan   chan os.Signal
	wg         sync.WaitGroup
}

// New создает и инициализирует приложение: логгер, реестры, хранилище,
// диспетчер, менеджер ленты, HTTP-сервер и воркер. Статьи из хранилища
// загружаются до первого обновления.
func New(cfg *config.Config) (*App, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)
	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	sources := registry.NewSources(appLogger)
	for _, sc := range cfg.Sources {
		d, err := sc.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("bad source config: %w", err)
		}
		if err := sources.Register(d); err != nil {
			return nil, fmt.Errorf("failed to register source: %w", err)
		}
	}
	promotions := registry.NewPromotions(cfg.Promotions)

	initCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.StoreTimeout.Duration)
	defer cancel()
	store, err := storage.New(initCtx, cfg.Database, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	dispatcher, err := notifier.New(cfg.Notifier, appLogger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init notifier: %w", err)
	}

	httpFetcher := fetcher.NewHTTPFetcher(appLogger, cfg.Engine.UserAgent)
	sourceFetcher := source.NewDefaultRegistry(httpFetcher, appLogger)
	coordinator := usecase.NewCoordinator(sourceFetcher, cfg.Engine, appLogger)
	manager := usecase.NewFeedManager(coordinator, sources, promotions, cfg.Engine, appLogger,
		usecase.WithStore(store),
		usecase.WithDispatcher(dispatcher),
	)
	if err := manager.Bootstrap(initCtx); err != nil {
		appLogger.Warn("Starting with an empty feed",
			slog.String("component", "app"),
			slog.Any("error", err),
		)
	}

	handler := server.NewHandler(appLogger, manager, sources, promotions, cfg.Engine.DefaultNewsLimit)
	router := server.NewServer(appLogger, handler)

	httpServer := &http.Server{Addr: cfg.Server.Address, Handler: router}
	httpServer.RegisterOnShutdown(handler.CloseStreams)

	return &App{
		config:     cfg,
		logger:     appLogger,
		server:     httpServer,
		worker:     worker.New(manager, cfg.Engine.Schedule, appLogger),
		manager:    manager,
		dispatcher: dispatcher,
		sources:    sources,
		stopChan:   make(chan os.Signal, 1),
	}, nil
}

// Run запускает воркер и HTTP-сервер и блокируется до сигнала завершения
// или ошибки сервера.
func (a *App) Run() error {
	a.logger.Info("Starting wrestling news aggregator",
		slog.String("component", "app"),
		slog.Int("source_count", a.sources.Len()),
		slog.String("schedule", a.config.Engine.Schedule),
		slog.String("database", a.config.Database.Driver),
		slog.String("notifier", a.config.Notifier.Driver),
	)
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create listener: %w", err), a.Shutdown())
	}
	if err := a.worker.Start(); err != nil {
		listener.Close()
		return errors.Join(err, a.Shutdown())
	}
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)
	serverErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.String("component", "server"), slog.Any("error", err))
			serverErr <- err
		}
	}()
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		return errors.Join(err, a.Shutdown())
	}
	return a.Shutdown()
}

// Shutdown выполняет graceful shutdown: останавливает воркер, завершает HTTP-сервер,
// дописывает очередь хранилища и закрывает внешние соединения.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	if a.worker != nil {
		a.worker.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout.Duration)
	defer cancel()
	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
		errs = append(errs, err)
	}
	a.wg.Wait()
	if err := a.manager.Close(); err != nil {
		a.logger.Error("Feed manager shutdown failed", slog.Any("error", err))
		errs = append(errs, err)
	}
	if err := a.dispatcher.Close(); err != nil {
		a.logger.Error("Notifier shutdown failed", slog.Any("error", err))
		errs = append(errs, err)
	}
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return errors.Join(errs...)
}
