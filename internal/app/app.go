package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"SalesReportAnalyzer/internal/api"
	"SalesReportAnalyzer/internal/config"
	"SalesReportAnalyzer/internal/infrastructure/fetcher"
	"SalesReportAnalyzer/internal/infrastructure/llm"
	"SalesReportAnalyzer/internal/infrastructure/parser"
	"SalesReportAnalyzer/internal/infrastructure/queue"
	"SalesReportAnalyzer/internal/infrastructure/storage"
	"SalesReportAnalyzer/internal/logging"
	"SalesReportAnalyzer/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	repository *storage.PostgresRepository
	dispatcher *queue.Dispatcher
	server     *http.Server
}

// New builds a runnable application instance. The Claude client and the
// database handle are created once here and shared read-only across all
// concurrent pipeline runs.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repository := storage.NewPostgresRepository(db)

	reportFetcher := fetcher.NewHTTPFetcher(
		&http.Client{Timeout: cfg.Fetcher.Timeout()},
		baseLogger.With("component", "fetcher"),
	)
	reportParser := parser.NewSalesReportParser(baseLogger.With("component", "parser"))
	claude := llm.NewClaudeClient(cfg.Claude, baseLogger.With("component", "claude"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Repository: repository,
		Fetcher:    reportFetcher,
		Parser:     reportParser,
		Narrative:  claude,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	dispatcher := queue.NewDispatcher(
		pipeline.Run,
		cfg.Dispatcher.Workers,
		cfg.Dispatcher.QueueSize,
		baseLogger.With("component", "dispatcher"),
	)

	router := api.NewServer(repository, dispatcher, baseLogger.With("component", "api")).Router()

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		repository: repository,
		dispatcher: dispatcher,
		server:     &http.Server{Addr: cfg.HTTP.Addr, Handler: router},
	}, nil
}

// Run ensures the schema, starts the dispatcher and the HTTP listener, and
// blocks until the context ends or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.repository.EnsureSchema(ctx); err != nil {
		return err
	}

	a.dispatcher.Start(ctx)
	defer a.dispatcher.Stop()
	defer a.db.Close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
