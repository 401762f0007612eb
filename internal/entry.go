// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/bloc/internal/api"
	"github.com/starford/bloc/internal/inbox"
	"github.com/starford/bloc/internal/mcpserver"
	"github.com/starford/bloc/internal/models"
	"github.com/starford/bloc/internal/notes"
	"github.com/starford/bloc/internal/sse"
)

func (a *application) init(out io.Writer) (*Config, *slog.Logger, error) {
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: a.config.App.LogLevel,
		}))
	}
	return a.config, a.logger, nil
}

func newApplication(opts []Option) *application {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run starts the HTTP server with the given options and blocks until ctx is
// cancelled or a SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts ...Option) error {
	cfg, logger, err := newApplication(opts).init(os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Duration("debounce", cfg.Storage.Debounce),
		slog.String("legacy_dir", cfg.Legacy.Dir),
		slog.String("inbox_dir", cfg.Inbox.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	c := openCore(ctx, cfg, logger,
		notes.WithEvents(broker.PublishChange),
		notes.WithNotices(broker.PublishNotice),
	)

	h := api.NewHandler(c.notes, c.policy, c.storeID)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Unauthenticated probes and metrics.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"durable": c.notes.Durable(),
			"storage": c.policy.Status().Indicator(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Inbox.Dir != "" {
		g.Go(func() error {
			if err := os.MkdirAll(cfg.Inbox.Dir, 0o755); err != nil {
				logger.Error("inbox: create dir failed", slog.String("error", err.Error()))
				return nil
			}
			if err := inbox.Watch(gCtx, cfg.Inbox.Dir, c.notes, logger); err != nil {
				logger.Error("inbox: watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		// Ends open SSE streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := c.close(shutdownCtx); err != nil {
			logger.Error("final save failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, logger, err := newApplication(opts).init(os.Stderr)
	if err != nil {
		return err
	}

	c := openCore(ctx, cfg, logger)
	defer func() {
		if err := c.close(context.Background()); err != nil {
			logger.Error("final save failed", slog.String("error", err.Error()))
		}
	}()

	return mcpserver.New(c.notes, c.policy, c.storeID).ServeStdio()
}

// ExportNotes writes the selected notes to outPath, or to the default
// export filename in the working directory when outPath is empty. "-"
// writes to stdout. It returns the path written.
func ExportNotes(ctx context.Context, ids []int64, outPath string, opts ...Option) (string, error) {
	cfg, logger, err := newApplication(opts).init(os.Stderr)
	if err != nil {
		return "", err
	}
	c := openCore(ctx, cfg, logger)
	defer c.close(ctx) //nolint:errcheck // read-only path

	exp, err := c.notes.Export(models.NewIDSet(ids...))
	if err != nil {
		return "", err
	}
	if outPath == "-" {
		_, err = os.Stdout.Write(exp.Data)
		return outPath, err
	}
	if outPath == "" {
		outPath = exp.Filename
	}
	if err := os.WriteFile(filepath.Clean(outPath), exp.Data, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", outPath, err)
	}
	logger.Info("export: written", slog.String("path", outPath), slog.Int("count", exp.Count))
	return outPath, nil
}

// ImportFile appends the notes in an export file to the collection and
// saves before returning.
func ImportFile(ctx context.Context, path string, opts ...Option) (notes.ImportSummary, error) {
	cfg, logger, err := newApplication(opts).init(os.Stderr)
	if err != nil {
		return notes.ImportSummary{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return notes.ImportSummary{}, fmt.Errorf("import: read %s: %w", path, err)
	}

	c := openCore(ctx, cfg, logger)
	sum, err := c.notes.Import(ctx, data)
	closeErr := c.close(ctx)
	if err != nil {
		return notes.ImportSummary{}, err
	}
	if !c.notes.Durable() {
		return sum, errors.Join(errors.New("import: notes were not saved"), closeErr)
	}
	return sum, nil
}
