package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/tooldb/internal/api"
	"github.com/khanglvm/tooldb/internal/config"
	"github.com/khanglvm/tooldb/internal/embeddings"
	"github.com/khanglvm/tooldb/internal/embeddings/openai"
	"github.com/khanglvm/tooldb/internal/matcher"
	"github.com/khanglvm/tooldb/internal/observe"
	"github.com/khanglvm/tooldb/internal/storage"
	"github.com/khanglvm/tooldb/internal/vectorstore"
	"github.com/khanglvm/tooldb/internal/version"
)

// cleanupInterval is how often expired history is pruned.
const cleanupInterval = time.Hour

// app is a fully wired server.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	provider *observe.Provider
	history  *storage.SQLiteStorage
	coll     vectorstore.Collection
	svc      *matcher.Service
	server   *http.Server
}

// newApp builds every component from cfg. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	if a.provider, err = observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version.Version,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialise metrics: %w", err)
	}
	metrics, err := observe.NewMetrics(a.provider.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	if cfg.History.Enabled {
		a.history = storage.NewStorage(cfg.History.Path, logger.Named("history"))
		if err := a.history.Init(); err != nil {
			// Storage disables itself; the server runs without history.
			logger.Warn("history unavailable", zap.Error(err))
		}
	}

	var provider embeddings.Provider
	if vectorstore.NeedsEmbeddings(cfg.Store.Backend) {
		if provider, err = a.newEmbeddings(); err != nil {
			return nil, err
		}
	}

	if a.coll, err = vectorstore.Open(ctx, vectorstore.Options{
		Backend:     cfg.Store.Backend,
		Name:        cfg.Store.Collection,
		PostgresDSN: cfg.Store.PostgresDSN,
		Provider:    provider,
	}); err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	svcOpts := []matcher.Option{
		matcher.WithLogger(logger.Named("matcher")),
		matcher.WithObserver(metrics),
	}
	if a.history != nil && a.history.Enabled() {
		svcOpts = append(svcOpts, matcher.WithHistory(a.history))
	}
	if a.svc, err = matcher.New(ctx, a.coll, svcOpts...); err != nil {
		return nil, err
	}

	srv, err := api.New(a.svc,
		api.WithLogger(logger.Named("http")),
		api.WithMetrics(metrics),
		api.WithMetricsHandler(a.provider.Handler()),
	)
	if err != nil {
		return nil, err
	}

	a.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server configured",
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Store.Backend),
		zap.String("collection", a.svc.CollectionName()),
		zap.Bool("history", a.history != nil && a.history.Enabled()),
	)
	return a, nil
}

// newEmbeddings builds the configured provider, cached through the history
// database when enabled.
func (a *app) newEmbeddings() (embeddings.Provider, error) {
	ec := a.cfg.Embeddings

	opts := []openai.Option{
		openai.WithTimeout(ec.Timeout),
		openai.WithMaxRetries(ec.MaxRetries),
	}
	if ec.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(ec.BaseURL))
	}
	p, err := openai.New(ec.APIKey, ec.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings provider: %w", err)
	}

	if ec.Cache && a.history != nil && a.history.Enabled() {
		return embeddings.NewCached(p, a.history, a.logger.Named("embeddings")), nil
	}
	return p, nil
}

// run serves on ln until ctx is cancelled, then drains in-flight requests.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.history != nil && a.history.Enabled() && a.cfg.History.Retention > 0 {
		g.Go(func() error {
			a.pruneHistory(gctx)
			return nil
		})
	}

	return g.Wait()
}

// pruneHistory removes expired history once at start and then every
// cleanupInterval until ctx is done.
func (a *app) pruneHistory(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		if err := a.history.Cleanup(a.cfg.History.Retention); err != nil {
			a.logger.Warn("history cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// close releases every component that was created.
func (a *app) close(ctx context.Context) {
	if a.coll != nil {
		if err := a.coll.Close(); err != nil {
			a.logger.Warn("failed to close collection", zap.Error(err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("failed to close history", zap.Error(err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shut down metrics", zap.Error(err))
		}
	}
}
