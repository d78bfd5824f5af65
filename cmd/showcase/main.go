package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
	"github.com/Amrut-Prajapati/ReUpyog/internal/handlers"
	"github.com/Amrut-Prajapati/ReUpyog/internal/pages"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/config"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/observability"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/session"
	platformstorage "github.com/Amrut-Prajapati/ReUpyog/internal/platform/storage"
)

const sweepInterval = time.Minute

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("showcase")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry, err := loadRegistry(cfg.Assets.Manifest)
	if err != nil {
		logger.Fatal("failed to load slot manifest", zap.Error(err))
	}
	catalog, err := pages.NewCatalog(registry, pages.DefaultPages())
	if err != nil {
		logger.Fatal("failed to build page catalog", zap.Error(err))
	}

	storeOpts := []assets.Option{
		assets.WithMaxImageBytes(cfg.Assets.MaxUploadBytes),
		assets.WithFetchTimeout(cfg.Assets.FetchTimeout),
		assets.WithFailureTTL(cfg.Assets.FailureTTL),
		assets.WithLogger(logger.Named("assets")),
	}
	factory, closeBackend, err := newStoreFactory(ctx, cfg.Assets, registry, storeOpts)
	if err != nil {
		logger.Fatal("failed to initialise asset backend", zap.Error(err))
	}
	defer closeBackend()

	pool := assets.NewPool(factory, cfg.Session.IdleTimeout)

	sessions, err := session.NewManager(session.Config{
		HashKey:      []byte(cfg.Session.HashKey),
		BlockKey:     []byte(cfg.Session.BlockKey),
		CookieSecure: cfg.Session.SecureCookie,
		IdleTimeout:  cfg.Session.IdleTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}
	if sessions.Ephemeral() {
		logger.Warn("SHOWCASE_SESSION_HASH_KEY not set; sessions will not survive a restart")
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		runSweeper(sweepCtx, pool, logger.Named("sessions"))
	}()

	httpLogger := logger.Named("http")
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(cfg.Trace.ProjectID),
		observability.RecoveryMiddleware(httpLogger),
		session.Middleware(sessions),
		observability.RequestLoggerMiddleware(),
	}

	slotHandlers := handlers.NewSlotHandlers(catalog, pool,
		handlers.WithMaxUploadBytes(cfg.Assets.MaxUploadBytes),
		handlers.WithUploadRateLimit(cfg.RateLimits.UploadsPerMinute),
	)
	pageHandlers := handlers.NewPageHandlers(catalog, pool)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithHealthStartedAt(startedAt),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithSlotRoutes(slotHandlers.Routes),
		handlers.WithPageRoutes(pageHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := httpLogger.With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("reupyog showcase listening",
			zap.String("backend", cfg.Assets.Backend),
			zap.Int("slots", registry.Len()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadRegistry(manifest string) (*assets.Registry, error) {
	if strings.TrimSpace(manifest) == "" {
		return assets.DefaultRegistry()
	}
	return assets.LoadManifestFile(manifest)
}

// newStoreFactory picks the per-session store. The remote backend shares one fetch cache across
// sessions; uploads stay private to each session.
func newStoreFactory(ctx context.Context, cfg config.AssetsConfig, reg *assets.Registry, opts []assets.Option) (assets.StoreFactory, func(), error) {
	noop := func() {}
	if cfg.Backend != config.BackendRemote {
		return assets.SessionFactory(reg, opts...), noop, nil
	}

	fetcher, closeFn, err := newFetcher(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}
	shared, err := assets.NewRemoteStore(reg, fetcher, opts...)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return assets.OverlayFactory(reg, shared, opts...), closeFn, nil
}

func newFetcher(ctx context.Context, cfg config.AssetsConfig) (assets.Fetcher, func(), error) {
	if !strings.HasPrefix(cfg.BaseURL, "gs://") {
		fetcher, err := assets.NewHTTPFetcher(cfg.BaseURL, cfg.FetchTimeout,
			assets.WithMaxBodyBytes(cfg.MaxUploadBytes))
		return fetcher, func() {}, err
	}

	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, func() {}, fmt.Errorf("storage client: %w", err)
	}
	reader, err := platformstorage.NewReader(client, cfg.BaseURL, cfg.MaxUploadBytes)
	if err != nil {
		_ = client.Close()
		return nil, func() {}, err
	}
	fetcher := assets.FetcherFunc(func(ctx context.Context, slot assets.Slot) ([]byte, error) {
		return reader.ReadObject(ctx, slot.RemoteFilename)
	})
	return fetcher, func() { _ = client.Close() }, nil
}

func runSweeper(ctx context.Context, pool *assets.Pool, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := pool.Sweep(now); removed > 0 {
				logger.Info("idle sessions evicted", zap.Int("removed", removed), zap.Int("remaining", pool.Len()))
			}
		}
	}
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("SHOWCASE_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}
