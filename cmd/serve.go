package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/stylewars/internal/adapters/http/api"
	"github.com/okian/stylewars/internal/adapters/http/site"
	"github.com/okian/stylewars/internal/adapters/http/swagger"
	service "github.com/okian/stylewars/internal/app"
	"github.com/okian/stylewars/internal/config"
	"github.com/okian/stylewars/pkg/logger"
	"github.com/okian/stylewars/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

type serveOptions struct {
	configPath string
	addr       string
	challenges string
}

func addServeFlags(fs *pflag.FlagSet, opts *serveOptions) {
	fs.SetNormalizeFunc(normalizeFlag)
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (env: "+config.FileEnv+")")
	fs.StringVarP(&opts.addr, "addr", "a", "", "listen address, overrides addr")
	fs.StringVar(&opts.challenges, "challenges", "", "challenge manifest to preload, overrides challenges_manifest")
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scoring service (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	addServeFlags(cmd.Flags(), opts)
	return cmd
}

// loadConfig layers the flags over config.Load.
func loadConfig(ctx context.Context, opts *serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(ctx, opts.configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.challenges != "" {
		cfg.ChallengesManifest = opts.challenges
	}
	return cfg, nil
}

// serve runs the service until SIGINT or SIGTERM.
func serve(parent context.Context, opts *serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := service.New(
		service.WithLogger(logger.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.SubmissionQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithStreamTopN(cfg.StreamTopN),
	)
	if cfg.ChallengesManifest != "" {
		n, err := svc.LoadChallenges(ctx, cfg.ChallengesManifest)
		if err != nil {
			return fmt.Errorf("failed to load challenges: %w", err)
		}
		log.Info(ctx, "challenges loaded", logger.Int("count", n), logger.String("manifest", cfg.ChallengesManifest))
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newRouter mounts every HTTP surface of a started service.
func newRouter(ctx context.Context, cfg *config.Config, svc *service.Service) *httprouter.Router {
	router := httprouter.New()
	swagger.Register(ctx, router)
	site.Register(ctx, router)

	opts := []api.Option{
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithPublicURL(cfg.PublicURL),
	}
	if hub := svc.Hub(); hub != nil {
		opts = append(opts, api.WithStream(hub.Handle()))
	}
	api.NewServer(svc, svc, opts...).Register(ctx, router)
	return router
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges GetStats does not already set.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if boards, ok := stats["boards"].(int); ok {
		metrics.UpdateBoardCount(boards)
	}
	if clients, ok := stats["streamClients"].(int); ok {
		metrics.UpdateStreamClients(clients)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
		if queueLen, ok := stats["queueLength"].(int); ok && queueSize > 0 {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(queueSize))
		}
	}
}
