package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgnsrekt/gexboard/internal/analytics"
	"github.com/dgnsrekt/gexboard/internal/api"
	"github.com/dgnsrekt/gexboard/internal/config"
	"github.com/dgnsrekt/gexboard/internal/history"
	"github.com/dgnsrekt/gexboard/internal/intraday"
	"github.com/dgnsrekt/gexboard/internal/market"
	"github.com/dgnsrekt/gexboard/internal/metrics"
	"github.com/dgnsrekt/gexboard/internal/notify"
	"github.com/dgnsrekt/gexboard/internal/playback"
	"github.com/dgnsrekt/gexboard/internal/push"
	"github.com/dgnsrekt/gexboard/internal/refresh"
	"github.com/dgnsrekt/gexboard/internal/server"
	"github.com/dgnsrekt/gexboard/internal/session"
)

var (
	cfgFile string
	verbose bool
)

func setupLogger(verbose bool, level string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	if level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(l)
		}
	}

	return zapConfig.Build()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "gexboard",
		Short: "Gamma exposure dashboard analytics service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("GEXBOARD_CONFIG"), "config file path (or set GEXBOARD_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return err
	}

	logger, err := setupLogger(verbose, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return err
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int("refreshSec", cfg.Refresh.IntervalSec),
		zap.String("historyDir", cfg.History.Directory),
	)

	// Upstream client
	client := api.NewClient(
		cfg.Upstream.BaseURL,
		cfg.Upstream.APIKey,
		cfg.Upstream.RatePerSecond,
		time.Duration(cfg.Upstream.TimeoutSec)*time.Second,
		time.Duration(cfg.Upstream.RetryDelaySec)*time.Second,
		cfg.Upstream.RetryCount,
		logger,
	)

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Session state
	store := session.NewStore(cfg.Session.File)
	view := store.Load()
	if view.RefreshSec == 0 {
		view.RefreshSec = cfg.Refresh.IntervalSec
	}

	// Push hub
	hub := push.NewHub(logger)
	go hub.Run(ctx)

	// Analytics pipeline
	classifier := analytics.NewClassifier(logger)
	tracker := intraday.NewTracker(cfg.Refresh.Timezone, logger)
	scheduler := refresh.NewScheduler(logger)
	notifier := notify.New(&cfg.Notify, logger)

	coordinator := refresh.NewCoordinator(
		client,
		classifier,
		tracker,
		scheduler,
		m,
		notifier,
		func(res refresh.Result) { hub.Publish(res) },
		view,
		cfg.Refresh.Timezone,
		logger,
	)

	// Playback: local history directory when configured, upstream otherwise.
	var provider playback.HistoryProvider = client
	if cfg.History.Directory != "" {
		provider = history.NewLoader(cfg.History.Directory, logger)
	}

	engine := playback.NewEngine(
		provider,
		func(snap market.Snapshot) { coordinator.ApplyPlayback(snap) },
		coordinator.Suspend,
		coordinator.Resume,
		logger,
	)

	coordinator.Run(ctx)

	// HTTP server
	srv := server.NewServer(coordinator, engine, client, store, hub, logger)
	router := server.NewRouter(srv, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	scheduler.StopAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
