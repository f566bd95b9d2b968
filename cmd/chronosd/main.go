// Command chronosd runs the chronos cache engine: a RESP2 listener for
// client traffic and an HTTP listener for the /health, /metrics, /stats
// observability surface (spec §6).
//
// Startup sequence, signal handling, and graceful-shutdown shape follow
// p-agent-test-kog-demo's cmd/agent/main.go: load config, build
// collaborators, start listeners in goroutines, block on a signal
// channel, then shut each component down within a bounded grace period.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chronos-cache/chronos"
	"github.com/chronos-cache/chronos/httpapi"
	"github.com/chronos-cache/chronos/resp"
)

func main() {
	cfg, err := loadProcessConfig(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString("chronosd: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newZerologAdapter(cfg.LogLevel)
	logger.Info("starting chronosd",
		"resp_addr", cfg.RESPListenAddr,
		"http_addr", cfg.HTTPListenAddr,
	)

	engineCfg := chronos.DefaultConfig()
	metrics := chronos.NewMetrics(engineCfg.TimeProvider)

	engineCfg.Segments = cfg.Segments
	engineCfg.MaxMemoryBytes = cfg.MaxMemoryBytes
	engineCfg.EvictionPolicy = chronos.PolicyKind(strings.ToUpper(cfg.EvictionPolicy))
	engineCfg.TTL.Enabled = cfg.TTLEnabled
	engineCfg.Logger = logger
	engineCfg.MetricsCollector = metrics

	var loader chronos.DataLoader
	if cfg.UpstreamURL != "" {
		loader = newHTTPDataLoader(cfg.UpstreamURL, cfg.UpstreamTimeout)
	}
	engineCfg.Prefetch.Enabled = cfg.PrefetchEnabled && loader != nil
	engineCfg.Prefetch.Loader = loader

	store, err := chronos.NewStore(engineCfg)
	if err != nil {
		logger.Error("failed to build store", "error", err)
		os.Exit(1)
	}

	var snapshotCodec *chronos.SnapshotCodec
	if cfg.SnapshotEnabled {
		if err := chronos.EnsureDir(cfg.SnapshotPath); err != nil {
			logger.Error("failed to create snapshot directory", "error", err)
		}
		snapshotCodec = chronos.NewSnapshotCodec(cfg.SnapshotPath, engineCfg.TimeProvider, logger)
		if cfg.SnapshotLoadOnStart {
			loaded, err := snapshotCodec.Load(store)
			if err != nil {
				logger.Warn("snapshot restore incomplete", "loaded", loaded, "error", err)
			} else {
				logger.Info("restored snapshot", "loaded", loaded)
			}
		}
	}

	var ttlController *chronos.TTLController
	if engineCfg.TTL.Enabled {
		ttlController = chronos.NewTTLController(store, engineCfg.TTL, engineCfg.TimeProvider)
		store.SetForgetter(ttlController)
		ttlController.Start()
	}

	var prefetcher *chronos.Prefetcher
	if engineCfg.Prefetch.Enabled {
		prefetcher, err = chronos.NewPrefetcher(store, engineCfg.Prefetch, engineCfg.TimeProvider, metrics, logger)
		if err != nil {
			logger.Warn("prefetcher disabled", "error", err)
			prefetcher = nil
		}
	}

	var warmer *chronos.Warmer
	if loader != nil {
		warmer = chronos.NewWarmer(store, loader, engineCfg.Prefetch.Workers, logger)
	}

	var hotConfig *chronos.HotConfig
	if cfg.HotConfigPath != "" {
		hotConfig, err = chronos.NewHotConfig(store, chronos.HotConfigOptions{
			ConfigPath: cfg.HotConfigPath,
			Logger:     logger,
			TTL:        ttlController,
			Prefetch:   prefetcher,
		})
		if err != nil {
			logger.Warn("hot config disabled", "error", err)
		} else if err := hotConfig.Start(); err != nil {
			logger.Warn("hot config watcher failed to start", "error", err)
		}
	}

	respServer := resp.NewServer(cfg.RESPListenAddr, store, logger)
	if ttlController != nil {
		respServer.WithChangeObserver(ttlController)
	}
	if prefetcher != nil {
		respServer.WithAccessObserver(prefetcher)
	}
	httpServer := httpapi.NewServer(metrics, store, warmer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := respServer.ListenAndServe(); err != nil {
			logger.Error("resp server stopped", "error", err)
		}
	}()
	go func() {
		if err := httpServer.Listen(cfg.HTTPListenAddr); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()

	var snapshotStop chan struct{}
	if snapshotCodec != nil && cfg.SnapshotInterval > 0 {
		snapshotStop = make(chan struct{})
		go runPeriodicSnapshot(ctx, snapshotStop, snapshotCodec, store, cfg.SnapshotInterval, logger)
	}

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := respServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("resp server shutdown incomplete", "error", err)
	}
	if err := httpServer.App().ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http server shutdown incomplete", "error", err)
	}
	if snapshotStop != nil {
		close(snapshotStop)
	}
	if ttlController != nil {
		ttlController.Stop()
	}
	if prefetcher != nil {
		prefetcher.Stop()
	}
	if hotConfig != nil {
		hotConfig.Stop()
	}
	store.StopExpirySweep(shutdownCtx)

	if snapshotCodec != nil {
		if err := snapshotCodec.Save(store); err != nil {
			logger.Warn("final snapshot save failed", "error", err)
		}
	}

	logger.Info("chronosd stopped")
}

func runPeriodicSnapshot(ctx context.Context, stop chan struct{}, codec *chronos.SnapshotCodec, store *chronos.Store, interval time.Duration, logger chronos.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := codec.Save(store); err != nil {
				logger.Warn("periodic snapshot failed", "error", err)
			}
		}
	}
}
