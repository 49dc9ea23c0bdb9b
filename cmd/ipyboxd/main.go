// Command ipyboxd runs the sandbox control plane: it manages the lifecycle
// of ipybox Docker containers and proxies JSON-RPC MCP stdio servers
// running inside them over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-arndt/ipyboxd/internal/api"
	"github.com/p-arndt/ipyboxd/internal/config"
	"github.com/p-arndt/ipyboxd/internal/containermgr"
	"github.com/p-arndt/ipyboxd/internal/mcpproxy"
	"github.com/p-arndt/ipyboxd/internal/runtime"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ipyboxd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "path to ipyboxd.yaml")
	logLevelStr := fs.String("log-level", "", "log level: debug, info, warn, error (default from IPYBOX_LOG_LEVEL or info)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: resolveLogLevel(*logLevelStr)}))

	path := *cfgPath
	if path == "" {
		for _, p := range []string{"ipyboxd.yaml", "/etc/ipyboxd/ipyboxd.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	logger.Debug("config loaded", "config_path", path, "listen", cfg.Listen(), "default_tag", cfg.DefaultTag)

	if cfg.APIKey == "" {
		logger.Warn("no API key configured — running in open access mode (dev only; do not use in production)")
	}

	rt, err := runtime.New(cfg.Defaults)
	if err != nil {
		logger.Error("build runtime client", "error", err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Ping(ctx); err != nil {
		logger.Error("docker ping failed", "error", err)
		return 1
	}
	logger.Info("docker runtime OK")

	containers := containermgr.NewManager(rt)
	cleanupInterval := time.Duration(cfg.CleanupIntervalSeconds) * time.Second
	maxIdle := time.Duration(cfg.MaxIdleTimeSeconds) * time.Second
	go containers.RunReaper(ctx, cleanupInterval, maxIdle, logger)

	proxy := mcpproxy.New(containers, maxIdle, logger)
	go proxy.RunReaper(ctx, cleanupInterval)

	srv := api.NewServer(cfg, containers, proxy, logger)

	httpServer := &http.Server{
		Addr:         cfg.Listen(),
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := proxy.Stop(shutdownCtx); err != nil {
			logger.Error("stop mcp proxy", "error", err)
		}
		containers.DestroyAll(shutdownCtx, logger)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown http server", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Listen())
	fmt.Fprintf(os.Stderr, "\n  ipyboxd ready\n  API: http://%s\n\n", cfg.Listen())

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		return 1
	}

	return 0
}

func resolveLogLevel(flagValue string) slog.Level {
	v := flagValue
	if v == "" {
		v = os.Getenv("IPYBOX_LOG_LEVEL")
	}
	switch v {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
