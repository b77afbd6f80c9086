package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/exeio/internal/applog"
	"github.com/loykin/exeio/internal/configstore"
	"github.com/loykin/exeio/internal/lock"
	"github.com/loykin/exeio/internal/logio"
	"github.com/loykin/exeio/internal/metrics"
	"github.com/loykin/exeio/internal/registry"
	"github.com/loykin/exeio/internal/server"
)

// exitFatalStartup and exitLockHeld are the non-zero exit codes a fatal
// serve failure reports.
const (
	exitFatalStartup = 1
	exitLockHeld     = 2
)

func runServe(flags ServeFlags) int {
	dataDir := flags.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir()
	}
	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	logDir := defaultLogDir(dataDir)

	if err := os.MkdirAll(logDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "exeio: create log dir: %v\n", err)
		return exitFatalStartup
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "exeio: create config dir: %v\n", err)
		return exitFatalStartup
	}

	diag, diagCloser, err := applog.New(applog.Config{Level: slog.LevelInfo})
	if err != nil {
		fmt.Fprintf(os.Stderr, "exeio: init diagnostics logger: %v\n", err)
		return exitFatalStartup
	}
	defer func() { _ = diagCloser.Close() }()

	lk, err := lock.Acquire(defaultLockPath(dataDir))
	if err != nil {
		if err == lock.ErrHeld {
			diag.Error("another exeio instance already holds the lock", "path", defaultLockPath(dataDir))
			return exitLockHeld
		}
		diag.Error("failed to acquire single-instance lock", "error", err)
		return exitFatalStartup
	}
	defer func() { _ = lk.Release() }()

	addr := net.JoinHostPort(flags.Host, strconv.Itoa(flags.Port))

	sysLog, err := logio.Open(defaultSystemLogPath(dataDir))
	if err != nil {
		diag.Error("failed to open system log", "error", err)
		return exitFatalStartup
	}
	defer func() { _ = sysLog.Close() }()
	sysLog.WithBindPrefix(addr)
	_ = sysLog.Append(logio.TagSystem, "supervisor starting")

	store, err := configstore.Open(configPath)
	if err != nil {
		diag.Error("failed to open config store", "path", configPath, "error", err)
		return exitFatalStartup
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		diag.Error("failed to register metrics", "error", err)
	}

	reg := registry.New(logDir, store)

	persisted, err := store.List()
	if err != nil {
		diag.Error("failed to list persisted entries", "error", err)
		return exitFatalStartup
	}
	for _, spec := range persisted {
		if _, err := reg.Add(spec); err != nil {
			diag.Error("failed to rehydrate persisted entry", "id", spec.ID, "error", err)
			_ = sysLog.Append(logio.TagSystem, fmt.Sprintf("rehydrate failed for %s: %v", spec.ID, err))
		} else {
			diag.Info("rehydrated persisted entry", "id", spec.ID)
		}
	}

	apiKey := flags.APIKey
	if apiKey == "" {
		apiKey = generateAPIKey()
		diag.Warn("no --api-key supplied, generated a random one for this run", "api_key", apiKey)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onShutdown := func() {
		diag.Info("shutdown requested via control plane")
		_ = sysLog.Append(logio.TagSystem, "shutdown requested via control plane")
		cancel()
	}

	srv := server.NewServer(addr, reg, server.Options{
		APIKey:     apiKey,
		Version:    version,
		Bind:       addr,
		OnShutdown: onShutdown,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			diag.Info("received signal, shutting down", "signal", sig.String())
			_ = sysLog.Append(logio.TagSystem, fmt.Sprintf("received signal %s", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	diag.Info("exeio listening", "addr", addr)
	_ = sysLog.Append(logio.TagSystem, fmt.Sprintf("listening on %s", addr))

	serveErr := server.Serve(ctx, srv)

	reg.Shutdown()
	_ = sysLog.Append(logio.TagSystem, "supervisor stopped")

	if serveErr != nil {
		diag.Error("server exited with error", "error", serveErr)
		return exitFatalStartup
	}
	return 0
}
