package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kolapsis/bytebot/internal/config"
	"github.com/kolapsis/bytebot/internal/hub"
	"github.com/kolapsis/bytebot/internal/server"
	"github.com/kolapsis/bytebot/internal/store"
	"github.com/kolapsis/bytebot/internal/tunnel"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("bytebot %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: bytebot <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the realtime hub\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting bytebot hub",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	_, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- Event Journal ---
	dbPath := config.ExpandHome(cfg.Database.Path)
	journal, err := store.NewSQLiteJournal(dbPath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() { _ = journal.Close() }()

	slog.Info("event journal opened", "path", dbPath)

	retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
	go journalCleanupLoop(ctx, journal, retention)

	// --- Connection Manager ---
	manager := hub.NewManager(hub.Options{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		CleanupInterval:   cfg.Hub.CleanupInterval,
		StaleAfter:        cfg.Hub.StaleAfter,
		SendTimeout:       cfg.Hub.SendTimeout,
		Journal:           store.NewEventRecorder(journal),
	})
	manager.Start(ctx)
	defer manager.Stop()

	// --- HTTP Server ---
	srv := &http.Server{
		Handler:     server.New(cfg, manager, journal).Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 2 * time.Minute,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	// --- Optional public tunnel ---
	var tun tunnel.Tunnel
	if cfg.Tunnel.Enabled {
		ng := tunnel.NewNgrok(cfg.Tunnel.AuthToken, cfg.Tunnel.Domain)
		publicURL, err := ng.Start(ctx, addr)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("starting tunnel: %w", err)
		}
		tun = ng
		defer func() { _ = tun.Close() }()
		slog.Info("hub reachable via tunnel", "public_url", publicURL)

		go func() {
			if err := srv.Serve(ng.Listener()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("tunnel server error", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("bytebot hub is ready", "addr", addr)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// journalCleanupLoop prunes old journal entries once a day.
func journalCleanupLoop(ctx context.Context, journal store.Journal, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := journal.Cleanup(retention); err != nil {
				slog.Warn("journal cleanup failed", "error", err)
			}
		}
	}
}
