package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailscale.com/tsnet"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/records"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/users"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := cfg.Log.NewLogger(os.Stdout)
	log.Info("LiftLog starting", "version", Version)

	store, err := cfg.Storage.OpenStore()
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("store opened", "substrate", cfg.Storage.Substrate, "quota_bytes", cfg.Storage.QuotaBytes)

	gen := ids.New()
	local := storage.NewLocal(store, records.NewNormalizer(gen), log)
	dir := users.New(store, gen, log)
	factory := service.New(local, log)
	defer factory.Close()

	ctx := context.Background()
	current, ok, err := dir.CurrentUser(ctx)
	if err != nil {
		log.Error("failed to read session", "error", err)
		os.Exit(1)
	}
	userID := ""
	if ok {
		userID = current.ID
	}

	res, err := factory.Initialize(ctx, storage.Kind(cfg.Storage.Backend), userID)
	if err != nil {
		log.Error("storage initialization failed", "error", err)
		os.Exit(1)
	}
	if res.Fallback {
		log.Warn("storage fell back to local", "requested", res.Requested, "reason", res.FallbackReason)
	}
	if res.Migration.Failed() {
		log.Warn("data migration failed, continuing on stored version", "from", res.Migration.From, "error", res.Migration.Err)
	}
	log.Info("storage ready", "backend", res.Backend, "user_id", res.UserID)

	opts := []server.Option{
		server.WithAPIKey(cfg.Auth.APIKey),
		server.WithMCP(mcp.Handler(mcp.New(factory, Version, log))),
	}

	// Listen on the tailnet or on a plain TCP address.
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf:     func(format string, args ...any) { log.Debug(fmt.Sprintf(format, args...), "component", "tsnet") },
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		opts = append(opts, server.WithTailscale(lc))

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "plain http")
	}

	srv := server.New(factory, dir, alpha.NewProvider(log), log, opts...)
	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig)
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
