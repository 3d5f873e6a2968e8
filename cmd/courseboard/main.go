package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nndl/courseboard/internal/adapters/http/api"
	"github.com/nndl/courseboard/internal/adapters/http/site"
	"github.com/nndl/courseboard/internal/adapters/http/swagger"
	"github.com/nndl/courseboard/internal/app"
	"github.com/nndl/courseboard/internal/config"
	"github.com/nndl/courseboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 15 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := cfg.RequireEndpoints(); err != nil {
		os.Stderr.WriteString("configuration incomplete: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithEndpoints(app.Endpoints{
			IdentitySignInURL:  cfg.IdentitySignInURL,
			IdentityRefreshURL: cfg.IdentityRefreshURL,
			IdentityRevokeURL:  cfg.IdentityRevokeURL,
			IdentityAPIKey:     cfg.IdentityAPIKey,
			StorageUploadURL:   cfg.StorageUploadURL,
			ScoringURL:         cfg.ScoringURL,
			RecordStoreURL:     cfg.RecordStoreURL,
		}),
		app.WithAllowedDomains(cfg.AllowedDomains),
		app.WithAdminEmail(cfg.AdminEmail),
		app.WithRefreshInterval(time.Duration(cfg.TokenRefreshIntervalMin)*time.Minute),
		app.WithPollInterval(time.Duration(cfg.LeaderboardPollIntervalSec)*time.Second),
		app.WithRequestTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
		app.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc, svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
