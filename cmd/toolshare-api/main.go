package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/toolshare/internal/authz"
	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/handlers"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/outbox"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/internal/sse"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	hub := sse.NewHub()
	go hub.Run()
	defer hub.Stop()

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	userService := services.NewUserService(db)
	allowlistService := services.NewAllowlistService(db)
	emailService := services.NewEmailService(cfg.SMTP, cfg.BaseURL)
	projectService := services.NewProjectService(db)
	contentService := services.NewContentService(db)

	effects := outbox.NewRegistry(m)
	services.RegisterEffects(effects, allowlistService, emailService, hub)
	queue := outbox.NewQueue(&cfg.Redis, effects, m)
	defer func() { _ = queue.Close() }()

	if queue.IsAsync() {
		worker := outbox.NewWorker(&cfg.Redis, effects)
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start outbox worker: %v", err)
		}
		defer worker.Shutdown()
	}

	accessService := services.NewAccessService(db, cfg.Sharing, queue, m)
	inviteService := services.NewInviteService(db, accessService, cfg.Sharing, queue, m)
	shareTokenService := services.NewShareTokenService(db, m)
	guard := authz.NewGuard(projectService, accessService, m)

	router := handlers.NewRouter(handlers.RouterConfig{
		JWT:         jwtService,
		Guard:       guard,
		Hub:         hub,
		Metrics:     m,
		Users:       userService,
		Projects:    projectService,
		Access:      accessService,
		Invites:     inviteService,
		ShareTokens: shareTokenService,
		Content:     contentService,
		BaseURL:     cfg.BaseURL,
		Production:  cfg.IsProduction(),
		Ping:        db.Pool.Ping,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
