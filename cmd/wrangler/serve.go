package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rpggio/mcp-wrangler/internal/broadcast"
	"github.com/rpggio/mcp-wrangler/internal/capability"
	"github.com/rpggio/mcp-wrangler/internal/chat"
	"github.com/rpggio/mcp-wrangler/internal/config"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/domain/decision"
	"github.com/rpggio/mcp-wrangler/internal/domain/root"
	"github.com/rpggio/mcp-wrangler/internal/domain/session"
	"github.com/rpggio/mcp-wrangler/internal/domain/task"
	"github.com/rpggio/mcp-wrangler/internal/llm"
	"github.com/rpggio/mcp-wrangler/internal/mcp"
	"github.com/rpggio/mcp-wrangler/internal/sqlite"
	"github.com/rpggio/mcp-wrangler/internal/transport"
)

const shutdownTimeout = 5 * time.Second

func serve(parent context.Context, cfg config.Config) error {
	logger, closeLog, err := newLogger(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("log file: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ensureDBDir(cfg.Activity.Path); err != nil {
		return fmt.Errorf("prepare activity database path: %w", err)
	}
	db, err := sqlite.Open(cfg.Activity.Path)
	if err != nil {
		return fmt.Errorf("open activity database: %w", err)
	}
	defer db.Close()

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	broadcaster := broadcast.New(logger)
	cache := capability.NewCache()
	tasks := task.NewRegistry(logger)
	decisions := decision.NewRegistry()
	sess := session.New(cfg.OpenAI.Model, cfg.OpenAI.SamplingModel)

	chatClient := llm.NewChatClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, nil, logger)
	responses := llm.NewResponsesClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, nil, logger)

	client := mcp.New(mcp.Options{
		Endpoint:        cfg.MCP.URL,
		RetryBackoff:    cfg.MCP.RetryBackoff,
		PingInterval:    cfg.MCP.PingInterval,
		SamplingModel:   sess.SamplingModel(),
		SamplingTimeout: cfg.MCP.SamplingTimeout,
	}, mcp.Deps{
		Cache:     cache,
		Decisions: decisions,
		Tasks:     tasks,
		Roots:     root.NewStore(),
		Publisher: broadcaster,
		Sampler:   chatClient,
		Activity:  activitySvc,
	}, logger)
	defer client.Close()

	// The API is served while the client keeps retrying; calls made before the
	// session is up fail with mcp.ErrNotConnected.
	go func() {
		if err := client.Connect(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, mcp.ErrClosed) {
			logger.Error("MCP connect failed", "error", err)
		}
	}()

	resources := capability.NewResources(cache, client, logger)
	orchestrator := chat.NewOrchestrator(client, resources, cache, responses, activitySvc, chat.Options{
		Model:         cfg.OpenAI.Model,
		MaxToolRounds: cfg.Chat.MaxToolRounds,
	}, logger)

	router := transport.NewServer(transport.Deps{
		Chat:      orchestrator,
		Protocol:  client,
		Resources: resources,
		Cache:     cache,
		Tasks:     tasks,
		Decisions: decisions,
		Session:   sess,
		Models:    chatClient,
		Activity:  activitySvc,
		Recorder:  activitySvc,
		Updates:   broadcaster.Handler(),
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
		// Streaming requests end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr(), "mcp", cfg.MCP.URL, "model", cfg.OpenAI.Model)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
