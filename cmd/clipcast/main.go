// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Command clipcast is the Session Orchestrator process entrypoint: it loads
// config, wires C1-C8 into an internal/orchestrator.Manager, mounts the
// internal/facade HTTP surface, and runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	pionwebrtc "github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/clipcast/config"
	"github.com/rapidaai/clipcast/internal/clipsearch"
	"github.com/rapidaai/clipcast/internal/facade"
	"github.com/rapidaai/clipcast/internal/journal"
	"github.com/rapidaai/clipcast/internal/llm"
	"github.com/rapidaai/clipcast/internal/orchestrator"
	"github.com/rapidaai/clipcast/internal/registry"
	"github.com/rapidaai/clipcast/internal/supervisor"
	"github.com/rapidaai/clipcast/internal/transcriber"
	"github.com/rapidaai/clipcast/internal/transport"
	"github.com/rapidaai/clipcast/pkg/commons"
)

var envPath = flag.String("env", "", "path to a .env file (overrides ENV_PATH)")

func main() {
	flag.Parse()
	if *envPath != "" {
		_ = os.Setenv("ENV_PATH", *envPath)
	}

	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := commons.NewLogger(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Infow("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("clipcast exited with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) error {
	search, err := buildSearchClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("building clip search client: %w", err)
	}

	model, err := llm.New(logger, cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.ModelID)
	if err != nil {
		return fmt.Errorf("building llm model: %w", err)
	}

	gw := transport.NewWebRTCGateway(logger, []pionwebrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	})
	reg := registry.New(logger)
	journals := journal.NewStore(cfg.Journal.RetentionEntries)
	sup := supervisor.New(logger)

	newTranscriber := func() transcriber.Transcriber {
		return transcriber.NewDeepgramTranscriber(logger, cfg.Transport.APIKey)
	}

	mgr := orchestrator.New(cfg, logger, reg, journals, gw, sup, search, model, newTranscriber)

	handlers := facade.New(mgr, logger, cfg.BotTokenSecret)

	gin.SetMode(ginModeFor(cfg.LogLevel))
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	handlers.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mgr.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Infow("clipcast listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildSearchClient(cfg *config.AppConfig, logger commons.Logger) (clipsearch.Client, error) {
	switch cfg.Search.Provider {
	case "opensearch", "":
		return clipsearch.NewOpenSearchClient(logger, cfg.Search.Endpoint, cfg.Search.Index)
	default:
		return nil, fmt.Errorf("unsupported search provider %q", cfg.Search.Provider)
	}
}

func ginModeFor(logLevel string) string {
	if logLevel == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
