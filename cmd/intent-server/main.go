package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"intentc/internal/api"
	"intentc/internal/compiler"
	"intentc/internal/config"
	"intentc/internal/db"
	"intentc/internal/llm"
	"intentc/internal/mqtt"
	"intentc/internal/orchestrator"
	"intentc/internal/rules"
	"intentc/internal/schema"
	"intentc/internal/skills"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadIntentServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := rules.Load(cfg.RulesPath)
	if err != nil {
		logger.Error("load rules failed", "path", cfg.RulesPath, "error", err)
		os.Exit(1)
	}
	logger.Info("rules loaded", "version", table.Version, "triggers", len(table.Triggers()))

	var store orchestrator.Store
	if cfg.DBDSN != "" {
		pg, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("connect db failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("migrate db failed", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		logger.Info("DB_DSN not set, compile log disabled")
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:         cfg.FallbackProvider,
		Model:            cfg.FallbackModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		Timeout:          cfg.FallbackTimeout,
	})
	if err != nil {
		logger.Error("init fallback provider failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	comp := compiler.New(table, schema.Default(), compiler.Options{
		HourFormat:    cfg.HourFormat,
		MinConfidence: cfg.MinConfidence,
	})
	svc := orchestrator.New(orchestrator.Config{
		FallbackModel:   cfg.FallbackModel,
		FallbackTimeout: cfg.FallbackTimeout,
		CacheTTL:        cfg.CacheTTL,
	}, comp, provider, store, orchestrator.NewMetrics(reg), logger)
	logger.Info("compiler ready",
		"hour_format", cfg.HourFormat,
		"min_confidence", cfg.MinConfidence,
		"fallback_provider", cfg.FallbackProvider,
	)

	skillRegistry := skills.NewRegistry(cfg.SkillSnapshotTTL)
	if cfg.MQTTBrokerURL != "" {
		hub := mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:       cfg.MQTTBrokerURL,
			ClientID:        cfg.MQTTClientID,
			Username:        cfg.MQTTUsername,
			Password:        cfg.MQTTPassword,
			TopicPrefix:     cfg.MQTTTopicPrefix,
			Dispatch:        cfg.Dispatch,
			DispatchTimeout: cfg.DispatchTimeout,
		}, skillRegistry, svc, logger)
		if err := hub.Start(ctx); err != nil {
			logger.Error("start mqtt hub failed", "error", err)
			os.Exit(1)
		}
		logger.Info("mqtt bridge enabled", "broker", cfg.MQTTBrokerURL, "prefix", cfg.MQTTTopicPrefix, "dispatch", cfg.Dispatch)
	}

	server := api.New(api.Config{
		MaxBodyBytes: cfg.MaxBodyBytes,
		BatchLimit:   cfg.BatchLimit,
	}, svc, skillRegistry, reg, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("intent server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	cancel()
}
