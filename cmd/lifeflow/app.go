package main

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/sujithputta02/LifeFlow-AI/internal/config"
	"github.com/sujithputta02/LifeFlow-AI/internal/events"
	"github.com/sujithputta02/LifeFlow-AI/internal/gamification"
	"github.com/sujithputta02/LifeFlow-AI/internal/generator"
	"github.com/sujithputta02/LifeFlow-AI/internal/guidance"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/observability"
	"github.com/sujithputta02/LifeFlow-AI/internal/retrieval"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
)

var errServerClosed = http.ErrServerClosed

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg       config.Config
	log       *logging.Logger
	store     store.Store
	generator *generator.Generator
	profiles  *gamification.Service
	broker    *events.Broker
}

// withApp builds the app, runs fn under a signal-aware context and releases
// everything afterwards.
func withApp(parent context.Context, fn func(ctx context.Context, a *app) error) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := notifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := initTracing(ctx, log, observability.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "lifeflow",
		Version:     version,
		Exporter:    cfg.OTelExporter,
	})
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				log.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}()

	gen, err := buildGenerator(cfg, log)
	if err != nil {
		return err
	}
	broker := events.NewBroker()
	return fn(ctx, &app{
		cfg:       cfg,
		log:       log,
		store:     st,
		generator: gen,
		profiles:  gamification.NewService(st, broker, log),
		broker:    broker,
	})
}

func buildGenerator(cfg config.Config, log *logging.Logger) (*generator.Generator, error) {
	ladder, err := cfg.Ladder()
	if err != nil {
		return nil, err
	}
	rungs := generator.BuildRungs(ladder, newProvider, log)
	if len(rungs) == 0 && !cfg.UseMockData {
		log.Warn("no llm providers could be constructed, every request will fall back")
	}

	var finder retrieval.Finder
	if cfg.UseMockData {
		finder = retrieval.DemoSources()
	} else {
		finder = retrieval.NewChain(
			retrieval.NewAzureSearch(retrieval.AzureSearchConfig{
				Endpoint: cfg.AzureSearchEndpoint,
				APIKey:   cfg.AzureSearchKey,
				Index:    cfg.AzureSearchIndex,
			}),
			retrieval.NewBing(retrieval.BingConfig{APIKey: cfg.BingSearchAPIKey}),
			log,
		)
	}
	cwd, _ := os.Getwd()
	extra, err := guidance.Load(cfg.GuidanceFile, cwd)
	if err != nil {
		log.Warn("prompt guidance not loaded", "path", cfg.GuidanceFile, "error", err)
	}
	return generator.New(rungs, finder, log, generator.Options{
		MockMode:       cfg.UseMockData,
		DemoFallback:   cfg.DemoFallback,
		AttemptTimeout: cfg.LLMTimeout,
		Guidance:       extra,
	}), nil
}
