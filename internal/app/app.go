// Package app assembles the session engine and its collaborators from a
// resolved configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhisek/stepwise/internal/activity"
	"github.com/abhisek/stepwise/internal/analysis"
	"github.com/abhisek/stepwise/internal/config"
	"github.com/abhisek/stepwise/internal/diagnosis"
	"github.com/abhisek/stepwise/internal/guided"
	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/metrics"
	"github.com/abhisek/stepwise/internal/questioning"
	"github.com/abhisek/stepwise/internal/safety"
	"github.com/abhisek/stepwise/internal/scaffold"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
)

// App owns the long-lived resources behind a CLI invocation.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Metrics  *metrics.Engine
	Provider llm.Provider
	Engine   *session.Engine

	closers []func() error
}

// Open opens the store and wires the engine. External services (LLM,
// Redis, RabbitMQ) are optional and only dialed when configured.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	engine, err := a.wire(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = engine
	return a, nil
}

// OpenStore opens the configured database, or the default path when none
// is configured.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.DB
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		path = p
	} else if err := store.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	st, err := store.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func (a *App) wire(ctx context.Context) (*session.Engine, error) {
	cfg, logger := a.Config, a.Logger

	if cfg.LLM.Provider != "none" {
		p, err := llm.NewProvider(ctx, cfg.LLM, llm.Options{
			Events:   a.Store.EventRepo(),
			Recorder: a.Metrics,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		a.Provider = p
	}

	var rules *diagnosis.RuleSet
	if cfg.RulesFile != "" {
		rs, err := diagnosis.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load classification rules: %w", err)
		}
		rules = rs
	}

	ruleGate, err := safety.NewRuleGate()
	if err != nil {
		return nil, fmt.Errorf("safety rules: %w", err)
	}
	var gate safety.Gate = ruleGate
	if cfg.Moderation {
		if a.Provider == nil {
			logger.Warn("moderation requested without an LLM provider; using rule gate only")
		} else {
			gate = safety.ChainGate{ruleGate, safety.NewLLMGate(a.Provider)}
		}
	}

	guidedStore, err := a.guidedStore(ctx)
	if err != nil {
		return nil, err
	}

	sinks := activity.Multi{activity.NewStoreSink(a.Store.EventRepo(), logger)}
	if cfg.AMQPURL != "" {
		pub, err := activity.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, fmt.Errorf("activity publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}

	return session.New(session.Deps{
		Templates:  a.Store.TemplateRepo(),
		Sessions:   a.Store.SessionRepo(),
		Analyzer:   analysis.New(gate, &safety.StructuralValidator{}, diagnosis.NewClassifier(rules), logger),
		Questions:  questioning.NewGenerator(a.Provider, logger),
		Dispatcher: scaffold.New(a.Provider, logger),
		Guided:     guidedStore,
		Activity:   sinks,
		Metrics:    a.Metrics,
		Logger:     logger,
	}), nil
}

func (a *App) guidedStore(ctx context.Context) (guided.Store, error) {
	if a.Config.RedisURL == "" {
		return guided.NewMemoryStore(a.Config.GuidedTTL), nil
	}
	client, err := guided.DialRedis(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("guided questioning store: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return guided.NewRedisStore(client, a.Config.GuidedTTL), nil
}

// Close flushes the metrics textfile and releases resources in reverse
// order of acquisition.
func (a *App) Close() error {
	var errs []error
	if err := a.Metrics.WriteTextfile(a.Config.MetricsFile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
