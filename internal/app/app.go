// Package app assembles the assistant from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"assistant/internal/chunker"
	"assistant/internal/config"
	"assistant/internal/domain"
	"assistant/internal/generator/mock"
	"assistant/internal/generator/openai"
	"assistant/internal/hub"
	"assistant/internal/knowledge"
	"assistant/internal/logging"
	"assistant/internal/service"
	"assistant/internal/session"
	"assistant/internal/summarizer"
	"assistant/internal/watcher"
)

// App owns the process-wide components. Create it once at startup and
// Close it at shutdown.
type App struct {
	Config       *config.AppConfig
	Logger       *slog.Logger
	Knowledge    *knowledge.KnowledgeBase
	Summary      string
	Sessions     *session.Store
	Generator    domain.Generator
	Orchestrator *service.Orchestrator
	Hub          *hub.Hub
}

// New loads the corpus and wires every component. A missing or empty corpus
// is logged and leaves the assistant running on an empty knowledge base.
func New(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logging.Component(logger, "app")

	ch := chunker.NewSentenceChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	kb, err := knowledge.Load(cfg.Knowledge.CorpusPath, ch)
	if err != nil {
		log.Warn("knowledge base unavailable, answering without it",
			slog.String("corpus", cfg.Knowledge.CorpusPath),
			slog.Any("error", err))
	} else {
		log.Info("knowledge base loaded",
			slog.String("corpus", cfg.Knowledge.CorpusPath),
			slog.Int("chunks", kb.Len()))
	}

	var summary string
	if kb.Len() > 0 {
		var sum domain.Summarizer = summarizer.NewFrequencySummarizer()
		summary, err = sum.Summarize(kb.Text(), cfg.Knowledge.SummarySentences)
		if err != nil {
			log.Warn("summary failed", slog.Any("error", err))
		}
	}

	gen, err := NewGenerator(cfg.Generator, logger)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(session.Options{
		Shards:            cfg.Sessions.Shards,
		MaxMessages:       cfg.Sessions.MaxMessages,
		EvictionThreshold: cfg.Sessions.EvictionThreshold,
		MaxIdle:           config.Minutes(cfg.Sessions.MaxIdleMinutes),
		IdleAfter:         config.Minutes(cfg.Sessions.IdleAfterMinutes),
	})

	orch, err := service.NewOrchestrator(store, kb, gen,
		service.WithLogger(logger),
		service.WithTopK(cfg.Knowledge.TopK),
		service.WithGeneration(cfg.Generator.MaxTokens, cfg.Generator.Temperature, config.Seconds(cfg.Generator.TimeoutSecs)),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Knowledge:    kb,
		Summary:      summary,
		Sessions:     store,
		Generator:    gen,
		Orchestrator: orch,
		Hub:          hub.NewHub(logger),
	}, nil
}

// NewGenerator builds the configured generator.
func NewGenerator(cfg config.GeneratorConfig, logger *slog.Logger) (domain.Generator, error) {
	switch cfg.Type {
	case "mock", "":
		return mock.New(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai generator config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    config.Seconds(cfg.TimeoutSecs),
			MaxRetries: cfg.OpenAI.MaxRetries,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
}

// WatchCorpus logs a warning whenever the corpus file changes. The knowledge
// base is immutable, so picking up the change needs a restart. It returns a
// stop function; with watching disabled it does nothing.
func (a *App) WatchCorpus(ctx context.Context) (func(), error) {
	if !a.Config.Knowledge.Watch {
		return func() {}, nil
	}
	w, err := watcher.New(a.Config.Knowledge.CorpusPath, a.Logger)
	if err != nil {
		return nil, err
	}
	events, err := w.Watch(ctx)
	if err != nil {
		_ = w.Stop()
		return nil, err
	}
	log := logging.Component(a.Logger, "app")
	go func() {
		for ev := range events {
			log.Warn("corpus changed on disk; restart to reload the knowledge base",
				slog.String("path", ev.Path),
				slog.String("operation", ev.Operation.String()))
		}
	}()
	return func() { _ = w.Stop() }, nil
}

// Close drains the session store.
func (a *App) Close() {
	n := a.Sessions.Drain()
	logging.Component(a.Logger, "app").Info("sessions drained", slog.Int("sessions", n))
}
