package main

import (
	"fmt"
	"os"
	"path/filepath"

	"plando/internal/catalog"
	"plando/internal/config"
	"plando/internal/dialogue"
	"plando/internal/generation"
	"plando/internal/logging"
	"plando/internal/perception"
	"plando/internal/session"
	"plando/internal/store"
	"plando/internal/tools"
)

// app is the fully wired assembly behind every command.
type app struct {
	cfg          *config.Config
	catalog      *catalog.Catalog
	watcher      *catalog.Watcher
	sessions     *session.Store
	transcript   *store.TranscriptStore
	orchestrator *dialogue.Orchestrator
}

// resolveConfigPath honors --config, else falls back to the per-user
// default location.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".plando", "config.yaml")
}

// buildApp wires the whole pipeline from configuration. Every optional
// collaborator (completion client, transcript store, catalog watcher)
// degrades to nil rather than failing startup.
func buildApp() (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if cfg.Logging.Debug && !verbose {
		logging.Init(logger, true)
	}
	logging.SetCategories(cfg.Logging.Categories)
	logging.Boot("Starting %s %s", cfg.Name, cfg.Version)

	cat, watcher := buildCatalog(cfg)

	sessions := session.NewStore(session.Config{
		TTL:         cfg.GetSessionTTL(),
		Shards:      cfg.Session.Shards,
		HistorySize: cfg.Session.HistorySize,
	})

	client := buildCompletionClient(cfg)

	semantic := perception.NewSemanticClassifier(client, cat, perception.SemanticConfig{
		Timeout:   cfg.GetClassifyTimeout(),
		CacheSize: cfg.Dialogue.CacheSize,
		CacheTTL:  cfg.GetCacheTTL(),
	})

	registry := tools.NewRegistry()
	tools.RegisterBuiltin(registry)
	router := tools.NewRouter(cat, registry, cfg.GetGenerateTimeout())

	var generator *generation.Generator
	if client != nil {
		generator = generation.NewGenerator(client, cfg.GetGenerateTimeout())
	}

	var transcript *store.TranscriptStore
	if cfg.Store.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DatabasePath), 0o755); err != nil {
			logging.Get(logging.CategoryStore).Warn("Transcript dir unavailable: %v", err)
		} else if transcript, err = store.Open(cfg.Store.DatabasePath); err != nil {
			logging.Get(logging.CategoryStore).Warn("Transcript store disabled: %v", err)
			transcript = nil
		}
	}

	var recorder dialogue.Recorder
	if transcript != nil {
		recorder = transcript
	}

	orchestrator := dialogue.NewOrchestrator(dialogue.Options{
		Catalog:    cat,
		Sessions:   sessions,
		Semantic:   semantic,
		Router:     router,
		Generator:  generator,
		Recorder:   recorder,
		EscalateAt: cfg.Dialogue.FallbackEscalateAt,
	})

	logging.Boot("Pipeline ready: %d intents, %d tools, llm=%v transcript=%v",
		cat.Size(), registry.Count(), client != nil, transcript != nil)

	return &app{
		cfg:          cfg,
		catalog:      cat,
		watcher:      watcher,
		sessions:     sessions,
		transcript:   transcript,
		orchestrator: orchestrator,
	}, nil
}

// buildCatalog loads the configured catalog file, falling back to the
// built-in one. The watcher is created only for a file-backed catalog
// with watch enabled; Start happens in the chat loop.
func buildCatalog(cfg *config.Config) (*catalog.Catalog, *catalog.Watcher) {
	if cfg.Catalog.Path != "" {
		if cat, err := catalog.LoadFile(cfg.Catalog.Path); err == nil {
			if !cfg.Catalog.Watch {
				return cat, nil
			}
			watcher, werr := catalog.NewWatcher(cat, cfg.Catalog.Path)
			if werr != nil {
				logging.Get(logging.CategoryCatalog).Warn("Catalog watch unavailable: %v", werr)
				return cat, nil
			}
			return cat, watcher
		} else if !os.IsNotExist(err) {
			logging.Get(logging.CategoryCatalog).Warn("Catalog file unusable, using built-in: %v", err)
		}
	}
	return catalog.Default(), nil
}

// buildCompletionClient picks the provider. No key means no semantic
// layer and template-only replies; the heuristic path still works.
func buildCompletionClient(cfg *config.Config) perception.CompletionClient {
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := perception.NewGeminiClient(cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			logging.Get(logging.CategoryAPI).Warn("Gemini client unavailable: %v", err)
			return nil
		}
		return client
	default:
		client, err := perception.NewOpenAIClient(perception.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			logging.Get(logging.CategoryAPI).Warn("Completion client unavailable: %v", err)
			return nil
		}
		return client
	}
}

// close tears the assembly down in reverse wiring order.
func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.sessions.Close()
	if a.transcript != nil {
		if err := a.transcript.Close(); err != nil {
			logging.Get(logging.CategoryStore).Warn("Transcript close: %v", err)
		}
	}
	logging.Boot("Shutdown complete")
}

func printVersion() {
	fmt.Println("plando 1.0.0")
}
