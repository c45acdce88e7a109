// Package app builds the service graph shared by the HTTP server and the
// CLI from a loaded configuration.
package app

import (
	"context"
	"os"
	"path/filepath"

	"docsamajh/pkg/core/ade"
	"docsamajh/pkg/core/agent"
	"docsamajh/pkg/core/cache"
	"docsamajh/pkg/core/config"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/pipeline"
	"docsamajh/pkg/core/prompt"
	"docsamajh/pkg/core/store"
)

type Options struct {
	// ResourcesDir holds prompts/**.json overrides. Defaults to
	// "resources" next to the working directory or the executable.
	ResourcesDir string
	// UseDatabase connects to DATABASE_URL when it is set.
	UseDatabase bool
	// Strict rejects partial (206) extractions.
	Strict bool
}

type App struct {
	Config    *config.Config
	AgentMgr  *agent.Manager
	Extractor *ade.Extractor // nil without ADE_API_KEY
	Service   *pipeline.Service

	closers []func()
}

// New wires every optional backend that is configured. Backends that fail
// to come up are logged and skipped; only the core service is mandatory.
func New(ctx context.Context, cfg *config.Config, opts Options) *App {
	log := logging.WithComponent("app")
	a := &App{Config: cfg}

	registry := prompt.Get()
	resources := resolveResources(opts.ResourcesDir)
	if err := prompt.LoadFromDirectory(resources); err != nil {
		log.WithError(err).Warn("failed to load prompt overrides, using built-in prompts")
	} else {
		log.WithField("count", registry.Count()).WithField("dir", resources).Info("prompts loaded")
	}

	a.AgentMgr = agent.NewManager(cfg.Agents, agent.Settings{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.GeminiModel,
	})

	deps := pipeline.Deps{
		Prompts:     registry,
		Policy:      cfg.Policy,
		Concurrency: cfg.BatchConcurrency,
	}
	if cfg.GeminiAPIKey != "" {
		deps.Executor = a.AgentMgr
	} else {
		log.Warn("GEMINI_API_KEY not set, agent narratives disabled")
	}

	if cfg.ADEAPIKey != "" {
		a.Extractor = ade.NewExtractor(ade.NewClient(cfg.ADEAPIKey, cfg.ADEBaseURL), a.newCache(ctx))
		a.Extractor.Strict = opts.Strict
		deps.Extractor = a.Extractor
	} else {
		log.Warn("ADE_API_KEY not set, document extraction disabled")
	}

	if opts.UseDatabase && cfg.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			logging.LogError("app", "New", "init database", nil, err)
		} else if err := store.Migrate(ctx, store.GetPool()); err != nil {
			logging.LogError("app", "New", "migrate database", nil, err)
		} else {
			pool := store.GetPool()
			deps.Audit = store.NewAuditRepo(pool)
			deps.Documents = store.NewDocumentRepo(pool)
			deps.Reconciliations = store.NewReconciliationRepo(pool)
			deps.Stats = store.NewStatsRepo(pool)
			deps.Sessions = store.NewSessionRepo(pool)
			a.closers = append(a.closers, store.Close)
		}
	}

	a.Service = pipeline.NewService(deps)
	return a
}

// newCache prefers Redis and falls back to an in-process cache.
func (a *App) newCache(ctx context.Context) cache.ExtractionCache {
	if a.Config.RedisAddress != "" {
		rc, err := cache.NewRedisCache(ctx, a.Config.RedisAddress, a.Config.CacheTTL)
		if err == nil {
			a.closers = append(a.closers, func() { rc.Close() })
			return rc
		}
		logging.LogError("app", "newCache", a.Config.RedisAddress, nil, err)
	}
	return cache.NewMemoryCache(a.Config.CacheTTL)
}

// Close releases the database pool and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func resolveResources(dir string) string {
	if dir != "" {
		return dir
	}
	if _, err := os.Stat("resources"); err == nil {
		return "resources"
	}
	exePath, err := os.Executable()
	if err != nil {
		return "resources"
	}
	return filepath.Join(filepath.Dir(exePath), "resources")
}
