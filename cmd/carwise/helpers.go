package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/dverbeek/carwise/internal/advice"
	"github.com/dverbeek/carwise/internal/comps"
	"github.com/dverbeek/carwise/internal/config"
	"github.com/dverbeek/carwise/internal/engine"
	"github.com/dverbeek/carwise/internal/llm"
	"github.com/dverbeek/carwise/internal/portals"
	"github.com/dverbeek/carwise/internal/pricing"
	"github.com/dverbeek/carwise/internal/registry"
	"github.com/dverbeek/carwise/internal/service"
	"github.com/dverbeek/carwise/internal/storage"
)

// initStorage opens the configured sales store and runs migrations. SQLite is
// the default; Postgres serves teams sharing one sale history.
func initStorage(ctx context.Context) (service.SalesStore, error) {
	driver := viper.GetString("database.driver")
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		dbPath := viper.GetString("database.path")
		if dbPath == "" {
			dbPath = "$HOME/.local/share/carwise/carwise.db"
		}
		dbPath = config.ExpandPath(dbPath)

		store, err := storage.NewSQLiteStorage(dbPath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return store, nil

	case "postgres":
		connStr := viper.GetString("database.url")
		if connStr == "" {
			return nil, fmt.Errorf("database.url is required for the postgres driver")
		}

		store, err := storage.NewPostgresStorage(connStr)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}
}

// buildOrchestrator wires the full valuation pipeline from configuration.
func buildOrchestrator(store service.SalesStore, logger *slog.Logger) (*engine.Orchestrator, llm.Client, error) {
	llmCfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := llm.NewClient(llmCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	registryCfg, err := config.LoadRegistryConfig()
	if err != nil {
		return nil, nil, err
	}
	registryClient, err := registry.NewHTTPClient(registryCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	resolver := registry.NewResolver(registryClient, logger)

	// The index source is optional; runs degrade to the remaining sources.
	var index engine.IndexValuator
	if pricingCfg := config.LoadPricingConfig(); pricingCfg.BaseURL != "" {
		adapter, err := pricing.NewAdapter(pricingCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pricing index adapter: %w", err)
		}
		index = adapter
	} else {
		logger.Warn("pricing index not configured, runs will miss the index source")
	}

	aggregator := portals.NewAggregator(client, llm.NewCache(0), portals.NewPageScraper(nil), logger)
	compsEngine := comps.NewEngine(store, logger)
	advisor := advice.NewSynthesizer(client, logger)

	orch := engine.NewOrchestrator(resolver, aggregator, index, compsEngine, advisor, logger)
	return orch, client, nil
}
