package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinlab/amrclassify/internal/catalog"
	"github.com/clinlab/amrclassify/internal/config"
	"github.com/clinlab/amrclassify/internal/domain"
	"github.com/clinlab/amrclassify/internal/engine"
	"github.com/clinlab/amrclassify/internal/logging"
	"github.com/clinlab/amrclassify/internal/terminology"
)

// appContext bundles the collaborators every subcommand needs, built
// once from the loaded configuration the way the teacher's cmd/*/main.go
// builds its configManager once and threads it into the server
// constructor.
type appContext struct {
	config *domain.EngineConfig
	logger *logrus.Logger
	store  *catalog.Store
}

func loadAppContext() (*appContext, error) {
	mgr, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := mgr.Config()

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}

	if err := mgr.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger := logging.New(cfg.Logging)

	sources := make([]domain.Source, 0, len(cfg.Catalog.SourceFallbackOrder))
	for _, s := range cfg.Catalog.SourceFallbackOrder {
		sources = append(sources, domain.Source(s))
	}

	store := catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.MaxFileSizeBytes, logrus.NewEntry(logger))

	return &appContext{config: cfg, logger: logger, store: store}, nil
}

// buildEngine reloads the catalog from the configured path and builds
// an Engine over it, deriving the terminology normalizer's alias
// tables from the loaded catalog itself (no external terminology
// oracle is wired for the CLI; a transport collaborator that has one
// passes it to terminology.New directly instead).
func (a *appContext) buildEngine() (*engine.Engine, error) {
	cat, err := a.store.Reload()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule catalog: %w", err)
	}

	organismAliases, antibioticAliases := terminology.AliasesFromCatalog(cat)
	normalizer, err := terminology.New(terminology.Config{
		OrganismAliases:   organismAliases,
		AntibioticAliases: antibioticAliases,
		CacheSize:         a.config.Cache.NormalizationCacheSize,
	}, logrus.NewEntry(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build terminology normalizer: %w", err)
	}

	return engine.New(a.store, normalizer, nil, logrus.NewEntry(a.logger)), nil
}
