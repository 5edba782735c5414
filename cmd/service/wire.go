package main

import (
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/qotd/internal/adapters/clients"
	"github.com/jsamuelsen/qotd/internal/adapters/clients/acl"
	"github.com/jsamuelsen/qotd/internal/adapters/storage"
	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/platform/config"
	"github.com/jsamuelsen/qotd/internal/platform/logging"
	"github.com/jsamuelsen/qotd/internal/platform/telemetry"
	"github.com/jsamuelsen/qotd/internal/ports"
)

func newLogger(cfg *config.Config) *slog.Logger {
	f := cfg.Log.File

	return logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    f.Enabled,
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		},
	})
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	return &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Insecure:     cfg.Telemetry.Insecure,
	}
}

// newQuoteClient builds the resilient HTTP client and the translating
// adapter on top of it.
func newQuoteClient(cfg *config.Config, logger *slog.Logger) (*acl.QuoteClient, error) {
	svc := cfg.Services.Quote

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     svc.BaseURL,
		ServiceName: svc.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	return acl.NewQuoteClient(acl.QuoteClientConfig{
		Client:      httpClient,
		ServiceName: svc.Name,
		Logger:      logger,
	}), nil
}

func newStore(cfg *config.Config, source ports.QuoteSource, kv storage.Backend, logger *slog.Logger) *app.QuoteStore {
	keys := cfg.Storage.Keys

	return app.NewQuoteStore(app.QuoteStoreConfig{
		Source:  source,
		Storage: kv,
		Keys: app.StorageKeys{
			Favorites:    keys.Favorites,
			LastDate:     keys.LastDate,
			CurrentQuote: keys.CurrentQuote,
		},
		Logger: logger,
	})
}

// newHealthRegistry makes readiness depend on storage, the quote service
// and the store holding a quote.
func newHealthRegistry(
	cfg *config.Config,
	kv storage.Backend,
	quoteClient *acl.QuoteClient,
	store *app.QuoteStore,
) (*ports.DefaultHealthRegistry, error) {
	registry := ports.NewHealthRegistry(cfg.Health.CheckTimeout)

	for _, checker := range []ports.HealthChecker{kv, quoteClient, ports.NewCheck("quote_store", store.Ready)} {
		if err := registry.Register(checker); err != nil {
			return nil, fmt.Errorf("registering %s health check: %w", checker.Name(), err)
		}
	}

	return registry, nil
}
