package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jsamuelsen/qotd/internal/adapters/clients"
	"github.com/jsamuelsen/qotd/internal/adapters/clients/acl"
	"github.com/jsamuelsen/qotd/internal/adapters/storage"
	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/platform/config"
	"github.com/jsamuelsen/qotd/internal/platform/logging"
)

// OpenConfigured is the Opener used by the qotd binary. It loads the profile's
// configuration and builds the same storage and quote source as the service.
// Logs go to stderr so stdout stays parseable.
func OpenConfigured(ctx context.Context, opts OpenOptions) (*Session, error) {
	var overrides map[string]any
	if !opts.Verbose {
		overrides = map[string]any{"log.level": "warn"}
	}

	cfg, err := config.LoadWith(opts.Profile, overrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name + "-cli",
		Version: cfg.App.Version,
	}, os.Stderr)

	kv, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Quote.BaseURL,
		ServiceName: cfg.Services.Quote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating HTTP client: %w", err), kv.Close())
	}

	store := app.NewQuoteStore(app.QuoteStoreConfig{
		Source: acl.NewQuoteClient(acl.QuoteClientConfig{
			Client:      httpClient,
			ServiceName: cfg.Services.Quote.Name,
			Logger:      logger,
		}),
		Storage: kv,
		Keys: app.StorageKeys{
			Favorites:    cfg.Storage.Keys.Favorites,
			LastDate:     cfg.Storage.Keys.LastDate,
			CurrentQuote: cfg.Storage.Keys.CurrentQuote,
		},
		Logger: logger,
	})

	return NewSession(store, kv.Close), nil
}
