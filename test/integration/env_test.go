//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/qotd/internal/adapters/clients"
	"github.com/jsamuelsen/qotd/internal/adapters/clients/acl"
	httpserver "github.com/jsamuelsen/qotd/internal/adapters/http"
	"github.com/jsamuelsen/qotd/internal/adapters/http/handlers"
	"github.com/jsamuelsen/qotd/internal/adapters/http/middleware"
	"github.com/jsamuelsen/qotd/internal/adapters/storage"
	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/domain"
	"github.com/jsamuelsen/qotd/internal/platform/config"
	"github.com/jsamuelsen/qotd/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// clock is a settable time source shared by every store started in an env.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

// upstream fakes the remote quote API.
type upstream struct {
	server *httptest.Server

	mu            sync.Mutex
	quote         domain.Quote
	status        int
	lastRequestID string

	calls atomic.Int32
}

func newUpstream() *upstream {
	u := &upstream{status: http.StatusOK}
	u.server = httptest.NewServer(http.HandlerFunc(u.serve))

	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.calls.Add(1)

	u.mu.Lock()
	status, quote := u.status, u.quote
	u.lastRequestID = r.Header.Get(middleware.HeaderRequestID)
	u.mu.Unlock()

	if r.URL.Path != "/random" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"_id":     quote.ID,
		"content": quote.Text,
		"author":  quote.Author,
	})
}

func (u *upstream) Serve(q domain.Quote) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.quote, u.status = q, http.StatusOK
}

func (u *upstream) Fail(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.status = status
}

func (u *upstream) LastRequestID() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.lastRequestID
}

// env is one running copy of the service over a sqlite file that outlives
// restarts within the env.
type env struct {
	dir      string
	clock    *clock
	upstream *upstream
	logger   *slog.Logger

	kv     storage.Backend
	store  *app.QuoteStore
	api    *httptest.Server
	client *http.Client
}

func newEnv() (*env, error) {
	dir, err := os.MkdirTemp("", "qotd-integration-*")
	if err != nil {
		return nil, err
	}

	return &env{
		dir:      dir,
		clock:    &clock{now: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)},
		upstream: newUpstream(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (e *env) storageConfig() config.StorageConfig {
	return config.StorageConfig{
		Backend: config.StorageBackendSQLite,
		Path:    filepath.Join(e.dir, "qotd.db"),
		Keys: config.StorageKeyConfig{
			Favorites:    "favorite-quotes",
			LastDate:     "last-quote-date",
			CurrentQuote: "current-quote",
		},
	}
}

// openStorage opens the env's database without starting the service.
func (e *env) openStorage(ctx context.Context) (storage.Backend, error) {
	if e.kv != nil {
		return e.kv, nil
	}

	kv, err := storage.Open(ctx, e.storageConfig(), e.logger)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	e.kv = kv

	return kv, nil
}

// start wires the service the way cmd/service does and initializes it.
func (e *env) start(ctx context.Context) error {
	kv, err := e.openStorage(ctx)
	if err != nil {
		return err
	}

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     e.upstream.server.URL,
		ServiceName: "quote-service",
		Timeout:     time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   3,
			Timeout:       time.Minute,
			HalfOpenLimit: 1,
		},
		Logger: e.logger,
	})
	if err != nil {
		return fmt.Errorf("creating quote client: %w", err)
	}

	quoteClient := acl.NewQuoteClient(acl.QuoteClientConfig{Client: httpClient, Logger: e.logger})

	e.store = app.NewQuoteStore(app.QuoteStoreConfig{
		Source:   quoteClient,
		Storage:  kv,
		Now:      e.clock.Now,
		Location: time.UTC,
		Logger:   e.logger,
	})
	e.store.Initialize(ctx)

	// The upstream check is left out so a failing fake API does not turn
	// readiness red in scenarios about fallback.
	registry := ports.NewHealthRegistry(time.Second)
	for _, checker := range []ports.HealthChecker{kv, ports.NewCheck("quote_store", e.store.Ready)} {
		if err := registry.Register(checker); err != nil {
			return err
		}
	}

	engine := gin.New()
	httpserver.SetupRouter(engine, httpserver.RouterConfig{
		Logger:           e.logger,
		ServiceName:      "qotd",
		HealthHandler:    handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "", "")),
		QuoteHandler:     handlers.NewQuoteHandler(e.store),
		FavoritesHandler: handlers.NewFavoritesHandler(e.store),
	})

	e.api = httptest.NewServer(engine)

	return nil
}

// restart stops the API and closes storage, keeping the database file.
func (e *env) restart(ctx context.Context) error {
	e.stopServing()

	if e.kv != nil {
		if err := e.kv.Close(); err != nil {
			return err
		}

		e.kv = nil
	}

	return e.start(ctx)
}

func (e *env) stopServing() {
	if e.api != nil {
		e.api.Close()
		e.api = nil
	}
}

func (e *env) close() {
	e.stopServing()

	if e.kv != nil {
		_ = e.kv.Close()
	}

	e.upstream.server.Close()
	_ = os.RemoveAll(e.dir)
}

// do sends a request to the running API and returns status and body.
func (e *env) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (int, []byte, error) {
	if e.api == nil {
		return 0, nil, fmt.Errorf("service is not running")
	}

	req, err := http.NewRequestWithContext(ctx, method, e.api.URL+path, body)
	if err != nil {
		return 0, nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)

	return resp.StatusCode, b, err
}
