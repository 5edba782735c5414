package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jsamuelsen/qotd/internal/adapters/clients"
	"github.com/jsamuelsen/qotd/internal/domain"
	"github.com/jsamuelsen/qotd/internal/platform/logging"
)

const (
	// defaultServiceName is used in errors and health checks when none is configured.
	defaultServiceName = "quote-service"

	randomPath = "/random"

	// maxQuoteBody bounds the decoded response size.
	maxQuoteBody = 64 << 10
)

// QuoteClientConfig contains configuration for the quote client.
type QuoteClientConfig struct {
	// Client is the HTTP client to use for requests.
	// The client's BaseURL should be set to the quote API endpoint.
	Client *clients.Client

	// ServiceName names the source in errors and health results.
	ServiceName string

	// Logger is the structured logger.
	Logger *slog.Logger
}

// QuoteClient implements ports.QuoteSource using the quotable.io API.
type QuoteClient struct {
	client      *clients.Client
	serviceName string
	logger      *slog.Logger
}

// NewQuoteClient creates a new quote client adapter.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func NewQuoteClient(cfg QuoteClientConfig) *QuoteClient {
	if cfg.Client == nil {
		panic("QuoteClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	return &QuoteClient{
		client:      cfg.Client,
		serviceName: name,
		logger:      logger,
	}
}

// quotableResponse is the external DTO from the quotable.io API.
// This is an internal type - never exposed outside the ACL.
type quotableResponse struct {
	ID      string `json:"_id"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

// GetRandomQuote issues one GET for a random quote.
// Implements ports.QuoteSource.
func (c *QuoteClient) GetRandomQuote(ctx context.Context) (*domain.Quote, error) {
	c.logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", randomPath))

	resp, err := c.get(ctx, randomPath)
	if err != nil {
		return nil, mapClientError(err, c.serviceName, "get random quote")
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Log(ctx, logging.LevelTrace, "request complete",
		slog.String("path", randomPath),
		slog.Int("status", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		mapped := mapStatusCode(resp, c.serviceName)
		c.logger.WarnContext(ctx, "quote API error",
			slog.Int("status_code", resp.StatusCode),
			slog.Any("error", mapped),
		)

		return nil, mapped
	}

	return c.parseQuoteResponse(ctx, resp.Body)
}

// get builds a GET that asks for JSON and runs it through the instrumented client.
func (c *QuoteClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.client.URL(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	return c.client.Do(ctx, req)
}

// parseQuoteResponse reads and translates the external DTO to a domain Quote.
func (c *QuoteClient) parseQuoteResponse(ctx context.Context, body io.Reader) (*domain.Quote, error) {
	var external quotableResponse

	if err := json.NewDecoder(io.LimitReader(body, maxQuoteBody)).Decode(&external); err != nil {
		return nil, domain.WrapValidation("body", fmt.Sprintf("decoding quote response: %v", err), err)
	}

	quote, err := translateToDomain(&external)
	if err != nil {
		return nil, err
	}

	c.logger.Log(ctx, logging.LevelTrace, "translated external DTO to domain",
		slog.String("quote_id", quote.ID),
		slog.String("author", quote.Author))

	return quote, nil
}

// translateToDomain converts the external API response to a domain Quote.
// A response without an id or content is rejected, not defaulted.
func translateToDomain(ext *quotableResponse) (*domain.Quote, error) {
	if ext.ID == "" {
		return nil, domain.NewValidationError("_id", "missing from response")
	}

	if ext.Content == "" {
		return nil, domain.NewValidationError("content", "missing from response")
	}

	return &domain.Quote{
		ID:     ext.ID,
		Text:   ext.Content,
		Author: ext.Author,
	}, nil
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *QuoteClient) Name() string {
	return c.serviceName
}

// Check reports the quote API unhealthy when its circuit is open or a
// random-quote request fails.
// Implements ports.HealthChecker.
func (c *QuoteClient) Check(ctx context.Context) error {
	if c.client.CircuitState() == clients.StateOpen {
		return fmt.Errorf("%s: %w", c.serviceName, clients.ErrCircuitOpen)
	}

	resp, err := c.get(ctx, randomPath)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	return nil
}
