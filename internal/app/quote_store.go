// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/qotd/internal/domain"
	"github.com/jsamuelsen/qotd/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/qotd/internal/app"

// DateLayout is the day-granularity format stored under the last-date key,
// e.g. "Tue Jan 02 2024".
const DateLayout = "Mon Jan 02 2006"

// StorageKeys names the three entries the store owns in persistent storage.
type StorageKeys struct {
	Favorites    string
	LastDate     string
	CurrentQuote string
}

// DefaultStorageKeys returns the key names written by earlier sessions.
func DefaultStorageKeys() StorageKeys {
	return StorageKeys{
		Favorites:    "favorite-quotes",
		LastDate:     "last-quote-date",
		CurrentQuote: "current-quote",
	}
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	// Source is the remote quote service. Required.
	Source ports.QuoteSource

	// Storage is the durable key-value store. Required.
	Storage ports.KeyValueStore

	// Keys overrides the storage key names. Empty fields use the defaults.
	Keys StorageKeys

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Location is the zone that defines "today". Defaults to time.Local.
	Location *time.Location

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Snapshot is a consistent copy of the store's exposed state.
type Snapshot struct {
	CurrentQuote *domain.Quote
	Favorites    domain.Favorites
	IsLoading    bool
	Origin       domain.Origin
	LastRefresh  string
}

// QuoteStore owns the daily quote, the favorites collection and the loading
// flag, and is the only component that touches their storage keys.
//
// mu guards the in-memory fields and is never held while calling the source
// or storage. writeMu orders storage writes so the last in-memory state is
// also the last one persisted.
type QuoteStore struct {
	source   ports.QuoteSource
	storage  ports.KeyValueStore
	keys     StorageKeys
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
	executor *Executor

	refreshTotal metric.Int64Counter

	writeMu sync.Mutex
	rollMu  sync.Mutex // serializes EnsureToday

	mu          sync.RWMutex
	current     *domain.Quote
	favorites   domain.Favorites
	loading     int
	origin      domain.Origin
	lastRefresh string
}

// NewQuoteStore creates a store with the provided dependencies.
// Panics if Source or Storage is nil.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Source == nil {
		panic("app: QuoteStoreConfig.Source is required")
	}

	if cfg.Storage == nil {
		panic("app: QuoteStoreConfig.Storage is required")
	}

	keys := DefaultStorageKeys()
	if cfg.Keys.Favorites != "" {
		keys.Favorites = cfg.Keys.Favorites
	}

	if cfg.Keys.LastDate != "" {
		keys.LastDate = cfg.Keys.LastDate
	}

	if cfg.Keys.CurrentQuote != "" {
		keys.CurrentQuote = cfg.Keys.CurrentQuote
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "quote_store"))

	refreshTotal, err := otel.Meter(instrumentationName).Int64Counter(
		"qotd.quote.refresh.total",
		metric.WithDescription("Total number of daily quote resolutions by origin"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &QuoteStore{
		source:       cfg.Source,
		storage:      cfg.Storage,
		keys:         keys,
		now:          now,
		location:     location,
		logger:       logger,
		executor:     NewExecutor(logger),
		refreshTotal: refreshTotal,
		favorites:    domain.Favorites{},
		origin:       domain.OriginUnknown,
	}
}

// Initialize loads favorites and today's cached quote from storage.
// When no valid quote is cached for today it refreshes from the source.
func (s *QuoteStore) Initialize(ctx context.Context) {
	s.LoadFavorites(ctx)

	today := s.today()

	if quote, ok := s.cachedQuote(ctx, today); ok {
		s.useCached(ctx, quote, today)
		return
	}

	s.Refresh(ctx)
}

// EnsureToday resolves the daily quote again once the local date has moved
// past the last refresh, preferring a quote another process already stored
// for today. It does nothing before the first resolve. Concurrent callers
// share one rollover.
func (s *QuoteStore) EnsureToday(ctx context.Context) {
	if !s.stale() {
		return
	}

	s.rollMu.Lock()
	defer s.rollMu.Unlock()

	if !s.stale() {
		return
	}

	today := s.today()
	s.logger.InfoContext(ctx, "daily quote rolled over", slog.String("today", today))

	if quote, ok := s.cachedQuote(ctx, today); ok {
		s.useCached(ctx, quote, today)
		return
	}

	s.Refresh(ctx)
}

// stale reports whether a resolved quote belongs to an earlier day.
func (s *QuoteStore) stale() bool {
	today := s.today()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastRefresh != "" && s.lastRefresh != today
}

func (s *QuoteStore) useCached(ctx context.Context, quote domain.Quote, today string) {
	s.mu.Lock()
	s.current = &quote
	s.origin = domain.OriginCache
	s.lastRefresh = today
	s.mu.Unlock()

	s.record(ctx, domain.OriginCache)
	s.logger.InfoContext(ctx, "reusing cached daily quote",
		slog.String("quote_id", quote.ID),
		slog.String("date", today),
	)
}

// LoadFavorites replaces the in-memory favorites with the stored collection.
// A missing or unparsable value loads as empty. Duplicate ids keep their
// first occurrence.
func (s *QuoteStore) LoadFavorites(ctx context.Context) {
	favorites := LoadWithDefault(ctx, s.storage, s.keys.Favorites, domain.Favorites{}, s.logger).Dedupe()

	s.mu.Lock()
	s.favorites = favorites
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "favorites loaded", slog.Int("count", len(favorites)))
}

// cachedQuote returns the stored quote when it was stamped today and is valid.
func (s *QuoteStore) cachedQuote(ctx context.Context, today string) (domain.Quote, bool) {
	date, found, err := s.storage.Get(ctx, s.keys.LastDate)
	if err != nil {
		s.logger.WarnContext(ctx, "storage read failed", slog.String("key", s.keys.LastDate), slog.Any("error", err))
		return domain.Quote{}, false
	}

	if !found || date != today {
		s.logger.DebugContext(ctx, "daily quote is stale",
			slog.String("stored_date", date),
			slog.String("today", today),
		)

		return domain.Quote{}, false
	}

	quote := LoadWithDefault[*domain.Quote](ctx, s.storage, s.keys.CurrentQuote, nil, s.logger)
	if quote == nil {
		return domain.Quote{}, false
	}

	if err := quote.Validate(); err != nil {
		s.logger.DebugContext(ctx, "cached quote rejected", slog.Any("error", err))
		return domain.Quote{}, false
	}

	return *quote, true
}

// Refresh fetches a new quote and makes it current, falling back to the
// built-in quote on any failure. It always stamps today's date, never returns
// an error and never panics. Concurrent calls are not coalesced: each one
// fetches, and whichever finishes last determines the current quote.
//
// IsLoading counts in-flight refreshes, so with overlapping calls it stays
// true until the last one finishes rather than clearing when the first does.
func (s *QuoteStore) Refresh(ctx context.Context) domain.Quote {
	s.setLoading(true)
	defer s.setLoading(false)

	quote, origin := s.fetch(ctx)
	today := s.today()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.persistDaily(ctx, quote, today)

	s.mu.Lock()
	s.current = &quote
	s.origin = origin
	s.lastRefresh = today
	s.mu.Unlock()

	s.record(ctx, origin)

	return quote
}

// fetch resolves a quote from the source or the fallback.
func (s *QuoteStore) fetch(ctx context.Context) (domain.Quote, domain.Origin) {
	quote, err := Execute(ctx, s.executor, Operation[*domain.Quote, domain.Quote]{
		Name:    "refresh_quote",
		Perform: s.source.GetRandomQuote,
		Verify: func(_ context.Context, q *domain.Quote) (domain.Quote, error) {
			if q == nil {
				return domain.Quote{}, errors.New("source returned no quote")
			}

			if err := q.Validate(); err != nil {
				return domain.Quote{}, err
			}

			return *q, nil
		},
	})
	if err != nil {
		step, _ := GetExecutionStep(err)
		s.logger.WarnContext(ctx, "quote refresh failed, using fallback",
			slog.String("step", string(step)),
			slog.Any("error", err),
		)

		return domain.FallbackQuote(), domain.OriginFallback
	}

	s.logger.InfoContext(ctx, "fetched daily quote",
		slog.String("quote_id", quote.ID),
		slog.String("author", quote.Author),
	)

	return quote, domain.OriginRemote
}

// persistDaily writes the quote and date. Failures are logged and skipped.
// Caller must hold writeMu.
func (s *QuoteStore) persistDaily(ctx context.Context, quote domain.Quote, today string) {
	if err := saveJSON(ctx, s.storage, s.keys.CurrentQuote, quote); err != nil {
		s.logger.WarnContext(ctx, "failed to persist current quote", slog.Any("error", err))
	}

	if err := s.storage.Set(ctx, s.keys.LastDate, today); err != nil {
		s.logger.WarnContext(ctx, "failed to persist quote date", slog.Any("error", err))
	}
}

// ToggleFavorite removes quote from favorites if a favorite with the same id
// exists, otherwise appends it. The whole collection is written through to
// storage. Returns whether quote is a favorite afterwards.
func (s *QuoteStore) ToggleFavorite(ctx context.Context, quote domain.Quote) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, added := s.favorites.Toggle(quote)
	s.favorites = next
	s.mu.Unlock()

	if err := saveJSON(ctx, s.storage, s.keys.Favorites, next); err != nil {
		s.logger.WarnContext(ctx, "failed to persist favorites", slog.Any("error", err))
	}

	s.logger.DebugContext(ctx, "favorite toggled",
		slog.String("quote_id", quote.ID),
		slog.Bool("favorite", added),
		slog.Int("count", len(next)),
	)

	return added
}

// IsFavorite reports whether a quote with the same id is in favorites.
func (s *QuoteStore) IsFavorite(quote domain.Quote) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.favorites.Contains(quote.ID)
}

// Favorites returns a copy of the favorites collection in insertion order.
func (s *QuoteStore) Favorites() domain.Favorites {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.favorites.Clone()
}

// FavoriteByID looks up a favorite by id.
func (s *QuoteStore) FavoriteByID(id string) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.favorites.IndexOf(id); i >= 0 {
		return s.favorites[i], true
	}

	return domain.Quote{}, false
}

// CurrentQuote returns a copy of the current quote, or nil before one resolves.
func (s *QuoteStore) CurrentQuote() *domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}

	q := *s.current

	return &q
}

// IsLoading reports whether a refresh is in progress.
func (s *QuoteStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loading > 0
}

// Snapshot returns a consistent copy of all exposed state.
func (s *QuoteStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Favorites:   s.favorites.Clone(),
		IsLoading:   s.loading > 0,
		Origin:      s.origin,
		LastRefresh: s.lastRefresh,
	}

	if s.current != nil {
		q := *s.current
		snap.CurrentQuote = &q
	}

	return snap
}

// ErrNoQuote is reported by Ready until a quote has been resolved.
var ErrNoQuote = errors.New("no quote resolved yet")

// Ready fails until Initialize or Refresh has produced a quote.
func (s *QuoteStore) Ready(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ErrNoQuote
	}

	return nil
}

// ShareText formats quote for sharing.
func (s *QuoteStore) ShareText(quote domain.Quote) string {
	return quote.ShareText()
}

func (s *QuoteStore) setLoading(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if on {
		s.loading++
		return
	}

	if s.loading > 0 {
		s.loading--
	}
}

func (s *QuoteStore) today() string {
	return s.now().In(s.location).Format(DateLayout)
}

func (s *QuoteStore) record(ctx context.Context, origin domain.Origin) {
	if s.refreshTotal == nil {
		return
	}

	s.refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", string(origin))))
}
