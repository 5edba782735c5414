package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/qotd/internal/ports"
)

// LoadWithDefault reads key from kv and decodes it as JSON into a T.
// Any failure (read error, missing key, malformed JSON) yields def.
// The reason is logged at debug level and never returned.
func LoadWithDefault[T any](ctx context.Context, kv ports.KeyValueStore, key string, def T, logger *slog.Logger) T {
	raw, found, err := kv.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "storage read failed, using default",
			slog.String("key", key),
			slog.Any("error", err),
		)

		return def
	}

	if !found || raw == "" {
		return def
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logger.DebugContext(ctx, "stored value unparsable, using default",
			slog.String("key", key),
			slog.Any("error", err),
		)

		return def
	}

	return v
}

// saveJSON encodes v and overwrites key in kv.
func saveJSON(ctx context.Context, kv ports.KeyValueStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if err := kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	return nil
}
