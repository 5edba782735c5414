package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetMissing(t *testing.T) {
	v, found, err := New().Get(context.Background(), "favorite-quotes")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, v)
}

func TestStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "k", "one"))
	require.NoError(t, s.Set(ctx, "k", "two"))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "two", v)
}

func TestNewWithValues_Copies(t *testing.T) {
	seed := map[string]string{"k": "v"}
	s := NewWithValues(seed)
	seed["k"] = "changed"

	v, _, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", "v")
		}()
		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, "k")
		}()
	}
	wg.Wait()

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestStore_Health(t *testing.T) {
	s := New()

	assert.Equal(t, "storage", s.Name())
	assert.NoError(t, s.Check(context.Background()))
	assert.NoError(t, s.Close())
}
