package kv

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/models"
)

type factory func(t *testing.T, opts ...Option) Store

func stores() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, opts ...Option) Store {
			return NewMemory(opts...)
		},
		"sqlite": func(t *testing.T, opts ...Option) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"), opts...)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t)

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "b", "1"))
			require.NoError(t, s.Set(ctx, "a", "2"))
			require.NoError(t, s.Set(ctx, "b", "3"))

			v, ok, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "3", v)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, keys)

			require.NoError(t, s.Remove(ctx, "b"))
			require.NoError(t, s.Remove(ctx, "never-set"))
			_, ok, err = s.Get(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreQuotaKeepsPreviousValue(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t, WithQuota(32))

			require.NoError(t, s.Set(ctx, "key", "small"))
			err := s.Set(ctx, "key", strings.Repeat("x", 64))

			var qerr *models.QuotaExceededError
			require.True(t, errors.As(err, &qerr), "err = %v", err)
			assert.ErrorIs(t, err, models.ErrQuotaExceeded)
			assert.Equal(t, 32, qerr.Limit)

			v, ok, err := s.Get(ctx, "key")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "small", v)

			// Replacing a value counts only the difference.
			require.NoError(t, s.Set(ctx, "key", strings.Repeat("y", 29)))
		})
	}
}

func TestStoreUnlimitedQuota(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := open(t, WithQuota(0))
			require.NoError(t, s.Set(ctx, "big", strings.Repeat("z", DefaultQuota+1)))
		})
	}
}

func TestMemoryUsageTracking(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "ab", "cdef"))
	assert.Equal(t, 6, m.Used())
	require.NoError(t, m.Set(ctx, "ab", "c"))
	assert.Equal(t, 3, m.Used())
	require.NoError(t, m.Remove(ctx, "ab"))
	assert.Equal(t, 0, m.Used())
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "workout_history", `[{"id":"1"}]`))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "workout_history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)
}

func TestMemoryConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithQuota(0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Set(ctx, string(rune('a'+i%26)), strings.Repeat("v", i))
		}(i)
	}
	wg.Wait()

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 26)
}
