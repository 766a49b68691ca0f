package quota_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/quota"
)

func stores(t *testing.T) map[string]func() summarist.LedgerStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quota.yaml")
	mem := quota.NewMemoryStore(summarist.LedgerState{})
	return map[string]func() summarist.LedgerStore{
		"memory": func() summarist.LedgerStore { return mem },
		"file":   func() summarist.LedgerStore { return quota.NewFileStore(path) },
	}
}

func TestStore_Add(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open()

			used, ok, err := s.Add(ctx, "2026-01-02", "a", 2, 3)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(2), used)

			used, ok, err = s.Add(ctx, "2026-01-02", "a", 2, 3)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, int64(2), used)

			used, ok, err = s.Add(ctx, "2026-01-02", "a", -5, 0)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(0), used)

			_, _, err = s.Add(ctx, "2026-01-02", "b", 7, 0)
			require.NoError(t, err)

			state, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, summarist.LedgerState{Date: "2026-01-02", Usage: map[string]int64{"a": 0, "b": 7}}, state)
		})
	}
}

func TestStore_AddDropsEarlierDay(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open()

			_, _, err := s.Add(ctx, "2026-01-02", "a", 5, 0)
			require.NoError(t, err)
			_, _, err = s.Add(ctx, "2026-01-02", "b", 1, 0)
			require.NoError(t, err)

			used, ok, err := s.Add(ctx, "2026-01-03", "a", 1, 1)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(1), used)

			// A writer still on the old day cannot claim anything.
			_, ok, err = s.Add(ctx, "2026-01-02", "b", 1, 0)
			require.NoError(t, err)
			assert.False(t, ok)

			state, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, summarist.LedgerState{Date: "2026-01-03", Usage: map[string]int64{"a": 1}}, state)
		})
	}
}

func TestStore_ConcurrentAddsHonourLimit(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			var mu sync.Mutex
			granted := 0
			for range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					// A fresh handle per writer, as separate processes would have.
					_, ok, err := open().Add(ctx, "2026-01-02", "a", 1, 5)
					if err != nil || !ok {
						return
					}
					mu.Lock()
					granted++
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Equal(t, 5, granted)
			state, err := open().Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(5), state.Usage["a"])
		})
	}
}

func TestMemoryStore_CopiesState(t *testing.T) {
	ctx := context.Background()
	initial := summarist.LedgerState{Date: "2026-01-02", Usage: map[string]int64{"a": 1}}
	s := quota.NewMemoryStore(initial)

	initial.Usage["a"] = 99
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Usage["a"])

	got.Usage["a"] = 5
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Usage["a"])
	assert.Equal(t, 0, s.Adds())
}

func TestFileStore_MissingFile(t *testing.T) {
	s := quota.NewFileStore(filepath.Join(t.TempDir(), "quota.yaml"))

	state, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Date)
}

func TestFileStore_CreatesDirectoryAndCleansUp(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "quota.yaml")

	_, _, err := quota.NewFileStore(path).Add(ctx, "2026-01-02", "openai", 3, 0)
	require.NoError(t, err)

	got, err := quota.NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, summarist.LedgerState{Date: "2026-01-02", Usage: map[string]int64{"openai": 3}}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".quota-"), "temp file left behind: %s", e.Name())
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.yaml")
	require.NoError(t, os.WriteFile(path, []byte("date: [unterminated"), 0o644))

	s := quota.NewFileStore(path)
	_, err := s.Load(ctx)
	assert.Error(t, err)

	_, _, err = s.Add(ctx, "2026-01-02", "a", 1, 0)
	assert.Error(t, err)
}

func TestLedgerWithFileStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.yaml")
	providers := []summarist.ProviderConfig{{ID: "a", DailyLimit: 2}}

	l, err := summarist.NewQuotaLedger(ctx, providers, quota.NewFileStore(path))
	require.NoError(t, err)
	require.NoError(t, l.IncrementUsage(ctx, "a", 2))

	restarted, err := summarist.NewQuotaLedger(ctx, providers, quota.NewFileStore(path))
	require.NoError(t, err)
	assert.False(t, restarted.CheckQuota(ctx, "a", 1))
	assert.Equal(t, int64(2), restarted.Usage("a"))
}

func TestLedgersSharingFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.yaml")
	providers := []summarist.ProviderConfig{{ID: "a", DailyLimit: 1}, {ID: "b", DailyLimit: 0}}

	// Both runs load before either writes.
	first, err := summarist.NewQuotaLedger(ctx, providers, quota.NewFileStore(path))
	require.NoError(t, err)
	second, err := summarist.NewQuotaLedger(ctx, providers, quota.NewFileStore(path))
	require.NoError(t, err)

	res, err := first.Reserve(ctx, "a", 1)
	require.NoError(t, err)
	require.NoError(t, first.Commit(ctx, res))

	_, err = second.Reserve(ctx, "a", 1)
	assert.ErrorIs(t, err, summarist.ErrQuotaExceeded)

	require.NoError(t, second.IncrementUsage(ctx, "b", 4))
	require.NoError(t, first.IncrementUsage(ctx, "b", 1))

	state, err := quota.NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 1, "b": 5}, state.Usage)
}
