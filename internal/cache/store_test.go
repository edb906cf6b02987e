package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	s := New()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestGetOrFetch_FetchesOnce(t *testing.T) {
	s, _ := newTestStore()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "value", nil
	}

	v1, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)
	v2, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)

	assert.Equal(t, "value", v1)
	assert.Equal(t, "value", v2)
	assert.Equal(t, 1, calls, "second call must be served from cache")
}

func TestGetOrFetch_ExpiredEntryRefetches(t *testing.T) {
	s, now := newTestStore()

	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	*now = now.Add(time.Minute)

	v, err = GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "expired entry is treated as absent")
}

func TestGetOrFetch_ErrorNotCached(t *testing.T) {
	s, _ := newTestStore()

	calls := 0
	boom := errors.New("boom")
	fetch := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	assert.ErrorIs(t, err, boom)

	v, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	s := New() // real clock: concurrent callers race on the same key

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one fetch")
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestInvalidate(t *testing.T) {
	s, _ := newTestStore()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, err := GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)

	s.Invalidate("k")

	_, err = GetOrFetch(context.Background(), s, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "invalidated entry must be refetched within TTL")
}

func TestInvalidatePrefix(t *testing.T) {
	s, _ := newTestStore()

	for _, key := range []string{"prs/list", "prs/42", "prs/42/threads", "auth/validate"} {
		_, err := GetOrFetch(context.Background(), s, key, time.Minute, func(context.Context) (string, error) {
			return "v", nil
		})
		require.NoError(t, err)
	}

	removed := s.InvalidatePrefix("prs/")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, s.Len())

	_, ok := Peek[string](s, "auth/validate")
	assert.True(t, ok)
}

func TestPeek_DoesNotFetch(t *testing.T) {
	s, _ := newTestStore()

	_, ok := Peek[string](s, "missing")
	assert.False(t, ok)

	_, err := GetOrFetch(context.Background(), s, "k", time.Minute, func(context.Context) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)

	v, ok := Peek[string](s, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
