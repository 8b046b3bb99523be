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

type countingSource struct {
	calls atomic.Int32
	body  []byte
	err   error
	// onFetch runs inside FetchList, before returning.
	onFetch func()
}

func (s *countingSource) FetchList(_ context.Context, _ string) ([]byte, error) {
	s.calls.Add(1)
	if s.onFetch != nil {
		s.onFetch()
	}
	return s.body, s.err
}

func TestListCache_HitMissRefresh(t *testing.T) {
	src := &countingSource{body: []byte(`[{"id":1}]`)}
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	lc := NewListCache(mem, src, time.Minute, nil)
	ctx := context.Background()

	body, hit, err := lc.Get(ctx, "ads", "ads", false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.JSONEq(t, `[{"id":1}]`, string(body))

	_, hit, err = lc.Get(ctx, "ads", "ads", false)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), src.calls.Load())

	_, hit, err = lc.Get(ctx, "ads", "ads", true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestListCache_InvalidateAfterMutation(t *testing.T) {
	src := &countingSource{body: []byte(`[]`)}
	lc := NewListCache(NewMemoryCache(MemoryCacheOptions{}), src, time.Minute, nil)
	ctx := context.Background()

	_, _, _ = lc.Get(ctx, "news", "news", false)
	require.NoError(t, lc.Invalidate(ctx, "news"))

	_, hit, err := lc.Get(ctx, "news", "news", false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestListCache_InvalidateDuringFetchSkipsStore(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{})
	src := &countingSource{body: []byte(`["stale"]`)}
	lc := NewListCache(mem, src, time.Minute, nil)
	ctx := context.Background()

	src.onFetch = func() { _ = lc.Invalidate(ctx, "feeds") }
	_, _, err := lc.Get(ctx, "feeds", "feeds", false)
	require.NoError(t, err)

	ok, _ := mem.Has(ctx, listKeyPrefix+"feeds")
	assert.False(t, ok, "a body fetched across an invalidation must not be cached")

	src.onFetch = func() { _ = lc.InvalidateAll(ctx) }
	_, _, _ = lc.Get(ctx, "tweets", "tweets", false)
	ok, _ = mem.Has(ctx, listKeyPrefix+"tweets")
	assert.False(t, ok)
}

// sequenceSource answers each fetch with the next body. A fetch whose gate
// is set waits for it before returning.
type sequenceSource struct {
	mu      sync.Mutex
	calls   int
	bodies  []string
	gates   map[int]chan struct{}
	started chan int
}

func (s *sequenceSource) FetchList(ctx context.Context, _ string) ([]byte, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	gate := s.gates[n]
	s.mu.Unlock()

	if s.started != nil {
		s.started <- n
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(s.bodies[min(n, len(s.bodies)-1)]), nil
}

func (s *sequenceSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestListCache_GetAfterInvalidateDoesNotJoinStaleFetch(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{})
	release := make(chan struct{})
	src := &sequenceSource{
		bodies:  []string{`["old"]`, `["new"]`},
		gates:   map[int]chan struct{}{0: release},
		started: make(chan int, 2),
	}
	lc := NewListCache(mem, src, time.Minute, nil)
	ctx := context.Background()

	first := make(chan []byte, 1)
	go func() {
		body, _, _ := lc.Get(ctx, "ads", "ads", false)
		first <- body
	}()
	require.Equal(t, 0, <-src.started)

	require.NoError(t, lc.Invalidate(ctx, "ads"))

	body, hit, err := lc.Get(ctx, "ads", "ads", false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.JSONEq(t, `["new"]`, string(body))

	close(release)
	assert.JSONEq(t, `["old"]`, string(<-first))
	assert.Equal(t, 2, src.count())

	cached, err := mem.Get(ctx, listKeyPrefix+"ads")
	require.NoError(t, err)
	assert.JSONEq(t, `["new"]`, string(cached))
}

func TestListCache_CanceledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	src := &sequenceSource{
		bodies:  []string{`[1]`},
		gates:   map[int]chan struct{}{0: release},
		started: make(chan int, 2),
	}
	lc := NewListCache(NewMemoryCache(MemoryCacheOptions{}), src, time.Minute, nil)

	cancelCtx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, _, err := lc.Get(cancelCtx, "shorts", "shorts", false)
		canceled <- err
	}()
	<-src.started

	joined := make(chan []byte, 1)
	go func() {
		body, _, _ := lc.Get(context.Background(), "shorts", "shorts", false)
		joined <- body
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-canceled, context.Canceled)

	close(release)
	assert.JSONEq(t, `[1]`, string(<-joined))
}

func TestListCache_ErrorsAreNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("backend down")}
	lc := NewListCache(NewMemoryCache(MemoryCacheOptions{}), src, time.Minute, nil)
	ctx := context.Background()

	_, _, err := lc.Get(ctx, "ads", "ads", false)
	assert.Error(t, err)
	_, _, err = lc.Get(ctx, "ads", "ads", false)
	assert.Error(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestListCache_ClosedCacheStillServes(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{})
	_ = mem.Close()
	src := &countingSource{body: []byte(`[]`)}
	lc := NewListCache(mem, src, time.Minute, nil)

	body, hit, err := lc.Get(context.Background(), "ads", "ads", false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "[]", string(body))
}

func TestListCache_ConcurrentMissesShareFetch(t *testing.T) {
	release := make(chan struct{})
	src := &countingSource{body: []byte(`[]`)}
	src.onFetch = func() { <-release }
	lc := NewListCache(NewMemoryCache(MemoryCacheOptions{}), src, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = lc.Get(context.Background(), "videos", "videos", false)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(5))
	assert.GreaterOrEqual(t, src.calls.Load(), int32(1))
}

func TestListCache_Stats(t *testing.T) {
	lc := NewListCache(NewMemoryCache(MemoryCacheOptions{}), &countingSource{body: []byte(`[]`)}, 0, nil)
	_, _, _ = lc.Get(context.Background(), "ads", "ads", false)

	s, ok := lc.Stats()
	require.True(t, ok)
	assert.Equal(t, 1, s.Items)
	assert.Equal(t, int64(1), s.Misses)
}
