package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("connection refused")
	}
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) DeleteMatching(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

type result struct {
	Hits []string `json:"hits"`
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New[result](newMemStore(), time.Minute, nil)
	key := Key{Generation: 1, Query: "blood", Limit: 10}
	calls := 0
	compute := func() (result, error) {
		calls++
		return result{Hits: []string{"a.txt"}}, nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"a.txt"}, got.Hits)

	got, hit, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a.txt"}, got.Hits)
	assert.Equal(t, 1, calls)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate, 1e-9)
}

func TestKeyDependsOnGenerationQueryAndLimit(t *testing.T) {
	base := Key{Generation: 3, Query: "(blood AND test)", Limit: 10}
	assert.Equal(t, base.String(), base.String())
	assert.NotEqual(t, base.String(), Key{Generation: 4, Query: base.Query, Limit: 10}.String())
	assert.NotEqual(t, base.String(), Key{Generation: 3, Query: "(blood OR test)", Limit: 10}.String())
	assert.NotEqual(t, base.String(), Key{Generation: 3, Query: base.Query, Limit: 5}.String())
}

func TestComputeErrorIsNotCached(t *testing.T) {
	store := newMemStore()
	c := New[result](store, time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), Key{Query: "x", Limit: 1}, func() (result, error) {
		return result{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestStoreFailureFallsThroughToCompute(t *testing.T) {
	store := newMemStore()
	store.failGet = true
	c := New[result](store, time.Minute, nil)
	got, hit, err := c.GetOrCompute(context.Background(), Key{Query: "x", Limit: 1}, func() (result, error) {
		return result{Hits: []string{"z"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"z"}, got.Hits)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New[result](newMemStore(), time.Minute, nil)
	key := Key{Generation: 1, Query: "slow", Limit: 10}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, func() (result, error) {
				calls.Add(1)
				<-release
				return result{Hits: []string{"s"}}, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = []byte("keep")
	c := New[result](store, time.Minute, nil)
	for i := range 3 {
		c.Set(context.Background(), Key{Generation: uint64(i), Query: "q", Limit: 1}, result{})
	}
	deleted, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Len(t, store.data, 1)

	_, ok := c.Get(context.Background(), Key{Generation: 0, Query: "q", Limit: 1})
	assert.False(t, ok)
}
