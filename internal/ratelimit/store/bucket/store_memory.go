// Package bucket holds sliding-window request counters. The in-memory store
// serves single-instance deployments and the degraded path; the Redis store
// is shared across instances.
package bucket

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"trustdir/internal/ratelimit/models"
)

const (
	shardCount                = 32
	defaultMaxBucketsPerShard = 4096
)

// InMemoryBucketStore is a sharded sliding-window counter. Each shard keeps
// at most maxPerShard buckets and evicts the least recently used one.
type InMemoryBucketStore struct {
	shards      [shardCount]*shard
	maxPerShard int
	now         func() time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	lru     *list.List
}

type slidingWindow struct {
	key        string
	timestamps []time.Time
	window     time.Duration
}

type Option func(*InMemoryBucketStore)

// WithMaxBucketsPerShard bounds memory per shard.
func WithMaxBucketsPerShard(n int) Option {
	return func(s *InMemoryBucketStore) {
		if n > 0 {
			s.maxPerShard = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		maxPerShard: defaultMaxBucketsPerShard,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{buckets: make(map[string]*list.Element), lru: list.New()}
	}
	return s
}

// Allow checks if a request is allowed and counts it when it is.
func (s *InMemoryBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN is Allow for a request that costs several hits.
func (s *InMemoryBucketStore) AllowN(_ context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	sw := s.getOrCreate(sh, key, window)
	sw.cleanup(now)

	if len(sw.timestamps)+cost > limit {
		resetAt := now.Add(window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(window)
		}
		return models.Denied(limit, resetAt, now), nil
	}

	for range cost {
		sw.timestamps = append(sw.timestamps, now)
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if el, ok := sh.buckets[key]; ok {
		sh.lru.Remove(el)
		delete(sh.buckets, key)
	}
	return nil
}

// GetCurrentCount returns the number of hits inside the window for a key.
func (s *InMemoryBucketStore) GetCurrentCount(_ context.Context, key string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	el, ok := sh.buckets[key]
	if !ok {
		return 0, nil
	}
	sw := el.Value.(*slidingWindow)
	sw.cleanup(s.now())
	return len(sw.timestamps), nil
}

// Stats reports the bucket count in total and per shard.
func (s *InMemoryBucketStore) Stats() (total int, perShard []int) {
	perShard = make([]int, shardCount)
	for i, sh := range s.shards {
		sh.mu.Lock()
		perShard[i] = len(sh.buckets)
		sh.mu.Unlock()
		total += perShard[i]
	}
	return total, perShard
}

func (s *InMemoryBucketStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%shardCount]
}

// getOrCreate must be called with sh.mu held.
func (s *InMemoryBucketStore) getOrCreate(sh *shard, key string, window time.Duration) *slidingWindow {
	if el, ok := sh.buckets[key]; ok {
		sh.lru.MoveToFront(el)
		return el.Value.(*slidingWindow)
	}
	for len(sh.buckets) >= s.maxPerShard {
		oldest := sh.lru.Back()
		if oldest == nil {
			break
		}
		sh.lru.Remove(oldest)
		delete(sh.buckets, oldest.Value.(*slidingWindow).key)
	}
	sw := &slidingWindow{key: key, window: window}
	sh.buckets[key] = sh.lru.PushFront(sw)
	return sw
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
