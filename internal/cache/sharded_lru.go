package cache

import "time"

const defaultShardCount = 16

// Cache is the common interface for LRU and ShardedLRU caches.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Add(key K, value V, expiresAt time.Time) bool
	Len() int
	Stats() (hits, misses int64)
}

var (
	_ Cache[string, int] = (*LRU[string, int])(nil)
	_ Cache[string, int] = (*ShardedLRU[string, int])(nil)
)

// ShardedLRU spreads keys over independent LRU shards so concurrent
// writers with different keys rarely contend on one lock.
type ShardedLRU[K comparable, V any] struct {
	shards []*LRU[K, V]
	hashFn func(K) uint32
}

// NewShardedLRU splits totalCapacity evenly across shardCount shards
// (defaultShardCount when shardCount <= 0). hashFn picks the shard of a key.
func NewShardedLRU[K comparable, V any](totalCapacity int, ttl time.Duration, shardCount int, hashFn func(K) uint32) *ShardedLRU[K, V] {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	perShard := totalCapacity / shardCount
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]*LRU[K, V], shardCount)
	for i := range shards {
		shards[i] = NewLRU[K, V](perShard, ttl)
	}
	return &ShardedLRU[K, V]{shards: shards, hashFn: hashFn}
}

func (s *ShardedLRU[K, V]) shard(key K) *LRU[K, V] {
	return s.shards[s.hashFn(key)%uint32(len(s.shards))]
}

func (s *ShardedLRU[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

func (s *ShardedLRU[K, V]) Put(key K, value V) {
	s.shard(key).Put(key, value)
}

func (s *ShardedLRU[K, V]) Add(key K, value V, expiresAt time.Time) bool {
	return s.shard(key).Add(key, value, expiresAt)
}

func (s *ShardedLRU[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

func (s *ShardedLRU[K, V]) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return
}
