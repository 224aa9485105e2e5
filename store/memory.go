package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/streamcf/core"
)

// MemoryStore 是内存实现的 KVStore，用于测试/开发/原型。
// 所有操作在单把读写锁下完成，逐调用原子，进程重启后数据丢失。
type MemoryStore struct {
	mu       sync.RWMutex
	hashes   map[string]map[string]string
	counters map[string]int64
	zsets    map[string]map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes:   make(map[string]map[string]string),
		counters: make(map[string]int64),
		zsets:    make(map[string]map[string]float64),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) HGet(ctx context.Context, key, field string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hashes[key]
	if !ok {
		return "", core.ErrStoreNotFound
	}
	v, ok := h[field]
	if !ok {
		return "", core.ErrStoreNotFound
	}
	return v, nil
}

func (m *MemoryStore) HSet(ctx context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = value
	return nil
}

func (m *MemoryStore) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(m.hashes, key)
	}
	return nil
}

func (m *MemoryStore) HLen(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.hashes[key])), nil
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for f, v := range h {
		out[f] = v
	}
	return out, nil
}

func (m *MemoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.counters, k)
		delete(m.zsets, k)
	}
	return nil
}

func (m *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[key] += delta
	return m.counters[key], nil
}

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *MemoryStore) ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] += delta
	return m.zsets[key][member], nil
}

func (m *MemoryStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	score, ok := zset[member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) ZRevRangeByScore(ctx context.Context, key string, limit int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok || len(zset) == 0 {
		return nil, nil
	}

	pairs := make([]core.ScoredMember, 0, len(zset))
	for member, score := range zset {
		pairs = append(pairs, core.ScoredMember{Member: member, Score: score})
	}
	// 分数降序；同分时按成员字典序降序，与 Redis 的逆序遍历一致
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		return pairs[i].Member > pairs[j].Member
	})

	if limit > 0 && int64(len(pairs)) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

func (m *MemoryStore) ZUnionStore(ctx context.Context, dest string, keys []string, weights []float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	union := make(map[string]float64)
	for i, k := range keys {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		for member, score := range m.zsets[k] {
			union[member] += score * w
		}
	}
	if len(union) == 0 {
		delete(m.zsets, dest)
		return 0, nil
	}
	m.zsets[dest] = union
	return int64(len(union)), nil
}

func (m *MemoryStore) Close() error { return nil }

// 确保 MemoryStore 实现了 core.KVStore 接口
var _ core.KVStore = (*MemoryStore)(nil)
