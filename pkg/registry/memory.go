package registry

import (
	"context"
	"fmt"
	"sync"

	"hashdex/pkg/entry"
	"hashdex/pkg/types"

	"github.com/tidwall/btree"
)

type record struct {
	canonical *entry.IndexEntry
	seeded    bool // 来自之前运行的快照，不属于当前的条目树
}

// Memory 单次运行的注册表，按哈希有序存储
type Memory struct {
	mu      sync.Mutex
	records *btree.Map[types.Hash, *record]
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: btree.NewMap[types.Hash, *record](0)}
}

func (m *Memory) Lookup(_ context.Context, hash types.Hash) (*entry.IndexEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records.Get(hash)
	if !ok {
		return nil, false, nil
	}
	return rec.canonical, true, nil
}

func (m *Memory) Register(_ context.Context, hash types.Hash, e *entry.IndexEntry) error {
	if hash.IsZero() || e == nil {
		return fmt.Errorf("register: empty hash or entry")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records.Get(hash); ok {
		return nil
	}
	m.records.Set(hash, &record{canonical: e})
	return nil
}

// Adopt 把快照中的规范条目替换为本次运行的条目
// 本次运行已经登记过的哈希不能被替换
func (m *Memory) Adopt(_ context.Context, hash types.Hash, e *entry.IndexEntry) error {
	if hash.IsZero() || e == nil {
		return fmt.Errorf("adopt: empty hash or entry")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records.Get(hash); ok && !rec.seeded {
		return fmt.Errorf("adopt: %s already has a canonical entry in this run", hash)
	}
	m.records.Set(hash, &record{canonical: e})
	return nil
}

func (m *Memory) RecordDuplicate(_ context.Context, hash types.Hash, d entry.DuplicateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records.Get(hash)
	if !ok {
		return fmt.Errorf("record duplicate: no canonical entry for %s", hash)
	}
	rec.canonical.AddDuplicate(d)
	return nil
}

// Seeded 该哈希的规范条目是否来自快照
func (m *Memory) Seeded(hash types.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records.Get(hash)
	return ok && rec.seeded
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records.Len()
}
