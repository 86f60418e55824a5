package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Gateway. Partitions are serialized with one
// mutex each; it backs tests, the simulator and single-node development.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]Item

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]map[string]Item),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) Get(_ context.Context, pk, sk string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[pk][sk]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := copyItem(it)
	return &cp, nil
}

func (s *MemoryStore) QueryByPrefix(_ context.Context, pkPrefix string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for pk, part := range s.items {
		if !strings.HasPrefix(pk, pkPrefix) {
			continue
		}
		for _, it := range part {
			out = append(out, copyItem(it))
		}
	}
	sortItems(out)
	return out, nil
}

func (s *MemoryStore) Transact(ctx context.Context, partition string, fn func(tx *Tx) error) error {
	lock := s.partitionLock(partition)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := make([]Item, 0, len(s.items[partition]))
	for _, it := range s.items[partition] {
		snapshot = append(snapshot, copyItem(it))
	}
	s.mu.RUnlock()

	tx := NewTx(partition, snapshot)
	if err := fn(tx); err != nil {
		return err
	}

	writes := tx.Writes()
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything first so a conflict leaves the store untouched.
	for _, w := range writes {
		cur, exists := s.items[w.Item.PK][w.Item.SK]
		switch w.Op {
		case OpPut:
			if w.ExpectVersion == 0 && exists {
				return ErrVersionConflict
			}
			if w.ExpectVersion != 0 && (!exists || cur.Version != w.ExpectVersion) {
				return ErrVersionConflict
			}
		case OpDelete:
			if tx.InPartition(w) && w.ExpectVersion != 0 && (!exists || cur.Version != w.ExpectVersion) {
				return ErrVersionConflict
			}
		}
	}

	for _, w := range writes {
		switch w.Op {
		case OpPut:
			part, ok := s.items[w.Item.PK]
			if !ok {
				part = make(map[string]Item)
				s.items[w.Item.PK] = part
			}
			part[w.Item.SK] = copyItem(w.Item)
		case OpDelete:
			delete(s.items[w.Item.PK], w.Item.SK)
			if len(s.items[w.Item.PK]) == 0 {
				delete(s.items, w.Item.PK)
			}
		}
	}
	return nil
}

func (s *MemoryStore) partitionLock(partition string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[partition]
	if !ok {
		l = &sync.Mutex{}
		s.locks[partition] = l
	}
	return l
}

func copyItem(it Item) Item {
	data := make([]byte, len(it.Data))
	copy(data, it.Data)
	it.Data = data
	return it
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].PK != items[j].PK {
			return items[i].PK < items[j].PK
		}
		return items[i].SK < items[j].SK
	})
}
