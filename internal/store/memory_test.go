package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type counter struct {
	N int `json:"n"`
}

func TestMemoryStore_TransactPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Transact(ctx, "P#1", func(tx *Tx) error {
		return tx.Put("P#1", "A", counter{N: 1})
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}

	it, err := s.Get(ctx, "P#1", "A")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it.Version != 1 {
		t.Fatalf("expected version 1, got %d", it.Version)
	}
	var c counter
	if err := it.Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.N != 1 {
		t.Fatalf("expected n=1, got %d", c.N)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope", "nope")
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestMemoryStore_CallbackErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.Transact(ctx, "P#1", func(tx *Tx) error {
		if err := tx.Put("P#1", "A", counter{N: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Get(ctx, "P#1", "A"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected nothing written, got %v", err)
	}
}

func TestMemoryStore_InsertOutsidePartitionConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	put := func() error {
		return s.Transact(ctx, "P#1", func(tx *Tx) error {
			if err := tx.Put("P#1", "A", counter{N: 1}); err != nil {
				return err
			}
			return tx.Put("IDX#1", "REF", counter{N: 1})
		})
	}
	if err := put(); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := put(); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on second insert, got %v", err)
	}

	// The partition item must not have been bumped by the failed transaction.
	it, err := s.Get(ctx, "P#1", "A")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it.Version != 1 {
		t.Fatalf("expected version 1 after failed commit, got %d", it.Version)
	}
}

func TestMemoryStore_TxSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Transact(ctx, "P#1", func(tx *Tx) error {
		if err := tx.Put("P#1", "SLOT#1", counter{N: 1}); err != nil {
			return err
		}
		if err := tx.Put("P#1", "SLOT#2", counter{N: 2}); err != nil {
			return err
		}
		if got := len(tx.Query("SLOT#")); got != 2 {
			return fmt.Errorf("expected 2 slots in view, got %d", got)
		}
		tx.Delete("P#1", "SLOT#1")
		if _, ok := tx.Get("SLOT#1"); ok {
			return errors.New("deleted item still visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}

	items, err := s.QueryByPrefix(ctx, "P#")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 1 || items[0].SK != "SLOT#2" {
		t.Fatalf("expected only SLOT#2, got %+v", items)
	}
}

func TestMemoryStore_ConcurrentIncrementsAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Transact(ctx, "P#1", func(tx *Tx) error {
				var c counter
				if it, ok := tx.Get("COUNTER"); ok {
					if err := it.Decode(&c); err != nil {
						return err
					}
				}
				c.N++
				return tx.Put("P#1", "COUNTER", c)
			})
			if err != nil {
				t.Errorf("transact: %v", err)
			}
		}()
	}
	wg.Wait()

	it, err := s.Get(ctx, "P#1", "COUNTER")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var c counter
	if err := it.Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.N != workers {
		t.Fatalf("expected %d increments, got %d", workers, c.N)
	}
	if it.Version != workers {
		t.Fatalf("expected version %d, got %d", workers, it.Version)
	}
}
