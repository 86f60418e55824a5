package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrItemNotFound    = errors.New("item not found")
	ErrVersionConflict = errors.New("item was modified concurrently")
)

// Item is one record keyed by (partition key, sort key). Data holds the JSON
// encoding of the record. Version is bumped on every write and is used as the
// compare-and-swap guard.
type Item struct {
	PK      string
	SK      string
	Data    []byte
	Version int64
}

// Decode unmarshals the item payload into v.
func (i Item) Decode(v any) error {
	if err := json.Unmarshal(i.Data, v); err != nil {
		return fmt.Errorf("decode item %s/%s: %w", i.PK, i.SK, err)
	}
	return nil
}

// Gateway is the key/value store the booking core persists through.
//
// Transact runs fn against a snapshot of every item in partition and commits
// the writes fn recorded on the Tx atomically. Implementations must serialize
// Transact calls that share a partition.
type Gateway interface {
	Get(ctx context.Context, pk, sk string) (*Item, error)
	QueryByPrefix(ctx context.Context, pkPrefix string) ([]Item, error)
	Transact(ctx context.Context, partition string, fn func(tx *Tx) error) error
}

type WriteOp int

const (
	OpPut WriteOp = iota
	OpDelete
)

// Write is a pending mutation. ExpectVersion 0 means "must not exist yet" for
// puts; deletes outside the partition ignore it.
type Write struct {
	Op            WriteOp
	Item          Item
	ExpectVersion int64
}

type itemKey struct{ pk, sk string }

// Tx is the working set handed to a Transact callback.
type Tx struct {
	partition string
	view      map[itemKey]Item
	loaded    map[itemKey]int64
	writes    map[itemKey]Write
	order     []itemKey
}

// NewTx builds a transaction view over the loaded partition items. Backends
// call it; callers only receive it.
func NewTx(partition string, items []Item) *Tx {
	tx := &Tx{
		partition: partition,
		view:      make(map[itemKey]Item, len(items)),
		loaded:    make(map[itemKey]int64, len(items)),
		writes:    make(map[itemKey]Write),
	}
	for _, it := range items {
		k := itemKey{it.PK, it.SK}
		tx.view[k] = it
		tx.loaded[k] = it.Version
	}
	return tx
}

func (tx *Tx) Partition() string { return tx.partition }

// Get returns an item of the partition as currently seen by the transaction,
// including writes made earlier in the same callback.
func (tx *Tx) Get(sk string) (Item, bool) {
	it, ok := tx.view[itemKey{tx.partition, sk}]
	return it, ok
}

// Query returns the partition items whose sort key starts with skPrefix,
// ordered by sort key.
func (tx *Tx) Query(skPrefix string) []Item {
	var out []Item
	for k, it := range tx.view {
		if k.pk == tx.partition && strings.HasPrefix(k.sk, skPrefix) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SK < out[j].SK })
	return out
}

// Put records v (JSON encoded) under (pk, sk).
func (tx *Tx) Put(pk, sk string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode item %s/%s: %w", pk, sk, err)
	}
	k := itemKey{pk, sk}
	expect := tx.loaded[k]
	tx.record(k, Write{Op: OpPut, Item: Item{PK: pk, SK: sk, Data: data, Version: expect + 1}, ExpectVersion: expect})
	if pk == tx.partition {
		tx.view[k] = Item{PK: pk, SK: sk, Data: data, Version: expect}
	}
	return nil
}

func (tx *Tx) Delete(pk, sk string) {
	k := itemKey{pk, sk}
	tx.record(k, Write{Op: OpDelete, Item: Item{PK: pk, SK: sk}, ExpectVersion: tx.loaded[k]})
	delete(tx.view, k)
}

func (tx *Tx) record(k itemKey, w Write) {
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = w
}

// Writes returns the pending mutations in the order they were first recorded.
func (tx *Tx) Writes() []Write {
	out := make([]Write, 0, len(tx.order))
	for _, k := range tx.order {
		out = append(out, tx.writes[k])
	}
	return out
}

// InPartition reports whether a write targets the locked partition.
func (tx *Tx) InPartition(w Write) bool {
	return w.Item.PK == tx.partition
}
