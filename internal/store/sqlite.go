package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// itemRecord is the gorm model behind SQLiteStore.
type itemRecord struct {
	PK        string         `gorm:"column:pk;primaryKey"`
	SK        string         `gorm:"column:sk;primaryKey"`
	Data      datatypes.JSON `gorm:"column:data;not null"`
	Version   int64          `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (itemRecord) TableName() string { return "items" }

func (r itemRecord) item() Item {
	return Item{PK: r.PK, SK: r.SK, Data: []byte(r.Data), Version: r.Version}
}

// SQLiteStore is a single-node Gateway on top of gorm. SQLite has one writer,
// so partitions are serialized in-process and versions still guard writes.
type SQLiteStore struct {
	db *gorm.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}
}

func (s *SQLiteStore) Migrate() error {
	if err := s.db.AutoMigrate(&itemRecord{}); err != nil {
		return fmt.Errorf("migrate items table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, pk, sk string) (*Item, error) {
	var rec itemRecord
	err := s.db.WithContext(ctx).First(&rec, "pk = ? AND sk = ?", pk, sk).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	it := rec.item()
	return &it, nil
}

func (s *SQLiteStore) QueryByPrefix(ctx context.Context, pkPrefix string) ([]Item, error) {
	var recs []itemRecord
	err := s.db.WithContext(ctx).
		Where("substr(pk, 1, ?) = ?", len(pkPrefix), pkPrefix).
		Order("pk ASC, sk ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query items by prefix: %w", err)
	}
	out := make([]Item, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.item())
	}
	return out, nil
}

func (s *SQLiteStore) Transact(ctx context.Context, partition string, fn func(tx *Tx) error) error {
	lock := s.partitionLock(partition)
	lock.Lock()
	defer lock.Unlock()

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var recs []itemRecord
		if err := db.Where("pk = ?", partition).Find(&recs).Error; err != nil {
			return fmt.Errorf("load partition %s: %w", partition, err)
		}
		items := make([]Item, 0, len(recs))
		for _, r := range recs {
			items = append(items, r.item())
		}

		tx := NewTx(partition, items)
		if err := fn(tx); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, w := range tx.Writes() {
			if err := applyGormWrite(db, tx, w, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyGormWrite(db *gorm.DB, tx *Tx, w Write, now time.Time) error {
	var res *gorm.DB

	switch {
	case w.Op == OpPut && w.ExpectVersion == 0:
		res = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&itemRecord{
			PK:        w.Item.PK,
			SK:        w.Item.SK,
			Data:      datatypes.JSON(w.Item.Data),
			Version:   1,
			UpdatedAt: now,
		})
	case w.Op == OpPut:
		res = db.Model(&itemRecord{}).
			Where("pk = ? AND sk = ? AND version = ?", w.Item.PK, w.Item.SK, w.ExpectVersion).
			Updates(map[string]any{
				"data":       datatypes.JSON(w.Item.Data),
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
	case w.Op == OpDelete && tx.InPartition(w) && w.ExpectVersion != 0:
		res = db.Where("pk = ? AND sk = ? AND version = ?", w.Item.PK, w.Item.SK, w.ExpectVersion).
			Delete(&itemRecord{})
	default:
		res = db.Where("pk = ? AND sk = ?", w.Item.PK, w.Item.SK).Delete(&itemRecord{})
		if res.Error != nil {
			return fmt.Errorf("write item %s/%s: %w", w.Item.PK, w.Item.SK, res.Error)
		}
		return nil
	}

	if res.Error != nil {
		return fmt.Errorf("write item %s/%s: %w", w.Item.PK, w.Item.SK, res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLiteStore) partitionLock(partition string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[partition]
	if !ok {
		l = &sync.Mutex{}
		s.locks[partition] = l
	}
	return l
}
