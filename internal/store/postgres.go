package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS items (
	pk         TEXT        NOT NULL,
	sk         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	version    BIGINT      NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pk, sk)
)`

// PgStore keeps items in a single Postgres table. Transact takes a
// transaction-scoped advisory lock on the partition and guards every write
// with the item version.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Migrate creates the items table when it does not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrate items table: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.PK, &it.SK, &it.Data, &it.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PgStore) Get(ctx context.Context, pk, sk string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pk, sk, data, version
		FROM items
		WHERE pk = $1 AND sk = $2
	`, pk, sk)
	return scanItem(row)
}

func (s *PgStore) QueryByPrefix(ctx context.Context, pkPrefix string) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pk, sk, data, version
		FROM items
		WHERE starts_with(pk, $1)
		ORDER BY pk, sk
	`, pkPrefix)
	if err != nil {
		return nil, fmt.Errorf("query items by prefix: %w", err)
	}
	return collectItems(rows)
}

func (s *PgStore) Transact(ctx context.Context, partition string, fn func(tx *Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if _, err := pgTx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, partition); err != nil {
		return fmt.Errorf("lock partition %s: %w", partition, err)
	}

	rows, err := pgTx.Query(ctx, `
		SELECT pk, sk, data, version
		FROM items
		WHERE pk = $1
	`, partition)
	if err != nil {
		return fmt.Errorf("load partition %s: %w", partition, err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return fmt.Errorf("load partition %s: %w", partition, err)
	}

	tx := NewTx(partition, items)
	if err := fn(tx); err != nil {
		return err
	}

	for _, w := range tx.Writes() {
		if err := applyPgWrite(ctx, pgTx, tx, w); err != nil {
			return err
		}
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applyPgWrite(ctx context.Context, pgTx pgx.Tx, tx *Tx, w Write) error {
	var (
		affected int64
		err      error
	)

	switch {
	case w.Op == OpPut && w.ExpectVersion == 0:
		tag, execErr := pgTx.Exec(ctx, `
			INSERT INTO items (pk, sk, data, version, updated_at)
			VALUES ($1, $2, $3, 1, now())
			ON CONFLICT (pk, sk) DO NOTHING
		`, w.Item.PK, w.Item.SK, w.Item.Data)
		affected, err = tag.RowsAffected(), execErr
	case w.Op == OpPut:
		tag, execErr := pgTx.Exec(ctx, `
			UPDATE items
			SET data = $3,
			    version = version + 1,
			    updated_at = now()
			WHERE pk = $1
			  AND sk = $2
			  AND version = $4
		`, w.Item.PK, w.Item.SK, w.Item.Data, w.ExpectVersion)
		affected, err = tag.RowsAffected(), execErr
	case w.Op == OpDelete && tx.InPartition(w) && w.ExpectVersion != 0:
		tag, execErr := pgTx.Exec(ctx, `
			DELETE FROM items
			WHERE pk = $1 AND sk = $2 AND version = $3
		`, w.Item.PK, w.Item.SK, w.ExpectVersion)
		affected, err = tag.RowsAffected(), execErr
	default:
		_, err = pgTx.Exec(ctx, `DELETE FROM items WHERE pk = $1 AND sk = $2`, w.Item.PK, w.Item.SK)
		affected = 1
	}

	if err != nil {
		return fmt.Errorf("write item %s/%s: %w", w.Item.PK, w.Item.SK, err)
	}
	if affected != 1 {
		return ErrVersionConflict
	}
	return nil
}
