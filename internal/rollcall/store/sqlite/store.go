package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// Store keeps every namespace in the kv_entries table. Reads go straight to
// the pool; every commit is one transaction on the single writer.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewStore(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

func (s *Store) Open(_ context.Context, namespace string) (store.Handle, error) {
	if s == nil || s.db == nil || s.writer == nil {
		return nil, store.ErrInvalidHandle
	}
	return &handle{st: s, ns: namespace}, nil
}

// Enumerate materializes the namespace ordered by key (BINARY collation,
// i.e. lexicographic) so the single pooled connection is released before
// the caller starts iterating.
func (s *Store) Enumerate(ctx context.Context, namespace string) (store.Iterator, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, value FROM kv_entries
WHERE namespace = ?
ORDER BY key ASC;
`, namespace)
	if err != nil {
		return nil, fmt.Errorf("Enumerate %s: %w", namespace, err)
	}
	defer rows.Close()

	var entries []store.Entry
	for rows.Next() {
		var e store.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("Enumerate %s scan: %w", namespace, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Enumerate %s: %w", namespace, err)
	}
	return store.NewSliceIterator(entries), nil
}

func (s *Store) get(ctx context.Context, namespace, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM kv_entries WHERE namespace = ? AND key = ?;
`, namespace, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get %s/%s: %w", namespace, key, err)
	}
	return v, nil
}

func (s *Store) apply(ctx context.Context, namespace string, ops []store.Op) error {
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, op := range ops {
			var err error
			switch op.Kind {
			case store.OpPut:
				_, err = tx.ExecContext(ctx, `
INSERT INTO kv_entries(namespace, key, value, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(namespace, key) DO UPDATE SET
  value = excluded.value,
  updated_at_ms = excluded.updated_at_ms;
`, namespace, op.Key, op.Value, nowMs)
			case store.OpErase:
				_, err = tx.ExecContext(ctx, `
DELETE FROM kv_entries WHERE namespace = ? AND key = ?;
`, namespace, op.Key)
			case store.OpEraseAll:
				_, err = tx.ExecContext(ctx, `
DELETE FROM kv_entries WHERE namespace = ?;
`, namespace)
			}
			if err != nil {
				return fmt.Errorf("Commit %s %s %q: %w", namespace, op.Kind, op.Key, err)
			}
		}
		return nil
	})
}

type handle struct {
	st      *Store
	ns      string
	pending store.Pending
	closed  bool
}

func (h *handle) valid() bool { return h != nil && h.st != nil && !h.closed }

func (h *handle) Namespace() string { return h.ns }

func (h *handle) Get(ctx context.Context, key string) ([]byte, error) {
	if !h.valid() {
		return nil, store.ErrInvalidHandle
	}
	if v, found, decided := h.pending.Lookup(key); decided {
		if !found {
			return nil, store.ErrNotFound
		}
		return v, nil
	}
	return h.st.get(ctx, h.ns, key)
}

func (h *handle) Put(_ context.Context, key string, value []byte) error {
	if !h.valid() {
		return store.ErrInvalidHandle
	}
	h.pending.Put(key, value)
	return nil
}

func (h *handle) Erase(ctx context.Context, key string) error {
	if _, err := h.Get(ctx, key); err != nil {
		return err
	}
	h.pending.Erase(key)
	return nil
}

func (h *handle) EraseAll(_ context.Context) error {
	if !h.valid() {
		return store.ErrInvalidHandle
	}
	h.pending.EraseAll()
	return nil
}

func (h *handle) Commit(ctx context.Context) error {
	if !h.valid() {
		return store.ErrInvalidHandle
	}
	if h.pending.Len() == 0 {
		return nil
	}
	err := h.st.apply(ctx, h.ns, h.pending.Ops())
	h.pending.Reset()
	return err
}

func (h *handle) Close() error {
	if h == nil {
		return store.ErrInvalidHandle
	}
	h.pending.Reset()
	h.closed = true
	return nil
}
