package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
)

// ReaderStore keeps the reader allow-list in the readers table. With no
// enabled rows every reader is accepted, matching the in-memory store.
type ReaderStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReaderStore(db *sql.DB, writer *dbpkg.Worker) *ReaderStore {
	return &ReaderStore{db: db, writer: writer}
}

func (s *ReaderStore) IsKnown(ctx context.Context, readerID string) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM readers WHERE enabled = 1;
`).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("IsKnown count: %w", err)
	}
	if enabled == 0 {
		return true, nil
	}

	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return false, nil
	}

	var flag int
	err = s.db.QueryRowContext(ctx, `
SELECT enabled FROM readers WHERE reader_id = ?;
`, readerID).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsKnown query: %w", err)
	}
	return flag == 1, nil
}

// Enroll makes ids the exact set of enabled readers. Listed readers are
// inserted or re-enabled; every other row is disabled. Blank ids are
// ignored, so an empty list disables everything and opens the gate.
func (s *ReaderStore) Enroll(ctx context.Context, ids []string, now time.Time) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ms := now.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE readers SET enabled = 0, updated_at_ms = ? WHERE enabled = 1;
`, ms); err != nil {
			return fmt.Errorf("Enroll disable: %w", err)
		}

		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO readers(reader_id, enabled, enrolled_at_ms, updated_at_ms)
VALUES (?, 1, ?, ?)
ON CONFLICT(reader_id) DO UPDATE SET
  enabled       = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, ms, ms); err != nil {
				return fmt.Errorf("Enroll %s: %w", id, err)
			}
		}
		return nil
	})
}

// EnrolledAt returns when readerID was first enrolled.
func (s *ReaderStore) EnrolledAt(ctx context.Context, readerID string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `
SELECT enrolled_at_ms FROM readers WHERE reader_id = ?;
`, strings.TrimSpace(readerID)).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("EnrolledAt: %w", err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}
