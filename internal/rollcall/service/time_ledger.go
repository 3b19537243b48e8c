package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// maxKeyProbes bounds the collision search under KeySequenced.
const maxKeyProbes = 10000

// TimeLedger is the append-only log of transitions in the "time" namespace.
// Rows are never rewritten; they are only read back by ScanAll or dropped
// together by ClearAll.
type TimeLedger struct {
	store  store.Store
	scheme KeyScheme
}

func NewTimeLedger(st store.Store, scheme KeyScheme) *TimeLedger {
	return &TimeLedger{store: st, scheme: scheme}
}

func (l *TimeLedger) Scheme() KeyScheme { return l.scheme }

// Append writes one row keyed by ts (whole seconds) and returns the key.
// Under KeySeconds a row already holding that key is replaced without any
// check.
func (l *TimeLedger) Append(ctx context.Context, ts time.Time, tag types.Tag, dir types.Direction) (string, error) {
	sec := ts.Unix()
	if sec < 0 {
		return "", ErrInvalidTimestamp
	}
	value, err := EncodeRecord(tag, dir)
	if err != nil {
		return "", err
	}

	h, err := l.store.Open(ctx, store.TimeNamespace)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrStoreWrite, store.TimeNamespace, err)
	}
	defer h.Close()

	key := secondsKey(sec)
	if l.scheme == KeySequenced {
		if key, err = freeKey(ctx, h, sec); err != nil {
			return "", err
		}
	}

	if err := h.Put(ctx, key, value); err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrStoreWrite, key, err)
	}
	if err := h.Commit(ctx); err != nil {
		return "", fmt.Errorf("%w: commit %s: %w", ErrStoreWrite, key, err)
	}
	return key, nil
}

func freeKey(ctx context.Context, h store.Handle, sec int64) (string, error) {
	for n := 0; n < maxKeyProbes; n++ {
		key := sequencedKey(sec, n)
		_, err := h.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return key, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: probe %s: %w", ErrStoreRead, key, err)
		}
	}
	return "", fmt.Errorf("%w: no free key for second %d", ErrStoreWrite, sec)
}

// ScanAll decodes every row in store enumeration order. An empty ledger is
// an empty snapshot. A single undecodable row fails the whole scan.
func (l *TimeLedger) ScanAll(ctx context.Context) (types.Snapshot, error) {
	it, err := l.store.Enumerate(ctx, store.TimeNamespace)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate %s: %w", ErrStoreRead, store.TimeNamespace, err)
	}
	defer it.Close()

	snap := types.Snapshot{}
	for it.Next() {
		e := it.Entry()
		sec, err := parseLedgerKey(e.Key)
		if err != nil {
			return nil, err
		}
		tag, dir, err := DecodeRecord(e.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		snap = append(snap, types.LedgerEntry{
			Key:       e.Key,
			Timestamp: sec,
			Tag:       tag,
			Direction: dir,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: enumerate %s: %w", ErrStoreRead, store.TimeNamespace, err)
	}
	return snap, nil
}

func (l *TimeLedger) ClearAll(ctx context.Context) error {
	return eraseNamespace(ctx, l.store, store.TimeNamespace)
}
