package store

import (
	"context"
	"errors"
)

// Namespaces used by the attendance core.
const (
	TagsNamespace = "tags"
	TimeNamespace = "time"
)

var (
	// ErrNotFound is the expected outcome of probing an absent key.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidHandle is returned for nil or closed handles.
	ErrInvalidHandle = errors.New("invalid store handle")
)

// Entry is one key/value pair yielded by enumeration.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the durable key-value capability: namespace -> key -> bytes.
type Store interface {
	// Open returns a read-write handle on namespace.
	Open(ctx context.Context, namespace string) (Handle, error)

	// Enumerate lists the committed entries of namespace. Iteration order
	// is defined by the implementation.
	Enumerate(ctx context.Context, namespace string) (Iterator, error)
}

// Handle is an open namespace. Put, Erase and EraseAll are staged on the
// handle and only become durable once Commit succeeds. A failed Commit
// discards everything staged since the previous Commit.
type Handle interface {
	Namespace() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Erase reports ErrNotFound when key is absent.
	Erase(ctx context.Context, key string) error
	EraseAll(ctx context.Context) error
	Commit(ctx context.Context) error
	// Close drops uncommitted operations.
	Close() error
}

// Iterator walks enumerated entries in the style of sql.Rows.
type Iterator interface {
	Next() bool
	Entry() Entry
	Err() error
	Close() error
}

// SliceIterator iterates a materialized slice of entries.
type SliceIterator struct {
	entries []Entry
	pos     int
}

func NewSliceIterator(entries []Entry) *SliceIterator {
	return &SliceIterator{entries: entries, pos: -1}
}

func (it *SliceIterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		it.pos = len(it.entries)
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Entry() Entry {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return Entry{}
	}
	return it.entries[it.pos]
}

func (it *SliceIterator) Err() error   { return nil }
func (it *SliceIterator) Close() error { return nil }
