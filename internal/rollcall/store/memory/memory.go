package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// FaultFunc lets tests fail a specific operation. Returning a non-nil error
// aborts the operation before it touches committed state.
type FaultFunc func(kind store.OpKind, namespace, key string) error

// Store is an in-memory key-value store with the same staging semantics as
// the durable implementations. It is intended for tests and dev runs.
// Enumeration is in lexicographic key order.
type Store struct {
	mu    sync.RWMutex
	data  map[string]map[string][]byte
	fault FaultFunc
}

func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

// InjectFault installs fn; pass nil to clear it. fn is consulted for every
// staged op when a handle commits.
func (s *Store) InjectFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) Open(_ context.Context, namespace string) (store.Handle, error) {
	return &handle{st: s, ns: namespace}, nil
}

func (s *Store) Enumerate(_ context.Context, namespace string) (store.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.data[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]store.Entry, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(ns[k]))
		copy(v, ns[k])
		entries = append(entries, store.Entry{Key: k, Value: v})
	}
	return store.NewSliceIterator(entries), nil
}

// Len returns the number of committed keys in namespace. Test-only helper.
func (s *Store) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[namespace])
}

// Raw writes a committed value directly, bypassing handles. Test-only
// helper for seeding corrupt records.
func (s *Store) Raw(namespace, key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.data[namespace]
	if ns == nil {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = value
}

func (s *Store) get(namespace, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// apply commits ops atomically: either every op lands or none does.
func (s *Store) apply(namespace string, ops []store.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault != nil {
		for _, op := range ops {
			if err := s.fault(op.Kind, namespace, op.Key); err != nil {
				return err
			}
		}
	}

	ns := s.data[namespace]
	if ns == nil {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			ns[op.Key] = op.Value
		case store.OpErase:
			delete(ns, op.Key)
		case store.OpEraseAll:
			clear(ns)
		}
	}
	return nil
}

type handle struct {
	st      *Store
	ns      string
	pending store.Pending
	closed  bool
}

func (h *handle) valid() bool { return h != nil && h.st != nil && !h.closed }

func (h *handle) Namespace() string { return h.ns }

func (h *handle) Get(_ context.Context, key string) ([]byte, error) {
	if !h.valid() {
		return nil, store.ErrInvalidHandle
	}
	if v, found, decided := h.pending.Lookup(key); decided {
		if !found {
			return nil, store.ErrNotFound
		}
		return v, nil
	}
	v, ok := h.st.get(h.ns, key)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
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

func (h *handle) Commit(_ context.Context) error {
	if !h.valid() {
		return store.ErrInvalidHandle
	}
	if h.pending.Len() == 0 {
		return nil
	}
	err := h.st.apply(h.ns, h.pending.Ops())
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
