// Package natskv keeps each namespace in its own JetStream KeyValue bucket.
//
// JetStream has no multi-key transaction, so Commit applies staged
// operations one at a time. A failure part way through leaves the earlier
// operations applied; the error names the operation that failed.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

var errNatsURLRequired = errors.New("nats_url is required")

type Config struct {
	URL          string
	BucketPrefix string // default "rollcall"
	Replicas     int
}

type Store struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg Config

	mu      sync.Mutex
	buckets map[string]jetstream.KeyValue
}

func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errNatsURLRequired
	}
	if cfg.BucketPrefix == "" {
		cfg.BucketPrefix = "rollcall"
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("rollcall"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := &Store{nc: nc, js: js, cfg: cfg, buckets: make(map[string]jetstream.KeyValue)}

	// Fail fast on a server without JetStream.
	if _, err := s.bucket(ctx, store.TagsNamespace); err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.nc.Close()
	return nil
}

func (s *Store) bucketName(namespace string) string {
	return s.cfg.BucketPrefix + "-" + namespace
}

func (s *Store) bucket(ctx context.Context, namespace string) (jetstream.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.buckets[namespace]; ok {
		return kv, nil
	}

	cfg := jetstream.KeyValueConfig{
		Bucket:   s.bucketName(namespace),
		History:  1,
		Storage:  jetstream.FileStorage,
		Replicas: s.cfg.Replicas,
	}
	kv, err := s.js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", cfg.Bucket, err)
	}
	s.buckets[namespace] = kv
	return kv, nil
}

func (s *Store) Open(ctx context.Context, namespace string) (store.Handle, error) {
	kv, err := s.bucket(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return &handle{kv: kv, ns: namespace}, nil
}

// Enumerate lists the bucket keys sorted lexicographically; the server's
// own listing order is not specified.
func (s *Store) Enumerate(ctx context.Context, namespace string) (store.Iterator, error) {
	kv, err := s.bucket(ctx, namespace)
	if err != nil {
		return nil, err
	}

	keys, err := listKeys(ctx, kv)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys in %s: %w", namespace, err)
	}
	sort.Strings(keys)

	entries := make([]store.Entry, 0, len(keys))
	for _, k := range keys {
		e, err := kv.Get(ctx, k)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue // deleted between listing and reading
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get key %s: %w", k, err)
		}
		entries = append(entries, store.Entry{Key: k, Value: e.Value()})
	}
	return store.NewSliceIterator(entries), nil
}

func listKeys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	lister, err := kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	return keys, nil
}

type handle struct {
	kv      jetstream.KeyValue
	ns      string
	pending store.Pending
	closed  bool
}

func (h *handle) valid() bool { return h != nil && h.kv != nil && !h.closed }

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
	e, err := h.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return e.Value(), nil
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
	ops := h.pending.Ops()
	h.pending.Reset()

	for _, op := range ops {
		if err := h.applyOp(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func (h *handle) applyOp(ctx context.Context, op store.Op) error {
	switch op.Kind {
	case store.OpPut:
		if _, err := h.kv.Put(ctx, op.Key, op.Value); err != nil {
			return fmt.Errorf("failed to put key %s: %w", op.Key, err)
		}
	case store.OpErase:
		if err := h.kv.Purge(ctx, op.Key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("failed to purge key %s: %w", op.Key, err)
		}
	case store.OpEraseAll:
		keys, err := listKeys(ctx, h.kv)
		if err != nil {
			return fmt.Errorf("failed to list keys in %s: %w", h.ns, err)
		}
		for _, k := range keys {
			if err := h.kv.Purge(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
				return fmt.Errorf("failed to purge key %s: %w", k, err)
			}
		}
	}
	return nil
}

func (h *handle) Close() error {
	if h == nil {
		return store.ErrInvalidHandle
	}
	h.pending.Reset()
	h.closed = true
	return nil
}

var _ store.Store = (*Store)(nil)
