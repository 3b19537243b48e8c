package memory

import (
	"context"
	"strings"
	"sync"
)

// ReaderStore is a fixed allow-list of reader IDs loaded from config.
type ReaderStore struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

func NewReaderStore(knownReaders []string) *ReaderStore {
	k := make(map[string]struct{}, len(knownReaders))
	for _, r := range knownReaders {
		r = strings.TrimSpace(r)
		if r != "" {
			k[r] = struct{}{}
		}
	}
	return &ReaderStore{known: k}
}

func (s *ReaderStore) IsKnown(_ context.Context, readerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.known) == 0 {
		return true, nil
	}
	_, ok := s.known[readerID]
	return ok, nil
}
