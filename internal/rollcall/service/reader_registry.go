package service

import (
	"context"
	"strings"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// ReaderRegistry gates which scan sources may submit badges.
type ReaderRegistry struct {
	store store.ReaderStore
}

func NewReaderRegistry(st store.ReaderStore) *ReaderRegistry {
	return &ReaderRegistry{store: st}
}

// Authorize returns ErrUnknownReader for readers the store does not know.
func (r *ReaderRegistry) Authorize(ctx context.Context, readerID string) error {
	known, err := r.store.IsKnown(ctx, strings.TrimSpace(readerID))
	if err != nil {
		return err
	}
	if !known {
		return ErrUnknownReader
	}
	return nil
}
