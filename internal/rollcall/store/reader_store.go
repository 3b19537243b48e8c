package store

import "context"

// ReaderStore answers whether a scan source (badge reader module) is
// allowed to submit scans.
type ReaderStore interface {
	// IsKnown reports whether readerID is registered. An empty registry
	// accepts every reader.
	IsKnown(ctx context.Context, readerID string) (bool, error)
}
