package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// presentMarker is the value stored for a checked-in card. Only the key's
// existence carries meaning.
var presentMarker = []byte{0}

// PresenceSet tracks which cards are checked in, one key per card in the
// "tags" namespace. Nothing is cached; every call round-trips to the store.
type PresenceSet struct {
	store store.Store
}

func NewPresenceSet(st store.Store) *PresenceSet {
	return &PresenceSet{store: st}
}

func (p *PresenceSet) IsPresent(ctx context.Context, tag types.Tag) (bool, error) {
	h, err := p.store.Open(ctx, store.TagsNamespace)
	if err != nil {
		return false, fmt.Errorf("%w: open %s: %w", ErrStoreRead, store.TagsNamespace, err)
	}
	defer h.Close()

	return isPresent(ctx, h, tag)
}

func isPresent(ctx context.Context, h store.Handle, tag types.Tag) (bool, error) {
	_, err := h.Get(ctx, tag.String())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: get %s: %w", ErrStoreRead, tag, err)
	}
}

// Toggle flips tag's presence and returns the resulting direction: In when
// the card was absent, Out when it was present. The read and the write share
// one handle; callers must not toggle the same tag concurrently. If the
// commit fails the presence state is unchanged.
func (p *PresenceSet) Toggle(ctx context.Context, tag types.Tag) (types.Direction, error) {
	h, err := p.store.Open(ctx, store.TagsNamespace)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrStoreWrite, store.TagsNamespace, err)
	}
	defer h.Close()

	present, err := isPresent(ctx, h, tag)
	if err != nil {
		return 0, err
	}

	key := tag.String()
	dir := types.In
	if present {
		dir = types.Out
		err = h.Erase(ctx, key)
	} else {
		err = h.Put(ctx, key, presentMarker)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: stage %s %s: %w", ErrStoreWrite, dir, tag, err)
	}

	if err := h.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit %s %s: %w", ErrStoreWrite, dir, tag, err)
	}
	return dir, nil
}

// PresentTags lists the checked-in cards in store enumeration order.
func (p *PresenceSet) PresentTags(ctx context.Context) ([]types.Tag, error) {
	it, err := p.store.Enumerate(ctx, store.TagsNamespace)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate %s: %w", ErrStoreRead, store.TagsNamespace, err)
	}
	defer it.Close()

	tags := []types.Tag{}
	for it.Next() {
		e := it.Entry()
		tag, err := types.ParseTag(e.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: presence key %q", ErrCorruptRecord, e.Key)
		}
		tags = append(tags, tag)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: enumerate %s: %w", ErrStoreRead, store.TagsNamespace, err)
	}
	return tags, nil
}

// ClearAll checks every card out without writing ledger rows.
func (p *PresenceSet) ClearAll(ctx context.Context) error {
	return eraseNamespace(ctx, p.store, store.TagsNamespace)
}

func eraseNamespace(ctx context.Context, st store.Store, namespace string) error {
	h, err := st.Open(ctx, namespace)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrStoreWrite, namespace, err)
	}
	defer h.Close()

	if err := h.EraseAll(ctx); err != nil {
		return fmt.Errorf("%w: erase %s: %w", ErrStoreWrite, namespace, err)
	}
	if err := h.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit erase %s: %w", ErrStoreWrite, namespace, err)
	}
	return nil
}
