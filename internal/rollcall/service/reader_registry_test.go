package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
)

func TestReaderRegistry_AllowList(t *testing.T) {
	reg := service.NewReaderRegistry(memory.NewReaderStore([]string{"door-1", " door-2 "}))
	ctx := context.Background()

	for _, id := range []string{"door-1", "door-2", "  door-1"} {
		if err := reg.Authorize(ctx, id); err != nil {
			t.Errorf("Authorize(%q): %v", id, err)
		}
	}
	for _, id := range []string{"door-3", ""} {
		if err := reg.Authorize(ctx, id); !errors.Is(err, service.ErrUnknownReader) {
			t.Errorf("Authorize(%q): expected ErrUnknownReader, got %v", id, err)
		}
	}
}

func TestReaderRegistry_EmptyListAcceptsAll(t *testing.T) {
	reg := service.NewReaderRegistry(memory.NewReaderStore(nil))
	if err := reg.Authorize(context.Background(), "anything"); err != nil {
		t.Fatalf("expected open registry, got %v", err)
	}
}
