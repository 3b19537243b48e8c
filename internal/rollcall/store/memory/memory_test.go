package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
)

func keys(t *testing.T, st store.Store, ns string) []string {
	t.Helper()
	it, err := st.Enumerate(context.Background(), ns)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, it.Entry().Key)
	}
	return out
}

func TestStore_PutInvisibleUntilCommit(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	h, _ := st.Open(ctx, "tags")
	if err := h.Put(ctx, "42", []byte{0}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Read-your-writes on the same handle.
	if _, err := h.Get(ctx, "42"); err != nil {
		t.Fatalf("Get on staging handle: %v", err)
	}
	// Not yet committed for anyone else.
	if st.Len("tags") != 0 {
		t.Fatalf("expected nothing committed, got %d", st.Len("tags"))
	}

	if err := h.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if st.Len("tags") != 1 {
		t.Fatalf("expected 1 committed key, got %d", st.Len("tags"))
	}
}

func TestStore_GetMissing_NotFound(t *testing.T) {
	st := memory.New()
	h, _ := st.Open(context.Background(), "tags")
	if _, err := h.Get(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := h.Erase(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on erase, got %v", err)
	}
}

func TestStore_EraseAllOnlyTouchesNamespace(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	st.Raw("tags", "1", []byte{0})
	st.Raw("time", "100", []byte{1})

	h, _ := st.Open(ctx, "tags")
	if err := h.EraseAll(ctx); err != nil {
		t.Fatalf("EraseAll: %v", err)
	}
	if err := h.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if st.Len("tags") != 0 || st.Len("time") != 1 {
		t.Fatalf("unexpected sizes tags=%d time=%d", st.Len("tags"), st.Len("time"))
	}
}

func TestStore_FailedCommitDiscardsStagedOps(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	boom := errors.New("flash write failed")
	st.InjectFault(func(kind store.OpKind, ns, key string) error {
		if kind == store.OpPut && ns == "tags" {
			return boom
		}
		return nil
	})

	h, _ := st.Open(ctx, "tags")
	_ = h.Put(ctx, "42", []byte{0})
	if err := h.Commit(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	if _, err := h.Get(ctx, "42"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected staged put to be dropped after failed commit, got %v", err)
	}

	st.InjectFault(nil)
	if err := h.Commit(ctx); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if st.Len("tags") != 0 {
		t.Fatal("expected nothing committed")
	}
}

func TestStore_EnumerateLexicographic(t *testing.T) {
	st := memory.New()
	st.Raw("time", "9", []byte{})
	st.Raw("time", "10", []byte{})
	st.Raw("time", "100", []byte{})

	got := keys(t, st, "time")
	want := []string{"10", "100", "9"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestStore_ClosedHandleInvalid(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	h, _ := st.Open(ctx, "tags")
	_ = h.Close()

	if err := h.Put(ctx, "1", nil); !errors.Is(err, store.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	if err := h.Commit(ctx); !errors.Is(err, store.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}

func TestReaderStore_EmptyAcceptsAll(t *testing.T) {
	rs := memory.NewReaderStore(nil)
	ok, err := rs.IsKnown(context.Background(), "anything")
	if err != nil || !ok {
		t.Fatalf("expected empty registry to accept, got ok=%v err=%v", ok, err)
	}
}

func TestReaderStore_AllowList(t *testing.T) {
	rs := memory.NewReaderStore([]string{" lobby-01 ", ""})
	if ok, _ := rs.IsKnown(context.Background(), "lobby-01"); !ok {
		t.Error("expected lobby-01 to be known")
	}
	if ok, _ := rs.IsKnown(context.Background(), "rogue"); ok {
		t.Error("expected rogue reader to be unknown")
	}
}
