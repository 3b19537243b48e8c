package store_test

import (
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

func TestPending_LookupUndecidedWhenEmpty(t *testing.T) {
	var p store.Pending
	if _, _, decided := p.Lookup("k"); decided {
		t.Fatal("expected undecided lookup on empty buffer")
	}
}

func TestPending_LastWriteWins(t *testing.T) {
	var p store.Pending
	p.Put("k", []byte{1})
	p.Put("k", []byte{2})

	v, found, decided := p.Lookup("k")
	if !decided || !found {
		t.Fatalf("expected decided+found, got decided=%v found=%v", decided, found)
	}
	if len(v) != 1 || v[0] != 2 {
		t.Errorf("expected latest value 2, got %v", v)
	}

	p.Erase("k")
	if _, found, decided := p.Lookup("k"); !decided || found {
		t.Errorf("expected staged erase to hide key")
	}
}

func TestPending_EraseAllShadowsBackingStore(t *testing.T) {
	var p store.Pending
	p.Put("a", []byte{1})
	p.EraseAll()

	if p.Len() != 1 {
		t.Fatalf("expected erase_all to supersede earlier ops, got %d ops", p.Len())
	}
	if _, found, decided := p.Lookup("untouched"); !decided || found {
		t.Error("expected erase_all to decide every key as absent")
	}

	p.Put("b", []byte{2})
	if _, found, _ := p.Lookup("b"); !found {
		t.Error("expected put after erase_all to be visible")
	}
}

func TestPending_PutCopiesValue(t *testing.T) {
	var p store.Pending
	buf := []byte{9}
	p.Put("k", buf)
	buf[0] = 0

	v, _, _ := p.Lookup("k")
	if v[0] != 9 {
		t.Fatalf("expected staged value to be isolated from caller buffer, got %v", v)
	}
}

func TestSliceIterator(t *testing.T) {
	it := store.NewSliceIterator([]store.Entry{{Key: "a"}, {Key: "b"}})
	var keys []string
	for it.Next() {
		keys = append(keys, it.Entry().Key)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if it.Next() {
		t.Error("expected exhausted iterator")
	}
}
