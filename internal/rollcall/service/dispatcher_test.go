package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func TestDispatcher_SerializesConcurrentScans(t *testing.T) {
	rig := newTestRig(service.KeySequenced, newStepClock(0))
	d := service.NewDispatcher(rig.engine, silentLogger())
	defer d.Close()

	const n = 40
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.RecordScan(ctx, 8); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("scan: %v", err)
	}

	snap, err := d.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != n {
		t.Fatalf("expected %d rows, got %d", n, len(snap))
	}
	var in, out int
	for _, e := range snap {
		if e.Direction == types.In {
			in++
		} else {
			out++
		}
	}
	if in != n/2 || out != n/2 {
		t.Errorf("expected %d IN and %d OUT, got %d and %d", n/2, n/2, in, out)
	}
	if present, _ := d.IsPresent(ctx, 8); present {
		t.Error("expected tag absent after an even number of scans")
	}
}

func TestDispatcher_ForwardsEveryOperation(t *testing.T) {
	rig := newTestRig(service.KeySeconds, newStepClock(time.Second))
	d := service.NewDispatcher(rig.engine, silentLogger())
	defer d.Close()
	ctx := context.Background()

	if _, err := d.RecordScan(ctx, 4); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}
	tags, err := d.PresentTags(ctx)
	if err != nil || len(tags) != 1 || tags[0] != 4 {
		t.Fatalf("PresentTags: %v %v", tags, err)
	}
	if err := d.PublishSnapshot(ctx); err != nil {
		t.Fatalf("PublishSnapshot: %v", err)
	}
	if err := d.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n := len(rig.sink.all()); n != 3 {
		t.Errorf("expected 3 notifications, got %d", n)
	}
}

func TestDispatcher_ReturnsEngineErrors(t *testing.T) {
	rig := newTestRig(service.KeySeconds, newStepClock(time.Second))
	d := service.NewDispatcher(rig.engine, silentLogger())
	defer d.Close()

	rig.store.InjectFault(func(_ store.OpKind, _, _ string) error { return errors.New("x") })
	_, err := d.RecordScan(context.Background(), 1)
	if !errors.Is(err, service.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	rig := newTestRig(service.KeySeconds, newStepClock(time.Second))
	d := service.NewDispatcher(rig.engine, silentLogger())
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.RecordScan(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Close drains the queue, so anything accepted has run by now.
	d.Close()
	if present, _ := rig.engine.IsPresent(context.Background(), 1); present {
		t.Error("expected a cancelled scan not to be applied")
	}
}

func TestDispatcher_Closed(t *testing.T) {
	rig := newTestRig(service.KeySeconds, newStepClock(time.Second))
	d := service.NewDispatcher(rig.engine, silentLogger())
	d.Close()
	d.Close()

	if _, err := d.RecordScan(context.Background(), 1); !errors.Is(err, service.ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
	if err := d.Reset(context.Background()); !errors.Is(err, service.ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}
