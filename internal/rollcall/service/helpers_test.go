package service_test

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/bus"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// stepClock returns base, base+1s, base+2s, ... so consecutive scans never
// share a ledger key unless a test wants them to.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{next: time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// snapshotSink records every published snapshot.
type snapshotSink struct {
	mu    sync.Mutex
	snaps []types.Snapshot
}

func (s *snapshotSink) OnSnapshot(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *snapshotSink) all() []types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out
}

type testRig struct {
	store    *memory.Store
	presence *service.PresenceSet
	ledger   *service.TimeLedger
	bus      *bus.Bus
	sink     *snapshotSink
	engine   *service.Engine
}

func newTestRig(scheme service.KeyScheme, clock service.Clock) *testRig {
	st := memory.New()
	b := bus.New()
	sink := &snapshotSink{}
	b.Subscribe(sink)

	presence := service.NewPresenceSet(st)
	ledger := service.NewTimeLedger(st, scheme)
	return &testRig{
		store:    st,
		presence: presence,
		ledger:   ledger,
		bus:      b,
		sink:     sink,
		engine:   service.NewEngine(presence, ledger, b, clock, silentLogger()),
	}
}

func silentLogger() zerolog.Logger {
	return zerolog.Nop()
}
