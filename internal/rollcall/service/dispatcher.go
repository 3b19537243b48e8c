package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

var ErrDispatcherClosed = errors.New("attendance dispatcher closed")

type call struct {
	ctx context.Context
	fn  func(ctx context.Context) error
	ch  chan error
}

// Dispatcher owns an Attendance and runs every operation on one goroutine,
// so scans from HTTP, gRPC, the websocket gateway and line readers are
// processed strictly one after another.
type Dispatcher struct {
	target Attendance
	calls  chan call
	done   chan struct{}
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(target Attendance, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		target: target,
		calls:  make(chan call, 32),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
	go d.loop()
	return d
}

// Close stops accepting work and waits for queued calls to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.calls)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) do(ctx context.Context, fn func(ctx context.Context) error) error {
	ch := make(chan error, 1)

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}
	select {
	case d.calls <- call{ctx: ctx, fn: fn, ch: ch}:
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}
	d.mu.RUnlock()

	// Once accepted the call either is dropped by loop or runs to
	// completion; either way its real outcome arrives on ch.
	return <-ch
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for c := range d.calls {
		// A caller that gave up while queued must not see its scan applied
		// behind its back.
		if err := c.ctx.Err(); err != nil {
			d.logger.Debug().Err(err).Msg("dropping call abandoned while queued")
			c.ch <- err
			continue
		}
		// Started calls run to completion: cancelling the caller must not
		// split a toggle from its ledger append.
		c.ch <- c.fn(context.WithoutCancel(c.ctx))
	}
}

func (d *Dispatcher) RecordScan(ctx context.Context, tag types.Tag) (types.LedgerEntry, error) {
	var entry types.LedgerEntry
	err := d.do(ctx, func(ctx context.Context) error {
		var err error
		entry, err = d.target.RecordScan(ctx, tag)
		return err
	})
	return entry, err
}

func (d *Dispatcher) Reset(ctx context.Context) error {
	return d.do(ctx, d.target.Reset)
}

func (d *Dispatcher) PublishSnapshot(ctx context.Context) error {
	return d.do(ctx, d.target.PublishSnapshot)
}

func (d *Dispatcher) Snapshot(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	err := d.do(ctx, func(ctx context.Context) error {
		var err error
		snap, err = d.target.Snapshot(ctx)
		return err
	})
	return snap, err
}

// WithSnapshot reads the snapshot and hands it to fn on the dispatcher
// goroutine, so no publish can land between the read and fn. fn must not
// block or call back into the dispatcher.
func (d *Dispatcher) WithSnapshot(ctx context.Context, fn func(types.Snapshot)) error {
	return d.do(ctx, func(ctx context.Context) error {
		snap, err := d.target.Snapshot(ctx)
		if err != nil {
			return err
		}
		fn(snap)
		return nil
	})
}

func (d *Dispatcher) IsPresent(ctx context.Context, tag types.Tag) (bool, error) {
	var present bool
	err := d.do(ctx, func(ctx context.Context) error {
		var err error
		present, err = d.target.IsPresent(ctx, tag)
		return err
	})
	return present, err
}

func (d *Dispatcher) PresentTags(ctx context.Context) ([]types.Tag, error) {
	var tags []types.Tag
	err := d.do(ctx, func(ctx context.Context) error {
		var err error
		tags, err = d.target.PresentTags(ctx)
		return err
	})
	return tags, err
}

var _ Attendance = (*Dispatcher)(nil)
