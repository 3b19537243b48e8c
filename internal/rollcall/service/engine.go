package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/bus"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Attendance is the operation set exposed to transports.
type Attendance interface {
	RecordScan(ctx context.Context, tag types.Tag) (types.LedgerEntry, error)
	Reset(ctx context.Context) error
	PublishSnapshot(ctx context.Context) error
	Snapshot(ctx context.Context) (types.Snapshot, error)
	IsPresent(ctx context.Context, tag types.Tag) (bool, error)
	PresentTags(ctx context.Context) ([]types.Tag, error)
}

// Engine turns scans into presence toggles, ledger rows and snapshot
// notifications. It is not safe for concurrent RecordScan calls on the same
// tag; wrap it in a Dispatcher when scans arrive from several sources.
type Engine struct {
	presence *PresenceSet
	ledger   *TimeLedger
	bus      *bus.Bus
	clock    Clock
	logger   zerolog.Logger
}

func NewEngine(presence *PresenceSet, ledger *TimeLedger, b *bus.Bus, clock Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		presence: presence,
		ledger:   ledger,
		bus:      b,
		clock:    clock,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// RecordScan runs the two-step scan saga:
//
//  1. toggle presence (durable commit); on failure nothing is written and
//     the error is returned as is.
//  2. append the ledger row (second durable commit); on failure the toggle
//     stays in place and a *LedgerGapError is returned.
//
// After a successful append the fresh snapshot is published. A publish
// failure is returned wrapped in ErrPublishFailed, alongside the entry that
// was recorded; callers must not retry such a scan.
func (e *Engine) RecordScan(ctx context.Context, tag types.Tag) (types.LedgerEntry, error) {
	dir, err := e.presence.Toggle(ctx, tag)
	if err != nil {
		e.logger.Warn().Err(err).Str("card_tag", tag.String()).Msg("presence toggle failed")
		return types.LedgerEntry{}, err
	}

	now := e.clock.Now()
	entry := types.LedgerEntry{Timestamp: now.Unix(), Tag: tag, Direction: dir}

	key, err := e.ledger.Append(ctx, now, tag, dir)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("card_tag", tag.String()).
			Str("direction", dir.String()).
			Msg("ledger append failed after presence toggle")
		return entry, &LedgerGapError{Tag: tag, Direction: dir, Err: err}
	}
	entry.Key = key

	e.logger.Info().
		Str("card_tag", tag.String()).
		Str("direction", dir.String()).
		Str("key", key).
		Msg("scan recorded")

	if err := e.PublishSnapshot(ctx); err != nil {
		return entry, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return entry, nil
}

// Reset erases the presence set, then the ledger, then publishes the
// (normally empty) snapshot. The erasures are separate commits; if the
// second fails the presence set is already empty.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.presence.ClearAll(ctx); err != nil {
		e.logger.Error().Err(err).Msg("reset: presence erase failed")
		return err
	}
	if err := e.ledger.ClearAll(ctx); err != nil {
		e.logger.Error().Err(err).Msg("reset: ledger erase failed, presence already cleared")
		return err
	}
	e.logger.Info().Msg("attendance reset")
	return e.PublishSnapshot(ctx)
}

// PublishSnapshot scans the ledger and hands the result to every observer
// before returning.
func (e *Engine) PublishSnapshot(ctx context.Context) error {
	snap, err := e.ledger.ScanAll(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			e.logger.Error().Err(err).Msg("ledger scan hit a corrupt record")
		}
		return err
	}
	e.bus.Publish(snap)
	e.logger.Debug().Int("entries", len(snap)).Msg("snapshot published")
	return nil
}

func (e *Engine) Snapshot(ctx context.Context) (types.Snapshot, error) {
	return e.ledger.ScanAll(ctx)
}

func (e *Engine) IsPresent(ctx context.Context, tag types.Tag) (bool, error) {
	return e.presence.IsPresent(ctx, tag)
}

func (e *Engine) PresentTags(ctx context.Context) ([]types.Tag, error) {
	return e.presence.PresentTags(ctx)
}

var _ Attendance = (*Engine)(nil)
