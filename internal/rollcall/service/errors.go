package service

import (
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

var (
	ErrInvalidTag       = types.ErrInvalidTag
	ErrInvalidDirection = errors.New("direction must be IN (0) or OUT (1)")
	ErrInvalidTimestamp = errors.New("ledger timestamp must not precede the epoch")
	ErrStoreRead        = errors.New("store read failed")
	ErrStoreWrite       = errors.New("store write failed")
	ErrCorruptRecord    = errors.New("stored ledger record is corrupt")
	ErrUnknownReader    = errors.New("reader is not registered")
	ErrLedgerGap        = errors.New("presence toggled but ledger row not written")

	// ErrPublishFailed marks a scan that is durably recorded but whose
	// snapshot notification could not be built.
	ErrPublishFailed = errors.New("scan recorded but snapshot not published")
)

// LedgerGapError is the defined partial-failure state of a scan: the
// presence toggle committed, the ledger append did not. Nothing is rolled
// back; the presence set keeps the new state and the ledger has no row for
// this transition.
type LedgerGapError struct {
	Tag       types.Tag
	Direction types.Direction
	Err       error
}

func (e *LedgerGapError) Error() string {
	return fmt.Sprintf("card %s toggled %s but ledger append failed: %v", e.Tag, e.Direction, e.Err)
}

func (e *LedgerGapError) Unwrap() []error { return []error{ErrLedgerGap, e.Err} }
