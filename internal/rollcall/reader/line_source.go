// Package reader feeds badge scans from byte streams into the engine.
//
// Keyboard-wedge RFID readers type the card serial followed by Enter, so a
// line of decimal digits is one scan. The same format works for stdin and
// named pipes.
package reader

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Scanner is the part of service.Attendance a LineSource needs.
type Scanner interface {
	RecordScan(ctx context.Context, tag types.Tag) (types.LedgerEntry, error)
}

type LineSource struct {
	name    string
	src     io.Reader
	scanner Scanner
	logger  zerolog.Logger
}

func NewLineSource(name string, src io.Reader, s Scanner, logger zerolog.Logger) *LineSource {
	return &LineSource{
		name:    name,
		src:     src,
		scanner: s,
		logger:  logger.With().Str("component", "line_reader").Str("source", name).Logger(),
	}
}

// Run submits one scan per non-blank line until src is exhausted or ctx is
// cancelled. Lines that are not valid tags are logged and skipped, as are
// scans the engine rejects; Run only fails on read errors. Cancellation is
// observed between lines.
func (l *LineSource) Run(ctx context.Context) error {
	sc := bufio.NewScanner(l.src)
	lines := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		lines++

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		tag, err := types.ParseTag(line)
		if err != nil {
			l.logger.Warn().Int("line", lines).Str("input", line).Msg("skipping invalid tag")
			continue
		}

		entry, err := l.scanner.RecordScan(ctx, tag)
		switch {
		case err == nil:
			l.logger.Debug().Str("card_tag", tag.String()).Str("direction", entry.Direction.String()).Msg("scan submitted")
		case errors.Is(err, context.Canceled):
			return nil
		default:
			l.logger.Error().Err(err).Str("card_tag", tag.String()).Msg("scan failed")
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	l.logger.Info().Int("lines", lines).Msg("scan input closed")
	return nil
}

var _ Scanner = (service.Attendance)(nil)
