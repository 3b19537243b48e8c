package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Ledger values are fixed-size: the tag's decimal string NUL-padded to
// recordTagLen bytes, followed by one direction byte.
const (
	recordTagLen = types.MaxTagLen + 1
	RecordSize   = recordTagLen + 1
)

// EncodeRecord renders a ledger value.
func EncodeRecord(tag types.Tag, dir types.Direction) ([]byte, error) {
	if !dir.Valid() {
		return nil, ErrInvalidDirection
	}
	s := tag.String()
	if len(s) > types.MaxTagLen {
		return nil, ErrInvalidTag
	}
	buf := make([]byte, RecordSize)
	copy(buf, s)
	buf[recordTagLen] = byte(dir)
	return buf, nil
}

// DecodeRecord is the inverse of EncodeRecord. Every length, terminator and
// digit check failure is reported as ErrCorruptRecord.
func DecodeRecord(b []byte) (types.Tag, types.Direction, error) {
	if len(b) != RecordSize {
		return 0, 0, fmt.Errorf("%w: size %d, want %d", ErrCorruptRecord, len(b), RecordSize)
	}

	field := b[:recordTagLen]
	end := -1
	for i, c := range field {
		if c == 0 {
			end = i
			break
		}
	}
	if end <= 0 {
		return 0, 0, fmt.Errorf("%w: tag field not NUL-terminated or empty", ErrCorruptRecord)
	}

	tag, err := types.ParseTag(string(field[:end]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: tag %q", ErrCorruptRecord, field[:end])
	}

	dir := types.Direction(b[recordTagLen])
	if !dir.Valid() {
		return 0, 0, fmt.Errorf("%w: direction byte %d", ErrCorruptRecord, b[recordTagLen])
	}
	return tag, dir, nil
}

// KeyScheme selects how ledger keys are derived from timestamps.
type KeyScheme int

const (
	// KeySeconds keys rows by whole seconds. Two scans inside one second
	// share a key and the later row silently replaces the earlier one.
	KeySeconds KeyScheme = iota

	// KeySequenced appends "-n" on collision so no row is ever replaced.
	KeySequenced
)

func (k KeyScheme) String() string {
	if k == KeySequenced {
		return "sequenced"
	}
	return "seconds"
}

func ParseKeyScheme(s string) (KeyScheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "seconds":
		return KeySeconds, nil
	case "sequenced":
		return KeySequenced, nil
	default:
		return KeySeconds, fmt.Errorf("unknown ledger key scheme %q", s)
	}
}

func secondsKey(sec int64) string {
	return strconv.FormatInt(sec, 10)
}

func sequencedKey(sec int64, n int) string {
	if n == 0 {
		return secondsKey(sec)
	}
	return secondsKey(sec) + "-" + strconv.Itoa(n)
}

// parseLedgerKey accepts both "<sec>" and "<sec>-<n>".
func parseLedgerKey(key string) (int64, error) {
	secPart, seqPart, hasSeq := strings.Cut(key, "-")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 || secPart == "" || secPart[0] == '+' {
		return 0, fmt.Errorf("%w: key %q", ErrCorruptRecord, key)
	}
	if hasSeq {
		n, err := strconv.Atoi(seqPart)
		if err != nil || n < 1 || seqPart[0] == '+' {
			return 0, fmt.Errorf("%w: key %q", ErrCorruptRecord, key)
		}
	}
	return sec, nil
}
