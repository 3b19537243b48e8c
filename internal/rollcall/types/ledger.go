package types

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Direction is the transition a scan produced.
type Direction uint8

const (
	In  Direction = 0
	Out Direction = 1
)

func (d Direction) String() string {
	switch d {
	case In:
		return "IN"
	case Out:
		return "OUT"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

func (d Direction) Valid() bool { return d == In || d == Out }

// LedgerEntry is one decoded row of the time ledger.
type LedgerEntry struct {
	Key       string // store key, e.g. "1739620800" or "1739620800-1"
	Timestamp int64  // whole seconds since epoch
	Tag       Tag
	Direction Direction
}

func (e LedgerEntry) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Snapshot is the ledger as enumerated by the store at one moment. Its order
// is the store's enumeration order and is not chronological in general.
type Snapshot []LedgerEntry

// Chronological returns a copy ordered by timestamp, then by key.
func (s Snapshot) Chronological() Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Record is the wire form pushed to live observers.
type Record struct {
	Time      string    `json:"time"`
	CardTag   string    `json:"card_tag"`
	Direction Direction `json:"direction"`
}

// Records renders the snapshot in wire form, preserving order. An empty
// snapshot yields an empty, non-nil slice so it encodes as [].
func (s Snapshot) Records() []Record {
	out := make([]Record, 0, len(s))
	for _, e := range s {
		out = append(out, Record{
			Time:      strconv.FormatInt(e.Timestamp, 10),
			CardTag:   e.Tag.String(),
			Direction: e.Direction,
		})
	}
	return out
}
