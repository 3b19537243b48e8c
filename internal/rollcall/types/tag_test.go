package types_test

import (
	"encoding/json"
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func TestParseTag_Valid(t *testing.T) {
	cases := map[string]types.Tag{
		"0":                    0,
		"1234567890123":        1234567890123,
		"  42\n":               42,
		"18446744073709551615": 18446744073709551615,
	}
	for in, want := range cases {
		got, err := types.ParseTag(in)
		if err != nil {
			t.Fatalf("ParseTag(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseTag(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseTag_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "-1", "+1", "0x1f", "12a", "18446744073709551616", "1234567890123456789012345"} {
		if _, err := types.ParseTag(in); err == nil {
			t.Errorf("ParseTag(%q): expected error", in)
		}
	}
}

func TestTag_StringRoundTrip(t *testing.T) {
	tag := types.Tag(1234567890123)
	if tag.String() != "1234567890123" {
		t.Fatalf("unexpected string %q", tag.String())
	}
}

func TestDirection_String(t *testing.T) {
	if types.In.String() != "IN" || types.Out.String() != "OUT" {
		t.Fatalf("unexpected names %q %q", types.In, types.Out)
	}
	if types.Direction(7).Valid() {
		t.Error("expected direction 7 to be invalid")
	}
}

func TestSnapshot_Chronological(t *testing.T) {
	snap := types.Snapshot{
		{Key: "10", Timestamp: 10, Tag: 1},
		{Key: "9", Timestamp: 9, Tag: 2},
		{Key: "10-1", Timestamp: 10, Tag: 3},
	}
	got := snap.Chronological()
	if got[0].Tag != 2 || got[1].Tag != 1 || got[2].Tag != 3 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if snap[0].Tag != 1 {
		t.Error("Chronological must not reorder the receiver")
	}
}

func TestSnapshot_RecordsEncodeEmptyAsArray(t *testing.T) {
	b, err := json.Marshal(types.Snapshot(nil).Records())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "[]" {
		t.Fatalf("expected [], got %s", b)
	}
}

func TestSnapshot_RecordsWireShape(t *testing.T) {
	snap := types.Snapshot{{Key: "1700000000", Timestamp: 1700000000, Tag: 1234567890123, Direction: types.Out}}
	b, err := json.Marshal(snap.Records())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"time":"1700000000","card_tag":"1234567890123","direction":1}]`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}
