package pbconv_test

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/rollcall/internal/pbconv"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func TestScanRequestFromStruct_StringAndNumberTags(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{"reader_id": "door-1", "card_tag": "1234567890123"})
	req, err := pbconv.ScanRequestFromStruct(s)
	if err != nil {
		t.Fatalf("string tag: %v", err)
	}
	if req.ReaderID != "door-1" || req.CardTag != "1234567890123" {
		t.Errorf("unexpected request %+v", req)
	}

	s, _ = structpb.NewStruct(map[string]any{"card_tag": 1234567890123.0})
	req, err = pbconv.ScanRequestFromStruct(s)
	if err != nil {
		t.Fatalf("number tag: %v", err)
	}
	if req.CardTag != "1234567890123" {
		t.Errorf("expected decimal rendering, got %q", req.CardTag)
	}
}

func TestScanRequestFromStruct_Rejects(t *testing.T) {
	cases := map[string]map[string]any{
		"fractional tag": {"card_tag": 1.5},
		"negative tag":   {"card_tag": -3.0},
		"bool tag":       {"card_tag": true},
		"numeric reader": {"reader_id": 7.0, "card_tag": "1"},
	}
	for name, m := range cases {
		s, _ := structpb.NewStruct(m)
		if _, err := pbconv.ScanRequestFromStruct(s); !errors.Is(err, pbconv.ErrBadField) {
			t.Errorf("%s: expected ErrBadField, got %v", name, err)
		}
	}
}

func TestScanResponse_StructRoundTrip(t *testing.T) {
	in := types.ScanResponse{OK: true, CardTag: "42", Direction: types.Out, DirectionName: "OUT", ServerTime: "2026-02-15T12:00:00Z"}
	out := pbconv.ScanResponseFromStruct(pbconv.ScanResponseToStruct(in))
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestSnapshotToList_PreservesOrder(t *testing.T) {
	snap := types.Snapshot{
		{Timestamp: 10, Tag: 1, Direction: types.In},
		{Timestamp: 9, Tag: 2, Direction: types.Out},
	}
	got, err := pbconv.SnapshotFromList(pbconv.SnapshotToList(snap))
	if err != nil {
		t.Fatalf("SnapshotFromList: %v", err)
	}
	if len(got) != len(snap) {
		t.Fatalf("expected %d entries, got %d", len(snap), len(got))
	}
	for i := range snap {
		if got[i].Timestamp != snap[i].Timestamp || got[i].Tag != snap[i].Tag || got[i].Direction != snap[i].Direction {
			t.Errorf("entry %d: expected %+v, got %+v", i, snap[i], got[i])
		}
	}
}

func TestSnapshotFromList_Rejects(t *testing.T) {
	cases := map[string][]any{
		"not an object": {"nope"},
		"bad time":      {map[string]any{"time": "soon", "card_tag": "1", "direction": 0.0}},
		"bad tag":       {map[string]any{"time": "1", "card_tag": "x", "direction": 0.0}},
		"bad direction": {map[string]any{"time": "1", "card_tag": "1", "direction": 4.0}},
	}
	for name, vals := range cases {
		l, err := structpb.NewList(vals)
		if err != nil {
			t.Fatalf("%s: NewList: %v", name, err)
		}
		if _, err := pbconv.SnapshotFromList(l); !errors.Is(err, pbconv.ErrBadField) {
			t.Errorf("%s: expected ErrBadField, got %v", name, err)
		}
	}
}
