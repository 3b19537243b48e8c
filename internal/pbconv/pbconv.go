// Package pbconv maps the attendance wire types onto protobuf well-known
// types. Both the HTTP protobuf content type and the gRPC service carry
// scans as structpb.Struct and snapshots as structpb.ListValue.
package pbconv

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

var ErrBadField = errors.New("malformed field")

// ── Scan ─────────────────────────────────────────────────────────────────────

// ScanRequestFromStruct reads reader_id and card_tag. card_tag may be a
// string or an integral number.
func ScanRequestFromStruct(s *structpb.Struct) (types.ScanRequest, error) {
	var req types.ScanRequest
	f := s.GetFields()

	if v, ok := f["reader_id"]; ok {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return req, fmt.Errorf("%w: reader_id must be a string", ErrBadField)
		}
		req.ReaderID = sv.StringValue
	}

	switch k := f["card_tag"].GetKind().(type) {
	case nil:
	case *structpb.Value_StringValue:
		req.CardTag = k.StringValue
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n != math.Trunc(n) || n >= math.MaxUint64 {
			return req, fmt.Errorf("%w: card_tag %v is not a serial number", ErrBadField, n)
		}
		req.CardTag = strconv.FormatUint(uint64(n), 10)
	default:
		return req, fmt.Errorf("%w: card_tag must be a string or number", ErrBadField)
	}
	return req, nil
}

func ScanRequestToStruct(req types.ScanRequest) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"card_tag": structpb.NewStringValue(req.CardTag),
	}
	if req.ReaderID != "" {
		fields["reader_id"] = structpb.NewStringValue(req.ReaderID)
	}
	return &structpb.Struct{Fields: fields}
}

func ScanResponseToStruct(r types.ScanResponse) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":             structpb.NewBoolValue(r.OK),
		"card_tag":       structpb.NewStringValue(r.CardTag),
		"direction":      structpb.NewNumberValue(float64(r.Direction)),
		"direction_name": structpb.NewStringValue(r.DirectionName),
		"server_time":    structpb.NewStringValue(r.ServerTime),
	}}
}

func ScanResponseFromStruct(s *structpb.Struct) types.ScanResponse {
	f := s.GetFields()
	return types.ScanResponse{
		OK:            f["ok"].GetBoolValue(),
		CardTag:       f["card_tag"].GetStringValue(),
		Direction:     types.Direction(f["direction"].GetNumberValue()),
		DirectionName: f["direction_name"].GetStringValue(),
		ServerTime:    f["server_time"].GetStringValue(),
	}
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

// SnapshotToList renders snap as a list of {time, card_tag, direction}
// structs in snapshot order.
func SnapshotToList(snap types.Snapshot) *structpb.ListValue {
	recs := snap.Records()
	values := make([]*structpb.Value, 0, len(recs))
	for _, r := range recs {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"time":      structpb.NewStringValue(r.Time),
			"card_tag":  structpb.NewStringValue(r.CardTag),
			"direction": structpb.NewNumberValue(float64(r.Direction)),
		}}))
	}
	return &structpb.ListValue{Values: values}
}

// SnapshotFromList is the inverse of SnapshotToList. Entry keys are left
// as the time field since the wire form does not carry store keys.
func SnapshotFromList(l *structpb.ListValue) (types.Snapshot, error) {
	out := make(types.Snapshot, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: snapshot entry %d is not an object", ErrBadField, i)
		}
		f := s.GetFields()

		ts := f["time"].GetStringValue()
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot entry %d time %q", ErrBadField, i, ts)
		}
		tag, err := types.ParseTag(f["card_tag"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot entry %d card_tag", ErrBadField, i)
		}
		dir := types.Direction(f["direction"].GetNumberValue())
		if !dir.Valid() {
			return nil, fmt.Errorf("%w: snapshot entry %d direction", ErrBadField, i)
		}
		out = append(out, types.LedgerEntry{Key: ts, Timestamp: sec, Tag: tag, Direction: dir})
	}
	return out, nil
}
