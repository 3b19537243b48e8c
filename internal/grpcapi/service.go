package grpcapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/rollcall/internal/pbconv"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/bus"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// watchBuffer is how many snapshots a Watch stream may fall behind before
// it is ended with ResourceExhausted.
const watchBuffer = 8

type Dependencies struct {
	Logger     zerolog.Logger
	Attendance service.Attendance
	Readers    *service.ReaderRegistry // nil accepts every reader
	Bus        *bus.Bus                // required for Watch
}

// Service implements AttendanceServer on top of the attendance engine.
type Service struct {
	attendance service.Attendance
	readers    *service.ReaderRegistry
	bus        *bus.Bus
	logger     zerolog.Logger
}

func NewService(d Dependencies) *Service {
	return &Service{
		attendance: d.Attendance,
		readers:    d.Readers,
		bus:        d.Bus,
		logger:     d.Logger.With().Str("component", "grpc").Logger(),
	}
}

func (s *Service) RecordScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := pbconv.ScanRequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if s.readers != nil {
		if err := s.readers.Authorize(ctx, req.ReaderID); err != nil {
			return nil, toStatus(err)
		}
	}
	tag, err := types.ParseTag(req.CardTag)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	entry, err := s.attendance.RecordScan(ctx, tag)
	if err != nil && !errors.Is(err, service.ErrPublishFailed) {
		return nil, toStatus(err)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("card_tag", tag.String()).Msg("scan recorded without notification")
	}
	return pbconv.ScanResponseToStruct(types.NewScanResponse(entry, time.Now())), nil
}

func (s *Service) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.attendance.Reset(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Service) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	snap, err := s.attendance.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return pbconv.SnapshotToList(snap), nil
}

// Watch sends the current snapshot, then every published snapshot until the
// client goes away. A client that falls behind is cut off.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.ListValue]) error {
	if s.bus == nil {
		return status.Error(codes.Unimplemented, "watch not configured")
	}
	ctx := stream.Context()
	log := s.logger.With().Str("watch_id", uuid.NewString()).Logger()

	ch := make(chan types.Snapshot, watchBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	sub := s.bus.Subscribe(bus.ObserverFunc(func(snap types.Snapshot) {
		select {
		case ch <- snap:
		default:
			once.Do(func() { close(overflow) })
		}
	}))
	defer s.bus.Unsubscribe(sub)
	log.Info().Msg("watch started")

	snap, err := s.attendance.Snapshot(ctx)
	if err != nil {
		return toStatus(err)
	}
	if err := stream.Send(pbconv.SnapshotToList(snap)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watch ended")
			return nil
		case snap := <-ch:
			if err := stream.Send(pbconv.SnapshotToList(snap)); err != nil {
				return err
			}
		case <-overflow:
			log.Warn().Msg("watcher too slow, closing stream")
			return status.Error(codes.ResourceExhausted, "watch fell behind")
		}
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidTag), errors.Is(err, pbconv.ErrBadField):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUnknownReader):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrLedgerGap), errors.Is(err, service.ErrCorruptRecord):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, service.ErrDispatcherClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var _ AttendanceServer = (*Service)(nil)
