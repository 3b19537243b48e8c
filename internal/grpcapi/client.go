package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/rollcall/internal/pbconv"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Client talks to a running server's Attendance service.
type Client struct {
	cc    grpc.ClientConnInterface
	close func() error
}

// Dial connects to addr without transport security; the service is meant
// for the local network the readers live on.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{cc: conn, close: conn.Close}, nil
}

// NewClient wraps an existing connection. Close is then a no-op.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, close: func() error { return nil }}
}

func (c *Client) Close() error { return c.close() }

func (c *Client) RecordScan(ctx context.Context, req types.ScanRequest) (types.ScanResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRecordScan, pbconv.ScanRequestToStruct(req), out); err != nil {
		return types.ScanResponse{}, err
	}
	return pbconv.ScanResponseFromStruct(out), nil
}

func (c *Client) Reset(ctx context.Context) error {
	return c.cc.Invoke(ctx, methodReset, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *Client) Snapshot(ctx context.Context) (types.Snapshot, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodGetSnapshot, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return pbconv.SnapshotFromList(out)
}

// Watch calls fn with every snapshot the server streams until ctx ends, the
// server closes the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(types.Snapshot) error) error {
	stream, err := c.cc.NewStream(ctx, &AttendanceServiceDesc.Streams[0], methodWatch)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.ListValue)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		snap, err := pbconv.SnapshotFromList(msg)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}
