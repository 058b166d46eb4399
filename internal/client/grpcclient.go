package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/S0me0neR0man/simbook/internal/grpcproto"
	"github.com/S0me0neR0man/simbook/internal/record"
	"github.com/S0me0neR0man/simbook/internal/token"
)

// ErrPartialWrite the record was written but not all of its subjects.
var ErrPartialWrite = errors.New("partial write")

type UpdateResult struct {
	Index  int
	Group  int
	Local  int
	Record record.Record
}

type GRPCClient struct {
	conn   *grpc.ClientConn
	client grpcproto.PhoneBookClient
}

// NewGRPClient dials addr. opts come after the default ones.
func NewGRPClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := GRPCClient{}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	var err error
	c.conn, err = grpc.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	c.client = grpcproto.NewPhoneBookClient(c.conn)

	return &c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func withAuth(authCode string) []grpc.CallOption {
	if authCode == "" {
		return nil
	}
	return []grpc.CallOption{grpc.PerRPCCredentials(token.NewTokens(authCode))}
}

func updateResult(resp *structpb.Struct, err error) (UpdateResult, error) {
	if err != nil {
		return UpdateResult{}, err
	}

	var res UpdateResult
	if res.Index, err = grpcproto.Int(resp, grpcproto.FieldIndex); err != nil {
		return UpdateResult{}, err
	}
	if res.Group, err = grpcproto.Int(resp, grpcproto.FieldGroup); err != nil {
		return UpdateResult{}, err
	}
	if res.Local, err = grpcproto.Int(resp, grpcproto.FieldLocal); err != nil {
		return UpdateResult{}, err
	}
	if res.Record, err = grpcproto.Record(resp, grpcproto.FieldRecord); err != nil {
		return UpdateResult{}, err
	}

	if partial, ok := resp.GetFields()[grpcproto.FieldPartial]; ok {
		return res, fmt.Errorf("%w: %s", ErrPartialWrite, partial.GetStringValue())
	}
	return res, nil
}

func (c *GRPCClient) Load(ctx context.Context, fg int) ([]record.Record, error) {
	resp, err := c.client.Load(ctx, grpcproto.FileGroupRequest(fg))
	if err != nil {
		return nil, err
	}
	return grpcproto.RecordsFromValue(resp.GetFields()[grpcproto.FieldRecords])
}

func (c *GRPCClient) Cached(ctx context.Context, fg int) ([]record.Record, bool, error) {
	resp, err := c.client.Cached(ctx, grpcproto.FileGroupRequest(fg))
	if err != nil {
		return nil, false, err
	}
	if !resp.GetFields()[grpcproto.FieldLoaded].GetBoolValue() {
		return nil, false, nil
	}
	list, err := grpcproto.RecordsFromValue(resp.GetFields()[grpcproto.FieldRecords])
	return list, err == nil, err
}

func (c *GRPCClient) UpdateByIndex(ctx context.Context, fg int, rec record.Record, index int, authCode string) (UpdateResult, error) {
	req := grpcproto.FileGroupRequest(fg)
	req.Fields[grpcproto.FieldIndex] = structpb.NewNumberValue(float64(index))
	req.Fields[grpcproto.FieldRecord] = grpcproto.RecordValue(rec)

	return updateResult(c.client.UpdateByIndex(ctx, req, withAuth(authCode)...))
}

func (c *GRPCClient) UpdateBySearch(ctx context.Context, fg int, before, after record.Record, authCode string) (UpdateResult, error) {
	req := grpcproto.FileGroupRequest(fg)
	req.Fields[grpcproto.FieldBefore] = grpcproto.RecordValue(before)
	req.Fields[grpcproto.FieldAfter] = grpcproto.RecordValue(after)

	return updateResult(c.client.UpdateBySearch(ctx, req, withAuth(authCode)...))
}

func (c *GRPCClient) Add(ctx context.Context, fg int, rec record.Record, authCode string) (UpdateResult, error) {
	req := grpcproto.FileGroupRequest(fg)
	req.Fields[grpcproto.FieldRecord] = grpcproto.RecordValue(rec)

	return updateResult(c.client.Add(ctx, req, withAuth(authCode)...))
}

func (c *GRPCClient) Capacity(ctx context.Context, fg int) (record.Capacity, error) {
	resp, err := c.client.Capacity(ctx, grpcproto.FileGroupRequest(fg))
	if err != nil {
		return record.Capacity{}, err
	}

	var cp record.Capacity
	if cp.RecordLength, err = grpcproto.Int(resp, grpcproto.FieldRecordLen); err != nil {
		return record.Capacity{}, err
	}
	if cp.TotalLength, err = grpcproto.Int(resp, grpcproto.FieldTotalLen); err != nil {
		return record.Capacity{}, err
	}
	if cp.Records, err = grpcproto.Int(resp, grpcproto.FieldRecordCount); err != nil {
		return record.Capacity{}, err
	}
	return cp, nil
}

func (c *GRPCClient) Reset(ctx context.Context) error {
	_, err := c.client.Reset(ctx, grpcproto.Message(nil))
	return err
}
