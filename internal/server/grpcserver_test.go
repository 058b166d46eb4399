package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/card"
	"github.com/S0me0neR0man/simbook/internal/client"
	"github.com/S0me0neR0man/simbook/internal/config"
	"github.com/S0me0neR0man/simbook/internal/grpcproto"
	"github.com/S0me0neR0man/simbook/internal/phonebook"
	"github.com/S0me0neR0man/simbook/internal/record"
	"github.com/S0me0neR0man/simbook/internal/token"
)

func startServer(t *testing.T) (*client.GRPCClient, grpcproto.PhoneBookClient) {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	image := card.NewImage()
	image.Format(record.EFAdn, 4, 28)
	image.Format(record.EFFdn, 2, 28)
	require.NoError(t, image.Protect(record.EFFdn, "1234"))
	require.NoError(t, image.FormatExtended(record.EFPbr, record.Layout{Groups: []record.Group{
		{Size: 2, Columns: []record.ColumnSpec{
			{Column: record.ColumnEmail, Files: 1, Indirect: true, Slots: 1},
		}},
	}}, 30))
	require.NoError(t, image.Apply(record.EFAdn, 1, record.New("Alice", "123"), nil, ""))
	require.NoError(t, image.Apply(record.EFAdn, 2, record.New("Bob", "456"), nil, ""))

	c := cache.New(card.NewMemory(image, 0, logger), logger)
	book := phonebook.New(c, logger)
	srv := NewPhoneBookServer(book, config.Default(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = c.Run(ctx)
	}()

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = srv.Serve(ctx, lis)
	}()

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	cl, err := client.NewGRPClient("bufnet", dialer)
	require.NoError(t, err)

	conn, err := grpc.Dial("bufnet", dialer, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cl.Close()
		_ = conn.Close()
		cancel()
		srv.Wait()
		<-loopDone
	})
	return cl, grpcproto.NewPhoneBookClient(conn)
}

func requireCode(t *testing.T, code codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, status.Code(err), err.Error())
}

func TestGRPCServer_Flow(t *testing.T) {
	cl, _ := startServer(t)
	ctx := context.Background()

	_, ok, err := cl.Cached(ctx, record.EFAdn)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = cl.UpdateBySearch(ctx, record.EFAdn, record.New("Bob", "456"), record.New("Bob", "789"), "")
	requireCode(t, codes.FailedPrecondition, err)

	list, err := cl.Load(ctx, record.EFAdn)
	require.NoError(t, err)
	require.Len(t, list, 4)
	require.Equal(t, "Alice", list[0].Tag)
	require.Equal(t, 1, list[0].Index)

	res, err := cl.UpdateBySearch(ctx, record.EFAdn, record.New("Bob", "456"), record.New("Bob", "789"), "")
	require.NoError(t, err)
	require.Equal(t, 2, res.Index)
	require.Equal(t, "789", res.Record.Number)

	res, err = cl.Add(ctx, record.EFAdn, record.New("Carol", "1"), "")
	require.NoError(t, err)
	require.Equal(t, 3, res.Index)

	res, err = cl.UpdateByIndex(ctx, record.EFAdn, record.New("Dave", "2"), 4, "")
	require.NoError(t, err)
	require.Equal(t, 4, res.Index)

	_, err = cl.Add(ctx, record.EFAdn, record.New("Eve", "3"), "")
	requireCode(t, codes.ResourceExhausted, err)

	_, err = cl.UpdateBySearch(ctx, record.EFAdn, record.New("Nobody", "0"), record.New("Eve", "3"), "")
	requireCode(t, codes.NotFound, err)

	_, err = cl.UpdateByIndex(ctx, record.EFAdn, record.New("Eve", "3"), 9, "")
	requireCode(t, codes.InvalidArgument, err)

	cached, ok, err := cl.Cached(ctx, record.EFAdn)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Dave", cached[3].Tag)

	capacity, err := cl.Capacity(ctx, record.EFAdn)
	require.NoError(t, err)
	require.Equal(t, record.Capacity{RecordLength: 28, TotalLength: 112, Records: 4}, capacity)

	require.NoError(t, cl.Reset(ctx))
	_, ok, err = cl.Cached(ctx, record.EFAdn)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGRPCServer_AuthCode(t *testing.T) {
	cl, _ := startServer(t)
	ctx := context.Background()

	_, err := cl.UpdateByIndex(ctx, record.EFFdn, record.New("A", "1"), 1, "")
	requireCode(t, codes.PermissionDenied, err)

	_, err = cl.UpdateByIndex(ctx, record.EFFdn, record.New("A", "1"), 1, "0000")
	requireCode(t, codes.PermissionDenied, err)

	res, err := cl.UpdateByIndex(ctx, record.EFFdn, record.New("A", "1"), 1, "1234")
	require.NoError(t, err)
	require.Equal(t, 1, res.Index)
}

func TestGRPCServer_BadRequests(t *testing.T) {
	cl, raw := startServer(t)
	ctx := context.Background()

	_, err := cl.Load(ctx, 0x1234)
	requireCode(t, codes.InvalidArgument, err)

	_, err = raw.Load(ctx, grpcproto.Message(nil))
	requireCode(t, codes.InvalidArgument, err)

	req := grpcproto.FileGroupRequest(record.EFAdn)
	mdCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Basic 1234")
	_, err = raw.Load(mdCtx, req)
	requireCode(t, codes.Unauthenticated, err)

	_, err = raw.Load(ctx, req, grpc.PerRPCCredentials(token.NewTokens("1234")))
	require.NoError(t, err)
}

func TestGRPCServer_PartialWrite(t *testing.T) {
	cl, _ := startServer(t)
	ctx := context.Background()

	_, err := cl.Load(ctx, record.EFPbr)
	require.NoError(t, err)

	alice := record.New("Alice", "1")
	alice.Emails = []string{"alice@x"}
	_, err = cl.Add(ctx, record.EFPbr, alice, "")
	require.NoError(t, err)

	bob := record.New("Bob", "2")
	bob.Emails = []string{"bob@x"}
	res, err := cl.Add(ctx, record.EFPbr, bob, "")
	require.True(t, errors.Is(err, client.ErrPartialWrite), err)
	require.Equal(t, 2, res.Index)
	require.Equal(t, "Bob", res.Record.Tag)
	require.Empty(t, res.Record.Emails)
}
