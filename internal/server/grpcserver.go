package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/card"
	"github.com/S0me0neR0man/simbook/internal/config"
	"github.com/S0me0neR0man/simbook/internal/grpcproto"
	"github.com/S0me0neR0man/simbook/internal/phonebook"
)

var (
	errMissingMetadata = status.Errorf(codes.InvalidArgument, "missing metadata")
	errInvalidToken    = status.Errorf(codes.Unauthenticated, "invalid token")
)

type authCodeKey struct{}

// AuthCode the auth code the caller sent as bearer token, "" when none.
func AuthCode(ctx context.Context) string {
	code, _ := ctx.Value(authCodeKey{}).(string)
	return code
}

type GRPCServer struct {
	book  *phonebook.PhoneBook
	sugar *zap.SugaredLogger
	gserv *grpc.Server
	conf  *config.Config

	wg sync.WaitGroup
}

var _ grpcproto.PhoneBookServer = (*GRPCServer)(nil)

func NewPhoneBookServer(book *phonebook.PhoneBook, conf *config.Config, logger *zap.Logger) *GRPCServer {
	ss := &GRPCServer{
		book:  book,
		conf:  conf,
		sugar: logger.Sugar(),
	}

	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ss.ensureValidToken),
	}
	ss.gserv = grpc.NewServer(opts...)
	grpcproto.RegisterPhoneBookServer(ss.gserv, ss)

	return ss
}

// Start listens on the configured address and serves until ctx is done.
func (ss *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ss.conf.GRPCAddr)
	if err != nil {
		return err
	}
	return ss.Serve(ctx, lis)
}

func (ss *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	ss.sugar.Infow("grpcserver start", "addr", lis.Addr().String())
	ss.wg.Add(1)
	go ss.gracefulStop(ctx)

	return ss.gserv.Serve(lis)
}

func (ss *GRPCServer) gracefulStop(ctx context.Context) {
	defer ss.wg.Done()

	<-ctx.Done()
	ss.gserv.GracefulStop()
	ss.sugar.Infow("grpcserver stopped")
}

func (ss *GRPCServer) Wait() {
	ss.wg.Wait()
}

// ensureValidToken moves a bearer token from the authorization metadata
// into the context as the auth code.
func (ss *GRPCServer) ensureValidToken(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errMissingMetadata
	}

	// The keys within metadata.MD are normalized to lowercase.
	if values := md["authorization"]; len(values) > 0 {
		scheme, code, found := strings.Cut(values[0], " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			return nil, errInvalidToken
		}
		ctx = context.WithValue(ctx, authCodeKey{}, code)
	}

	ss.sugar.Debugw("call", "method", info.FullMethod, "auth", AuthCode(ctx) != "")
	return handler(ctx, req)
}

// toStatus maps phonebook errors onto status codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, grpcproto.ErrBadMessage),
		errors.Is(err, cache.ErrUnknownFileGroup),
		errors.Is(err, cache.ErrInvalidIndex):
		code = codes.InvalidArgument
	case errors.Is(err, cache.ErrNotLoaded):
		code = codes.FailedPrecondition
	case errors.Is(err, phonebook.ErrNoFreeRecord):
		code = codes.ResourceExhausted
	case errors.Is(err, cache.ErrRecordNotFound):
		code = codes.NotFound
	case errors.Is(err, cache.ErrWriteAlreadyPending),
		errors.Is(err, cache.ErrCacheInvalidated):
		code = codes.Aborted
	case errors.Is(err, phonebook.ErrAuthCodeRequired),
		errors.Is(err, card.ErrSecurityStatus):
		code = codes.PermissionDenied
	case errors.Is(err, cache.ErrStorageFailure),
		errors.Is(err, cache.ErrStopped):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func updateResponse(res cache.UpdateResult, err error) (*structpb.Struct, error) {
	var partial *cache.PartialError
	if err != nil && !errors.As(err, &partial) {
		return nil, toStatus(err)
	}

	fields := map[string]*structpb.Value{
		grpcproto.FieldIndex:  structpb.NewNumberValue(float64(res.Index)),
		grpcproto.FieldGroup:  structpb.NewNumberValue(float64(res.Group)),
		grpcproto.FieldLocal:  structpb.NewNumberValue(float64(res.Local)),
		grpcproto.FieldRecord: grpcproto.RecordValue(res.Record),
	}
	if partial != nil {
		fields[grpcproto.FieldPartial] = structpb.NewStringValue(partial.Err.Error())
	}
	return grpcproto.Message(fields), nil
}

func (ss *GRPCServer) Load(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fg, err := grpcproto.Int(in, grpcproto.FieldFileGroup)
	if err != nil {
		return nil, toStatus(err)
	}

	list, err := ss.book.Records(ctx, fg)
	if err != nil {
		return nil, toStatus(err)
	}
	return grpcproto.Message(map[string]*structpb.Value{
		grpcproto.FieldRecords: grpcproto.RecordsValue(list),
	}), nil
}

func (ss *GRPCServer) UpdateByIndex(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fg, err := grpcproto.Int(in, grpcproto.FieldFileGroup)
	if err != nil {
		return nil, toStatus(err)
	}
	index, err := grpcproto.Int(in, grpcproto.FieldIndex)
	if err != nil {
		return nil, toStatus(err)
	}
	rec, err := grpcproto.Record(in, grpcproto.FieldRecord)
	if err != nil {
		return nil, toStatus(err)
	}

	return updateResponse(ss.book.UpdateByIndex(ctx, fg, rec, index, AuthCode(ctx)))
}

func (ss *GRPCServer) UpdateBySearch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fg, err := grpcproto.Int(in, grpcproto.FieldFileGroup)
	if err != nil {
		return nil, toStatus(err)
	}
	before, err := grpcproto.Record(in, grpcproto.FieldBefore)
	if err != nil {
		return nil, toStatus(err)
	}
	after, err := grpcproto.Record(in, grpcproto.FieldAfter)
	if err != nil {
		return nil, toStatus(err)
	}

	return updateResponse(ss.book.UpdateBySearch(ctx, fg, before, after, AuthCode(ctx)))
}

func (ss *GRPCServer) Add(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fg, err := grpcproto.Int(in, grpcproto.FieldFileGroup)
	if err != nil {
		return nil, toStatus(err)
	}
	rec, err := grpcproto.Record(in, grpcproto.FieldRecord)
	if err != nil {
		return nil, toStatus(err)
	}

	return updateResponse(ss.book.Add(ctx, fg, rec, AuthCode(ctx)))
}

func (ss *GRPCServer) Cached(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fg, err := grpcproto.Int(in, grpcproto.FieldFileGroup)
	if err != nil {
		return nil, toStatus(err)
	}

	list, ok, err := ss.book.RecordsIfLoaded(ctx, fg)
	if err != nil {
		return nil, toStatus(err)
	}
	return grpcproto.Message(map[string]*structpb.Value{
		grpcproto.FieldLoaded:  structpb.NewBoolValue(ok),
		grpcproto.FieldRecords: grpcproto.RecordsValue(list),
	}), nil
}

func (ss *GRPCServer) Capacity(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fg, err := grpcproto.Int(in, grpcproto.FieldFileGroup)
	if err != nil {
		return nil, toStatus(err)
	}

	c, err := ss.book.Capacity(ctx, fg)
	if err != nil {
		return nil, toStatus(err)
	}
	return grpcproto.Message(map[string]*structpb.Value{
		grpcproto.FieldRecordLen:   structpb.NewNumberValue(float64(c.RecordLength)),
		grpcproto.FieldTotalLen:    structpb.NewNumberValue(float64(c.TotalLength)),
		grpcproto.FieldRecordCount: structpb.NewNumberValue(float64(c.Records)),
	}), nil
}

func (ss *GRPCServer) Reset(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := ss.book.Reset(ctx); err != nil {
		return nil, toStatus(err)
	}
	return grpcproto.Message(nil), nil
}
