package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/repository"
)

// MatchServiceName is the fully qualified gRPC service name.
const MatchServiceName = "tcgsim.v1.MatchService"

// MatchServer is the gRPC surface of a Session. Requests and responses are
// structpb.Struct so no generated code is needed; responses carry the same
// fields as the JSON View.
type MatchServer interface {
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StepTurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeclareAttackers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeclareBlockers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlayLand(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CastCreature(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndMain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAutoPlay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunDeck(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type matchMethod func(MatchServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call matchMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + MatchServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// MatchServiceDesc describes MatchService for grpc.Server.RegisterService.
var MatchServiceDesc = grpc.ServiceDesc{
	ServiceName: MatchServiceName,
	HandlerType: (*MatchServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetState", MatchServer.GetState),
		unaryMethod("Step", MatchServer.Step),
		unaryMethod("StepTurn", MatchServer.StepTurn),
		unaryMethod("RunGame", MatchServer.RunGame),
		unaryMethod("DeclareAttackers", MatchServer.DeclareAttackers),
		unaryMethod("DeclareBlockers", MatchServer.DeclareBlockers),
		unaryMethod("PlayLand", MatchServer.PlayLand),
		unaryMethod("CastCreature", MatchServer.CastCreature),
		unaryMethod("EndMain", MatchServer.EndMain),
		unaryMethod("SetAutoPlay", MatchServer.SetAutoPlay),
		unaryMethod("RunDeck", MatchServer.RunDeck),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tcgsim/v1/match.proto",
}

// RegisterMatchServer registers srv on s.
func RegisterMatchServer(s grpc.ServiceRegistrar, srv MatchServer) {
	s.RegisterService(&MatchServiceDesc, srv)
}

// matchService implements MatchServer on top of a Session.
type matchService struct {
	session *Session
	logger  *zap.Logger
}

// NewMatchService wraps session for gRPC.
func NewMatchService(session *Session, logger *zap.Logger) MatchServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &matchService{session: session, logger: logger.Named("grpc")}
}

func (s *matchService) GetState(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.session.State())
}

func (s *matchService) Step(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.session.Step())
}

func (s *matchService) StepTurn(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.session.StepTurn())
}

func (s *matchService) RunGame(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.session.RunGame())
}

func (s *matchService) DeclareAttackers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body attackersRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	v, err := s.session.DeclareAttackers(body.Attackers)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(v)
}

func (s *matchService) DeclareBlockers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body blockersRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	v, err := s.session.DeclareBlockers(body.Blocking)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(v)
}

func (s *matchService) PlayLand(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body handRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	v, err := s.session.PlayLand(body.Index)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(v)
}

func (s *matchService) CastCreature(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body handRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	v, err := s.session.CastCreature(body.Index)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(v)
}

func (s *matchService) EndMain(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.session.EndMain()
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(v)
}

func (s *matchService) SetAutoPlay(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body autoPlayRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	return toStruct(s.session.SetAutoPlay(body.Enabled))
}

func (s *matchService) RunDeck(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body deckRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}
	if body.Lands < 0 || body.Nonlands < 0 || body.Lands+body.Nonlands == 0 {
		return nil, status.Error(codes.InvalidArgument, "deck needs a non-negative, non-empty ratio")
	}
	stats, v, err := s.session.RunDeck(ctx, body.Lands, body.Nonlands, body.Games)
	if err != nil {
		s.logger.Warn("deck run failed", zap.Error(err))
		return nil, grpcError(err)
	}
	return toStruct(deckResponse{Stats: stats, State: v})
}

// toStruct converts any JSON-encodable value into a structpb.Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a request struct into dst through its JSON form.
func fromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

// grpcError maps domain errors to gRPC status codes.
func grpcError(err error) error {
	switch {
	case errors.Is(err, game.ErrInvalidCard):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, game.ErrNotAwaiting),
		errors.Is(err, game.ErrLandAlreadyPlayed),
		errors.Is(err, game.ErrCannotPay):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ==================== Interceptors ====================

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in gRPC handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, fmt.Sprintf("internal error: %v", r))
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call",
			zap.String("method", info.FullMethod),
			zap.String("peer", extractHostFromContext(ctx)),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

// Helper function to extract host from context
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// NewGRPCServer builds a grpc.Server with the standard interceptors and
// MatchService registered.
func NewGRPCServer(session *Session, logger *zap.Logger) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
	))
	RegisterMatchServer(srv, NewMatchService(session, logger))
	return srv
}
