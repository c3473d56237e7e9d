package grpcapi

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/haneul-palette/internal/logging"
	"github.com/example/haneul-palette/internal/skintone"
	"github.com/example/haneul-palette/internal/usecase"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "haneul.palette.v1.Analyzer"

const analyzeMethod = "/" + ServiceName + "/Analyze"

// Analyzer is the use case surface exposed over gRPC.
type Analyzer interface {
	Analyze(ctx context.Context, source string, imageBytes []byte) (*usecase.Analysis, error)
}

// AnalyzerServer handles Analyze calls. Requests carry raw image bytes in a
// BytesValue; responses are a Struct with the same fields as the HTTP API.
type AnalyzerServer interface {
	Analyze(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyzerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Analyze",
			Handler:    analyzeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "haneul/palette/v1/analyzer.proto",
}

func analyzeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnalyzerServer).Analyze(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Server adapts the analysis use case to gRPC.
type Server struct {
	analyzer Analyzer
	logger   *zap.Logger
}

// NewServer constructs a gRPC adapter over the use case.
func NewServer(analyzer Analyzer, logger *zap.Logger) *Server {
	return &Server{analyzer: analyzer, logger: logger.Named("grpc")}
}

// Analyze implements AnalyzerServer.
func (s *Server) Analyze(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	analysis, err := s.analyzer.Analyze(ctx, usecase.SourceGRPC, req.GetValue())
	if err != nil {
		if errors.Is(err, usecase.ErrMissingInput) {
			return nil, status.Error(codes.InvalidArgument, "no image provided")
		}
		s.logger.Error("analysis failed", zap.Error(err))
		return nil, status.Errorf(codes.Internal, "processing failed: %v", logging.Cause(err))
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"request_id":          analysis.RequestID,
		"undertone":           string(analysis.Result.Undertone),
		"brightness_softness": string(analysis.Result.BrightnessSoftness),
		"depth":               string(analysis.Result.Depth),
		"cheek_sample_rgb":    colorList(analysis.Result.CheekSample),
		"neck_sample_rgb":     colorList(analysis.Result.NeckSample),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func colorList(c skintone.Color) []interface{} {
	return []interface{}{c.R(), c.G(), c.B()}
}

// Register adds the analyzer and the standard health service to srv.
func Register(srv *grpc.Server, s *Server) *health.Server {
	srv.RegisterService(&serviceDesc, s)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)
	return healthServer
}

// NewGRPCServer builds a grpc.Server with request logging and the analyzer registered.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(loggingInterceptor(s.logger))}, opts...)
	srv := grpc.NewServer(opts...)
	return srv, Register(srv, s)
}

// Serve runs srv on lis until ctx is cancelled, then stops it gracefully.
func Serve(ctx context.Context, srv *grpc.Server, lis net.Listener, healthServer *health.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if healthServer != nil {
			healthServer.Shutdown()
		}
		srv.GracefulStop()
		err := <-errCh
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		logger.Debug("grpc call", zap.String("method", info.FullMethod), zap.String("code", status.Code(err).String()))
		return resp, err
	}
}
