// Package factionserver exposes territory queries and game-event ingestion
// over gRPC. Each method takes a typed <Method>Request message described by
// Schema (mirrored in api/proto/factions/v1/territory.proto) and returns a
// google.protobuf.Struct.
package factionserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/factions/internal/config"
	"github.com/cory-johannsen/factions/internal/game/territory"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "factions.v1.Territory"

// FullMethod returns the gRPC path for a method name, e.g. "/factions.v1.Territory/Claim".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Server serves the Territory service and the standard health service.
type Server struct {
	svc    *territory.Service
	cfg    config.GRPCConfig
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu  sync.Mutex
	lis net.Listener
}

// NewServer builds the gRPC server for svc.
//
// Precondition: svc and logger must be non-nil.
// Postcondition: The server is registered but not listening; call Start or Serve.
func NewServer(svc *territory.Service, cfg config.GRPCConfig, logger *zap.Logger) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		health: health.NewServer(),
	}
	if cfg.AdminTokenHash == "" {
		logger.Warn("grpc admin token not configured; mutating methods are unauthenticated")
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.logCalls,
		adminAuth(cfg.AdminTokenHash, isMutating),
	))
	desc := serviceDesc()
	s.grpc.RegisterService(&desc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.Serve(lis)
}

// Serve serves on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	return s.grpc.Serve(lis)
}

// Stop marks the service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Addr returns the bound address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.String("code", status.Code(err).String()), zap.Error(err))
		s.logger.Debug("rpc failed", fields...)
		return resp, err
	}
	s.logger.Debug("rpc", fields...)
	return resp, nil
}

func isMutating(fullMethod string) bool {
	for _, m := range methods {
		if m.mutating && FullMethod(m.name) == fullMethod {
			return true
		}
	}
	return false
}

// serviceDesc declares the Territory service over the compiled schema.
func serviceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    SchemaPath,
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(m),
		})
	}
	return desc
}

func unaryHandler(m method) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := dynamicpb.NewMessage(RequestDescriptor(m.name))
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*Server)
		call := func(ctx context.Context, req any) (any, error) {
			return s.invoke(ctx, m, req.(*dynamicpb.Message))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(m.name)}, call)
	}
}

func (s *Server) invoke(ctx context.Context, m method, in *dynamicpb.Message) (*structpb.Struct, error) {
	out, err := m.fn(ctx, s.svc, newArgs(in))
	if err != nil {
		return nil, toStatus(err)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		s.logger.Error("encoding response", zap.String("method", m.name), zap.Error(err))
		return nil, toStatus(err)
	}
	return resp, nil
}
