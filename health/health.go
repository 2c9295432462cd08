// Package health exposes a gRPC health service reporting whether the
// provider registry has finished its registration phase.
package health

import (
	"context"
	"net"

	"federation/logger"

	healthpb "github.com/Chandra179/proto/health-gen"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Checker reports readiness.
type Checker interface {
	Sealed() bool
}

// Server implements the health service.
type Server struct {
	healthpb.UnimplementedHealthServiceServer

	checker Checker
	log     *logger.Logger
}

// NewServer creates a health server backed by checker, usually a *sso.Registry.
func NewServer(checker Checker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{checker: checker, log: log}
}

// Check implements healthpb.HealthServiceServer
func (s *Server) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.checker.Sealed() {
		s.log.Debug(ctx, "health check before registry was sealed")
		return nil, status.Error(codes.Unavailable, "provider registry is still accepting registrations")
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Serve listens on addr and serves the health service until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	gs := grpc.NewServer()
	healthpb.RegisterHealthServiceServer(gs, s)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	s.log.Info(ctx, "grpc health server listening", logger.F("addr", lis.Addr().String()))
	return gs.Serve(lis)
}
