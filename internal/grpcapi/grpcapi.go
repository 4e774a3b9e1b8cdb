// Package grpcapi exposes the engine's liveness surface over gRPC,
// grounded on internal/grpc/server/server.go: same keepalive/connection
// options, same reflection registration, same Start/Stop lifecycle. It
// carries the standard grpc_health_v1 service rather than a bespoke
// trading RPC surface — every mutating operation already has a
// well-defined entry point in internal/instruction, and re-exposing it
// over gRPC without a .proto-defined wire contract would just be a second,
// undocumented way to call the same code. What a gRPC client genuinely
// needs from this engine today is "is this instance healthy", which
// grpc_health_v1 answers without any custom codegen.
package grpcapi

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/merl-labs/clob/pkg/interfaces"
)

// Options mirrors the teacher's ServerOptions.
type Options struct {
	MaxConnectionIdle     time.Duration
	MaxConnectionAge      time.Duration
	MaxConnectionAgeGrace time.Duration
	Time                  time.Duration
	Timeout               time.Duration
	MaxConcurrentStreams  uint32
	MaxRecvMsgSize        int
	MaxSendMsgSize        int
	NumServerWorkers      int
}

// DefaultOptions mirrors the teacher's DefaultServerOptions.
func DefaultOptions() Options {
	return Options{
		MaxConnectionIdle:     15 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Minute,
		Time:                  5 * time.Second,
		Timeout:               1 * time.Second,
		MaxConcurrentStreams:  1000,
		MaxRecvMsgSize:        50 * 1024 * 1024,
		MaxSendMsgSize:        50 * 1024 * 1024,
		NumServerWorkers:      runtime.NumCPU(),
	}
}

// Server wraps a *grpc.Server carrying the standard health service.
type Server struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      interfaces.Logger
	options  Options

	mu sync.Mutex
}

// NewServer builds a Server. A nil log falls back to interfaces.NoopLogger.
func NewServer(log interfaces.Logger, options Options) *Server {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	serverOptions := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             options.Time,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     options.MaxConnectionIdle,
			MaxConnectionAge:      options.MaxConnectionAge,
			MaxConnectionAgeGrace: options.MaxConnectionAgeGrace,
			Time:                  options.Time,
			Timeout:               options.Timeout,
		}),
		grpc.MaxConcurrentStreams(options.MaxConcurrentStreams),
		grpc.MaxRecvMsgSize(options.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(options.MaxSendMsgSize),
		grpc.NumStreamWorkers(uint32(options.NumServerWorkers)),
	}

	grpcServer := grpc.NewServer(serverOptions...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	return &Server{server: grpcServer, health: healthServer, log: log, options: options}
}

// RegisterService exposes the underlying *grpc.Server to a caller-supplied
// registration function, the same escape hatch as the teacher's
// RegisterService, for a host that wants to add its own service later.
func (s *Server) RegisterService(registerFunc func(*grpc.Server)) {
	registerFunc(s.server)
}

// SetServing marks service as SERVING or NOT_SERVING; "" means the
// overall server status.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Start listens on address and serves until Stop is called or Serve
// returns an error.
func (s *Server) Start(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("grpcapi: listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("grpcapi.starting", "address", address, "workers", s.options.NumServerWorkers)
	s.SetServing("", true)
	return s.server.Serve(listener)
}

// Stop gracefully drains in-flight RPCs before shutting down.
func (s *Server) Stop() {
	s.log.Info("grpcapi.stopping")
	s.SetServing("", false)
	s.server.GracefulStop()
}

// GRPCServer returns the underlying *grpc.Server, for tests that want to
// dial it directly via an in-memory bufconn listener.
func (s *Server) GRPCServer() *grpc.Server {
	return s.server
}
