package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/elys-network/yieldvault/internal/logger"
)

// VaultService is the service name whose health tracks the vault's pause flag.
const VaultService = "yieldvault.Vault"

// Config holds the configuration for creating a new Server
type Config struct {
	Port string
	// Paused is the vault's pause flag at startup.
	Paused bool
}

// Server exposes the grpc.health.v1 service for the vault.
type Server struct {
	logger zerolog.Logger
	port   string
	grpc   *grpc.Server
	health *health.Server
}

// NewServer creates the gRPC server and registers the health and reflection
// services.
func NewServer(cfg Config) *Server {
	port := cfg.Port
	if port == "" {
		port = "9090"
	}
	s := &Server{
		logger: logger.GetForComponent("grpc_server"),
		port:   port,
		health: health.NewServer(),
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.SetPaused(cfg.Paused)
	return s
}

// SetPaused reports the vault service as NOT_SERVING while paused. It is
// meant to be hooked to the vault's pause callback.
func (s *Server) SetPaused(paused bool) {
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if paused {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(VaultService, servingStatus)
	s.logger.Info().Bool("paused", paused).Str("status", servingStatus.String()).Msg("Vault serving status updated")
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.logger.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) loggingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("duration", time.Since(start)).
		Msg("gRPC request")
	return resp, err
}
