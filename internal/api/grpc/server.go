// Package grpcapi serves the standard gRPC health service with one entry per
// model backend dependency.
package grpcapi

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"clinical-notes-service/internal/observability"
	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/observability/metrics"
)

// ServicePrefix namespaces the per-dependency health entries.
const ServicePrefix = "clinical.notes."

// Server wraps a grpc.Server exposing health and reflection.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	probes   []observability.Probe
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	statuses map[string]string
}

// New creates the gRPC server. Probes are evaluated every interval once Run
// is called.
func New(probes []observability.Probe, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m := metrics.DefaultMetrics
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, p := range probes {
		hs.SetServingStatus(ServicePrefix+p.Name, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	return &Server{
		grpc:     g,
		health:   hs,
		probes:   probes,
		interval: interval,
		timeout:  interval / 2,
		logger:   logging.WithComponent("grpc-health"),
		statuses: make(map[string]string),
	}
}

// GRPC returns the underlying server for serving and registration.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Run probes dependencies until ctx ends.
func (s *Server) Run(ctx context.Context) {
	s.Refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh runs all probes once and updates the health entries.
func (s *Server) Refresh(ctx context.Context) {
	statuses, _ := observability.RunProbes(ctx, s.probes, s.timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, st := range statuses {
		if prev, ok := s.statuses[name]; ok && prev == st {
			continue
		}
		s.statuses[name] = st
		serving := grpc_health_v1.HealthCheckResponse_SERVING
		if st != observability.StatusServing {
			serving = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			s.logger.Warn().Str("backend", name).Msg("Backend not serving")
		} else {
			s.logger.Info().Str("backend", name).Msg("Backend serving")
		}
		s.health.SetServingStatus(ServicePrefix+name, serving)
	}
}

// Statuses returns the last probe result per backend.
func (s *Server) Statuses() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// Stop marks every entry NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
