package grpc

import (
	"context"
	"sort"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Pinger is a backing dependency the router cannot serve checkouts without.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Server answers grpc.health.v1 checks for the router. The overall service
// ("") and the named service are SERVING only while every dependency pings.
type Server struct {
	healthpb.UnimplementedHealthServer
	serviceName  string
	dependencies map[string]Pinger
	timeout      time.Duration
}

func NewServer(serviceName string, dependencies map[string]Pinger) *Server {
	return &Server{
		serviceName:  serviceName,
		dependencies: dependencies,
		timeout:      3 * time.Second,
	}
}

func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	service := req.GetService()
	if service != "" && service != s.serviceName {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	if failed := s.failingDependencies(ctx); len(failed) > 0 {
		loggerWithContext(ctx).WithField("dependencies", failed).Warn("Health check failed")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func (s *Server) failingDependencies(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var failed []string
	for name, dependency := range s.dependencies {
		if dependency == nil {
			continue
		}
		if err := dependency.Ping(ctx); err != nil {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}
