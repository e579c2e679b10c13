package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"widget-lifecycle/internal/leak"
	"widget-lifecycle/internal/logging"
)

// ServiceName is the health service name of the lifecycle subsystem.
const ServiceName = "widget.lifecycle.v1.Lifecycle"

// Adapter serves the standard gRPC health protocol for the lifecycle
// subsystem. It stops serving once a critical leak has been reported.
type Adapter struct {
	health *health.Server
	logger logrus.FieldLogger

	mu       sync.Mutex
	degraded bool
}

// New creates a new gRPC adapter reporting SERVING.
func New(logger logrus.FieldLogger) *Adapter {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &Adapter{health: health.NewServer(), logger: logger}
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return a
}

// ReportLeak is meant to be installed as a detector's OnReport hook.
func (a *Adapter) ReportLeak(r leak.Report) {
	if r.Severity != leak.Critical {
		return
	}
	a.mu.Lock()
	first := !a.degraded
	a.degraded = true
	a.mu.Unlock()
	if first {
		a.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		a.logger.WithFields(logrus.Fields{"scope": r.ScopeID, "category": r.Category}).
			Error("critical leak reported, lifecycle service marked not serving")
	}
}

// Degraded reports whether a critical leak has been seen.
func (a *Adapter) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// Health exposes the underlying health server.
func (a *Adapter) Health() healthpb.HealthServer { return a.health }

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (a *Adapter) Shutdown() { a.health.Shutdown() }

// NewServer builds a gRPC server with the health service registered.
func NewServer(a *Adapter) *ggrpc.Server {
	s := ggrpc.NewServer(ggrpc.UnaryInterceptor(logUnary(a.logger)))
	healthpb.RegisterHealthServer(s, a.health)
	return s
}

func logUnary(logger logrus.FieldLogger) ggrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *ggrpc.UnaryServerInfo, handler ggrpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("grpc call failed")
		} else {
			entry.Debug("grpc call")
		}
		return resp, err
	}
}
