// SPDX-License-Identifier: GPL-2.0-only

package inspector

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service reporting scan status.
const ServiceName = "xhci.inspector"

const unixPrefix = "unix:"

// Health returns the health server backing ServeHealth.
func (in *Inspector) Health() *health.Server {
	return in.health
}

// Check reports the current serving status of ServiceName.
func (in *Inspector) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := in.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// ServeHealth listens on addr, a TCP address or unix:/path/to/socket, and
// adds a gRPC health server to g.
func (in *Inspector) ServeHealth(g *run.Group, addr string) error {
	network, address := "tcp", addr
	if strings.HasPrefix(addr, unixPrefix) {
		network, address = "unix", strings.TrimPrefix(addr, unixPrefix)
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale socket %q: %v", address, err)
		}
	}

	_ = level.Info(in.logger).Log("msg", "listening for gRPC health checks", "network", network, "address", address)
	l, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", addr, err)
	}

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, in.health)

	g.Add(func() error {
		return srv.Serve(l)
	}, func(error) {
		in.health.Shutdown()
		srv.GracefulStop()
		_ = l.Close()
	})
	return nil
}
