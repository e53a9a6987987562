/*
 * This file is part of Projetor Sync (https://github.com/projetor/projetor-sync).
 * Copyright (C) 2025 Projetor Contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package grpc serves the standard gRPC health protocol for the sync daemon
package grpc

import (
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/projetor/projetor-sync/internal/logging"
)

// ServiceName is the health service name reporting engine readiness
const ServiceName = "projetor.sync"

// ReadinessChecker reports whether the sync engine can start sessions
type ReadinessChecker interface {
	Ready() error
}

// HealthService wraps a gRPC server exposing grpc.health.v1.Health
type HealthService struct {
	addr   string
	engine ReadinessChecker
	health *health.Server
	server *grpcgo.Server
}

// NewHealthService creates the service and sets the initial statuses
func NewHealthService(addr string, engine ReadinessChecker) *HealthService {
	hs := &HealthService{
		addr:   addr,
		engine: engine,
		health: health.NewServer(),
		server: grpcgo.NewServer(),
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	hs.Refresh()
	return hs
}

// Refresh re-evaluates engine readiness
func (hs *HealthService) Refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if err := hs.engine.Ready(); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		logging.LogWarn("Sync engine not ready", zap.Error(err))
	}

	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.health.SetServingStatus(ServiceName, status)
}

// Start listens on the configured address and serves until Stop
func (hs *HealthService) Start() error {
	lis, err := net.Listen("tcp", hs.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", hs.addr, err)
	}
	return hs.Serve(lis)
}

// Serve serves on an existing listener until Stop
func (hs *HealthService) Serve(lis net.Listener) error {
	logging.LogServerEvent("grpc", "listening", zap.String("addr", lis.Addr().String()))

	if err := hs.server.Serve(lis); err != nil && !errors.Is(err, grpcgo.ErrServerStopped) {
		return fmt.Errorf("gRPC server failed: %w", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops the server gracefully
func (hs *HealthService) Stop() {
	hs.health.Shutdown()
	hs.server.GracefulStop()
}
