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

package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type readiness struct {
	err error
}

func (r *readiness) Ready() error { return r.err }

func startHealthService(t *testing.T, engine ReadinessChecker) (*HealthService, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	hs := NewHealthService("bufnet", engine)

	served := make(chan error, 1)
	go func() { served <- hs.Serve(lis) }()

	conn, err := grpcgo.NewClient("passthrough:///bufnet",
		grpcgo.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpcgo.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		hs.Stop()
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("gRPC server did not stop")
		}
	})

	return hs, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthService_Ready(t *testing.T) {
	_, client := startHealthService(t, &readiness{})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))
}

func TestHealthService_EngineNotReady(t *testing.T) {
	_, client := startHealthService(t, &readiness{err: errors.New("sync engine not ready: no model")})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}

func TestHealthService_Refresh(t *testing.T) {
	engine := &readiness{err: errors.New("down")}
	hs, client := startHealthService(t, engine)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	engine.err = nil
	hs.Refresh()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))
}

func TestHealthService_StartBadAddress(t *testing.T) {
	hs := NewHealthService("256.0.0.1:bad", &readiness{})
	err := hs.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
