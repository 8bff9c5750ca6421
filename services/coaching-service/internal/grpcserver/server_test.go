package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/strideacademy/coachbook/libs/grpcx"
	"github.com/strideacademy/coachbook/libs/runtime"
)

func TestHealthFollowsReadyChecks(t *testing.T) {
	var down atomic.Bool
	checks := []runtime.ReadyCheck{{
		Name: "db",
		Check: func(context.Context) error {
			if down.Load() {
				return errors.New("connection refused")
			}
			return nil
		},
	}}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(slog.New(slog.NewTextHandler(io.Discard, nil)), checks, 20*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	status := func() healthpb.HealthCheckResponse_ServingStatus {
		cctx, ccancel := context.WithTimeout(context.Background(), time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	require.Eventually(t, func() bool { return status() == healthpb.HealthCheckResponse_SERVING }, 2*time.Second, 10*time.Millisecond)

	var header metadata.MD
	cctx, ccancel := context.WithTimeout(context.Background(), time.Second)
	_, err = client.Check(cctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	ccancel()
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get(grpcx.RequestIDMetadataKey))

	cctx, ccancel = context.WithTimeout(metadata.AppendToOutgoingContext(context.Background(), grpcx.RequestIDMetadataKey, "req-42"), time.Second)
	_, err = client.Check(cctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	ccancel()
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(grpcx.RequestIDMetadataKey))

	down.Store(true)
	require.Eventually(t, func() bool { return status() == healthpb.HealthCheckResponse_NOT_SERVING }, 2*time.Second, 10*time.Millisecond)

	down.Store(false)
	require.Eventually(t, func() bool { return status() == healthpb.HealthCheckResponse_SERVING }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
