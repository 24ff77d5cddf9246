package grpcx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func callWith(t *testing.T, ic grpc.UnaryServerInterceptor, ctx context.Context) (time.Time, bool) {
	t.Helper()
	var deadline time.Time
	var ok bool
	_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/dm.v1/Test"},
		func(ctx context.Context, _ any) (any, error) {
			deadline, ok = ctx.Deadline()
			return nil, nil
		})
	require.NoError(t, err)
	return deadline, ok
}

func TestUnaryInterceptor_DeadlineGuardFromConfig(t *testing.T) {
	req := require.New(t)
	ic := UnaryServerInterceptor(3 * time.Second)

	before := time.Now()
	deadline, ok := callWith(t, ic, context.Background())
	req.True(ok, "calls without a deadline must get the configured guard")
	req.WithinDuration(before.Add(3*time.Second), deadline, 500*time.Millisecond)
}

func TestUnaryInterceptor_DefaultGuard(t *testing.T) {
	req := require.New(t)
	ic := UnaryServerInterceptor(0)

	before := time.Now()
	deadline, ok := callWith(t, ic, context.Background())
	req.True(ok)
	req.WithinDuration(before.Add(10*time.Second), deadline, 500*time.Millisecond)
}

func TestUnaryInterceptor_KeepsCallerDeadline(t *testing.T) {
	req := require.New(t)
	ic := UnaryServerInterceptor(3 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	want, _ := ctx.Deadline()

	deadline, ok := callWith(t, ic, ctx)
	req.True(ok)
	req.True(deadline.Equal(want), "caller deadline must not be replaced")
}

func TestUnaryInterceptor_RecoversPanic(t *testing.T) {
	req := require.New(t)
	ic := UnaryServerInterceptor(time.Second)

	_, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/dm.v1/Test"},
		func(context.Context, any) (any, error) {
			panic("boom")
		})
	req.Error(err)
}
