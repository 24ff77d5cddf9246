package grpcx

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Register вешает на сервер стандартный health-сервис: gateway проверяет
// готовность dm-service по нему. Прикладной dm API ходит по HTTP/WS.
func Register(grpcServer *grpc.Server) *health.Server {
	hs := health.NewServer()
	healthv1.RegisterHealthServer(grpcServer, hs)
	return hs
}
