package grpc

import (
	"fmt"
	"net"
	"runtime/debug"
	"time"

	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_ctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
)

// CreateGrpcServer creates a gRPC server (by calling grpc.NewServer) with settings specific to
// this project, and registers interceptors for, e.g., logging, metrics and error mapping.
func CreateGrpcServer(
	keepaliveParams keepalive.ServerParameters,
	keepaliveEnforcementPolicy keepalive.EnforcementPolicy,
	logger *logrus.Entry,
) *grpc.Server {
	grpc_prometheus.EnableHandlingTimeHistogram()
	recoveryHandler := grpc_recovery.WithRecoveryHandler(panicRecoveryHandler(logger))
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(keepaliveEnforcementPolicy),
		grpc.ChainUnaryInterceptor(
			grpc_ctxtags.UnaryServerInterceptor(),
			grpc_prometheus.UnaryServerInterceptor,
			grpc_logrus.UnaryServerInterceptor(logger),
			armadaerrors.UnaryServerInterceptor(),
			grpc_recovery.UnaryServerInterceptor(recoveryHandler),
		),
		grpc.ChainStreamInterceptor(
			grpc_ctxtags.StreamServerInterceptor(),
			grpc_prometheus.StreamServerInterceptor,
			grpc_logrus.StreamServerInterceptor(logger),
			grpc_recovery.StreamServerInterceptor(recoveryHandler),
		),
	)
	return server
}

// Listen starts serving grpcServer on port in the background. The returned channel receives the result of Serve.
func Listen(port uint16, grpcServer *grpc.Server, logger *logrus.Entry) (<-chan error, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on port %d", port)
	}
	grpc_prometheus.Register(grpcServer)

	served := make(chan error, 1)
	go func() {
		defer logger.Infof("Stopping server.")
		logger.Infof("Grpc listening on %d", port)
		served <- grpcServer.Serve(lis)
	}()
	return served, nil
}

// CreateShutdownHandler returns a function that shuts down the grpcServer when the context is closed.
// The server is given gracePeriod to perform a graceful showdown and is then forcably stopped if necessary
func CreateShutdownHandler(ctx *armadacontext.Context, gracePeriod time.Duration, grpcServer *grpc.Server) func() error {
	return func() error {
		<-ctx.Done()
		stopped := make(chan struct{})
		go func() {
			select {
			case <-time.After(gracePeriod):
				grpcServer.Stop()
			case <-stopped:
			}
		}()
		grpcServer.GracefulStop()
		close(stopped)
		return nil
	}
}

// This function is called whenever a gRPC handler panics.
func panicRecoveryHandler(logger *logrus.Entry) grpc_recovery.RecoveryHandlerFunc {
	return func(p interface{}) (err error) {
		logger.Errorf("Request triggered panic with cause %v \n%s", p, string(debug.Stack()))
		return status.Errorf(codes.Internal, "Internal server error caused by %v", p)
	}
}
