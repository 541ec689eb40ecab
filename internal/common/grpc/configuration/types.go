package configuration

import (
	"time"

	"google.golang.org/grpc/keepalive"
)

type GrpcConfig struct {
	Port                       uint16 `validate:"required"`
	KeepaliveParams            keepalive.ServerParameters
	KeepaliveEnforcementPolicy keepalive.EnforcementPolicy
	// Time in-flight requests are given to finish on shutdown.
	ShutdownGracePeriod time.Duration
	// Timeout of requests sent to other nodes.
	RequestTimeout time.Duration `validate:"required"`
}
