package configuration

import (
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	commonconfig "github.com/G-Research/armada-compute/internal/common/config"
	grpcconfig "github.com/G-Research/armada-compute/internal/common/grpc/configuration"
	"github.com/G-Research/armada-compute/internal/common/logging"
	"github.com/G-Research/armada-compute/internal/compute/placement"
)

const (
	StatusStoreMemory = "memory"
	StatusStoreRedis  = "redis"
)

type ComputeConfig struct {
	// The node this process runs as
	Node placement.ClusterNode `validate:"required"`
	// Other members of the cluster
	Peers   []placement.ClusterNode `validate:"dive"`
	Logging logging.Config
	Grpc    grpcconfig.GrpcConfig
	Metrics MetricsConfig
	Queue   QueueConfig
	// Partition ownership of the tables splitters can target, by table name
	Partitions  map[string][]string
	Execution   ExecutionConfig
	StatusStore StatusStoreConfig
	Events      EventsConfig
	Management  ManagementConfig
}

type MetricsConfig struct {
	Port uint16 `validate:"required"`
	// How often queue gauges are refreshed
	RefreshInterval time.Duration `validate:"required"`
}

type QueueConfig struct {
	// Maximum number of queued jobs. May be changed while the node runs
	MaxCapacity int `validate:"gt=0"`
}

type ExecutionConfig struct {
	Workers int `validate:"gt=0"`
	// Retries of jobs submitted without an explicit retry budget
	DefaultRetryOnFail int `validate:"gte=0"`
	// How long results of finished jobs can still be fetched by other nodes
	ResultRetention time.Duration
}

type StatusStoreConfig struct {
	// Either memory or redis
	Type string `validate:"oneof=memory redis"`
	// How long statuses of finished jobs are kept
	Retention time.Duration `validate:"required"`
	// How often expired statuses are removed
	SweepInterval time.Duration `validate:"required"`
	// Only used if Type is redis
	Redis commonconfig.RedisConfig `validate:"-"`
}

type EventsConfig struct {
	// If false, lifecycle events are not published
	Enabled bool
	Topic   string
	// Only used if Enabled is true
	Pulsar commonconfig.PulsarConfig `validate:"-"`
}

type ManagementConfig struct {
	// Number of job owners on other nodes remembered
	OwnerCacheSize int `validate:"gt=0"`
}

func (c ComputeConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.StatusStore.Type == StatusStoreRedis {
		if err := validate.Struct(c.StatusStore.Redis); err != nil {
			return err
		}
	}
	if c.Events.Enabled {
		if err := validate.Var(c.Events.Topic, "required"); err != nil {
			return err
		}
		if err := validate.Struct(c.Events.Pulsar); err != nil {
			return err
		}
	}
	return nil
}

// Members returns the node and its peers.
func (c ComputeConfig) Members() []placement.ClusterNode {
	return append([]placement.ClusterNode{c.Node}, c.Peers...)
}

// Capacity holds the current maximum queue capacity.
type Capacity struct {
	max atomic.Int64
}

func NewCapacity(max int) *Capacity {
	c := &Capacity{}
	c.Set(max)
	return c
}

func (c *Capacity) Get() int {
	return int(c.max.Load())
}

func (c *Capacity) Set(max int) {
	c.max.Store(int64(max))
}
