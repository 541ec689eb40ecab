package compute

import (
	"fmt"
	"net/http"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"k8s.io/utils/clock"

	"github.com/G-Research/armada-compute/internal/common"
	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	grpcCommon "github.com/G-Research/armada-compute/internal/common/grpc"
	"github.com/G-Research/armada-compute/internal/common/health"
	"github.com/G-Research/armada-compute/internal/common/pulsarutils"
	"github.com/G-Research/armada-compute/internal/common/task"
	"github.com/G-Research/armada-compute/internal/compute/classloader"
	"github.com/G-Research/armada-compute/internal/compute/configuration"
	"github.com/G-Research/armada-compute/internal/compute/events"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/management"
	"github.com/G-Research/armada-compute/internal/compute/metrics"
	"github.com/G-Research/armada-compute/internal/compute/placement"
	"github.com/G-Research/armada-compute/internal/compute/registry"
	"github.com/G-Research/armada-compute/internal/compute/splitter"
	"github.com/G-Research/armada-compute/internal/compute/statusstore"
	"github.com/G-Research/armada-compute/internal/compute/transport"
)

const producerAttempts = 3

// Node is a compute node: an executor for local jobs, the job control service other nodes call, and cluster-wide
// management and splitting on top of them.
type Node struct {
	config     configuration.ComputeConfig
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	cluster    *placement.ClusterState
	executor   *execution.Executor
	client     *transport.Client
	management *management.Management
	splitter   *splitter.ClusterSplitter
	units      *classloader.UnitRepository

	// Dependencies the node cannot serve without, reported on /health.
	checks []health.Checker

	// Released in reverse order once the node stops.
	closers []func()
}

// NewNode builds a node from config. Job classes are resolved from system first, then from deployment units.
// The queue capacity is read from capacity on every submission.
func NewNode(
	config configuration.ComputeConfig,
	capacity *configuration.Capacity,
	system *classloader.SystemClasses,
	metricsRegistry *prometheus.Registry,
) (*Node, error) {
	n := &Node{
		config:     config,
		registerer: metricsRegistry,
		// gRPC metrics are registered with the default registry.
		gatherer: prometheus.Gatherers{metricsRegistry, prometheus.DefaultGatherer},
	}
	if err := n.build(capacity, system); err != nil {
		n.close()
		return nil, err
	}
	return n, nil
}

func (n *Node) build(capacity *configuration.Capacity, system *classloader.SystemClasses) error {
	config := n.config

	//////////////////////////////////////////////////////////////////////////
	// Cluster
	//////////////////////////////////////////////////////////////////////////
	cluster, err := placement.NewClusterState(config.Node)
	if err != nil {
		return err
	}
	if err := cluster.SetMembers(config.Members()); err != nil {
		return err
	}
	tables := maps.Keys(config.Partitions)
	slices.Sort(tables)
	for _, table := range tables {
		if err := cluster.AssignPartitions(table, config.Partitions[table]); err != nil {
			return errors.WithMessagef(err, "invalid partitions of table %s", table)
		}
	}
	n.cluster = cluster

	//////////////////////////////////////////////////////////////////////////
	// Job statuses
	//////////////////////////////////////////////////////////////////////////
	var store statusstore.Store
	switch config.StatusStore.Type {
	case configuration.StatusStoreRedis:
		log.Infof("Storing job statuses in redis at %v", config.StatusStore.Redis.Addrs)
		redisClient := redis.NewUniversalClient(config.StatusStore.Redis.AsUniversalOptions())
		n.closers = append(n.closers, func() {
			if err := redisClient.Close(); err != nil {
				log.WithError(errors.WithStack(err)).Warn("Redis client didn't close down cleanly")
			}
		})
		n.checks = append(n.checks, health.CheckFunc(func() error {
			return errors.WithMessage(redisClient.Ping().Err(), "status store unreachable")
		}))
		store = statusstore.NewRedisStore(redisClient)
	default:
		store = statusstore.NewMemoryStore(config.StatusStore.SweepInterval)
	}
	jobRegistry := registry.New(config.Node.Name, store, config.StatusStore.Retention, clock.RealClock{})

	//////////////////////////////////////////////////////////////////////////
	// Events
	//////////////////////////////////////////////////////////////////////////
	publisher, err := n.createPublisher()
	if err != nil {
		return err
	}
	n.closers = append(n.closers, publisher.Close)

	//////////////////////////////////////////////////////////////////////////
	// Execution
	//////////////////////////////////////////////////////////////////////////
	computeMetrics, err := metrics.New(n.registerer)
	if err != nil {
		return err
	}
	n.units = classloader.NewUnitRepository()
	n.executor = execution.NewExecutor(
		config.Node.Name,
		execution.Config{
			Workers:            config.Execution.Workers,
			DefaultRetryOnFail: config.Execution.DefaultRetryOnFail,
			ResultRetention:    config.Execution.ResultRetention,
		},
		capacity.Get,
		jobRegistry,
		system,
		n.units,
		clock.RealClock{},
		computeMetrics,
		publisher,
	)

	//////////////////////////////////////////////////////////////////////////
	// Cluster-wide control
	//////////////////////////////////////////////////////////////////////////
	n.client = transport.NewClient(cluster, config.Grpc.RequestTimeout)
	n.closers = append(n.closers, func() {
		if err := n.client.Close(); err != nil {
			log.WithError(err).Warn("job control connections didn't close down cleanly")
		}
	})
	n.management, err = management.New(n.executor, n.client, cluster, config.Management.OwnerCacheSize)
	if err != nil {
		return err
	}
	n.splitter = splitter.NewClusterSplitter(cluster, cluster)
	return nil
}

func (n *Node) createPublisher() (events.Publisher, error) {
	if !n.config.Events.Enabled {
		return events.NoopPublisher{}, nil
	}
	log.Infof("Publishing job events to pulsar topic %s", n.config.Events.Topic)
	pulsarClient, err := pulsarutils.NewPulsarClient(&n.config.Events.Pulsar)
	if err != nil {
		return nil, errors.WithMessage(err, "error creating pulsar client")
	}
	n.closers = append(n.closers, pulsarClient.Close)
	// Brokers are often still coming up when a node starts.
	var producer pulsar.Producer
	err = retry.Do(
		func() error {
			producer, err = pulsarClient.CreateProducer(pulsar.ProducerOptions{
				Name:        fmt.Sprintf("compute-%s-%s", n.config.Node.Name, uuid.NewString()),
				Topic:       n.config.Events.Topic,
				SendTimeout: n.config.Events.Pulsar.SendTimeout,
			})
			return err
		},
		retry.Attempts(producerAttempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.WithError(err).Warnf("failed to create pulsar producer (attempt %d of %d)", attempt+1, producerAttempts)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating pulsar producer for topic %s", n.config.Events.Topic)
	}
	return events.NewPulsarPublisher(producer), nil
}

func (n *Node) close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
	n.closers = nil
}

func (n *Node) Executor() *execution.Executor {
	return n.executor
}

func (n *Node) Management() *management.Management {
	return n.management
}

func (n *Node) Splitter() *splitter.ClusterSplitter {
	return n.splitter
}

func (n *Node) Units() *classloader.UnitRepository {
	return n.units
}

func (n *Node) Cluster() *placement.ClusterState {
	return n.cluster
}

// Run serves job control, runs jobs and maintains statuses until ctx is cancelled. Queued jobs are cancelled on
// the way out.
func (n *Node) Run(ctx *armadacontext.Context) error {
	defer n.close()
	config := n.config
	g, ctx := armadacontext.ErrGroup(ctx)

	//////////////////////////////////////////////////////////////////////////
	// Health checks and metrics
	//////////////////////////////////////////////////////////////////////////
	mux := http.NewServeMux()
	startupCompleteCheck := health.NewStartupCompleteChecker()
	health.SetupHttpMux(mux, health.NewMultiChecker(append([]health.Checker{startupCompleteCheck}, n.checks...)...))
	mux.Handle("/metrics", promhttp.HandlerFor(n.gatherer, promhttp.HandlerOpts{}))
	shutdownHttpServer := common.ServeHttp(config.Metrics.Port, mux)
	defer shutdownHttpServer()

	// Services are started together once everything has been set up.
	var services []func() error

	//////////////////////////////////////////////////////////////////////////
	// Job control api
	//////////////////////////////////////////////////////////////////////////
	grpcServer := grpcCommon.CreateGrpcServer(config.Grpc.KeepaliveParams, config.Grpc.KeepaliveEnforcementPolicy, ctx.Log)
	transport.RegisterJobControlServer(grpcServer, transport.NewServer(n.executor))
	served, err := grpcCommon.Listen(config.Grpc.Port, grpcServer, ctx.Log)
	if err != nil {
		return err
	}
	services = append(services, func() error { return <-served })
	services = append(services, grpcCommon.CreateShutdownHandler(ctx, config.Grpc.ShutdownGracePeriod, grpcServer))

	//////////////////////////////////////////////////////////////////////////
	// Execution
	//////////////////////////////////////////////////////////////////////////
	services = append(services, func() error { return n.executor.Run(ctx) })

	taskManager := task.NewBackgroundTaskManager("compute_", n.registerer)
	taskManager.Register(func() { n.executor.SweepStatuses(ctx) }, config.StatusStore.SweepInterval, "status_sweep")
	taskManager.Register(n.executor.ReportMetrics, config.Metrics.RefreshInterval, "queue_metrics")
	defer func() {
		if timedOut := taskManager.StopAll(5 * time.Second); timedOut {
			log.Warn("background tasks didn't stop in time")
		}
	}()

	for _, service := range services {
		g.Go(service)
	}
	startupCompleteCheck.MarkComplete()
	ctx.Log.Infof("Compute node %s started with %d members", config.Node.Name, len(n.cluster.AllMembers()))

	return g.Wait()
}
