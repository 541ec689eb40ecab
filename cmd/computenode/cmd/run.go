package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/G-Research/armada-compute/internal/common/app"
	"github.com/G-Research/armada-compute/internal/common/logging"
	"github.com/G-Research/armada-compute/internal/compute"
	"github.com/G-Research/armada-compute/internal/compute/classloader"
	"github.com/G-Research/armada-compute/internal/compute/configuration"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the compute node",
		RunE:  runNode,
	}
	return cmd
}

func runNode(_ *cobra.Command, _ []string) error {
	config, v, err := loadConfig()
	if err != nil {
		return err
	}
	capacity := configuration.NewCapacity(config.Queue.MaxCapacity)
	configuration.WatchCapacity(v, capacity)

	metricsRegistry := prometheus.NewRegistry()
	logHook, err := logging.NewPrometheusHook(metricsRegistry)
	if err != nil {
		return err
	}
	log.AddHook(logHook)

	node, err := compute.NewNode(config, capacity, classloader.NewSystemClasses(), metricsRegistry)
	if err != nil {
		return err
	}
	return node.Run(app.CreateContextWithShutdown())
}
