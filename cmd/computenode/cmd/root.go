package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/G-Research/armada-compute/internal/common"
	"github.com/G-Research/armada-compute/internal/compute/configuration"
)

const CustomConfigLocation string = "config"

// Directory holding the base config.yaml, relative to the working directory.
var defaultConfigPath = "./config/computenode"

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "computenode",
		SilenceUsage: true,
		Short:        "Runs and controls compute jobs on a cluster node",
	}

	addConfigFlag(cmd.PersistentFlags())

	cmd.AddCommand(
		runCmd(),
		validateConfigCmd(),
	)

	return cmd
}

func addConfigFlag(flags *pflag.FlagSet) {
	flags.StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	_ = viper.BindPFlag(CustomConfigLocation, flags.Lookup(CustomConfigLocation))
}

func loadConfig() (configuration.ComputeConfig, *viper.Viper, error) {
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	config, v, err := configuration.Load(defaultConfigPath, userSpecifiedConfigs)
	if err != nil {
		return config, nil, err
	}
	common.ConfigureLogging(config.Logging)
	return config, v, nil
}
