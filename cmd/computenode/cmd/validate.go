package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func validateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validateConfig",
		Short: "Checks the configuration without starting the node",
		RunE: func(_ *cobra.Command, _ []string) error {
			config, _, err := loadConfig()
			if err != nil {
				return err
			}
			log.Infof("Configuration of node %s with %d peers is valid", config.Node.Name, len(config.Peers))
			return nil
		},
	}
	return cmd
}
