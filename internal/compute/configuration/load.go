package configuration

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/G-Research/armada-compute/internal/common"
	commonconfig "github.com/G-Research/armada-compute/internal/common/config"
)

// Load reads the configuration from config.yaml in defaultPath merged with overrides and validates it.
func Load(defaultPath string, overrides []string) (ComputeConfig, *viper.Viper, error) {
	var config ComputeConfig
	v, err := common.LoadConfig(&config, defaultPath, overrides, commonconfig.DecodeHooks())
	if err != nil {
		return config, nil, err
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, nil, err
	}
	return config, v, nil
}

// WatchCapacity updates capacity whenever the queue capacity in the watched configuration changes.
// Reloaded configurations that fail validation are ignored.
func WatchCapacity(v *viper.Viper, capacity *Capacity) {
	var reloaded ComputeConfig
	common.WatchConfig(v, &reloaded, func() {
		if err := reloaded.Validate(); err != nil {
			commonconfig.LogValidationErrors(err)
			return
		}
		if max := reloaded.Queue.MaxCapacity; max != capacity.Get() {
			log.Infof("Queue capacity changed from %d to %d", capacity.Get(), max)
			capacity.Set(max)
		}
	}, commonconfig.DecodeHooks())
}
