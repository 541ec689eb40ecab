package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	commonconfig "github.com/G-Research/armada-compute/internal/common/config"
	"github.com/G-Research/armada-compute/internal/common/logging"
)

const envPrefix = "COMPUTE"

// LoadConfig populates config from config.yaml in defaultPath, then merges every file in overrideConfigs in order,
// then applies COMPUTE_* environment variables. The loaded viper instance is returned so callers can watch it.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string, hooks ...viper.DecoderConfigOption) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading base config path=%s", defaultPath)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", overrideConfig)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if len(hooks) == 0 {
		hooks = []viper.DecoderConfigOption{commonconfig.DecodeHooks()}
	}
	if err := v.Unmarshal(config, hooks...); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

// WatchConfig re-unmarshals config whenever the underlying file changes and calls onChange afterwards.
func WatchConfig(v *viper.Viper, config interface{}, onChange func(), hooks ...viper.DecoderConfigOption) {
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Infof("Config file %s changed (%s), reloading", e.Name, e.Op)
		if err := v.Unmarshal(config, hooks...); err != nil {
			logging.WithStacktrace(log.WithField("file", e.Name), err).Error("failed to reload config")
			return
		}
		onChange()
	})
	v.WatchConfig()
}

// ConfigureLogging sets up the standard logrus logger. Invalid settings fall back to text output at info level.
func ConfigureLogging(c logging.Config) {
	if err := logging.Configure(log.StandardLogger(), os.Stdout, c); err != nil {
		_ = logging.Configure(log.StandardLogger(), os.Stdout, logging.Config{})
		log.WithError(err).Warn("invalid logging config, using defaults")
	}
}

// ServeHttp serves handler on port in the background. The returned function shuts the server down.
func ServeHttp(port uint16, handler http.Handler) (shutdown func()) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Starting http server listening on %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.WithStacktrace(log.WithField("port", port), errors.WithStack(err)).Error("http server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Infof("Stopping http server listening on %d", port)
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("http server did not shut down cleanly")
		}
	}
}
