// Package pulsarutils creates the pulsar client job events are published with.
package pulsarutils

import (
	"strings"

	"github.com/apache/pulsar-client-go/pulsar"
	pulsarlog "github.com/apache/pulsar-client-go/pulsar/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	commonconfig "github.com/G-Research/armada-compute/internal/common/config"
)

// NewPulsarClient connects lazily: no broker is contacted until the first producer is created.
func NewPulsarClient(config *commonconfig.PulsarConfig) (pulsar.Client, error) {
	auth, err := authentication(config)
	if err != nil {
		return nil, err
	}
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:                        config.URL,
		TLSTrustCertsFilePath:      config.TLSTrustCertsFilePath,
		TLSValidateHostname:        config.TLSValidateHostname,
		TLSAllowInsecureConnection: config.TLSAllowInsecureConnection,
		MaxConnectionsPerBroker:    config.MaxConnectionsPerBroker,
		OperationTimeout:           config.SendTimeout,
		Authentication:             auth,
		Logger:                     pulsarlog.NewLoggerWithLogrus(logrus.StandardLogger()),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create pulsar client for %s", config.URL)
	}
	return client, nil
}

// authentication returns nil when authentication is disabled. JWT read from a file is the only supported scheme.
func authentication(config *commonconfig.PulsarConfig) (pulsar.Authentication, error) {
	if !config.AuthenticationEnabled {
		return nil, nil
	}
	switch {
	case !strings.EqualFold(config.AuthenticationType, "jwt"):
		return nil, errors.WithStack(&armadaerrors.ErrInvalidArgument{
			Name:    "pulsar.AuthenticationType",
			Value:   config.AuthenticationType,
			Message: "only jwt authentication is supported",
		})
	case strings.TrimSpace(config.JwtTokenPath) == "":
		return nil, errors.WithStack(&armadaerrors.ErrInvalidArgument{
			Name:    "pulsar.JwtTokenPath",
			Value:   config.JwtTokenPath,
			Message: "jwt authentication requires a token path",
		})
	}
	return pulsar.NewAuthenticationTokenFromFile(config.JwtTokenPath), nil
}
