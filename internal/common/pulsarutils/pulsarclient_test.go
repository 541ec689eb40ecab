package pulsarutils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	commonconfig "github.com/G-Research/armada-compute/internal/common/config"
)

func TestCreatePulsarClientHappyPath(t *testing.T) {
	client, err := NewPulsarClient(&commonconfig.PulsarConfig{
		URL:                     "pulsar://pulsarhost:50000",
		MaxConnectionsPerBroker: 100,
	})
	require.NoError(t, err)
	client.Close()
}

func TestCreatePulsarClientInvalidAuth(t *testing.T) {
	tests := map[string]commonconfig.PulsarConfig{
		"no auth type": {
			URL:                   "pulsar://pulsarhost:50000",
			AuthenticationEnabled: true,
		},
		"invalid auth type": {
			URL:                   "pulsar://pulsarhost:50000",
			AuthenticationEnabled: true,
			AuthenticationType:    "INVALID",
		},
		"no token": {
			URL:                   "pulsar://pulsarhost:50000",
			AuthenticationEnabled: true,
			AuthenticationType:    "JWT",
		},
	}
	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPulsarClient(&config)
			var invalid *armadaerrors.ErrInvalidArgument
			assert.True(t, errors.As(err, &invalid))
		})
	}
}
