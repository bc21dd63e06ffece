package bloomd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().validate())
}

func TestConfigValidateRejectsZeroTCPPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TCPPort = 0
	require.Error(t, cfg.validate())
}

func TestConfigValidateRejectsZeroWorkerThreads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerThreads = 0
	require.Error(t, cfg.validate())
}

func TestConfigValidateAllowsZeroUDPPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UDPPort = 0
	require.NoError(t, cfg.validate(), "UDP is an optional, reserved endpoint")
}
