package bloomd

// Config holds the options the networking core recognizes. Loading it
// from disk (or flags, or environment) is explicitly outside the core's
// responsibility — see cmd/bloomd-netd for a YAML-backed loader.
type Config struct {
	TCPPort       uint16 `yaml:"tcp_port"`
	UDPPort       uint16 `yaml:"udp_port"`
	WorkerThreads uint   `yaml:"worker_threads"`
}

// DefaultConfig returns the configuration a freshly-started core should
// use when nothing more specific was supplied.
func DefaultConfig() Config {
	return Config{
		TCPPort:       8673,
		UDPPort:       8674,
		WorkerThreads: 4,
	}
}

func (c Config) validate() error {
	if c.TCPPort == 0 {
		return newError("InitNetworking", ErrCodeInit, errInvalidConfig("tcp_port must be nonzero"))
	}
	if c.WorkerThreads == 0 {
		return newError("InitNetworking", ErrCodeInit, errInvalidConfig("worker_threads must be nonzero"))
	}
	return nil
}

type errInvalidConfig string

func (e errInvalidConfig) Error() string { return string(e) }
