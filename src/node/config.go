package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters of a Node.
type Config struct {
	// Timeout bounds every outbound request.
	Timeout time.Duration `mapstructure:"timeout"`
	// JoinRetry is the pause between two join attempts.
	JoinRetry time.Duration `mapstructure:"join-retry"`
	// Introducer is the host:port of a node of the graph. Empty for the first
	// node.
	Introducer string `mapstructure:"introducer"`
	// Advertise is the address announced to peers. Empty means the local IPv4
	// address.
	Advertise string `mapstructure:"advertise"`
	Logger    *logrus.Logger
}

// NewConfig ...
func NewConfig(timeout time.Duration,
	joinRetry time.Duration,
	introducer string,
	advertise string,
	logger *logrus.Logger) *Config {

	return &Config{
		Timeout:    timeout,
		JoinRetry:  joinRetry,
		Introducer: introducer,
		Advertise:  advertise,
		Logger:     logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Timeout:   1000 * time.Millisecond,
		JoinRetry: 2000 * time.Millisecond,
		Logger:    logger,
	}
}

// TestConfig returns a config with a test logger that advertises 127.0.0.1.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Advertise = "127.0.0.1"
	config.JoinRetry = 50 * time.Millisecond
	config.Logger = common.NewTestLogger(t)
	return config
}
