package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/crypto"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigFile is the base name of the optional configuration file in
	// the data directory.
	DefaultConfigFile = "skipnode"
)

// Default configuration values.
const (
	DefaultLogLevel    = "debug"
	DefaultPort        = 1337
	DefaultBindHost    = ""
	DefaultServiceAddr = "127.0.0.1:8000"
	DefaultMaxLevels   = 16
	DefaultTimeout     = 1000 * time.Millisecond
	DefaultJoinRetry   = 2000 * time.Millisecond
	DefaultMaxPool     = 2
	DefaultStore       = false
	DefaultEtcdTTL     = 10
)

// Config contains all the configuration properties of a skip graph node.
type Config struct {
	// DataDir is the top-level directory containing the configuration file and
	// the database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, mirrors the log output to this file.
	LogFile string `mapstructure:"log-file"`

	// Port is where the underlay listens. 0 lets the system choose.
	Port int `mapstructure:"port"`

	// BindHost is the interface the underlay listens on. Empty means all
	// interfaces.
	BindHost string `mapstructure:"listen"`

	// Advertise is the address announced to other nodes. Empty means the local
	// IPv4 address of the host.
	Advertise string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxLevels is L: lookup tables have L+1 levels and name ids at most L
	// bits.
	MaxLevels int `mapstructure:"max-levels"`

	// NumID is the numeric id of this node. 0 derives one from the host name,
	// the port and the data directory.
	NumID int64 `mapstructure:"num-id"`

	// NameID is the name id of this node. Empty derives one from NumID.
	NameID string `mapstructure:"name-id"`

	// FirstNode starts a new graph; Introducer and Etcd are ignored.
	FirstNode bool `mapstructure:"first-node"`

	// Introducer is the host:port of a node of the graph to join through.
	Introducer string `mapstructure:"introducer"`

	// Etcd lists etcd endpoints used to register this node and to find an
	// introducer when none is given.
	Etcd []string `mapstructure:"etcd"`

	// EtcdTTL is the lease of the etcd registration, in seconds.
	EtcdTTL int64 `mapstructure:"etcd-ttl"`

	// Timeout bounds every underlay request.
	Timeout time.Duration `mapstructure:"timeout"`

	// JoinRetry is the pause between join attempts.
	JoinRetry time.Duration `mapstructure:"join-retry"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:     DefaultDataDir(),
		LogLevel:    DefaultLogLevel,
		Port:        DefaultPort,
		BindHost:    DefaultBindHost,
		ServiceAddr: DefaultServiceAddr,
		MaxLevels:   DefaultMaxLevels,
		EtcdTTL:     DefaultEtcdTTL,
		Timeout:     DefaultTimeout,
		JoinRetry:   DefaultJoinRetry,
		MaxPool:     DefaultMaxPool,
		Store:       DefaultStore,
		DatabaseDir: DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// NodeNumID returns NumID, or a value derived from the host name, the port
// and the data directory when NumID is 0.
func (c *Config) NodeNumID() int64 {
	if c.NumID != 0 {
		return c.NumID
	}
	host, _ := os.Hostname()
	seed := host + ":" + strconv.Itoa(c.Port) + ":" + c.DataDir
	return common.PositiveID([]byte(seed))
}

// NodeNameID returns NameID, or the first MaxLevels bits of the SHA256 of the
// numeric id when NameID is empty.
func (c *Config) NodeNameID() string {
	if c.NameID != "" {
		return c.NameID
	}
	return skipgraph.NameIDFromBytes(crypto.IDHash(c.NodeNumID()), c.MaxLevels)
}

// Logger returns a formatted logrus Entry, with prefix set to "skipgraph".
func (c *Config) Logger() *logrus.Entry {
	return c.BaseLogger().WithField("prefix", "skipgraph")
}

// BaseLogger returns the underlying logrus Logger, creating it with the
// configured level and the prefixed formatter if needed.
func (c *Config) BaseLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger
}

// SetLogger replaces the logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".SkipGraph")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "SkipGraph")
		} else {
			return filepath.Join(home, ".skipgraph")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
