package commands

import (
	"os"

	"github.com/mosaicnetworks/skipgraph/src/config"
	"github.com/mosaicnetworks/skipgraph/src/skipnode"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"golang.org/x/term"
)

//NewRunCmd returns the command that starts a skip graph node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(cmd *cobra.Command, args []string) error {
	sn := skipnode.NewSkipNode(_config)

	if err := sn.Init(); err != nil {
		_config.Logger().Error("Cannot initialize node:", err)
		return err
	}

	sn.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")

	// Network
	cmd.Flags().IntP("port", "p", _config.Port, "Listen port for the underlay (0 picks a free port)")
	cmd.Flags().StringP("listen", "l", _config.BindHost, "Listen host for the underlay")
	cmd.Flags().StringP("advertise", "a", _config.Advertise, "Advertise host for the underlay")
	cmd.Flags().DurationP("timeout", "t", _config.Timeout, "Request timeout")
	cmd.Flags().Duration("join-retry", _config.JoinRetry, "Time between join attempts")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Graph
	cmd.Flags().Int("max-levels", _config.MaxLevels, "Number of name id bits")
	cmd.Flags().Int64("num-id", _config.NumID, "Numeric id (derived when 0)")
	cmd.Flags().String("name-id", _config.NameID, "Binary name id (derived when empty)")
	cmd.Flags().Bool("first-node", _config.FirstNode, "Start a new graph")
	cmd.Flags().StringP("introducer", "i", _config.Introducer, "host:port of a node to join through")

	// Discovery
	cmd.Flags().StringSlice("etcd", _config.Etcd, "etcd endpoints for registration and discovery")
	cmd.Flags().Int64("etcd-ttl", _config.EtcdTTL, "etcd lease in seconds")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.SetLogger(newLogger())

	logFields := logrus.Fields{
		"DataDir":     _config.DataDir,
		"Port":        _config.Port,
		"BindHost":    _config.BindHost,
		"Advertise":   _config.Advertise,
		"ServiceAddr": _config.ServiceAddr,
		"NoService":   _config.NoService,
		"MaxPool":     _config.MaxPool,
		"MaxLevels":   _config.MaxLevels,
		"NumID":       _config.NodeNumID(),
		"NameID":      _config.NodeNameID(),
		"FirstNode":   _config.FirstNode,
		"Introducer":  _config.Introducer,
		"Etcd":        _config.Etcd,
		"Timeout":     _config.Timeout,
		"JoinRetry":   _config.JoinRetry,
		"Store":       _config.Store,
		"LogLevel":    _config.LogLevel,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/skipnode.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile) // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir)          // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// newLogger builds the node logger: prefixed text on stderr, colored only on
// a terminal, and mirrored to --log-file when set.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(_config.LogLevel)
	logger.Formatter = &prefixed.TextFormatter{
		DisableColors: !term.IsTerminal(int(os.Stderr.Fd())),
	}

	if _config.LogFile == "" {
		return logger
	}

	f, err := os.OpenFile(_config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.Infof("Failed to open %s, using default stderr", _config.LogFile)
		return logger
	}
	f.Close()

	pathMap := lfshook.PathMap{}
	for _, level := range logrus.AllLevels {
		pathMap[level] = _config.LogFile
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
