// Package config defines the configuration for a skip graph node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. The data
// directory, Config.DataDir, may contain a skipnode.toml (or .json, .yaml)
// file whose values are overridden by command line flags, and holds the badger
// database when persistent storage is enabled.
package config
