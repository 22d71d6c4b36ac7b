// Package config handles application configuration: the remote node to
// sync from, local index tuning, wallet behavior, and logging.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node is the remote full node the index syncs against.
	Node NodeConfig

	// Sync tunes the local index engine.
	Sync SyncConfig

	// Wallet holds signing and funding behavior.
	Wallet WalletConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds remote node connection settings.
type NodeConfig struct {
	// URL is the node's JSON-RPC endpoint.
	URL     string        `conf:"node.url"`
	Timeout time.Duration `conf:"node.timeout"`
}

// SyncConfig holds local index engine settings.
type SyncConfig struct {
	// StartHeight is the first height the index covers.
	StartHeight uint64 `conf:"sync.start"`
	// RollbackWindow is how many recent per-block deltas the index
	// retains for reorg recovery.
	RollbackWindow uint64 `conf:"sync.window"`
	// MaturityWindow is how many blocks reward cells stay unspendable.
	MaturityWindow uint64 `conf:"sync.maturity"`
	// PollInterval is how often the follow loop polls the remote tip.
	PollInterval time.Duration `conf:"sync.poll"`
}

// WalletConfig holds signing and funding settings.
type WalletConfig struct {
	// Selection names the cell selection policy: smallest-first,
	// largest-first, or oldest-first.
	Selection string `conf:"wallet.selection"`
	// FeeRate is the fee in base units per transaction byte.
	FeeRate uint64 `conf:"wallet.feerate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.cellwallet
//	macOS:   ~/Library/Application Support/Cellwallet
//	Windows: %APPDATA%\Cellwallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cellwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cellwallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Cellwallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Cellwallet")
	default:
		return filepath.Join(home, ".cellwallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// IndexDir returns the cell index database directory.
func (c *Config) IndexDir() string {
	return filepath.Join(c.NetworkDataDir(), "index")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "cellwallet.conf")
}
