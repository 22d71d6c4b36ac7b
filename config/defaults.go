package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			URL:     "http://127.0.0.1:8545",
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			StartHeight:    0,
			RollbackWindow: 256,
			MaturityWindow: 16,
			PollInterval:   10 * time.Second,
		},
		Wallet: WalletConfig{
			Selection: "smallest-first",
			FeeRate:   1,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Node.URL = "http://127.0.0.1:8645"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
