package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}

	if cfg.Node.URL == "" {
		return fmt.Errorf("node.url is required")
	}
	u, err := url.Parse(cfg.Node.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("node.url must be an http(s) URL")
	}
	if cfg.Node.Timeout < 0 {
		return fmt.Errorf("node.timeout must not be negative")
	}

	if cfg.Sync.RollbackWindow == 0 {
		return fmt.Errorf("sync.window must be at least 1")
	}
	if cfg.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll must be positive")
	}

	switch cfg.Wallet.Selection {
	case "", "smallest-first", "largest-first", "oldest-first":
	default:
		return fmt.Errorf("wallet.selection must be smallest-first, largest-first, or oldest-first")
	}
	if cfg.Wallet.FeeRate == 0 {
		return fmt.Errorf("wallet.feerate must be at least 1")
	}

	return nil
}
