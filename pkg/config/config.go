package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// IndexMode controls how much of the chain the local index tracks.
type IndexMode string

const (
	// IndexModeFull indexes every registration event from genesis.
	IndexModeFull IndexMode = "full"
	// IndexModeMinimal indexes events but skips hydration enrichment.
	IndexModeMinimal IndexMode = "minimal"
	// IndexModeOff disables the local index; sync calls return skipped.
	IndexModeOff IndexMode = "off"
)

// Config represents the full configuration for the launchindex core.
type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Index      IndexConfig      `yaml:"index"`
	Cache      CacheConfig      `yaml:"cache"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LedgerConfig contains chain access configuration.
type LedgerConfig struct {
	RPCEndpoint     string `yaml:"rpc_endpoint"`     // JSON-RPC endpoint of the chain node
	RegistryAddress string `yaml:"registry_address"` // Address of the launchpad registry contract
	GenesisBlock    uint64 `yaml:"genesis_block"`    // First block the registry could have events in
}

// AggregatorConfig contains the batched query backend configuration.
type AggregatorConfig struct {
	// URL is the aggregator's HTTP base URL. Empty means no aggregator is
	// configured and the router goes straight to fallback mode.
	URL string `yaml:"url"`

	// Address is the aggregator helper contract address. The zero address is
	// treated the same as missing.
	Address string `yaml:"address"`

	// ProbeTimeout bounds the availability probe on first use.
	ProbeTimeout time.Duration `yaml:"probe_timeout"` // default: 2s
}

// IndexConfig contains local index storage configuration.
type IndexConfig struct {
	Path string    `yaml:"path"` // SQLite database path; empty means <data_dir>/launchindex.db
	Mode IndexMode `yaml:"mode"` // full, minimal, off
}

// CacheConfig contains per-class TTLs for the query cache.
type CacheConfig struct {
	HomeTTL        time.Duration `yaml:"home_ttl"`        // default: 10s
	CardTTL        time.Duration `yaml:"card_ttl"`        // default: 30s
	PortfolioTTL   time.Duration `yaml:"portfolio_ttl"`   // default: 5s
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl"` // default: 60s
}

// GatewayConfig contains the local HTTP query surface configuration.
type GatewayConfig struct {
	ListenAddress string `yaml:"listen_address"` // default: 127.0.0.1:8480
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Colors     bool   `yaml:"colors"`      // colored console output
	OutputFile string `yaml:"output_file"` // empty for stdout
}

// DefaultConfig returns a config with every field at its default.
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			GenesisBlock: 0,
		},
		Aggregator: AggregatorConfig{
			ProbeTimeout: 2 * time.Second,
		},
		Index: IndexConfig{
			Path: "launchindex.db",
			Mode: IndexModeFull,
		},
		Cache: CacheConfig{
			HomeTTL:        10 * time.Second,
			CardTTL:        30 * time.Second,
			PortfolioTTL:   5 * time.Second,
			LeaderboardTTL: 60 * time.Second,
		},
		Gateway: GatewayConfig{
			ListenAddress: "127.0.0.1:8480",
		},
		Logging: LoggingConfig{
			Colors: true,
		},
	}
}

// LoadFromFile reads a YAML config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := DecodeStrict(f, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistent or missing values.
func (c *Config) Validate() error {
	switch c.Index.Mode {
	case IndexModeFull, IndexModeMinimal, IndexModeOff:
	default:
		return fmt.Errorf("invalid index mode %q (want full, minimal, or off)", c.Index.Mode)
	}

	if c.Aggregator.ProbeTimeout <= 0 {
		return fmt.Errorf("aggregator probe_timeout must be positive, got %s", c.Aggregator.ProbeTimeout)
	}

	for name, ttl := range map[string]time.Duration{
		"home_ttl":        c.Cache.HomeTTL,
		"card_ttl":        c.Cache.CardTTL,
		"portfolio_ttl":   c.Cache.PortfolioTTL,
		"leaderboard_ttl": c.Cache.LeaderboardTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("cache %s must be positive, got %s", name, ttl)
		}
	}

	if c.Aggregator.Address != "" && !strings.HasPrefix(c.Aggregator.Address, "0x") {
		return fmt.Errorf("aggregator address %q is not a hex address", c.Aggregator.Address)
	}

	return nil
}
