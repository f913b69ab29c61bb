package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Config carries the settlement engine's deployment parameters.
type Config struct {
	RPCAddress             string   `toml:"RPCAddress"`
	DataDir                string   `toml:"DataDir"`
	Env                    string   `toml:"Env"`
	WithdrawPeriod         int64    `toml:"WithdrawPeriod"`
	MaxFeeRecipients       int      `toml:"MaxFeeRecipients"`
	WhitelistedCollections []string `toml:"WhitelistedCollections"`
	PausedModules          []string `toml:"PausedModules"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if cfg.WithdrawPeriod == 0 {
		cfg.WithdrawPeriod = 7 * 24 * 60 * 60
	}
	if cfg.MaxFeeRecipients == 0 {
		cfg.MaxFeeRecipients = 10
	}
	if cfg.WhitelistedCollections == nil {
		cfg.WhitelistedCollections = []string{}
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that could never produce a working engine.
func (cfg *Config) Validate() error {
	if cfg.WithdrawPeriod < 0 {
		return fmt.Errorf("config: WithdrawPeriod must be non-negative")
	}
	if cfg.MaxFeeRecipients < 0 {
		return fmt.Errorf("config: MaxFeeRecipients must be non-negative")
	}
	if _, err := cfg.AllowList(); err != nil {
		return err
	}
	return nil
}

// AllowList decodes the configured whitelist collection addresses.
func (cfg *Config) AllowList() ([][20]byte, error) {
	out := make([][20]byte, 0, len(cfg.WhitelistedCollections))
	for _, raw := range cfg.WhitelistedCollections {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if !ethcommon.IsHexAddress(trimmed) {
			return nil, fmt.Errorf("config: invalid collection address %q", raw)
		}
		out = append(out, ethcommon.HexToAddress(trimmed))
	}
	return out, nil
}

// Pauses returns the configured module pause set.
func (cfg *Config) Pauses() map[string]bool {
	out := make(map[string]bool, len(cfg.PausedModules))
	for _, module := range cfg.PausedModules {
		trimmed := strings.TrimSpace(module)
		if trimmed != "" {
			out[trimmed] = true
		}
	}
	return out
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:             ":8080",
		DataDir:                "./market-data",
		Env:                    "",
		WithdrawPeriod:         7 * 24 * 60 * 60,
		MaxFeeRecipients:       10,
		WhitelistedCollections: []string{},
		PausedModules:          []string{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
