package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DB backends accepted by DBBackend.
const (
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

type Config struct {
	RPCAddress    string              `toml:"RPCAddress"`
	DataDir       string              `toml:"DataDir"`
	DBBackend     string              `toml:"DBBackend"`
	LogFile       string              `toml:"LogFile"`
	Env           string              `toml:"Env"`
	PausedModules []string            `toml:"PausedModules"`
	RateLimit     RateLimit           `toml:"RateLimit"`
	Telemetry     Telemetry           `toml:"Telemetry"`
	IndexDSN      string              `toml:"IndexDSN"`
	Genesis       []GenesisAllocation `toml:"Genesis"`
}

// Load loads the configuration from the given path. A default configuration is
// written when the file does not exist yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./escrow-data"
	}
	if strings.TrimSpace(c.DBBackend) == "" {
		c.DBBackend = BackendLevelDB
	}
	c.DBBackend = strings.ToLower(strings.TrimSpace(c.DBBackend))
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 600
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 60
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Genesis = []GenesisAllocation{}

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
