package config

import (
	"fmt"
	"net"
)

// Validate reports the first configuration value the node cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.RPCAddress); err != nil {
		return fmt.Errorf("rpc: invalid RPCAddress %q: %w", c.RPCAddress, err)
	}
	switch c.DBBackend {
	case BackendLevelDB:
		if c.DataDir == "" {
			return fmt.Errorf("storage: DataDir required for leveldb backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage: unknown DBBackend %q", c.DBBackend)
	}
	if c.RateLimit.Burst == 0 || c.RateLimit.RequestsPerMinute == 0 {
		return fmt.Errorf("rpc: rate limit must be positive")
	}
	for i, alloc := range c.Genesis {
		if _, _, err := alloc.Parse(); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}
	return nil
}
