package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowsc/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "escrow.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, BackendLevelDB, cfg.DBBackend)
	require.Equal(t, uint32(600), cfg.RateLimit.RequestsPerMinute)
	require.FileExists(t, path)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.DataDir, reloaded.DataDir)
}

func TestLoadParsesGenesis(t *testing.T) {
	alice := crypto.AddressFromArray([20]byte{0x0A}).String()
	path := filepath.Join(t.TempDir(), "escrow.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DBBackend = "Memory"
PausedModules = ["offers"]

[RateLimit]
RequestsPerMinute = 30
Burst = 5

[[Genesis]]
Address = "` + alice + `"
Token = "toka-111111"
Amount = "100"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.DBBackend)
	require.Equal(t, []string{"offers"}, cfg.PausedModules)
	require.Equal(t, uint32(5), cfg.RateLimit.Burst)
	require.Len(t, cfg.Genesis, 1)

	addr, payment, err := cfg.Genesis[0].Parse()
	require.NoError(t, err)
	require.Equal(t, [20]byte{0x0A}, addr)
	require.Equal(t, "TOKA-111111", payment.Token)
	require.Equal(t, int64(100), payment.Amount.Int64())
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg
	}

	cfg := base()
	cfg.RPCAddress = "nope"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.DBBackend = "postgres"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Genesis = []GenesisAllocation{{Address: "esc1invalid", Token: "TOKA", Amount: "1"}}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Genesis = []GenesisAllocation{{
		Address: crypto.AddressFromArray([20]byte{1}).String(),
		Token:   "TOKA",
		Amount:  "-5",
	}}
	require.Error(t, cfg.Validate())

	require.NoError(t, base().Validate())
}
