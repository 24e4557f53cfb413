package config

import (
	"fmt"
	"math/big"
	"strings"

	"escrowsc/core/types"
	"escrowsc/crypto"
)

// RateLimit bounds how many RPC requests a single client may issue.
type RateLimit struct {
	RequestsPerMinute uint32 `toml:"RequestsPerMinute"`
	Burst             uint32 `toml:"Burst"`
}

// Telemetry configures the optional OTLP/HTTP exporters. Headers uses the
// comma-separated key=value form.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// GenesisAllocation seeds an account balance when the node starts on an empty
// database. Amount is a base-10 integer string.
type GenesisAllocation struct {
	Address string `toml:"Address"`
	Token   string `toml:"Token"`
	Nonce   uint64 `toml:"Nonce"`
	Amount  string `toml:"Amount"`
}

// Parse decodes the allocation into the account and payment it credits.
func (g GenesisAllocation) Parse() ([20]byte, types.Payment, error) {
	addr, err := crypto.ParseAccount(g.Address)
	if err != nil {
		return [20]byte{}, types.Payment{}, fmt.Errorf("genesis address %q: %w", g.Address, err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(g.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return [20]byte{}, types.Payment{}, fmt.Errorf("genesis amount %q must be a positive integer", g.Amount)
	}
	payment, err := types.NewPayment(g.Token, g.Nonce, amount).Normalize()
	if err != nil {
		return [20]byte{}, types.Payment{}, fmt.Errorf("genesis token: %w", err)
	}
	return addr, payment, nil
}
