package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"escrowsc/cmd/internal/passphrase"
	"escrowsc/crypto"
)

// passphraseFor is swapped out by tests.
var passphraseFor = func() (string, error) {
	return passphrase.NewSource(keyPassEnv).Get()
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr)
	var out string
	fs.StringVar(&out, "out", "caller.keystore", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := passphraseFor()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	account, err := crypto.SaveCallerKey(out, key, pass)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", account, out)
	return 0
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--key is required")
	}
	pass, err := passphraseFor()
	if err != nil {
		return nil, err
	}
	return crypto.LoadCallerKey(path, pass)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	var address, token string
	var nonce uint64
	fs.StringVar(&address, "address", "", "account bech32 address")
	fs.StringVar(&token, "token", "", "token identifier, e.g. WEGLD-bd4d79")
	fs.Uint64Var(&nonce, "nonce", 0, "token unit instance number")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if address == "" {
		return printError(stderr, "--address is required")
	}
	if token == "" {
		return printError(stderr, "--token is required")
	}
	return invoke(stdout, stderr, "escrow_getBalance", map[string]interface{}{
		"address": address,
		"token":   token,
		"nonce":   nonce,
	})
}

func runNonce(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nonce", stderr)
	var address string
	fs.StringVar(&address, "address", "", "account bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if address == "" {
		return printError(stderr, "--address is required")
	}
	return invoke(stdout, stderr, "escrow_getNonce", map[string]string{"address": address})
}

func fetchNonce(address string) (uint64, error) {
	result, rpcErr, err := rpcCall("escrow_getNonce", map[string]string{"address": address})
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("RPC error %d: %s", rpcErr.Code, rpcErr.Message)
	}
	var nonce uint64
	if err := json.Unmarshal(result, &nonce); err != nil {
		return 0, fmt.Errorf("decode nonce: %w", err)
	}
	return nonce, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
