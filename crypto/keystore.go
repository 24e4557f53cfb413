package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
)

// ErrKeystoreAddressMismatch is returned when the address recorded in a
// keystore file is not the one its decrypted key signs for.
var ErrKeystoreAddressMismatch = errors.New("crypto: keystore address does not match key")

type keystoreHeader struct {
	Address string `json:"address"`
}

// SaveCallerKey encrypts the key that signs escrow calls into a v3 keystore
// file and returns the escrow account it controls. The file is replaced
// atomically and readable by the owner only.
func SaveCallerKey(path string, key *PrivateKey, passphrase string) (Address, error) {
	if key == nil || key.PrivateKey == nil {
		return Address{}, errors.New("crypto: nil private key")
	}
	if strings.TrimSpace(path) == "" {
		return Address{}, errors.New("crypto: empty keystore path")
	}
	account := key.PubKey().Address()
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    account.Array(),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Address{}, err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return Address{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encrypted); err != nil {
		tmp.Close()
		return Address{}, err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return Address{}, err
	}
	if err := tmp.Close(); err != nil {
		return Address{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Address{}, err
	}
	return account, nil
}

// LoadCallerKey decrypts a keystore written by SaveCallerKey. The account
// named in the file must be the one the key signs for, so a call is never
// signed by an account other than the one the operator expects.
func LoadCallerKey(path, passphrase string) (*PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var header keystoreHeader
	if err := json.Unmarshal(keyJSON, &header); err != nil {
		return nil, fmt.Errorf("crypto: parse keystore: %w", err)
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}

	key := &PrivateKey{PrivateKey: decrypted.PrivateKey}
	account := key.PubKey().Address()
	recorded, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(header.Address), "0x"))
	if err != nil || !bytes.Equal(recorded, account.Bytes()) {
		return nil, fmt.Errorf("%w: file names %q, key controls %s", ErrKeystoreAddressMismatch, header.Address, account)
	}
	return key, nil
}
