package state

import (
	"errors"
	"fmt"
	"math/big"

	"escrowsc/core/types"
)

var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrInvalidAmount       = errors.New("state: amount must be positive")
)

// Balance returns the holdings of addr in the given token and nonce.
func (m *Manager) Balance(addr [20]byte, token string, nonce uint64) (*big.Int, error) {
	normalized, err := types.NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	return m.loadBalance(addr, normalized, nonce)
}

func (m *Manager) loadBalance(addr [20]byte, token string, nonce uint64) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(balanceKey(addr, token, nonce), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) writeBalance(addr [20]byte, token string, nonce uint64, amount *big.Int) error {
	key := balanceKey(addr, token, nonce)
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

// Mint credits a freshly issued payment to addr. It is only used to seed
// genesis balances.
func (m *Manager) Mint(addr [20]byte, payment types.Payment) error {
	normalized, err := payment.Normalize()
	if err != nil {
		return err
	}
	if !normalized.Positive() {
		return ErrInvalidAmount
	}
	current, err := m.loadBalance(addr, normalized.Token, normalized.Nonce)
	if err != nil {
		return err
	}
	return m.writeBalance(addr, normalized.Token, normalized.Nonce, current.Add(current, normalized.Amount))
}

// Transfer moves payment from one account to another. Both balances are
// written to the staged state; the caller decides whether to commit them.
func (m *Manager) Transfer(from, to [20]byte, payment types.Payment) error {
	normalized, err := payment.Normalize()
	if err != nil {
		return err
	}
	if !normalized.Positive() {
		return ErrInvalidAmount
	}
	fromBal, err := m.loadBalance(from, normalized.Token, normalized.Nonce)
	if err != nil {
		return err
	}
	if fromBal.Cmp(normalized.Amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, normalized)
	}
	if err := m.writeBalance(from, normalized.Token, normalized.Nonce, fromBal.Sub(fromBal, normalized.Amount)); err != nil {
		return err
	}
	toBal, err := m.loadBalance(to, normalized.Token, normalized.Nonce)
	if err != nil {
		return err
	}
	return m.writeBalance(to, normalized.Token, normalized.Nonce, toBal.Add(toBal, normalized.Amount))
}

// CallNonce returns the number of calls addr has successfully executed.
func (m *Manager) CallNonce(addr [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(callNonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// IncrementCallNonce records one more executed call for addr.
func (m *Manager) IncrementCallNonce(addr [20]byte) error {
	nonce, err := m.CallNonce(addr)
	if err != nil {
		return err
	}
	return m.KVPut(callNonceKey(addr), nonce+1)
}
