package types

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`^[A-Z0-9]{3,10}(-[0-9a-f]{6})?$`)

// Payment identifies a quantity of a fungible or semi-fungible asset. A zero
// nonce denotes the fungible token itself; any other nonce selects a specific
// sub-unit instance of the token class.
type Payment struct {
	Token  string   `json:"token"`
	Nonce  uint64   `json:"nonce"`
	Amount *big.Int `json:"amount"`
}

// NewPayment returns a payment with a private copy of the amount.
func NewPayment(token string, nonce uint64, amount *big.Int) Payment {
	return Payment{Token: token, Nonce: nonce, Amount: cloneAmount(amount)}
}

// NormalizeToken returns the canonical form of a token identifier: the ticker
// in upper case followed by an optional lower-case six digit hex suffix, e.g.
// "WEGLD-bd4d79".
func NormalizeToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	ticker, suffix, hasSuffix := strings.Cut(trimmed, "-")
	normalized := strings.ToUpper(ticker)
	if hasSuffix {
		normalized += "-" + strings.ToLower(suffix)
	}
	if !tokenPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid token identifier %q", token)
	}
	return normalized, nil
}

// Clone returns a deep copy of the payment.
func (p Payment) Clone() Payment {
	return NewPayment(p.Token, p.Nonce, p.Amount)
}

// Positive reports whether the payment carries a strictly positive amount.
func (p Payment) Positive() bool {
	return p.Amount != nil && p.Amount.Sign() > 0
}

// Equal reports whether both payments name the same token, nonce and amount.
func (p Payment) Equal(other Payment) bool {
	if p.Token != other.Token || p.Nonce != other.Nonce {
		return false
	}
	return cloneAmount(p.Amount).Cmp(cloneAmount(other.Amount)) == 0
}

// Normalize validates the payment and returns a copy with a canonical token
// identifier.
func (p Payment) Normalize() (Payment, error) {
	token, err := NormalizeToken(p.Token)
	if err != nil {
		return Payment{}, err
	}
	if p.Amount != nil && p.Amount.Sign() < 0 {
		return Payment{}, fmt.Errorf("negative payment amount %s", p.Amount)
	}
	return NewPayment(token, p.Nonce, p.Amount), nil
}

func (p Payment) String() string {
	if p.Nonce == 0 {
		return fmt.Sprintf("%s %s", cloneAmount(p.Amount), p.Token)
	}
	return fmt.Sprintf("%s %s-%02x", cloneAmount(p.Amount), p.Token, p.Nonce)
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
