package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUnsigned is returned when a call carries no signature.
	ErrUnsigned = errors.New("call: missing signature")
	// ErrMalformedSignature is returned for signature values outside the
	// canonical R, S and V ranges.
	ErrMalformedSignature = errors.New("call: malformed signature")
)

// Call is a signed invocation of a contract endpoint. Payments lists the
// assets the caller bundles with the invocation; the host moves them into the
// contract's custody before the endpoint runs.
type Call struct {
	Method   string          `json:"method"`
	Nonce    uint64          `json:"nonce"`
	Args     json.RawMessage `json:"args,omitempty"`
	Payments []Payment       `json:"payments,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *[20]byte
}

// Hash returns the digest covered by the caller's signature.
func (c *Call) Hash() ([]byte, error) {
	callData := struct {
		Method   string
		Nonce    uint64
		Args     json.RawMessage
		Payments []Payment
	}{c.Method, c.Nonce, c.Args, c.Payments}

	b, err := json.Marshal(callData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

// Sign signs the call with the caller's secp256k1 key.
func (c *Call) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	c.R = new(big.Int).SetBytes(sig[:32])
	c.S = new(big.Int).SetBytes(sig[32:64])
	c.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	c.from = nil
	return nil
}

// From recovers the address that signed the call.
func (c *Call) From() ([20]byte, error) {
	if c.from != nil {
		return *c.from, nil
	}
	if c.R == nil || c.S == nil || c.V == nil {
		return [20]byte{}, ErrUnsigned
	}
	hash, err := c.Hash()
	if err != nil {
		return [20]byte{}, err
	}
	rBytes, sBytes := c.R.Bytes(), c.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 {
		return [20]byte{}, ErrMalformedSignature
	}
	if !c.V.IsUint64() || (c.V.Uint64() != 27 && c.V.Uint64() != 28) {
		return [20]byte{}, ErrMalformedSignature
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(c.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return [20]byte{}, err
	}
	var addr [20]byte
	copy(addr[:], crypto.PubkeyToAddress(*pubKey).Bytes())
	c.from = &addr
	return addr, nil
}

// Receipt summarises a successfully executed call.
type Receipt struct {
	Height  uint64   `json:"height"`
	Method  string   `json:"method"`
	Caller  [20]byte `json:"-"`
	OfferID *uint64  `json:"offerId,omitempty"`
	Events  []Event  `json:"events"`
}
