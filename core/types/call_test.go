package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestCallSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	call := &Call{
		Method:   "createOffer",
		Nonce:    7,
		Args:     json.RawMessage(`{"acceptedToken":"TOKB-222222","acceptedAmount":"50"}`),
		Payments: []Payment{NewPayment("TOKA-111111", 0, big.NewInt(100))},
	}
	require.NoError(t, call.Sign(key))

	from, err := call.From()
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Bytes(), from[:])

	encoded, err := json.Marshal(call)
	require.NoError(t, err)
	var decoded Call
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	recovered, err := decoded.From()
	require.NoError(t, err)
	require.Equal(t, from, recovered)
}

func TestCallTamperingChangesSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	call := &Call{Method: "cancelOffer", Nonce: 1, Args: json.RawMessage(`{"id":1}`)}
	require.NoError(t, call.Sign(key))
	signer, err := call.From()
	require.NoError(t, err)

	tampered := &Call{Method: call.Method, Nonce: call.Nonce, Args: json.RawMessage(`{"id":2}`), R: call.R, S: call.S, V: call.V}
	other, err := tampered.From()
	if err == nil {
		require.NotEqual(t, signer, other)
	}
}

func TestUnsignedCallIsRejected(t *testing.T) {
	_, err := (&Call{Method: "createOffer"}).From()
	require.ErrorIs(t, err, ErrUnsigned)
}

func TestCallRejectsNonCanonicalV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	call := &Call{Method: "cancelOffer", Nonce: 3, Args: json.RawMessage(`{"id":1}`)}
	require.NoError(t, call.Sign(key))
	signer, err := call.From()
	require.NoError(t, err)

	overflow := new(big.Int).Lsh(big.NewInt(1), 64)
	for _, v := range []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(26),
		big.NewInt(29),
		new(big.Int).Add(call.V, big.NewInt(256)),
		new(big.Int).Add(overflow, call.V),
	} {
		aliased := &Call{Method: call.Method, Nonce: call.Nonce, Args: call.Args, R: call.R, S: call.S, V: v}
		_, err := aliased.From()
		require.ErrorIs(t, err, ErrMalformedSignature, "v=%s", v)
	}

	canonical := &Call{Method: call.Method, Nonce: call.Nonce, Args: call.Args, R: call.R, S: call.S, V: new(big.Int).Set(call.V)}
	recovered, err := canonical.From()
	require.NoError(t, err)
	require.Equal(t, signer, recovered)
}
