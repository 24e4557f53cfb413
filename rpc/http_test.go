package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowsc/core"
	"escrowsc/core/types"
	"escrowsc/crypto"
	"escrowsc/native/offers"
	"escrowsc/services/indexer"
	"escrowsc/storage"
)

type testAccount struct {
	key     *crypto.PrivateKey
	addr    [20]byte
	address string
}

func newTestAccount(t *testing.T) testAccount {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()
	return testAccount{key: key, addr: addr.Array(), address: addr.String()}
}

type testEnv struct {
	handler http.Handler
	creator testAccount
	taker   testAccount
}

func newTestEnv(t *testing.T, limit RateLimit) *testEnv {
	t.Helper()
	env := &testEnv{creator: newTestAccount(t), taker: newTestAccount(t)}
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	node, err := core.NewNode(db, core.WithGenesis([]core.Allocation{
		{Address: env.creator.addr, Payment: types.NewPayment("TOKA-111111", 0, big.NewInt(100))},
		{Address: env.taker.addr, Payment: types.NewPayment("TOKB-222222", 0, big.NewInt(50))},
	}))
	require.NoError(t, err)
	env.handler = NewServer(node, ServerConfig{RateLimit: limit}, nil).Handler()
	return env
}

func (env *testEnv) do(t *testing.T, method string, params ...interface{}) (int, RPCResponse) {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: json.RawMessage("1")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func (env *testEnv) signedCall(t *testing.T, from testAccount, nonce uint64, method string, args interface{}, payments ...types.Payment) *types.Call {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	call := &types.Call{Method: method, Nonce: nonce, Args: raw, Payments: payments}
	require.NoError(t, call.Sign(from.key.PrivateKey))
	return call
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error)
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func TestOfferLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t, RateLimit{})

	create := env.signedCall(t, env.creator, 0, offers.MethodCreateOffer, core.CreateOfferArgs{
		AcceptedToken:  "TOKB-222222",
		AcceptedAmount: "50",
		Counterparty:   env.taker.address,
	}, types.NewPayment("TOKA-111111", 0, big.NewInt(100)))
	status, resp := env.do(t, "escrow_submitCall", create)
	require.Equal(t, http.StatusOK, status)
	var receipt ReceiptJSON
	decodeResult(t, resp, &receipt)
	require.Equal(t, env.creator.address, receipt.Caller)
	require.NotNil(t, receipt.OfferID)
	require.Equal(t, uint64(1), *receipt.OfferID)

	_, resp = env.do(t, "escrow_getOffer", offerIDParams{ID: 1})
	var offer OfferJSON
	decodeResult(t, resp, &offer)
	require.Equal(t, env.taker.address, offer.Counterparty)
	require.Equal(t, "100", offer.Offered.Amount)
	require.Equal(t, "TOKB-222222", offer.Accepted.Token)

	short := env.signedCall(t, env.taker, 0, offers.MethodAcceptOffer, core.OfferIDArgs{ID: 1},
		types.NewPayment("TOKB-222222", 0, big.NewInt(40)))
	status, resp = env.do(t, "escrow_submitCall", short)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codePaymentMismatch, resp.Error.Code)

	exact := env.signedCall(t, env.taker, 0, offers.MethodAcceptOffer, core.OfferIDArgs{ID: 1},
		types.NewPayment("TOKB-222222", 0, big.NewInt(50)))
	status, _ = env.do(t, "escrow_submitCall", exact)
	require.Equal(t, http.StatusOK, status)

	status, resp = env.do(t, "escrow_getOffer", offerIDParams{ID: 1})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeOfferNotFound, resp.Error.Code)

	_, resp = env.do(t, "escrow_getBalance", balanceParams{Address: env.taker.address, Token: "toka-111111"})
	var bal BalanceJSON
	decodeResult(t, resp, &bal)
	require.Equal(t, "100", bal.Amount)
	require.Equal(t, "TOKA-111111", bal.Token)

	_, resp = env.do(t, "escrow_lastOfferId")
	var last uint64
	decodeResult(t, resp, &last)
	require.Equal(t, uint64(1), last)

	_, resp = env.do(t, "escrow_getNonce", addressParams{Address: env.taker.address})
	var nonce uint64
	decodeResult(t, resp, &nonce)
	require.Equal(t, uint64(1), nonce)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, RateLimit{})

	cancel := env.signedCall(t, env.creator, 0, offers.MethodCancelOffer, core.OfferIDArgs{ID: 9})
	status, resp := env.do(t, "escrow_submitCall", cancel)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeOfferNotFound, resp.Error.Code)

	noPayment := env.signedCall(t, env.creator, 0, offers.MethodCreateOffer, core.CreateOfferArgs{
		AcceptedToken: "TOKB-222222", AcceptedAmount: "1",
	})
	_, resp = env.do(t, "escrow_submitCall", noPayment)
	require.Equal(t, codeNoPayment, resp.Error.Code)

	zero := env.signedCall(t, env.creator, 0, offers.MethodCreateOffer, core.CreateOfferArgs{
		AcceptedToken: "TOKB-222222", AcceptedAmount: "0",
	}, types.NewPayment("TOKA-111111", 0, big.NewInt(1)))
	_, resp = env.do(t, "escrow_submitCall", zero)
	require.Equal(t, codeInvalidAmount, resp.Error.Code)

	stale := env.signedCall(t, env.creator, 3, offers.MethodCancelOffer, core.OfferIDArgs{ID: 1})
	_, resp = env.do(t, "escrow_submitCall", stale)
	require.Equal(t, codeBadSignature, resp.Error.Code)

	status, resp = env.do(t, "escrow_getBalance", balanceParams{Address: "bogus", Token: "TOKA"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp = env.do(t, "escrow_unknown")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRateLimitAndRequestID(t *testing.T) {
	env := newTestEnv(t, RateLimit{RequestsPerMinute: 1, Burst: 1})

	status, _ := env.do(t, "escrow_lastOfferId")
	require.Equal(t, http.StatusOK, status)
	status, resp := env.do(t, "escrow_lastOfferId")
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t, RateLimit{})

	for _, body := range []string{"", "{", `{"jsonrpc":"1.0","method":"escrow_lastOfferId"}`, `{"jsonrpc":"2.0"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

type stubHistory map[uint64][]indexer.OfferEvent

func (s stubHistory) History(id uint64) ([]indexer.OfferEvent, error) { return s[id], nil }

func TestOfferHistoryRequiresIndex(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	status, _ := env.do(t, "escrow_getOfferHistory", offerIDParams{ID: 1})
	require.Equal(t, http.StatusNotFound, status)

	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	node, err := core.NewNode(db)
	require.NoError(t, err)
	srv := NewServer(node, ServerConfig{}, nil)
	srv.SetHistory(stubHistory{1: {
		{Sequence: 1, OfferID: 1, Type: offers.EventTypeOfferCreated, Attributes: `{"id":"1"}`},
		{Sequence: 4, OfferID: 1, Type: offers.EventTypeOfferCancelled, Attributes: `{"id":"1"}`},
	}})
	env.handler = srv.Handler()

	status, resp := env.do(t, "escrow_getOfferHistory", offerIDParams{ID: 1})
	require.Equal(t, http.StatusOK, status)
	var entries []HistoryEntryJSON
	decodeResult(t, resp, &entries)
	require.Len(t, entries, 2)
	require.Equal(t, offers.EventTypeOfferCancelled, entries[1].Type)
	require.Equal(t, "1", entries[1].Attributes["id"])
}
