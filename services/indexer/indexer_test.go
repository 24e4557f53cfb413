package indexer

import (
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowsc/core"
	"escrowsc/core/types"
	"escrowsc/crypto"
	"escrowsc/native/offers"
	"escrowsc/storage"
)

func newTestIndexer(t *testing.T, path string) *Indexer {
	t.Helper()
	db, err := Open(path)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	idx, err := New(db, nil)
	require.NoError(t, err)
	return idx
}

func TestRecordAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx := newTestIndexer(t, path)

	require.NoError(t, idx.Record(offers.EventTypeOfferCreated, map[string]string{"id": "1", "creator": "aa"}))
	require.NoError(t, idx.Record(offers.EventTypeOfferCreated, map[string]string{"id": "2", "creator": "aa"}))
	require.NoError(t, idx.Record(offers.EventTypeOfferAccepted, map[string]string{"id": "1", "creator": "aa", "accepter": "bb"}))
	require.NoError(t, idx.Record("other", map[string]string{"note": "no id"}))
	require.Error(t, idx.Record(offers.EventTypeOfferCreated, map[string]string{"id": "x"}))

	history, err := idx.History(1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, offers.EventTypeOfferCreated, history[0].Type)
	require.Equal(t, offers.EventTypeOfferAccepted, history[1].Type)
	require.Equal(t, "bb", history[1].Accepter)
	require.Less(t, history[0].Sequence, history[1].Sequence)

	attrs, err := history[1].Decode()
	require.NoError(t, err)
	require.Equal(t, "1", attrs["id"])

	reopened := newTestIndexer(t, path)
	require.Equal(t, uint64(3), reopened.sequence)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
	_, err = New(nil, nil)
	require.Error(t, err)
}

func TestIndexesCommittedNodeEvents(t *testing.T) {
	idx := newTestIndexer(t, filepath.Join(t.TempDir(), "index.db"))

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	creator := key.PubKey().Address().Array()

	db := storage.NewMemDB()
	defer db.Close()
	node, err := core.NewNode(db,
		core.WithEmitter(idx),
		core.WithGenesis([]core.Allocation{{Address: creator, Payment: types.NewPayment("TOKA-111111", 0, big.NewInt(10))}}),
	)
	require.NoError(t, err)

	send := func(nonce uint64, method string, args interface{}, payments ...types.Payment) error {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		call := &types.Call{Method: method, Nonce: nonce, Args: raw, Payments: payments}
		require.NoError(t, call.Sign(key.PrivateKey))
		_, err = node.Execute(context.Background(), call)
		return err
	}

	require.NoError(t, send(0, offers.MethodCreateOffer,
		core.CreateOfferArgs{AcceptedToken: "TOKB-222222", AcceptedAmount: "5"},
		types.NewPayment("TOKA-111111", 0, big.NewInt(10))))
	require.Error(t, send(1, offers.MethodCancelOffer, core.OfferIDArgs{ID: 2}))
	require.NoError(t, send(1, offers.MethodCancelOffer, core.OfferIDArgs{ID: 1}))

	history, err := idx.History(1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, offers.EventTypeOfferCreated, history[0].Type)
	require.Equal(t, offers.EventTypeOfferCancelled, history[1].Type)

	missing, err := idx.History(2)
	require.NoError(t, err)
	require.Empty(t, missing)
}
