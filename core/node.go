package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "escrowsc/core/errors"
	"escrowsc/core/events"
	nhbstate "escrowsc/core/state"
	"escrowsc/core/types"
	"escrowsc/crypto"
	nativecommon "escrowsc/native/common"
	"escrowsc/native/offers"
	"escrowsc/observability"
	"escrowsc/storage"
	"escrowsc/storage/trie"
)

var (
	headKey = []byte("escrow/head")

	custodyAddress = func() [20]byte {
		var addr [20]byte
		copy(addr[:], ethcrypto.Keccak256([]byte("escrow/offers/custody"))[12:])
		return addr
	}()
)

// CustodyAddress returns the account holding every offered payment while its
// offer is open.
func CustodyAddress() [20]byte { return custodyAddress }

// Allocation credits a balance when the node initialises an empty database.
type Allocation struct {
	Address [20]byte
	Payment types.Payment
}

type head struct {
	Root   common.Hash
	Height uint64
}

// Option customises a Node.
type Option func(*Node)

// WithLogger sets the structured logger used for call outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEmitter sets the sink receiving the events of committed calls.
func WithEmitter(emitter events.Emitter) Option {
	return func(n *Node) {
		if emitter != nil {
			n.emitter = emitter
		}
	}
}

// WithPauses sets the pause view consulted by the offer engine.
func WithPauses(p nativecommon.PauseView) Option {
	return func(n *Node) { n.pauses = p }
}

// WithGenesis lists the balances minted when the database is empty. It is
// ignored when the database already holds a committed state.
func WithGenesis(allocs []Allocation) Option {
	return func(n *Node) { n.genesis = append([]Allocation(nil), allocs...) }
}

// Node executes offer calls one at a time. Every call either commits all of
// its writes or none of them.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	trie    *trie.Trie
	state   *nhbstate.Manager
	engine  *offers.Engine
	emitter events.Emitter
	pauses  nativecommon.PauseView
	genesis []Allocation
	height  uint64
	logger  *slog.Logger
	metrics *observability.OffersMetrics
}

// NewNode opens the contract state stored in db. An empty database is
// initialised with the genesis allocations.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	n := &Node{
		db:      db,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: observability.Offers(),
	}
	for _, opt := range opts {
		opt(n)
	}

	stored, found, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if found {
		root = stored.Root.Bytes()
		n.height = stored.Height
	}
	n.trie, err = trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("node: open state: %w", err)
	}
	if err := nhbstate.EnsureStateVersion(n.trie); err != nil {
		return nil, err
	}
	n.state = nhbstate.NewManager(n.trie)
	n.engine = offers.NewEngine()
	n.engine.SetState(n.state)
	n.engine.SetPauses(n.pauses)

	if !found {
		if err := n.initGenesis(); err != nil {
			return nil, err
		}
	}
	if open, err := n.state.OpenOfferCount(); err == nil {
		n.metrics.SetOpen(open)
	}
	return n, nil
}

func (n *Node) initGenesis() error {
	if err := n.state.SetStateVersion(nhbstate.StateVersion); err != nil {
		return err
	}
	for _, alloc := range n.genesis {
		if err := n.state.Mint(alloc.Address, alloc.Payment); err != nil {
			n.trie.Reset(n.trie.Root())
			return fmt.Errorf("node: genesis allocation for %s: %w", crypto.AddressFromArray(alloc.Address), err)
		}
	}
	if err := n.commit(0); err != nil {
		return err
	}
	n.logger.Info("genesis state initialised", "allocations", len(n.genesis), "root", n.trie.Root().Hex())
	return nil
}

func loadHead(db storage.Database) (head, bool, error) {
	data, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return head{}, false, nil
	}
	if err != nil {
		return head{}, false, err
	}
	var stored head
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return head{}, false, fmt.Errorf("node: decode head: %w", err)
	}
	return stored, true, nil
}

func (n *Node) commit(height uint64) error {
	root, err := n.trie.Commit(n.trie.Root(), height)
	if err != nil {
		return fmt.Errorf("node: commit state: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(head{Root: root, Height: height})
	if err != nil {
		return err
	}
	if err := n.db.Put(headKey, encoded); err != nil {
		return fmt.Errorf("node: persist head: %w", err)
	}
	n.height = height
	return nil
}

// Execute authenticates and runs a signed call. The attached payments are
// moved into custody before the endpoint runs; if anything fails, every write
// of the call is discarded and no event is published.
func (n *Node) Execute(ctx context.Context, call *types.Call) (*types.Receipt, error) {
	if call == nil {
		return nil, coreerrors.ErrNilCall
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caller, err := call.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidSignature, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	receipt, err := n.execute(caller, call)
	n.metrics.RecordCall(call.Method, err, ClassifyError, time.Since(start))

	logger := n.logger.With("method", call.Method, "caller", crypto.AddressFromArray(caller).String())
	if err != nil {
		logger.Warn("call rejected", "error", err)
		return nil, err
	}
	if receipt.OfferID != nil {
		logger = logger.With("offerId", *receipt.OfferID)
	}
	logger.Info("call executed", "height", receipt.Height, "events", len(receipt.Events))
	return receipt, nil
}

func (n *Node) execute(caller [20]byte, call *types.Call) (*types.Receipt, error) {
	buffer := events.NewBuffer()
	n.engine.SetEmitter(buffer)
	defer n.engine.SetEmitter(nil)

	// commit advances the trie root before the head record is written.
	parent := n.trie.Root()
	offerID, err := n.apply(caller, call)
	if err == nil {
		err = n.commit(n.height + 1)
	}
	if err != nil {
		buffer.Discard()
		if resetErr := n.trie.Reset(parent); resetErr != nil {
			return nil, errors.Join(err, resetErr)
		}
		return nil, err
	}

	if open, countErr := n.state.OpenOfferCount(); countErr == nil {
		n.metrics.SetOpen(open)
	}
	return &types.Receipt{
		Height:  n.height,
		Method:  call.Method,
		Caller:  caller,
		OfferID: offerID,
		Events:  buffer.Flush(n.emitter),
	}, nil
}

func (n *Node) apply(caller [20]byte, call *types.Call) (*uint64, error) {
	expected, err := n.state.CallNonce(caller)
	if err != nil {
		return nil, err
	}
	if call.Nonce != expected {
		return nil, fmt.Errorf("%w: have %d, want %d", coreerrors.ErrInvalidNonce, call.Nonce, expected)
	}
	if len(call.Payments) > 0 && !offers.Payable(call.Method) {
		return nil, offers.ErrUnexpectedPayment
	}

	payments := make([]types.Payment, 0, len(call.Payments))
	for _, attached := range call.Payments {
		normalized, err := attached.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidPayment, err)
		}
		if normalized.Positive() {
			if err := n.state.Transfer(caller, CustodyAddress(), normalized); err != nil {
				return nil, err
			}
		}
		payments = append(payments, normalized)
	}

	offerID, err := n.dispatch(&callContext{state: n.state, caller: caller, payments: payments}, call)
	if err != nil {
		return nil, err
	}
	if err := n.state.IncrementCallNonce(caller); err != nil {
		return nil, err
	}
	return offerID, nil
}

// Offer returns the open offer stored under id.
func (n *Node) Offer(id uint64) (*offers.Offer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Offer(id)
}

// LastOfferID returns the most recently allocated offer id.
func (n *Node) LastOfferID() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.LastOfferID()
}

// Balance returns the holdings of addr in the given token and nonce.
func (n *Node) Balance(addr [20]byte, token string, nonce uint64) (*types.Payment, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	normalized, err := types.NormalizeToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", offers.ErrInvalidToken, err)
	}
	amount, err := n.state.Balance(addr, normalized, nonce)
	if err != nil {
		return nil, err
	}
	payment := types.NewPayment(normalized, nonce, amount)
	return &payment, nil
}

// Nonce returns the nonce the next call signed by addr must carry.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.CallNonce(addr)
}

// Height returns the number of committed calls.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// StateRoot returns the root hash of the last committed state.
func (n *Node) StateRoot() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root()
}

var errorLabels = map[error]string{
	offers.ErrNoPaymentAttached:     "no_payment",
	offers.ErrInvalidAcceptedAmount: "invalid_amount",
	offers.ErrOfferNotFound:         "not_found",
	offers.ErrUnauthorized:          "unauthorized",
	offers.ErrPaymentMismatch:       "payment_mismatch",
	offers.ErrUnexpectedPayment:     "unexpected_payment",
	offers.ErrInvalidToken:          "invalid_token",
	nativecommon.ErrModulePaused:    "paused",
	nhbstate.ErrInsufficientBalance: "transfer_failed",
	coreerrors.ErrInvalidNonce:      "invalid_nonce",
	coreerrors.ErrInvalidSignature:  "invalid_signature",
	coreerrors.ErrInvalidArgs:       "invalid_args",
	coreerrors.ErrInvalidPayment:    "invalid_payment",
	coreerrors.ErrUnknownMethod:     "unknown_method",
}

// ClassifyError maps a call failure to a stable metrics label.
func ClassifyError(err error) string {
	if label := observability.ErrorLabel(err, errorLabels); label != "" {
		return label
	}
	return "error"
}
