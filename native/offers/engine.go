package offers

import (
	"errors"
	"fmt"
	"math/big"

	"escrowsc/core/events"
	"escrowsc/core/types"
	nativecommon "escrowsc/native/common"
)

var (
	ErrNoPaymentAttached     = errors.New("offers: exactly one payment must be attached")
	ErrInvalidAcceptedAmount = errors.New("offers: accepted amount must be positive")
	ErrOfferNotFound         = errors.New("offers: offer not found")
	ErrUnauthorized          = errors.New("offers: unauthorized caller")
	ErrPaymentMismatch       = errors.New("offers: attached payment does not match offer")
	ErrUnexpectedPayment     = errors.New("offers: endpoint does not accept payments")
	ErrInvalidToken          = errors.New("offers: invalid token identifier")

	errNilState = errors.New("offers engine: state not configured")
	errNilCall  = errors.New("offers engine: call context not provided")
)

// Call is the view of the current invocation provided by the host. Transfer
// moves an asset out of the contract's custody; a failed transfer aborts the
// whole call, including every write staged before it.
type Call interface {
	Caller() [20]byte
	AttachedPayments() []types.Payment
	Transfer(to [20]byte, payment types.Payment) error
}

// engineState is the offer store. It performs no validation of its own.
type engineState interface {
	NextOfferID() (uint64, error)
	OfferGet(id uint64) (*Offer, bool, error)
	OfferPut(*Offer) error
	OfferRemove(id uint64) (*Offer, error)
}

type offerEvent struct {
	evt *types.Event
}

func (e offerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e offerEvent) Event() *types.Event { return e.evt }

// Engine is the offer lifecycle state machine. Every offer is either open
// (present in the store, offered payment in custody) or resolved (absent).
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine creates an engine with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses configures the pause view consulted before creating or accepting
// offers.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(offerEvent{evt: event})
}

func (e *Engine) ready(call Call) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if call == nil {
		return errNilCall
	}
	return nil
}

func (e *Engine) loadOffer(id uint64) (*Offer, error) {
	offer, ok, err := e.state.OfferGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// singlePayment returns the one positive payment attached to the call.
func singlePayment(call Call) (types.Payment, bool) {
	payments := call.AttachedPayments()
	if len(payments) != 1 || !payments[0].Positive() {
		return types.Payment{}, false
	}
	return payments[0].Clone(), true
}

// CreateOffer locks the single attached payment in custody and records the
// creator's demand. It returns the freshly allocated offer id.
func (e *Engine) CreateOffer(call Call, acceptedToken string, acceptedNonce uint64, acceptedAmount *big.Int, counterparty Counterparty) (uint64, error) {
	if err := e.ready(call); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	attached, ok := singlePayment(call)
	if !ok {
		return 0, ErrNoPaymentAttached
	}
	offered, err := attached.Normalize()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if acceptedAmount == nil || acceptedAmount.Sign() <= 0 {
		return 0, ErrInvalidAcceptedAmount
	}
	token, err := types.NormalizeToken(acceptedToken)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := e.state.NextOfferID()
	if err != nil {
		return 0, err
	}
	offer, err := SanitizeOffer(&Offer{
		ID:              id,
		Creator:         call.Caller(),
		OfferedPayment:  offered,
		AcceptedPayment: types.NewPayment(token, acceptedNonce, acceptedAmount),
		Counterparty:    counterparty,
	})
	if err != nil {
		return 0, err
	}
	if err := e.state.OfferPut(offer); err != nil {
		return 0, err
	}
	e.emit(NewCreatedEvent(offer))
	return id, nil
}

// AcceptOffer settles an open offer. The caller must be permitted by the
// offer's counterparty and must attach exactly the demanded payment, which is
// forwarded to the creator while the custodied payment goes to the caller.
func (e *Engine) AcceptOffer(call Call, id uint64) error {
	if err := e.ready(call); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	offer, err := e.loadOffer(id)
	if err != nil {
		return err
	}
	caller := call.Caller()
	if !offer.Counterparty.Permits(caller) {
		return ErrUnauthorized
	}
	attached, ok := singlePayment(call)
	if !ok {
		return ErrPaymentMismatch
	}
	normalized, err := attached.Normalize()
	if err != nil || !normalized.Equal(offer.AcceptedPayment) {
		return ErrPaymentMismatch
	}
	// The record is removed before any asset moves; a failed transfer rolls
	// the removal back together with the rest of the call.
	if _, err := e.state.OfferRemove(id); err != nil {
		return err
	}
	if err := call.Transfer(offer.Creator, normalized); err != nil {
		return err
	}
	if err := call.Transfer(caller, offer.OfferedPayment); err != nil {
		return err
	}
	e.emit(NewAcceptedEvent(offer, caller))
	return nil
}

// CancelOffer returns the custodied payment to the creator. Cancellation is
// not subject to the module pause so creators can always recover their
// assets.
func (e *Engine) CancelOffer(call Call, id uint64) error {
	if err := e.ready(call); err != nil {
		return err
	}
	if len(call.AttachedPayments()) > 0 {
		return ErrUnexpectedPayment
	}
	offer, err := e.loadOffer(id)
	if err != nil {
		return err
	}
	if call.Caller() != offer.Creator {
		return ErrUnauthorized
	}
	if _, err := e.state.OfferRemove(id); err != nil {
		return err
	}
	if err := call.Transfer(offer.Creator, offer.OfferedPayment); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(offer))
	return nil
}

// Offer returns a copy of an open offer.
func (e *Engine) Offer(id uint64) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadOffer(id)
}
