package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	coreerrors "escrowsc/core/errors"
	nhbstate "escrowsc/core/state"
	"escrowsc/core/types"
	"escrowsc/crypto"
	"escrowsc/native/offers"
)

// CreateOfferArgs are the arguments of createOffer. AcceptedAmount is a base-10
// integer string. An empty or "*" Counterparty lets any account accept.
type CreateOfferArgs struct {
	AcceptedToken  string `json:"acceptedToken"`
	AcceptedNonce  uint64 `json:"acceptedNonce"`
	AcceptedAmount string `json:"acceptedAmount"`
	Counterparty   string `json:"counterparty,omitempty"`
}

// OfferIDArgs are the arguments of acceptOffer and cancelOffer.
type OfferIDArgs struct {
	ID uint64 `json:"id"`
}

// ParseCounterparty decodes the counterparty argument of createOffer.
func ParseCounterparty(raw string) (offers.Counterparty, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "*" {
		return offers.AnyCounterparty(), nil
	}
	addr, err := crypto.ParseAccount(trimmed)
	if err != nil {
		return offers.Counterparty{}, fmt.Errorf("%w: counterparty: %v", coreerrors.ErrInvalidArgs, err)
	}
	return offers.SpecificCounterparty(addr), nil
}

func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing arguments", coreerrors.ErrInvalidArgs)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidArgs, err)
	}
	return nil
}

// callContext is the engine's view of the call being executed. Payments have
// already been moved into custody when the engine runs.
type callContext struct {
	state    *nhbstate.Manager
	caller   [20]byte
	payments []types.Payment
}

func (c *callContext) Caller() [20]byte { return c.caller }

func (c *callContext) AttachedPayments() []types.Payment {
	out := make([]types.Payment, len(c.payments))
	for i, p := range c.payments {
		out[i] = p.Clone()
	}
	return out
}

// Transfer pays out of the contract's custody account.
func (c *callContext) Transfer(to [20]byte, payment types.Payment) error {
	return c.state.Transfer(CustodyAddress(), to, payment)
}

func (n *Node) dispatch(ctx *callContext, call *types.Call) (*uint64, error) {
	switch call.Method {
	case offers.MethodCreateOffer:
		var args CreateOfferArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(args.AcceptedAmount), 10)
		if !ok {
			return nil, fmt.Errorf("%w: acceptedAmount %q", coreerrors.ErrInvalidArgs, args.AcceptedAmount)
		}
		counterparty, err := ParseCounterparty(args.Counterparty)
		if err != nil {
			return nil, err
		}
		id, err := n.engine.CreateOffer(ctx, args.AcceptedToken, args.AcceptedNonce, amount, counterparty)
		if err != nil {
			return nil, err
		}
		return &id, nil
	case offers.MethodAcceptOffer:
		var args OfferIDArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		if err := n.engine.AcceptOffer(ctx, args.ID); err != nil {
			return nil, err
		}
		return &args.ID, nil
	case offers.MethodCancelOffer:
		var args OfferIDArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		if err := n.engine.CancelOffer(ctx, args.ID); err != nil {
			return nil, err
		}
		return &args.ID, nil
	default:
		return nil, fmt.Errorf("%w: %q", coreerrors.ErrUnknownMethod, call.Method)
	}
}
