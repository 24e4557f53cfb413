package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	coreerrors "escrowsc/core/errors"
	nhbstate "escrowsc/core/state"
	"escrowsc/core/types"
	"escrowsc/crypto"
	nativecommon "escrowsc/native/common"
	"escrowsc/native/offers"
)

// paramsError reports malformed request parameters.
func paramsError(format string, args ...interface{}) error {
	return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func decodeParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return paramsError("exactly one parameter object required")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return paramsError("invalid parameter object: %v", err)
	}
	return nil
}

func (s *Server) handleSubmitCall(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var call types.Call
	if err := decodeParam(req, &call); err != nil {
		return nil, err
	}
	receipt, err := s.node.Execute(ctx, &call)
	if err != nil {
		return nil, err
	}
	return formatReceipt(receipt), nil
}

func (s *Server) handleGetOffer(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params offerIDParams
	if err := decodeParam(req, &params); err != nil {
		return nil, err
	}
	offer, err := s.node.Offer(params.ID)
	if err != nil {
		return nil, err
	}
	return formatOffer(offer), nil
}

func (s *Server) handleLastOfferID(_ context.Context, req *RPCRequest) (interface{}, error) {
	if len(req.Params) > 0 {
		return nil, paramsError("no parameters expected")
	}
	return s.node.LastOfferID()
}

func (s *Server) handleGetBalance(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params balanceParams
	if err := decodeParam(req, &params); err != nil {
		return nil, err
	}
	addr, err := crypto.ParseAccount(params.Address)
	if err != nil {
		return nil, paramsError("invalid address: %v", err)
	}
	balance, err := s.node.Balance(addr, params.Token, params.Nonce)
	if err != nil {
		return nil, err
	}
	return BalanceJSON{Address: params.Address, PaymentJSON: formatPayment(*balance)}, nil
}

func (s *Server) handleGetNonce(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params addressParams
	if err := decodeParam(req, &params); err != nil {
		return nil, err
	}
	addr, err := crypto.ParseAccount(params.Address)
	if err != nil {
		return nil, paramsError("invalid address: %v", err)
	}
	return s.node.Nonce(addr)
}

func (s *Server) handleGetOfferHistory(_ context.Context, req *RPCRequest) (interface{}, error) {
	var params offerIDParams
	if err := decodeParam(req, &params); err != nil {
		return nil, err
	}
	rows, err := s.history.History(params.ID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntryJSON, 0, len(rows))
	for _, row := range rows {
		attrs, err := row.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, HistoryEntryJSON{
			Sequence:   row.Sequence,
			Type:       row.Type,
			Attributes: attrs,
			RecordedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

func formatPayment(p types.Payment) PaymentJSON {
	amount := "0"
	if p.Amount != nil {
		amount = p.Amount.String()
	}
	return PaymentJSON{Token: p.Token, Nonce: p.Nonce, Amount: amount}
}

func formatOffer(o *offers.Offer) OfferJSON {
	counterparty := "any"
	if addr, ok := o.Counterparty.Address(); ok {
		counterparty = crypto.AddressFromArray(addr).String()
	}
	return OfferJSON{
		ID:           o.ID,
		Creator:      crypto.AddressFromArray(o.Creator).String(),
		Offered:      formatPayment(o.OfferedPayment),
		Accepted:     formatPayment(o.AcceptedPayment),
		Counterparty: counterparty,
	}
}

func formatReceipt(r *types.Receipt) ReceiptJSON {
	out := ReceiptJSON{
		Height:  r.Height,
		Method:  r.Method,
		Caller:  crypto.AddressFromArray(r.Caller).String(),
		OfferID: r.OfferID,
		Events:  make([]EventJSON, 0, len(r.Events)),
	}
	for _, evt := range r.Events {
		out.Events = append(out.Events, EventJSON{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out
}

var errorCodes = []struct {
	err    error
	status int
	code   int
}{
	{offers.ErrOfferNotFound, http.StatusNotFound, codeOfferNotFound},
	{offers.ErrUnauthorized, http.StatusForbidden, codeUnauthorized},
	{offers.ErrPaymentMismatch, http.StatusConflict, codePaymentMismatch},
	{offers.ErrNoPaymentAttached, http.StatusBadRequest, codeNoPayment},
	{offers.ErrInvalidAcceptedAmount, http.StatusBadRequest, codeInvalidAmount},
	{nativecommon.ErrModulePaused, http.StatusServiceUnavailable, codeModulePaused},
	{nhbstate.ErrInsufficientBalance, http.StatusConflict, codeTransferFailed},
	{coreerrors.ErrInvalidSignature, http.StatusUnauthorized, codeBadSignature},
	{coreerrors.ErrInvalidNonce, http.StatusConflict, codeBadSignature},
	{offers.ErrInvalidToken, http.StatusBadRequest, codeInvalidParams},
	{offers.ErrUnexpectedPayment, http.StatusBadRequest, codeInvalidParams},
	{coreerrors.ErrInvalidArgs, http.StatusBadRequest, codeInvalidParams},
	{coreerrors.ErrInvalidPayment, http.StatusBadRequest, codeInvalidParams},
	{coreerrors.ErrUnknownMethod, http.StatusBadRequest, codeInvalidParams},
	{coreerrors.ErrNilCall, http.StatusBadRequest, codeInvalidParams},
}

// toRPCError maps an execution failure to the HTTP status and JSON-RPC error
// returned to the client.
func toRPCError(err error) (int, *RPCError) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return http.StatusBadRequest, rpcErr
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.status, &RPCError{Code: entry.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
}
