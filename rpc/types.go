package rpc

import (
	"encoding/json"
	"net/http"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeOfferNotFound   = -32041
	codeUnauthorized    = -32042
	codePaymentMismatch = -32043
	codeNoPayment       = -32044
	codeInvalidAmount   = -32045
	codeModulePaused    = -32046
	codeTransferFailed  = -32047
	codeBadSignature    = -32048
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: normalizeID(id), Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: normalizeID(id), Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

type PaymentJSON struct {
	Token  string `json:"token"`
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
}

type OfferJSON struct {
	ID           uint64      `json:"id"`
	Creator      string      `json:"creator"`
	Offered      PaymentJSON `json:"offered"`
	Accepted     PaymentJSON `json:"accepted"`
	Counterparty string      `json:"counterparty"`
}

type ReceiptJSON struct {
	Height  uint64      `json:"height"`
	Method  string      `json:"method"`
	Caller  string      `json:"caller"`
	OfferID *uint64     `json:"offerId,omitempty"`
	Events  []EventJSON `json:"events"`
}

type EventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type HistoryEntryJSON struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt string            `json:"recordedAt"`
}

type BalanceJSON struct {
	Address string `json:"address"`
	PaymentJSON
}

type offerIDParams struct {
	ID uint64 `json:"id"`
}

type balanceParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Nonce   uint64 `json:"nonce"`
}

type addressParams struct {
	Address string `json:"address"`
}
