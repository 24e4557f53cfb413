package errors

import stderrors "errors"

var (
	ErrNilCall          = stderrors.New("call: nil call")
	ErrInvalidSignature = stderrors.New("call: invalid signature")
	ErrInvalidNonce     = stderrors.New("call: nonce mismatch")
	ErrUnknownMethod    = stderrors.New("call: unknown method")
	ErrInvalidArgs      = stderrors.New("call: invalid arguments")
	ErrInvalidPayment   = stderrors.New("call: invalid attached payment")
)
