// Package offers implements the escrow offer registry: a creator locks one
// payment in the contract's custody against a demand for a specific payment,
// and a single counterparty (or anyone, for open offers) settles the swap
// atomically. Offers never expire; they stay open until accepted or
// cancelled.
package offers

const (
	// ModuleName is the pause-guard key for the registry.
	ModuleName = "offers"

	MethodCreateOffer = "createOffer"
	MethodAcceptOffer = "acceptOffer"
	MethodCancelOffer = "cancelOffer"
)

// Payable reports whether the method accepts attached payments.
func Payable(method string) bool {
	switch method {
	case MethodCreateOffer, MethodAcceptOffer:
		return true
	default:
		return false
	}
}
