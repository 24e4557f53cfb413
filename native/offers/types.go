package offers

import (
	"fmt"

	"escrowsc/core/types"
)

// Counterparty names who may accept an offer: either any account or exactly
// one account. The zero value is the wildcard.
type Counterparty struct {
	specific bool
	addr     [20]byte
}

// AnyCounterparty returns the wildcard counterparty.
func AnyCounterparty() Counterparty { return Counterparty{} }

// SpecificCounterparty restricts acceptance to addr.
func SpecificCounterparty(addr [20]byte) Counterparty {
	return Counterparty{specific: true, addr: addr}
}

// IsAny reports whether any account may accept.
func (c Counterparty) IsAny() bool { return !c.specific }

// Address returns the named account, if any.
func (c Counterparty) Address() ([20]byte, bool) {
	return c.addr, c.specific
}

// Permits reports whether caller may accept the offer.
func (c Counterparty) Permits(caller [20]byte) bool {
	return !c.specific || c.addr == caller
}

func (c Counterparty) String() string {
	if !c.specific {
		return "any"
	}
	return fmt.Sprintf("%x", c.addr[:])
}

// Offer is an open escrow offer. OfferedPayment is held by the contract for as
// long as the record exists; AcceptedPayment only describes what the creator
// wants in return.
type Offer struct {
	ID              uint64
	Creator         [20]byte
	OfferedPayment  types.Payment
	AcceptedPayment types.Payment
	Counterparty    Counterparty
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.OfferedPayment = o.OfferedPayment.Clone()
	clone.AcceptedPayment = o.AcceptedPayment.Clone()
	return &clone
}

// SanitizeOffer validates a stored or about-to-be-stored offer and returns a
// normalised copy. Both payments must be positive while the offer is open.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("offers: nil offer")
	}
	if o.ID == 0 {
		return nil, fmt.Errorf("offers: offer id must be non-zero")
	}
	clone := o.Clone()
	offered, err := clone.OfferedPayment.Normalize()
	if err != nil {
		return nil, fmt.Errorf("offers: offered payment: %w", err)
	}
	accepted, err := clone.AcceptedPayment.Normalize()
	if err != nil {
		return nil, fmt.Errorf("offers: accepted payment: %w", err)
	}
	if !offered.Positive() {
		return nil, fmt.Errorf("offers: offered amount must be positive")
	}
	if !accepted.Positive() {
		return nil, ErrInvalidAcceptedAmount
	}
	clone.OfferedPayment = offered
	clone.AcceptedPayment = accepted
	return clone, nil
}
