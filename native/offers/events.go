package offers

import (
	"encoding/hex"
	"strconv"

	"escrowsc/core/types"
)

const (
	EventTypeOfferCreated   = "offers.created"
	EventTypeOfferAccepted  = "offers.accepted"
	EventTypeOfferCancelled = "offers.cancelled"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// offer.
func NewCreatedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCreated, o, nil)
}

// NewAcceptedEvent returns the event payload emitted once an offer has been
// settled by accepter.
func NewAcceptedEvent(o *Offer, accepter [20]byte) *types.Event {
	return newOfferEvent(EventTypeOfferAccepted, o, &accepter)
}

// NewCancelledEvent returns the event payload emitted when the creator
// withdraws an offer.
func NewCancelledEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCancelled, o, nil)
}

func newOfferEvent(eventType string, o *Offer, accepter *[20]byte) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(o.ID, 10)
	attrs["creator"] = hex.EncodeToString(o.Creator[:])
	attrs["offeredToken"] = o.OfferedPayment.Token
	attrs["offeredNonce"] = strconv.FormatUint(o.OfferedPayment.Nonce, 10)
	attrs["offeredAmount"] = o.OfferedPayment.Clone().Amount.String()
	attrs["acceptedToken"] = o.AcceptedPayment.Token
	attrs["acceptedNonce"] = strconv.FormatUint(o.AcceptedPayment.Nonce, 10)
	attrs["acceptedAmount"] = o.AcceptedPayment.Clone().Amount.String()
	attrs["counterparty"] = o.Counterparty.String()
	if accepter != nil {
		attrs["accepter"] = hex.EncodeToString(accepter[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
