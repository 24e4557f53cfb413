package state

import (
	"fmt"
	"math"
	"math/big"

	"escrowsc/core/types"
	"escrowsc/native/offers"
)

type storedOffer struct {
	ID              uint64
	Creator         [20]byte
	OfferedToken    string
	OfferedNonce    uint64
	OfferedAmount   *big.Int
	AcceptedToken   string
	AcceptedNonce   uint64
	AcceptedAmount  *big.Int
	HasCounterparty bool
	Counterparty    [20]byte
}

func newStoredOffer(o *offers.Offer) *storedOffer {
	offered := o.OfferedPayment.Clone()
	accepted := o.AcceptedPayment.Clone()
	record := &storedOffer{
		ID:             o.ID,
		Creator:        o.Creator,
		OfferedToken:   offered.Token,
		OfferedNonce:   offered.Nonce,
		OfferedAmount:  offered.Amount,
		AcceptedToken:  accepted.Token,
		AcceptedNonce:  accepted.Nonce,
		AcceptedAmount: accepted.Amount,
	}
	if addr, ok := o.Counterparty.Address(); ok {
		record.HasCounterparty = true
		record.Counterparty = addr
	}
	return record
}

func (s *storedOffer) toOffer() *offers.Offer {
	out := &offers.Offer{
		ID:              s.ID,
		Creator:         s.Creator,
		OfferedPayment:  types.NewPayment(s.OfferedToken, s.OfferedNonce, s.OfferedAmount),
		AcceptedPayment: types.NewPayment(s.AcceptedToken, s.AcceptedNonce, s.AcceptedAmount),
		Counterparty:    offers.AnyCounterparty(),
	}
	if s.HasCounterparty {
		out.Counterparty = offers.SpecificCounterparty(s.Counterparty)
	}
	return out
}

// LastOfferID returns the most recently allocated offer id, or zero when no
// offer was ever created.
func (m *Manager) LastOfferID() (uint64, error) {
	var last uint64
	if _, err := m.KVGet(lastOfferIDKey, &last); err != nil {
		return 0, err
	}
	return last, nil
}

// NextOfferID advances the durable offer counter and returns the new value.
// Ids start at 1 and are never reissued.
func (m *Manager) NextOfferID() (uint64, error) {
	last, err := m.LastOfferID()
	if err != nil {
		return 0, err
	}
	if last == math.MaxUint64 {
		return 0, fmt.Errorf("offers: id counter exhausted")
	}
	next := last + 1
	if err := m.KVPut(lastOfferIDKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// OfferGet loads the offer stored under id.
func (m *Manager) OfferGet(id uint64) (*offers.Offer, bool, error) {
	stored := new(storedOffer)
	ok, err := m.KVGet(offerKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toOffer(), true, nil
}

// OfferPut inserts or overwrites the offer stored under its id.
func (m *Manager) OfferPut(o *offers.Offer) error {
	if o == nil {
		return fmt.Errorf("offers: nil value")
	}
	existed, err := m.KVGet(offerKey(o.ID), nil)
	if err != nil {
		return err
	}
	if err := m.KVPut(offerKey(o.ID), newStoredOffer(o)); err != nil {
		return err
	}
	if existed {
		return nil
	}
	return m.adjustOpenOffers(1)
}

// OfferRemove deletes the offer stored under id and returns it. Removing a
// missing offer fails with offers.ErrOfferNotFound.
func (m *Manager) OfferRemove(id uint64) (*offers.Offer, error) {
	offer, ok, err := m.OfferGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offers.ErrOfferNotFound
	}
	if err := m.KVDelete(offerKey(id)); err != nil {
		return nil, err
	}
	if err := m.adjustOpenOffers(-1); err != nil {
		return nil, err
	}
	return offer, nil
}

// OpenOfferCount returns the number of offers currently in the store.
func (m *Manager) OpenOfferCount() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(openOffersKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Manager) adjustOpenOffers(delta int) error {
	count, err := m.OpenOfferCount()
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		count += uint64(delta)
	case uint64(-delta) > count:
		return fmt.Errorf("offers: open offer count underflow")
	default:
		count -= uint64(-delta)
	}
	return m.KVPut(openOffersKey, count)
}
