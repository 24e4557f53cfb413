package state

import (
	"encoding/binary"
	"strings"
)

var (
	offerRecordPrefix = []byte("offers/record/")
	lastOfferIDKey    = []byte("offers/lastOfferId")
	openOffersKey     = []byte("offers/open")
	balancePrefix     = []byte("ledger/balance/")
	callNoncePrefix   = []byte("ledger/nonce/")
)

func offerKey(id uint64) []byte {
	buf := make([]byte, len(offerRecordPrefix)+8)
	copy(buf, offerRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(offerRecordPrefix):], id)
	return buf
}

func balanceKey(addr [20]byte, token string, nonce uint64) []byte {
	normalized := strings.TrimSpace(token)
	buf := make([]byte, 0, len(balancePrefix)+len(normalized)+1+8+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, normalized...)
	buf = append(buf, ':')
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return buf
}

func callNonceKey(addr [20]byte) []byte {
	buf := make([]byte, len(callNoncePrefix)+len(addr))
	copy(buf, callNoncePrefix)
	copy(buf[len(callNoncePrefix):], addr[:])
	return buf
}
