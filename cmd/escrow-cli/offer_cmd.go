package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"strings"

	"escrowsc/core"
	"escrowsc/core/types"
	"escrowsc/native/offers"
)

func runOfferCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, offerUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runOfferCreate(args[1:], stdout, stderr)
	case "accept":
		return runOfferSettle(offers.MethodAcceptOffer, args[1:], stdout, stderr)
	case "cancel":
		return runOfferSettle(offers.MethodCancelOffer, args[1:], stdout, stderr)
	case "get":
		return runOfferGet(args[1:], stdout, stderr)
	case "last-id":
		return invoke(stdout, stderr, "escrow_lastOfferId", nil)
	default:
		fmt.Fprintf(stderr, "Unknown offer subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, offerUsage())
		return 1
	}
}

func offerUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli offer <command> [flags]

Commands:
  create   Lock a payment and publish an offer
  accept   Pay the demanded asset and take the offered one
  cancel   Withdraw an open offer
  get      Show an open offer
  last-id  Show the most recently allocated offer id`)
}

type paymentFlags struct {
	token  string
	nonce  uint64
	amount string
}

func (p *paymentFlags) register(fs *flag.FlagSet, prefix, what string) {
	fs.StringVar(&p.token, prefix+"-token", "", what+" token identifier")
	fs.Uint64Var(&p.nonce, prefix+"-nonce", 0, what+" unit instance number")
	fs.StringVar(&p.amount, prefix+"-amount", "", what+" amount in base units")
}

func (p *paymentFlags) payment(prefix string) (types.Payment, error) {
	if strings.TrimSpace(p.token) == "" {
		return types.Payment{}, fmt.Errorf("--%s-token is required", prefix)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(p.amount), 10)
	if !ok || amount.Sign() <= 0 {
		return types.Payment{}, fmt.Errorf("--%s-amount must be a positive integer", prefix)
	}
	return types.NewPayment(p.token, p.nonce, amount).Normalize()
}

func runOfferCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("offer create", stderr)
	var (
		keyPath      string
		counterparty string
		offered      paymentFlags
		accepted     paymentFlags
	)
	fs.StringVar(&keyPath, "key", "", "caller keystore file")
	fs.StringVar(&counterparty, "counterparty", "", "bech32 address allowed to accept; empty for anyone")
	offered.register(fs, "offer", "offered")
	accepted.register(fs, "want", "demanded")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	payment, err := offered.payment("offer")
	if err != nil {
		return printError(stderr, err.Error())
	}
	if _, err := accepted.payment("want"); err != nil {
		return printError(stderr, err.Error())
	}
	if counterparty != "" {
		if _, err := core.ParseCounterparty(counterparty); err != nil {
			return printError(stderr, err.Error())
		}
	}
	callArgs := core.CreateOfferArgs{
		AcceptedToken:  accepted.token,
		AcceptedNonce:  accepted.nonce,
		AcceptedAmount: strings.TrimSpace(accepted.amount),
		Counterparty:   counterparty,
	}
	return submit(stdout, stderr, keyPath, offers.MethodCreateOffer, callArgs, []types.Payment{payment})
}

func runOfferSettle(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("offer "+strings.TrimSuffix(method, "Offer"), stderr)
	var (
		keyPath string
		id      uint64
		paid    paymentFlags
	)
	fs.StringVar(&keyPath, "key", "", "caller keystore file")
	fs.Uint64Var(&id, "id", 0, "offer id")
	if offers.Payable(method) {
		paid.register(fs, "pay", "attached")
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	var payments []types.Payment
	if offers.Payable(method) {
		payment, err := paid.payment("pay")
		if err != nil {
			return printError(stderr, err.Error())
		}
		payments = append(payments, payment)
	}
	return submit(stdout, stderr, keyPath, method, core.OfferIDArgs{ID: id}, payments)
}

func runOfferGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("offer get", stderr)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "offer id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == 0 {
		return printError(stderr, "--id is required")
	}
	return invoke(stdout, stderr, "escrow_getOffer", map[string]uint64{"id": id})
}

func submit(stdout, stderr io.Writer, keyPath, method string, args interface{}, payments []types.Payment) int {
	key, err := loadKey(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	nonce, err := fetchNonce(key.PubKey().Address().String())
	if err != nil {
		return printError(stderr, err.Error())
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return printError(stderr, err.Error())
	}
	call := &types.Call{Method: method, Nonce: nonce, Args: raw, Payments: payments}
	if err := call.Sign(key.PrivateKey); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "escrow_submitCall", call)
}
