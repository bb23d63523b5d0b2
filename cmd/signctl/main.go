package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperclob/pkg/crypto"
)

// signctl builds and signs one EIP-712 envelope (order, cancel, or user
// request) and prints the hex signature plus a ready-to-paste request
// path, so an operator can drive the enclave's HTTP surface by hand
// without a browser wallet.
func main() {
	var (
		action       = flag.String("action", "order", "order | cancel | request")
		keyHex       = flag.String("key", "", "hex private key; a fresh one is generated if empty")
		verifyingAt  = flag.String("verifying-contract", "0x0000000000000000000000000000000000000000", "CLOB domain verifying contract")
		price        = flag.String("price", "100", "order price (decimal string, order action only)")
		qty          = flag.String("qty", "1", "order qty (decimal string, order action only)")
		isBid        = flag.Bool("bid", true, "bid side (order action only)")
		oid          = flag.Uint64("oid", 0, "order id (cancel action only)")
		requestType  = flag.String("request-type", "inventory", "inventory | orders (request action only)")
	)
	flag.Parse()

	signer, err := loadOrGenerateSigner(*keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer: %v\n", err)
		os.Exit(1)
	}

	domain := crypto.CLOBDomain(common.HexToAddress(*verifyingAt))
	eip712 := crypto.NewEIP712Signer(domain)
	now := uint64(time.Now().UnixMilli())

	var (
		hash []byte
		path string
	)

	switch *action {
	case "order":
		envelope := &crypto.OrderEnvelope{
			Price: *price,
			Qty: *qty,
			IsBid: *isBid,
			Timestamp: now,
			Owner: signer.Address(),
		}
		hash, err = eip712.HashOrder(envelope)
		path = fmt.Sprintf("POST /send-order/%s/<signature>", signer.Address().Hex())
	case "cancel":
		envelope := &crypto.CancelEnvelope{
			OID: uint32(*oid),
			Timestamp: now,
			Owner: signer.Address(),
		}
		hash, err = eip712.HashCancel(envelope)
		path = fmt.Sprintf("DELETE /cancel-order/%s/<signature>", signer.Address().Hex())
	case "request":
		envelope := &crypto.UserRequestEnvelope{
			User: signer.Address(),
			Timestamp: now,
			RequestType: *requestType,
			Owner: signer.Address(),
		}
		hash, err = eip712.HashUserRequest(envelope)
		if *requestType == "orders" {
			path = fmt.Sprintf("GET /get-orders/%s/<signature>", signer.Address().Hex())
		} else {
			path = fmt.Sprintf("GET /get-inventory/%s/<signature>", signer.Address().Hex())
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q: want order, cancel, or request\n", *action)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	out := map[string]string{
		"address": signer.Address().Hex(),
		"signature": fmt.Sprintf("0x%x", signature),
		"timestamp": fmt.Sprintf("%d", now),
		"request": path,
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
}

func loadOrGenerateSigner(keyHex string) (*crypto.Signer, error) {
	if keyHex == "" {
		return crypto.GenerateKey()
	}
	return crypto.FromPrivateKeyHex(keyHex)
}
