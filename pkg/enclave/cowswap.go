package enclave

import (
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// WETHAddress and USDCAddress are the mainnet token addresses the
// settlement builder pairs against is_bid.
const (
	WETHAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	USDCAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

	// SettlementContract is the GPv2Settlement address, fixed across chains.
	SettlementContract = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"

	appDataVersion = "1.3.0"
)

// CowSwapHook is one pre-settlement hook call embedded in an order's
// app-data, built from the enclave's own pull_settlement_funds call.
type CowSwapHook struct {
	Target common.Address
	CallData []byte
	GasLimit string
}

type preHookDoc struct {
	Target string `json:"target"`
	CallData string `json:"callData"`
	GasLimit string `json:"gasLimit"`
}

type hooksDoc struct {
	Pre []preHookDoc `json:"pre"`
	Post []preHookDoc `json:"post"`
}

type appDataDoc struct {
	Version string `json:"version"`
	Metadata struct {
		Hooks hooksDoc `json:"hooks"`
	} `json:"metadata"`
}

// ToAppData renders the single-pre-hook app-data document CoW Protocol
// expects, plus its JSON bytes for hashing/storage.
func (h *CowSwapHook) ToAppData() (string, []byte, error) {
	doc := appDataDoc{Version: appDataVersion}
	doc.Metadata.Hooks = hooksDoc{
		Pre: []preHookDoc{{
			Target: h.Target.Hex(),
			CallData: "0x" + hex.EncodeToString(h.CallData),
			GasLimit: h.GasLimit,
		}},
		Post: []preHookDoc{},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", nil, err
	}
	return string(raw), raw, nil
}

// CowSwapOrder is the pre-signed GPv2 order the enclave stages into the
// settlement outbox. It implements ledger.SettlementOrder by virtue of being
// any concrete type; the outbox is serialized to JSON per entry at
// checkpoint time.
type CowSwapOrder struct {
	SellToken string `json:"sellToken"`
	BuyToken string `json:"buyToken"`
	Receiver string `json:"receiver"`
	SellAmount string `json:"sellAmount"`
	BuyAmount string `json:"buyAmount"`
	ValidTo uint64 `json:"validTo"`
	FeeAmount string `json:"feeAmount"`
	Kind string `json:"kind"`
	PartiallyFillable bool `json:"partiallyFillable"`
	SellTokenBalance string `json:"sellTokenBalance"`
	BuyTokenBalance string `json:"buyTokenBalance"`
	SigningScheme string `json:"signingScheme"`
	Signature string `json:"signature"`
	From string `json:"from"`
	AppData string `json:"appData"`

	// SettlementContract records which GPv2Settlement deployment this
	// order's presignature was registered against, so a later outbox
	// flush knows which contract to call without re-deriving it.
	SettlementContract string `json:"settlementContract"`
}
