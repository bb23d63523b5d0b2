package crypto

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data.
// This prevents replay attacks across different chains/contracts. The
// enclave uses three distinct domains: the CLOB
// domain for user order flow, the mainnet domain for taker settlement
// intents, and the Toliman (auxiliary chain) domain for checkpoints -
// so a signature collected for one purpose can never be replayed as
// another.
type EIP712Domain struct {
	Name string
	Version string
	ChainID *big.Int
	VerifyingContract common.Address
}

// CLOBDomain is the domain separator for Order/CancelOrder/UserRequest
// envelopes.
func CLOBDomain(verifyingContract common.Address) EIP712Domain {
	return EIP712Domain{
		Name: "HyperClob",
		Version: "1",
		ChainID: big.NewInt(1337),
		VerifyingContract: verifyingContract,
	}
}

// MainnetDomain is the domain separator used only for taker settlement
// intents, so a CLOB-domain signature can never double as a settlement
// authorization.
func MainnetDomain(depositRegistry common.Address) EIP712Domain {
	return EIP712Domain{
		Name: "HyperClob",
		Version: "1",
		ChainID: big.NewInt(1),
		VerifyingContract: depositRegistry,
	}
}

// TolimanDomain is the domain separator for the checkpoint envelope posted
// to the auxiliary chain.
func TolimanDomain(checkpointer common.Address) EIP712Domain {
	return EIP712Domain{
		Name: "HyperClob",
		Version: "1",
		ChainID: big.NewInt(1),
		VerifyingContract: checkpointer,
	}
}

// OrderEnvelope is the typed message for both new orders and replacements.
// Price and Qty travel as decimal strings since they are 256-bit.
type OrderEnvelope struct {
	Price string
	Qty string
	IsBid bool
	Timestamp uint64 // milliseconds since epoch
	Owner common.Address
}

// CancelEnvelope is the typed message used to cancel a resting order.
type CancelEnvelope struct {
	OID uint32
	Timestamp uint64
	Owner common.Address
}

// UserRequestEnvelope gates read endpoints (get-orders, get-inventory) so a
// user can only query their own state.
type UserRequestEnvelope struct {
	User common.Address
	Timestamp uint64
	RequestType string // "inventory" | "orders"
	Owner common.Address
}

// SettlementIntentEnvelope is the taker's approval to pull funds for one
// settlement leg, signed under the mainnet domain so it can never be
// replayed as a CLOB order or a checkpoint.
type SettlementIntentEnvelope struct {
	User common.Address
	IsBid bool
	EthAmount string
	UsdcAmount string
	Timestamp uint64
	Owner common.Address
}

// HookApprovalEnvelope is the enclave's own self-signed approval of the
// pull_settlement_funds call it is about to embed as a CoW pre-hook, over
// "pull_settlement_funds", [eth_amount, usdc_amount, settlement_nonce].
// Unlike the other envelopes this one is only ever hashed and signed by
// the enclave itself, never verified against a claimed owner.
type HookApprovalEnvelope struct {
	EthAmount string
	UsdcAmount string
	SettlementNonce string
	Timestamp uint64
}

// EIP712Signer computes and verifies structured hashes under one domain.
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a signer scoped to a single domain.
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) domainMap() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name: e.domain.Name,
		Version: e.domain.Version,
		ChainId: (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

func (e *EIP712Signer) digest(types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: types,
		PrimaryType: primaryType,
		Domain: e.domainMap(),
		Message: message,
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map)
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	msgHash, err := typedData.HashStruct(primaryType, message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(msgHash)))
	return crypto.Keccak256Hash(raw).Bytes(), nil
}

// HashOrder computes the digest for an OrderEnvelope.
func (e *EIP712Signer) HashOrder(o *OrderEnvelope) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"Order": []apitypes.Type{
			{Name: "price", Type: "uint256"},
			{Name: "qty", Type: "uint256"},
			{Name: "isBid", Type: "bool"},
			{Name: "timestamp", Type: "uint256"},
		},
	}
	message := apitypes.TypedDataMessage{
		"price": o.Price,
		"qty": o.Qty,
		"isBid": o.IsBid,
		"timestamp": fmt.Sprintf("%d", o.Timestamp),
	}
	return e.digest(types, "Order", message)
}

// VerifyOrderSignature recovers the signer and compares against the claimed
// owner.
func (e *EIP712Signer) VerifyOrderSignature(o *OrderEnvelope, signature []byte) (bool, error) {
	hash, err := e.HashOrder(o)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == o.Owner, nil
}

// HashCancel computes the digest for a CancelEnvelope.
func (e *EIP712Signer) HashCancel(c *CancelEnvelope) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"CancelOrder": []apitypes.Type{
			{Name: "oid", Type: "uint32"},
			{Name: "timestamp", Type: "uint256"},
		},
	}
	message := apitypes.TypedDataMessage{
		"oid": fmt.Sprintf("%d", c.OID),
		"timestamp": fmt.Sprintf("%d", c.Timestamp),
	}
	return e.digest(types, "CancelOrder", message)
}

// VerifyCancelSignature recovers the signer and compares against the
// claimed owner.
func (e *EIP712Signer) VerifyCancelSignature(c *CancelEnvelope, signature []byte) (bool, error) {
	hash, err := e.HashCancel(c)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == c.Owner, nil
}

// HashUserRequest computes the digest for a UserRequestEnvelope.
func (e *EIP712Signer) HashUserRequest(r *UserRequestEnvelope) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"UserRequest": []apitypes.Type{
			{Name: "user", Type: "address"},
			{Name: "timestamp", Type: "uint256"},
			{Name: "requestType", Type: "string"},
		},
	}
	message := apitypes.TypedDataMessage{
		"user": r.User.Hex(),
		"timestamp": fmt.Sprintf("%d", r.Timestamp),
		"requestType": r.RequestType,
	}
	return e.digest(types, "UserRequest", message)
}

// VerifyUserRequestSignature recovers the signer and compares against the
// claimed owner.
func (e *EIP712Signer) VerifyUserRequestSignature(r *UserRequestEnvelope, signature []byte) (bool, error) {
	hash, err := e.HashUserRequest(r)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == r.Owner, nil
}

// HashSettlementIntent computes the digest for a SettlementIntentEnvelope.
func (e *EIP712Signer) HashSettlementIntent(s *SettlementIntentEnvelope) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"SettlementIntent": []apitypes.Type{
			{Name: "user", Type: "address"},
			{Name: "isBid", Type: "bool"},
			{Name: "ethAmount", Type: "uint256"},
			{Name: "usdcAmount", Type: "uint256"},
			{Name: "timestamp", Type: "uint256"},
		},
	}
	message := apitypes.TypedDataMessage{
		"user": s.User.Hex(),
		"isBid": s.IsBid,
		"ethAmount": s.EthAmount,
		"usdcAmount": s.UsdcAmount,
		"timestamp": fmt.Sprintf("%d", s.Timestamp),
	}
	return e.digest(types, "SettlementIntent", message)
}

// VerifySettlementIntentSignature recovers the signer and compares against
// the claimed owner (always the taker, step 2).
func (e *EIP712Signer) VerifySettlementIntentSignature(s *SettlementIntentEnvelope, signature []byte) (bool, error) {
	hash, err := e.HashSettlementIntent(s)
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == s.Owner, nil
}

// HashCheckpoint computes the digest for one checkpoint submission.
// inventoryState and settlementOrders travel as hex/joined strings since
// EIP-712 typed-data messages are string-keyed.
func (e *EIP712Signer) HashCheckpoint(nonce *big.Int, inventoryState []byte, settlementOrders []string) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"Checkpoint": []apitypes.Type{
			{Name: "nonce", Type: "uint256"},
			{Name: "inventoryState", Type: "bytes"},
			{Name: "settlementOrders", Type: "string"},
		},
	}
	joined := ""
	for i, order := range settlementOrders {
		if i > 0 {
			joined += "\x1e"
		}
		joined += order
	}
	message := apitypes.TypedDataMessage{
		"nonce": nonce.String(),
		"inventoryState": "0x" + hex.EncodeToString(inventoryState),
		"settlementOrders": joined,
	}
	return e.digest(types, "Checkpoint", message)
}

// HashHookApproval computes the digest the enclave signs itself to
// authorize its own pull_settlement_funds pre-hook.
func (e *EIP712Signer) HashHookApproval(h *HookApprovalEnvelope) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"HookApproval": []apitypes.Type{
			{Name: "ethAmount", Type: "uint256"},
			{Name: "usdcAmount", Type: "uint256"},
			{Name: "settlementNonce", Type: "uint256"},
			{Name: "timestamp", Type: "uint256"},
		},
	}
	message := apitypes.TypedDataMessage{
		"ethAmount": h.EthAmount,
		"usdcAmount": h.UsdcAmount,
		"settlementNonce": h.SettlementNonce,
		"timestamp": fmt.Sprintf("%d", h.Timestamp),
	}
	return e.digest(types, "HookApproval", message)
}
