// Package ledger implements the per-user inventory ledger: balances,
// liabilities reserved against resting orders, and the settlement outbox,
// in an account-manager idiom for per-owner balances.
package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/hyperclob/pkg/num"
)

// InventoryRecordSize is the fixed-width encoding used for the checkpoint's
// per-user record: 20-byte address + four 32-byte U256 fields + 4-byte
// nonce + 1-byte flag, padded to 153 bytes.
const InventoryRecordSize = 153

// ErrShortRecord is returned by DecodeInventory when given fewer than
// InventoryRecordSize bytes.
var ErrShortRecord = errors.New("inventory record too short")

// Inventory is the per-owner ledger record.
type Inventory struct {
	Address common.Address
	EthBalance num.U256
	EthLiabilities num.U256
	UsdcBalance num.U256
	UsdcLiabilities num.U256
	DepositNonce uint32
	IsTaker bool
}

// NewInventory returns a zeroed Inventory for address, matching the
// Warehouse's or_default semantics on first reference.
func NewInventory(address common.Address) *Inventory {
	return &Inventory{Address: address}
}

// NetETH is eth_balance - eth_liabilities, non-saturating: liabilities are
// never allowed to exceed balance by construction.
func (inv *Inventory) NetETH() num.U256 {
	return inv.EthBalance.Sub(inv.EthLiabilities)
}

// NetUSDC is usdc_balance - usdc_liabilities, saturating at zero.
func (inv *Inventory) NetUSDC() num.U256 {
	return inv.UsdcBalance.SatSub(inv.UsdcLiabilities)
}

// EncodeInventory renders the fixed 153-byte checkpoint record: 20-byte
// address, four 32-byte little-endian U256 fields, 4-byte little-endian
// deposit nonce, 1-byte is_taker flag.
func EncodeInventory(inv *Inventory) [InventoryRecordSize]byte {
	var out [InventoryRecordSize]byte
	offset := 0
	copy(out[offset:], inv.Address.Bytes())
	offset += common.AddressLength

	for _, field := range []num.U256{inv.EthBalance, inv.EthLiabilities, inv.UsdcBalance, inv.UsdcLiabilities} {
		encoded := field.LittleEndianBytes32()
		copy(out[offset:], encoded[:])
		offset += 32
	}

	out[offset] = byte(inv.DepositNonce)
	out[offset+1] = byte(inv.DepositNonce >> 8)
	out[offset+2] = byte(inv.DepositNonce >> 16)
	out[offset+3] = byte(inv.DepositNonce >> 24)
	offset += 4

	if inv.IsTaker {
		out[offset] = 1
	}

	return out
}

// DecodeInventory recovers an Inventory from a checkpoint record, the
// inverse of EncodeInventory.
func DecodeInventory(record []byte) (*Inventory, error) {
	if len(record) < InventoryRecordSize {
		return nil, ErrShortRecord
	}

	inv := &Inventory{}
	offset := 0
	inv.Address = common.BytesToAddress(record[offset: offset+common.AddressLength])
	offset += common.AddressLength

	var field [32]byte
	copy(field[:], record[offset:offset+32])
	inv.EthBalance = num.FromBytes32LE(field)
	offset += 32

	copy(field[:], record[offset:offset+32])
	inv.EthLiabilities = num.FromBytes32LE(field)
	offset += 32

	copy(field[:], record[offset:offset+32])
	inv.UsdcBalance = num.FromBytes32LE(field)
	offset += 32

	copy(field[:], record[offset:offset+32])
	inv.UsdcLiabilities = num.FromBytes32LE(field)
	offset += 32

	inv.DepositNonce = uint32(record[offset]) | uint32(record[offset+1])<<8 | uint32(record[offset+2])<<16 | uint32(record[offset+3])<<24
	offset += 4

	inv.IsTaker = record[offset] != 0

	return inv, nil
}
